package ownership

import "github.com/seenimoa/filinglens/pkg/models"

// ComputePutCall builds the notional put/call ratio. Ratio is nil without
// CALL holdings.
func ComputePutCall(cusip, quarter string, put, call int64) models.PutCallRatio {
	r := models.PutCallRatio{CUSIP: cusip, Quarter: quarter, PutValue: put, CallValue: call}
	if call > 0 {
		v := float64(put) / float64(call)
		r.Ratio = &v
	}
	return r
}

package ownership

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/seenimoa/filinglens/pkg/models"
	"github.com/seenimoa/filinglens/pkg/utils"
)

// ------------------------------------------------------------------
// Accumulation alerts: securities whose aggregate institutional value
// grew by a multiple over a lookback window.
// ------------------------------------------------------------------

// Alert defaults.
const (
	DefaultLookbackMonths = 24
	DefaultMinChange      = 5.0
	DefaultMinStartValue  = 1_000_000
	DefaultAlertLimit     = 50
	DefaultAlertTTL       = time.Hour

	maxLookbackMonths = 120
	maxAlertLimit     = 500
)

// AlertParams selects alerts. Zero fields take the defaults; MaxChange 0
// means no upper bound.
type AlertParams struct {
	LookbackMonths int
	MinChange      float64
	MaxChange      float64
	MinStartValue  int64
	TickersOnly    bool // restrict to 1-5 letter tickers
	Limit          int
}

// WithDefaults fills zero fields from d.
func (p AlertParams) WithDefaults(d AlertParams) AlertParams {
	if p.LookbackMonths == 0 {
		p.LookbackMonths = d.LookbackMonths
	}
	if p.MinChange == 0 {
		p.MinChange = d.MinChange
	}
	if p.MinStartValue == 0 {
		p.MinStartValue = d.MinStartValue
	}
	if p.Limit == 0 {
		p.Limit = d.Limit
	}
	return p
}

// Validate checks the parameter ranges.
func (p AlertParams) Validate() error {
	if p.LookbackMonths < 3 || p.LookbackMonths > maxLookbackMonths {
		return &utils.ValidationError{Field: "lookback_months", Value: strconv.Itoa(p.LookbackMonths),
			Reason: fmt.Sprintf("must be between 3 and %d", maxLookbackMonths)}
	}
	if p.MinChange <= 0 {
		return &utils.ValidationError{Field: "min_change", Value: formatFloat(p.MinChange), Reason: "must be positive"}
	}
	if p.MaxChange != 0 && p.MaxChange < p.MinChange {
		return &utils.ValidationError{Field: "max_change", Value: formatFloat(p.MaxChange), Reason: "must be at least min_change"}
	}
	if p.MinStartValue < 0 {
		return &utils.ValidationError{Field: "min_start_value", Value: strconv.FormatInt(p.MinStartValue, 10), Reason: "must not be negative"}
	}
	return utils.ValidateLimit(p.Limit, maxAlertLimit)
}

// Quarters is the lookback expressed in whole quarters.
func (p AlertParams) Quarters() int {
	return p.LookbackMonths / 3
}

// Key identifies a parameter tuple in the alert cache.
func (p AlertParams) Key() string {
	return fmt.Sprintf("alerts:%d:%s:%s:%d:%t:%d", p.LookbackMonths,
		formatFloat(p.MinChange), formatFloat(p.MaxChange), p.MinStartValue, p.TickersOnly, p.Limit)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// DetectAlerts scans per-quarter aggregate values for securities whose
// value at end is at least MinChange times the value at start. The start
// value must meet MinStartValue. Candidates are ranked by momentum, the
// end quarter over the quarter before it. Ticker filtering and the limit
// are applied by the caller.
func DetectAlerts(values []models.QuarterValue, start, end string, p AlertParams, now time.Time) []models.Alert {
	prior, err := utils.ShiftQuarter(end, -1)
	if err != nil {
		return nil
	}

	type series struct {
		name              string
		first, last, prev int64
	}
	byCUSIP := make(map[string]*series)
	var order []string
	for _, v := range values {
		s, ok := byCUSIP[v.CUSIP]
		if !ok {
			s = &series{}
			byCUSIP[v.CUSIP] = s
			order = append(order, v.CUSIP)
		}
		if v.IssuerName != "" {
			s.name = v.IssuerName
		}
		switch v.Quarter {
		case start:
			s.first = v.Value
		case end:
			s.last = v.Value
		}
		if v.Quarter == prior {
			s.prev = v.Value
		}
	}

	var out []models.Alert
	for _, cusip := range order {
		s := byCUSIP[cusip]
		if s.first <= 0 || s.first < p.MinStartValue || s.last <= 0 {
			continue
		}
		multiple := float64(s.last) / float64(s.first)
		if multiple < p.MinChange || (p.MaxChange > 0 && multiple > p.MaxChange) {
			continue
		}
		var momentum float64
		if s.prev > 0 {
			momentum = float64(s.last) / float64(s.prev)
		}
		out = append(out, models.Alert{
			CUSIP:          cusip,
			IssuerName:     s.name,
			StartQuarter:   start,
			EndQuarter:     end,
			PreviousValue:  s.first,
			CurrentValue:   s.last,
			ChangeMultiple: multiple,
			Momentum:       momentum,
			LookbackMonths: p.LookbackMonths,
			ComputedAt:     now,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Momentum != out[j].Momentum {
			return out[i].Momentum > out[j].Momentum
		}
		if out[i].ChangeMultiple != out[j].ChangeMultiple {
			return out[i].ChangeMultiple > out[j].ChangeMultiple
		}
		return out[i].CUSIP < out[j].CUSIP
	})
	return out
}

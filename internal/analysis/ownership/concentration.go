package ownership

import (
	"sort"

	"github.com/seenimoa/filinglens/pkg/models"
)

// ComputeConcentration measures how concentrated holdings of a security
// are. HHI is the sum of squared percentage shares, 0 to 10000; a single
// holder scores 10000 and N equal holders 10000/N.
func ComputeConcentration(cusip, quarter string, positions []models.HolderPosition) models.ConcentrationMetrics {
	m := models.ConcentrationMetrics{CUSIP: cusip, Quarter: quarter}
	held := make([]models.HolderPosition, 0, len(positions))
	for _, p := range positions {
		if p.Value > 0 {
			held = append(held, p)
			m.TotalValue += p.Value
		}
	}
	m.HolderCount = len(held)
	if m.TotalValue == 0 {
		return m
	}

	sort.SliceStable(held, func(i, j int) bool { return held[i].Value > held[j].Value })
	total := float64(m.TotalValue)
	var top10 int64
	for i, p := range held {
		pct := float64(p.Value) / total * 100
		m.HHI += pct * pct
		if i < 10 {
			top10 += p.Value
		}
	}
	m.Top10Share = float64(top10) / total
	m.LargestHolderCIK = held[0].FilerCIK
	m.LargestHolderName = held[0].FilerName
	m.LargestHolderPct = float64(held[0].Value) / total * 100
	return m
}

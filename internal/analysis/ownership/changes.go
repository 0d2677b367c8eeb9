// Package ownership computes institutional ownership analytics from 13F
// positions: quarter-over-quarter changes, concentration, a sentiment
// score, put/call ratios and accumulation alerts.
package ownership

import (
	"math"
	"sort"

	"github.com/seenimoa/filinglens/pkg/models"
)

// ChangeThreshold is the share-count move, in percent, beyond which a
// position counts as added or reduced.
const ChangeThreshold = 5.0

// ClassifyChange classifies a holder's move from prev to curr shares.
func ClassifyChange(prev, curr int64) models.ChangeType {
	switch {
	case prev <= 0 && curr > 0:
		return models.ChangeNew
	case prev > 0 && curr <= 0:
		return models.ChangeClosed
	case prev <= 0:
		return models.ChangeUnchanged
	}
	pct := changePct(prev, curr)
	switch {
	case pct > ChangeThreshold:
		return models.ChangeAdded
	case pct < -ChangeThreshold:
		return models.ChangeReduced
	}
	return models.ChangeUnchanged
}

func changePct(prev, curr int64) float64 {
	if prev == 0 {
		return 0
	}
	return float64(curr-prev) / float64(prev) * 100
}

// ComputeChanges pairs holders across two quarters by CIK. Holders present
// in only one quarter are NEW or CLOSED. Results are ordered by absolute
// value change, largest first.
func ComputeChanges(prev, curr []models.HolderPosition) []models.PositionChange {
	byCIK := make(map[string]*models.PositionChange, len(prev)+len(curr))
	var order []string
	get := func(p models.HolderPosition) *models.PositionChange {
		c, ok := byCIK[p.FilerCIK]
		if !ok {
			c = &models.PositionChange{FilerCIK: p.FilerCIK}
			byCIK[p.FilerCIK] = c
			order = append(order, p.FilerCIK)
		}
		if c.FilerName == "" {
			c.FilerName = p.FilerName
		}
		return c
	}
	for _, p := range prev {
		c := get(p)
		c.PreviousShares += p.Shares
		c.PreviousValue += p.Value
	}
	for _, p := range curr {
		c := get(p)
		c.CurrentShares += p.Shares
		c.CurrentValue += p.Value
	}

	out := make([]models.PositionChange, 0, len(order))
	for _, cik := range order {
		c := byCIK[cik]
		c.Type = ClassifyChange(c.PreviousShares, c.CurrentShares)
		c.ChangePct = changePct(c.PreviousShares, c.CurrentShares)
		out = append(out, *c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		di := math.Abs(float64(out[i].CurrentValue - out[i].PreviousValue))
		dj := math.Abs(float64(out[j].CurrentValue - out[j].PreviousValue))
		if di != dj {
			return di > dj
		}
		return out[i].FilerCIK < out[j].FilerCIK
	})
	return out
}

// CountChanges tallies change types.
func CountChanges(changes []models.PositionChange) map[models.ChangeType]int {
	out := make(map[models.ChangeType]int, 5)
	for _, c := range changes {
		out[c.Type]++
	}
	return out
}

package ownership

import (
	"math"

	"github.com/seenimoa/filinglens/pkg/models"
)

// Sentiment weights and caps.
const (
	sentimentBaseline = 50.0

	valueChangeCap    = 50.0 // percent
	valueChangeWeight = 0.5
	holderChangeCap   = 1.0
	holderWeight      = 25.0
	concentrationW    = 15.0
	newClosedWeight   = 10.0

	bullishAt = 60
	bearishAt = 40
)

// SentimentInputs are the quarter-over-quarter aggregates a score is
// built from.
type SentimentInputs struct {
	PreviousValue   int64
	CurrentValue    int64
	PreviousHolders int
	CurrentHolders  int
	HHI             float64 // current quarter, 0..10000
	NewHolders      int
	ClosedHolders   int
}

// Components computes the capped score components.
func (in SentimentInputs) Components() models.SentimentComponents {
	var c models.SentimentComponents
	if in.PreviousValue > 0 {
		pct := float64(in.CurrentValue-in.PreviousValue) / float64(in.PreviousValue) * 100
		c.ValueChange = clamp(pct, -valueChangeCap, valueChangeCap) * valueChangeWeight
	}
	if in.PreviousHolders > 0 {
		ratio := float64(in.CurrentHolders-in.PreviousHolders) / float64(in.PreviousHolders)
		c.HolderChange = clamp(ratio, -holderChangeCap, holderChangeCap) * holderWeight
	}
	if in.CurrentHolders > 0 {
		c.Concentration = (1 - clamp(in.HHI, 0, 10000)/10000) * concentrationW
	}
	if n := in.NewHolders + in.ClosedHolders; n > 0 {
		c.NewVsClosed = float64(in.NewHolders-in.ClosedHolders) / float64(n) * newClosedWeight
	}
	return c
}

// ScoreSentiment turns inputs into a 0..100 score and its signal.
func ScoreSentiment(in SentimentInputs) (int, models.SentimentSignal, models.SentimentComponents) {
	c := in.Components()
	score := int(math.Round(clamp(sentimentBaseline+c.Sum(), 0, 100)))
	return score, SignalFor(score), c
}

// SignalFor maps a score to its signal.
func SignalFor(score int) models.SentimentSignal {
	switch {
	case score >= bullishAt:
		return models.SignalBullish
	case score <= bearishAt:
		return models.SignalBearish
	}
	return models.SignalNeutral
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

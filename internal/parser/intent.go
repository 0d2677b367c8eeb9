package parser

import (
	"regexp"
	"strings"

	"github.com/seenimoa/filinglens/pkg/models"
)

var (
	sentenceSplitRe = regexp.MustCompile(`[.;]\s+|\n\s*\n`)

	// Boilerplate disclaimers list every Item 4 topic under a negation.
	negationRe = regexp.MustCompile(`(?i)\b(no|not have any|do not have|does not have|has no|have no) (present |current )?(plans?|proposals?|intention)\b`)

	intentKeywords = []struct {
		set      func(*models.IntentFlags)
		keywords []string
	}{
		{func(f *models.IntentFlags) { f.BoardChange = true }, []string{
			"nominate", "nominee", "board representation", "board seat", "director candidate",
			"composition of the board", "change in the present board", "replace directors", "elect directors",
		}},
		{func(f *models.IntentFlags) { f.MergerOrSale = true }, []string{
			"merger", "sale of the company", "sale of the issuer", "business combination", "strategic alternatives",
			"substantially all of the assets", "going private", "go private", "tender offer", "acquire the issuer",
		}},
		{func(f *models.IntentFlags) { f.CapitalChange = true }, []string{
			"capitalization", "dividend policy", "share repurchase", "buyback", "buy back", "recapitalization",
			"capital allocation", "return of capital", "special dividend", "spin-off", "spin off",
		}},
		{func(f *models.IntentFlags) { f.Activist = true }, []string{
			"proxy contest", "solicit proxies", "proxy solicitation", "activist", "consent solicitation",
			"special meeting", "letter to the board",
		}},
		{func(f *models.IntentFlags) { f.Passive = true }, []string{
			"investment purposes", "ordinary course of business", "passive investment",
			"not with the purpose", "not for the purpose", "without the purpose",
		}},
		{func(f *models.IntentFlags) { f.MayAcquireMore = true }, []string{
			"acquire additional", "purchase additional", "increase its position", "increase their position",
			"increase its holdings", "increase their holdings", "additional shares",
		}},
		{func(f *models.IntentFlags) { f.MayDispose = true }, []string{
			"dispose of", "sell some or all", "sell all or a portion", "sell all or part", "decrease its position",
			"decrease their position", "reduce its position", "reduce their position",
		}},
	}
)

// ClassifyIntent derives intent flags from purpose-of-transaction text by
// keyword match. Sentences stating the filer has no plans are read as
// passive and otherwise ignored. Any board, merger or capital flag implies
// Activist.
func ClassifyIntent(purpose string) models.IntentFlags {
	var f models.IntentFlags
	text := strings.ToLower(cleanText(purpose))
	if text == "" {
		return f
	}

	for _, sentence := range sentenceSplitRe.Split(text, -1) {
		if negationRe.MatchString(sentence) {
			f.Passive = true
			continue
		}
		for _, group := range intentKeywords {
			for _, kw := range group.keywords {
				if strings.Contains(sentence, kw) {
					group.set(&f)
					break
				}
			}
		}
	}

	if f.BoardChange || f.MergerOrSale || f.CapitalChange {
		f.Activist = true
	}
	if f.Activist {
		f.Passive = false
	}
	return f
}

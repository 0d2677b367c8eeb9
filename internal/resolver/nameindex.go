package resolver

import (
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/seenimoa/filinglens/pkg/models"
)

// Match kinds, in decreasing confidence.
const (
	MatchExact  = "exact"
	MatchPrefix = "prefix"
	MatchWords  = "words"
	MatchFuzzy  = "fuzzy"
)

// fuzzyThreshold is the minimum similarity for a fuzzy hit.
const fuzzyThreshold = 0.6

// NameIndex is an in-memory reverse index from filer names to CIKs.
// Safe for concurrent use.
type NameIndex struct {
	mu    sync.RWMutex
	names map[string]string              // cik -> display name
	norm  map[string]string              // cik -> normalized name
	words map[string]map[string]struct{} // word -> ciks
}

// NewNameIndex creates an empty index.
func NewNameIndex() *NameIndex {
	return &NameIndex{
		names: make(map[string]string),
		norm:  make(map[string]string),
		words: make(map[string]map[string]struct{}),
	}
}

// Add indexes name under cik, replacing any previous name.
func (x *NameIndex) Add(cik, name string) {
	n := normalizeName(name)
	if cik == "" || n == "" {
		return
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if old, ok := x.norm[cik]; ok {
		for _, w := range strings.Fields(old) {
			if set := x.words[w]; set != nil {
				delete(set, cik)
				if len(set) == 0 {
					delete(x.words, w)
				}
			}
		}
	}
	x.names[cik] = name
	x.norm[cik] = n
	for _, w := range strings.Fields(n) {
		set := x.words[w]
		if set == nil {
			set = make(map[string]struct{})
			x.words[w] = set
		}
		set[cik] = struct{}{}
	}
}

// Len returns the number of indexed CIKs.
func (x *NameIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.names)
}

// Search returns up to limit matches for query, best first. Exact phrase
// matches rank above prefix matches, then names containing every query
// word, then names within edit-distance similarity of the query.
func (x *NameIndex) Search(query string, limit int) []models.NameMatch {
	q := normalizeName(query)
	if q == "" || limit <= 0 {
		return nil
	}
	x.mu.RLock()
	defer x.mu.RUnlock()

	found := make(map[string]models.NameMatch)
	add := func(cik, kind string, score float64) {
		if prev, ok := found[cik]; ok && prev.Score >= score {
			return
		}
		found[cik] = models.NameMatch{CIK: cik, Name: x.names[cik], Score: score, Kind: kind}
	}

	for cik, n := range x.norm {
		switch {
		case n == q:
			add(cik, MatchExact, 1)
		case strings.HasPrefix(n, q):
			add(cik, MatchPrefix, 0.9)
		}
	}

	// Every query word must appear; score by the share of the name covered.
	qw := strings.Fields(q)
	var candidates map[string]struct{}
	for i, w := range qw {
		set := x.words[w]
		if i == 0 {
			candidates = make(map[string]struct{}, len(set))
			for cik := range set {
				candidates[cik] = struct{}{}
			}
			continue
		}
		for cik := range candidates {
			if _, ok := set[cik]; !ok {
				delete(candidates, cik)
			}
		}
	}
	for cik := range candidates {
		nw := len(strings.Fields(x.norm[cik]))
		add(cik, MatchWords, 0.5+0.3*float64(len(qw))/float64(nw))
	}

	if len(found) < limit {
		for cik, n := range x.norm {
			if _, ok := found[cik]; ok {
				continue
			}
			if s := similarity(q, n); s >= fuzzyThreshold {
				add(cik, MatchFuzzy, s*0.5)
			}
		}
	}

	out := make([]models.NameMatch, 0, len(found))
	for _, m := range found {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].CIK < out[j].CIK
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// normalizeName upper-cases name, turns punctuation into spaces and
// collapses whitespace. "Berkshire Hathaway, Inc." -> "BERKSHIRE HATHAWAY INC".
func normalizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToUpper(r))
		case r == '&' || r == '\'':
			// "AT&T" and "MOODY'S" index as one word
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// similarity is 1 - levenshtein(a, b) / max(len(a), len(b)).
func similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

package sec

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/seenimoa/filinglens/pkg/utils"
)

// FeedEntry is one filing announced on the current filings feed.
type FeedEntry struct {
	AccessionNumber string
	FormType        string
	FilerCIK        string
	FilerName       string
	Role            string // "Filer", "Reporting", "Issuer", "Subject", "Filed by"
	FilingDate      time.Time
	Link            string
}

var (
	// "4 - Doe John (0001234567) (Reporting)"
	feedTitleRe = regexp.MustCompile(`^(.+?) - (.+) \((\d{1,10})\) \(([^)]+)\)\s*$`)
	feedAccRe   = regexp.MustCompile(`AccNo:\s*(?:</b>)?\s*(\d{10}-\d{2}-\d{6})`)
	feedFiledRe = regexp.MustCompile(`Filed:\s*(?:</b>)?\s*(\d{4}-\d{2}-\d{2})`)
	linkAccRe   = regexp.MustCompile(`/(\d{10}-\d{2}-\d{6})-index\.html?$`)
)

// CurrentFeedURL returns the Atom feed of the latest filings of formType.
func (p *Provider) CurrentFeedURL(formType string, count int) string {
	q := url.Values{}
	q.Set("action", "getcurrent")
	q.Set("type", formType)
	q.Set("company", "")
	q.Set("dateb", "")
	q.Set("owner", "include")
	q.Set("start", "0")
	q.Set("count", fmt.Sprint(count))
	q.Set("output", "atom")
	return p.baseURL + "/cgi-bin/browse-edgar?" + q.Encode()
}

// CurrentFilings fetches and parses the current filings feed for formType.
func (p *Provider) CurrentFilings(ctx context.Context, formType string, count int) ([]FeedEntry, error) {
	raw, err := p.fetchRaw(ctx, p.CurrentFeedURL(formType, count))
	if err != nil {
		return nil, fmt.Errorf("sec current feed %s: %w", formType, err)
	}
	return ParseCurrentFeed(string(raw))
}

// ParseCurrentFeed parses an EDGAR current filings Atom document. Entries
// without an accession number are skipped.
func ParseCurrentFeed(raw string) ([]FeedEntry, error) {
	feed, err := gofeed.NewParser().ParseString(raw)
	if err != nil {
		return nil, fmt.Errorf("parse current feed: %w", err)
	}

	var entries []FeedEntry
	for _, item := range feed.Items {
		e := FeedEntry{Link: item.Link}
		if m := feedTitleRe.FindStringSubmatch(strings.TrimSpace(item.Title)); m != nil {
			e.FormType = strings.TrimSpace(m[1])
			e.FilerName = strings.TrimSpace(m[2])
			e.FilerCIK = utils.TrimCIK(m[3])
			e.Role = m[4]
		}
		if e.FormType == "" && len(item.Categories) > 0 {
			e.FormType = item.Categories[0]
		}

		text := item.Description + " " + item.Content
		if m := feedAccRe.FindStringSubmatch(text); m != nil {
			e.AccessionNumber = m[1]
		} else if m := linkAccRe.FindStringSubmatch(item.Link); m != nil {
			e.AccessionNumber = m[1]
		} else if id := strings.TrimSpace(item.GUID); strings.Contains(id, "accession-number=") {
			e.AccessionNumber = utils.NormalizeAccession(id[strings.Index(id, "accession-number=")+len("accession-number="):])
		}
		if e.AccessionNumber == "" {
			continue
		}

		if m := feedFiledRe.FindStringSubmatch(text); m != nil {
			e.FilingDate = utils.ParseDate(m[1])
		} else if item.UpdatedParsed != nil {
			t := item.UpdatedParsed.UTC()
			e.FilingDate = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// DedupeEntries keeps one entry per accession, preferring the filer-side
// entry over the issuer/subject one, and returns them ordered by filing date
// then accession.
func DedupeEntries(entries []FeedEntry) []FeedEntry {
	best := make(map[string]FeedEntry, len(entries))
	for _, e := range entries {
		cur, ok := best[e.AccessionNumber]
		if !ok || (!filerSide(cur.Role) && filerSide(e.Role)) {
			best[e.AccessionNumber] = e
		}
	}
	out := make([]FeedEntry, 0, len(best))
	for _, e := range best {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].FilingDate.Equal(out[j].FilingDate) {
			return out[i].FilingDate.Before(out[j].FilingDate)
		}
		return out[i].AccessionNumber < out[j].AccessionNumber
	})
	return out
}

func filerSide(role string) bool {
	switch strings.ToLower(role) {
	case "filer", "reporting", "filed by":
		return true
	}
	return false
}

// --- Filing documents ---

// IndexItem is one document listed in a filing directory.
type IndexItem struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size string `json:"size"`
}

type filingIndexResponse struct {
	Directory struct {
		Name string      `json:"name"`
		Item []IndexItem `json:"item"`
	} `json:"directory"`
}

// FilingIndex lists the documents of one filing.
func (p *Provider) FilingIndex(ctx context.Context, cik, accession string) ([]IndexItem, error) {
	var resp filingIndexResponse
	if err := p.fetchJSON(ctx, p.filingDir(cik, accession)+"/index.json", &resp); err != nil {
		return nil, fmt.Errorf("sec filing index %s: %w", accession, err)
	}
	return resp.Directory.Item, nil
}

// InfoTableDocument picks the information table XML from a 13F filing
// directory: a name mentioning "infotable" wins, else the first XML that is
// not the primary document.
func InfoTableDocument(items []IndexItem) string {
	var fallback string
	for _, it := range items {
		name := strings.ToLower(it.Name)
		if !strings.HasSuffix(name, ".xml") {
			continue
		}
		if strings.Contains(name, "infotable") || strings.Contains(name, "information_table") {
			return it.Name
		}
		if fallback == "" && name != "primary_doc.xml" {
			fallback = it.Name
		}
	}
	return fallback
}

// Document fetches one named document of a filing.
func (p *Provider) Document(ctx context.Context, cik, accession, name string) ([]byte, error) {
	data, err := p.fetchRaw(ctx, p.filingDir(cik, accession)+"/"+url.PathEscape(name))
	if err != nil {
		return nil, fmt.Errorf("sec document %s/%s: %w", accession, name, err)
	}
	return data, nil
}

// Submission fetches the complete submission text file of a filing: the
// SEC-HEADER block followed by every document.
func (p *Provider) Submission(ctx context.Context, cik, accession string) (string, error) {
	acc := utils.NormalizeAccession(accession)
	data, err := p.fetchRaw(ctx, p.filingDir(cik, acc)+"/"+acc+".txt")
	if err != nil {
		return "", fmt.Errorf("sec submission %s: %w", acc, err)
	}
	return string(data), nil
}

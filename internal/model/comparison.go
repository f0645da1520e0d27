package model

import "sort"

// Comparison is the difference between two crawls of the same start URL.
type Comparison struct {
	StartURL     string   `json:"start_url"`
	OldSessionID string   `json:"old_session_id"`
	NewSessionID string   `json:"new_session_id"`
	NewPages     []string `json:"new_pages,omitempty"`
	MissingPages []string `json:"missing_pages,omitempty"`
	NewlyFailed  []string `json:"newly_failed,omitempty"`
	Recovered    []string `json:"recovered,omitempty"`
	OldPageCount int      `json:"old_page_count"`
	NewPageCount int      `json:"new_page_count"`
	FailedDelta  int      `json:"failed_delta"`
}

// HasChanges reports whether the two crawls differ in any tracked way.
func (c *Comparison) HasChanges() bool {
	return len(c.NewPages) > 0 || len(c.MissingPages) > 0 ||
		len(c.NewlyFailed) > 0 || len(c.Recovered) > 0
}

// CompareReports computes what changed between an older and a newer crawl.
// Page lists in the result are sorted.
func CompareReports(older, newer *CrawlReport) *Comparison {
	cmp := &Comparison{
		StartURL:     newer.StartURL,
		OldSessionID: older.SessionID,
		NewSessionID: newer.SessionID,
		OldPageCount: len(older.Pages),
		NewPageCount: len(newer.Pages),
		FailedDelta:  newer.FailedCount - older.FailedCount,
	}

	oldPages := indexPages(older.Pages)
	newPages := indexPages(newer.Pages)

	for u, np := range newPages {
		op, seen := oldPages[u]
		switch {
		case !seen:
			cmp.NewPages = append(cmp.NewPages, u)
		case np.Failed && !op.Failed:
			cmp.NewlyFailed = append(cmp.NewlyFailed, u)
		case !np.Failed && op.Failed:
			cmp.Recovered = append(cmp.Recovered, u)
		}
	}
	for u := range oldPages {
		if _, ok := newPages[u]; !ok {
			cmp.MissingPages = append(cmp.MissingPages, u)
		}
	}

	sort.Strings(cmp.NewPages)
	sort.Strings(cmp.MissingPages)
	sort.Strings(cmp.NewlyFailed)
	sort.Strings(cmp.Recovered)
	return cmp
}

func indexPages(pages []PageResult) map[string]PageResult {
	idx := make(map[string]PageResult, len(pages))
	for _, p := range pages {
		idx[p.URL] = p
	}
	return idx
}

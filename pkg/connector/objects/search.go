package objects

// NoCount marks RemainingPagedResults as unknown.
const NoCount = -1

// RemainingPagedResultsPolicy says how RemainingPagedResults was computed.
type RemainingPagedResultsPolicy string

const (
	PolicyNone     RemainingPagedResultsPolicy = "NONE"
	PolicyEstimate RemainingPagedResultsPolicy = "ESTIMATE"
	PolicyExact    RemainingPagedResultsPolicy = "EXACT"
)

// SearchResult is the terminal report of a paged search.
type SearchResult struct {
	// PagedResultsCookie continues the search on the next call; empty means
	// there are no more pages.
	PagedResultsCookie string `json:"pagedResultsCookie"`
	// RemainingPagedResults is the number of results left, or NoCount.
	RemainingPagedResults int                         `json:"remainingPagedResults"`
	Policy                RemainingPagedResultsPolicy `json:"remainingPagedResultsPolicy"`
	AllResultsReturned    bool                        `json:"allResultsReturned"`
}

// NewSearchResult builds a result. A negative remaining count is reported as
// NoCount with PolicyNone.
func NewSearchResult(cookie string, remaining int) *SearchResult {
	r := &SearchResult{
		PagedResultsCookie:    cookie,
		RemainingPagedResults: remaining,
		Policy:                PolicyExact,
		AllResultsReturned:    true,
	}
	if remaining < 0 {
		r.RemainingPagedResults = NoCount
		r.Policy = PolicyNone
	}
	return r
}

// IsLastPage reports whether no further page exists.
func (r *SearchResult) IsLastPage() bool { return r.PagedResultsCookie == "" }

// ScriptContext carries a script to run and its arguments.
type ScriptContext struct {
	Language  string                 `json:"language"`
	Text      string                 `json:"text"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

// NewScriptContext builds a script context. Arguments are copied.
func NewScriptContext(language, text string, args map[string]interface{}) ScriptContext {
	cp := make(map[string]interface{}, len(args))
	for k, v := range args {
		cp[k] = v
	}
	return ScriptContext{Language: language, Text: text, Arguments: cp}
}

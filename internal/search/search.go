package search

// Result is a single search hit returned to the caller.
type Result struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Snippet     string `json:"snippet"`
	Group       string `json:"group"`
	IsDifficult bool   `json:"isDifficult"`
}

// Query describes a search request.
type Query struct {
	Text   string
	Group  string // empty = all groups
	Limit  int
	Offset int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push sentences into a search index.
type Indexer interface {
	IndexSentences(sentences []SentenceRecord) error
	DeleteSentences(ids []string) error
}

// SentenceRecord is the data we index for a sentence.
type SentenceRecord struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Group       string `json:"group"`
	IsDifficult bool   `json:"isDifficult"`
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	return limit
}

package search

import (
	"strings"
	"sync"
)

// Local is an in-process Searcher over the last synced sentences. It backs
// search when neither Meilisearch nor Postgres is configured.
type Local struct {
	mu        sync.RWMutex
	sentences []SentenceRecord
}

func NewLocal() *Local {
	return &Local{}
}

func (l *Local) Healthy() bool { return true }

// Replace swaps the whole corpus.
func (l *Local) Replace(sentences []SentenceRecord) {
	next := append([]SentenceRecord(nil), sentences...)
	l.mu.Lock()
	l.sentences = next
	l.mu.Unlock()
}

// Search matches sentences containing every query word, case-insensitively,
// in corpus order.
func (l *Local) Search(q Query) ([]Result, int, error) {
	words := strings.Fields(strings.ToLower(q.Text))
	if len(words) == 0 {
		return nil, 0, nil
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	var matches []Result
	for _, s := range l.sentences {
		if q.Group != "" && s.Group != q.Group {
			continue
		}
		if !containsAll(strings.ToLower(s.Text), words) {
			continue
		}
		matches = append(matches, Result{
			ID:          s.ID,
			Text:        s.Text,
			Snippet:     s.Text,
			Group:       s.Group,
			IsDifficult: s.IsDifficult,
		})
	}

	total := len(matches)
	start := q.Offset
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}
	end := start + normalizeLimit(q.Limit)
	if end > total {
		end = total
	}
	return matches[start:end], total, nil
}

func containsAll(text string, words []string) bool {
	for _, w := range words {
		if !strings.Contains(text, w) {
			return false
		}
	}
	return true
}

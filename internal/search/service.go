package search

import (
	"log"
	"sync"
)

type index interface {
	Searcher
	Indexer
}

// Service is the facade that tries Meilisearch first and falls back to a
// secondary searcher.
type Service struct {
	meili    index
	fallback Searcher
	local    *Local
	async    func(func())

	seqMu sync.Mutex
	seq   uint64

	// applyMu serializes writes to Meilisearch. indexed holds the ids the
	// index is believed to contain after the batch numbered applied.
	applyMu sync.Mutex
	applied uint64
	indexed map[string]struct{}
}

// NewService creates a search service. meili may be nil if Meilisearch is not
// configured; a nil fallback searches the in-process corpus.
func NewService(meili *Meili, fallback Searcher) *Service {
	s := &Service{
		fallback: fallback,
		local:    NewLocal(),
		indexed:  map[string]struct{}{},
		async:    func(fn func()) { go fn() },
	}
	if meili != nil {
		s.meili = meili
	}
	if s.fallback == nil {
		s.fallback = s.local
	}
	return s
}

// Search tries Meilisearch if healthy, otherwise uses the fallback.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back: %v", err)
	}

	results, total, err := s.fallback.Search(q)
	if err != nil {
		log.Printf("search: fallback error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// Sync mirrors the full sentence list into the indexes. Batches reach
// Meilisearch in the background; a batch that arrives after a newer one is
// dropped, so the index always converges on the latest list.
func (s *Service) Sync(sentences []SentenceRecord) {
	s.local.Replace(sentences)

	if s.meili == nil || !s.meili.Healthy() {
		return
	}

	s.seqMu.Lock()
	s.seq++
	seq := s.seq
	s.seqMu.Unlock()

	batch := append([]SentenceRecord(nil), sentences...)
	s.async(func() { s.apply(seq, batch) })
}

// apply writes batch and deletes every previously indexed id missing from
// it. Ids whose deletion failed stay in indexed and are retried next time.
func (s *Service) apply(seq uint64, batch []SentenceRecord) {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	if seq <= s.applied {
		return
	}
	s.applied = seq

	next := make(map[string]struct{}, len(batch))
	for _, rec := range batch {
		next[rec.ID] = struct{}{}
	}
	var removed []string
	for id := range s.indexed {
		if _, ok := next[id]; !ok {
			removed = append(removed, id)
		}
	}

	if err := s.meili.IndexSentences(batch); err != nil {
		log.Printf("search: index sentences: %v", err)
		for id := range next {
			s.indexed[id] = struct{}{}
		}
		return
	}
	if len(removed) > 0 {
		if err := s.meili.DeleteSentences(removed); err != nil {
			log.Printf("search: delete sentences: %v", err)
			for _, id := range removed {
				next[id] = struct{}{}
			}
		}
	}
	s.indexed = next
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}

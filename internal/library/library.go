// Package library keeps an in-memory mirror of the sentences and groups
// collections and applies user intents to the remote store.
//
// Writes go to the remote store only; the mirror changes when the store
// pushes the next snapshot. The one exception is the display order, which
// lives only in the mirror.
package library

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"

	"tts/api/internal/remote"
)

type Library struct {
	remote remote.Store

	mu        sync.Mutex
	sentences []Sentence
	groups    []Group
	order     viewOrder
	draft     Draft
	pending   *PendingEdit
	watchers  []func([]Sentence)
}

func New(store remote.Store) *Library {
	return &Library{remote: store}
}

// Start subscribes the mirror to both collections. The returned func
// unsubscribes.
func (l *Library) Start(ctx context.Context) (func(), error) {
	stopSentences, err := l.remote.Subscribe(ctx, remote.CollectionSentences, l.OnSentencesChanged)
	if err != nil {
		return nil, fmt.Errorf("subscribe sentences: %w", err)
	}
	stopGroups, err := l.remote.Subscribe(ctx, remote.CollectionGroups, l.OnGroupsChanged)
	if err != nil {
		stopSentences()
		return nil, fmt.Errorf("subscribe groups: %w", err)
	}
	return func() {
		stopSentences()
		stopGroups()
	}, nil
}

// Watch registers fn to receive the sentence sequence after every snapshot.
func (l *Library) Watch(fn func([]Sentence)) {
	l.mu.Lock()
	l.watchers = append(l.watchers, fn)
	l.mu.Unlock()
}

// OnSentencesChanged replaces the whole sentence sequence and discards any
// manual ordering.
func (l *Library) OnSentencesChanged(snapshot *remote.Snapshot) {
	items := make([]Sentence, 0, snapshot.Len())
	if snapshot != nil {
		for _, entry := range snapshot.Entries {
			var record sentenceRecord
			if err := json.Unmarshal(entry.Data, &record); err != nil {
				log.Printf("library: skip sentence %s: %v", entry.ID, err)
				continue
			}
			items = append(items, Sentence{
				ID:          entry.ID,
				Text:        record.Text,
				Group:       record.Group,
				IsDifficult: record.IsDifficult,
			})
		}
	}

	l.mu.Lock()
	l.sentences = items
	l.order.reset(items)
	watchers := make([]func([]Sentence), len(l.watchers))
	copy(watchers, l.watchers)
	l.mu.Unlock()

	for _, fn := range watchers {
		fn(append([]Sentence(nil), items...))
	}
}

func (l *Library) OnGroupsChanged(snapshot *remote.Snapshot) {
	items := make([]Group, 0, snapshot.Len())
	if snapshot != nil {
		for _, entry := range snapshot.Entries {
			var record groupRecord
			if err := json.Unmarshal(entry.Data, &record); err != nil {
				log.Printf("library: skip group %s: %v", entry.ID, err)
				continue
			}
			items = append(items, Group{ID: entry.ID, Name: record.Name})
		}
	}

	l.mu.Lock()
	l.groups = items
	l.mu.Unlock()
}

// AddSentence creates a sentence from text and group. Blank text is ignored.
// On success the draft text and any pending edit are cleared.
func (l *Library) AddSentence(ctx context.Context, text, group string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	id, err := l.remote.Create(ctx, remote.CollectionSentences, sentenceRecord{Text: text, Group: group})
	if err != nil {
		return "", fmt.Errorf("add sentence: %w", err)
	}

	l.mu.Lock()
	l.draft.Text = ""
	l.pending = nil
	l.mu.Unlock()
	return id, nil
}

func (l *Library) DeleteSentence(ctx context.Context, id string) error {
	if err := l.remote.Delete(ctx, remote.CollectionSentences, id); err != nil {
		return fmt.Errorf("delete sentence %s: %w", id, err)
	}
	return nil
}

// EditSentence moves sentence into the draft and deletes the original. The
// edit is persisted only by a following AddSentence or CommitEdit; until then
// PendingEdit reports the sentence that would be lost.
func (l *Library) EditSentence(ctx context.Context, sentence Sentence) error {
	l.mu.Lock()
	previousDraft, previousPending := l.draft, l.pending
	l.draft = Draft{Text: sentence.Text, Group: sentence.Group}
	l.pending = &PendingEdit{OriginalID: sentence.ID, Draft: l.draft}
	l.mu.Unlock()

	if err := l.remote.Delete(ctx, remote.CollectionSentences, sentence.ID); err != nil {
		l.mu.Lock()
		l.draft, l.pending = previousDraft, previousPending
		l.mu.Unlock()
		return fmt.Errorf("edit sentence %s: %w", sentence.ID, err)
	}
	return nil
}

// CommitEdit saves the current draft as a new sentence.
func (l *Library) CommitEdit(ctx context.Context) (string, error) {
	draft := l.Draft()
	return l.AddSentence(ctx, draft.Text, draft.Group)
}

// MarkDifficult flags a sentence. There is no way to clear the flag.
func (l *Library) MarkDifficult(ctx context.Context, id string) error {
	if err := l.remote.Update(ctx, remote.CollectionSentences, id, map[string]any{"isDifficult": true}); err != nil {
		return fmt.Errorf("mark difficult %s: %w", id, err)
	}
	return nil
}

// MoveSentence reorders the local sequence only.
func (l *Library) MoveSentence(from, to int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.order.move(from, to)
}

// Sentences returns the sequence in display order.
func (l *Library) Sentences() []Sentence {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.order.arrange(l.sentences)
}

func (l *Library) Sentence(id string) (Sentence, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, item := range l.sentences {
		if item.ID == id {
			return item, true
		}
	}
	return Sentence{}, false
}

// FilteredByGroup returns every sentence when group is empty, otherwise the
// sentences whose group matches exactly, in display order.
func (l *Library) FilteredByGroup(group string) []Sentence {
	all := l.Sentences()
	if group == "" {
		return all
	}
	out := make([]Sentence, 0, len(all))
	for _, item := range all {
		if item.GroupKey() == group {
			out = append(out, item)
		}
	}
	return out
}

func (l *Library) DifficultOnly() []Sentence {
	all := l.Sentences()
	out := make([]Sentence, 0)
	for _, item := range all {
		if item.IsDifficult {
			out = append(out, item)
		}
	}
	return out
}

func (l *Library) Groups() []Group {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Group(nil), l.groups...)
}

func (l *Library) Group(id string) (Group, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, item := range l.groups {
		if item.ID == id {
			return item, true
		}
	}
	return Group{}, false
}

func (l *Library) Draft() Draft {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.draft
}

func (l *Library) SetDraft(text, group string) {
	l.mu.Lock()
	l.draft = Draft{Text: text, Group: group}
	l.mu.Unlock()
}

// PendingEdit returns the edit awaiting its re-create half, or nil.
func (l *Library) PendingEdit() *PendingEdit {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pending == nil {
		return nil
	}
	edit := *l.pending
	return &edit
}

// Package remote is the adapter to the shared document store: named
// collections of generated-id records with change notification and an
// atomic whole-collection read-modify-write.
package remote

import (
	"context"
	"encoding/json"
	"errors"
)

const (
	CollectionSentences = "sentences"
	CollectionGroups    = "groups"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrUnknownCollection = errors.New("unknown collection")
)

// Entry is one record of a collection.
type Entry struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// Snapshot is the full current contents of a collection in iteration order.
// A nil *Snapshot stands for an absent or empty collection.
type Snapshot struct {
	Collection string
	Entries    []Entry
}

// Len is safe on a nil snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Entries)
}

// Clone returns a deep copy so that callers can mutate the result freely.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := &Snapshot{Collection: s.Collection, Entries: make([]Entry, len(s.Entries))}
	for i, entry := range s.Entries {
		out.Entries[i] = Entry{ID: entry.ID, Data: append(json.RawMessage(nil), entry.Data...)}
	}
	return out
}

// Listener receives every snapshot of a subscribed collection, starting with
// the current one.
type Listener func(*Snapshot)

// TransactionFunc receives the current collection (nil when empty) and
// returns the collection to write back. Returning nil aborts without writing.
type TransactionFunc func(*Snapshot) (*Snapshot, error)

type Store interface {
	Subscribe(ctx context.Context, collection string, listener Listener) (func(), error)
	Create(ctx context.Context, collection string, record any) (string, error)
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	Transaction(ctx context.Context, collection string, fn TransactionFunc) error
}

func validCollection(collection string) error {
	switch collection {
	case CollectionSentences, CollectionGroups:
		return nil
	default:
		return ErrUnknownCollection
	}
}

// mergeFields shallow-merges fields into the JSON object in data.
func mergeFields(data json.RawMessage, fields map[string]any) (json.RawMessage, error) {
	merged := map[string]json.RawMessage{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &merged); err != nil {
			return nil, err
		}
		if merged == nil {
			merged = map[string]json.RawMessage{}
		}
	}
	for key, value := range fields {
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		merged[key] = encoded
	}
	return json.Marshal(merged)
}

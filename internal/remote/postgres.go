package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"tts/api/internal/store"
	"tts/api/internal/util"
)

type recordStore interface {
	ListRecords(context.Context, string) ([]store.Record, error)
	InsertRecord(context.Context, string, string, json.RawMessage) error
	MergeRecord(context.Context, string, string, json.RawMessage) (bool, error)
	DeleteRecord(context.Context, string, string) (bool, error)
	ReplaceCollection(context.Context, string, func([]store.Record) ([]store.Record, error)) (bool, error)
}

// Postgres keeps collections in the records table and announces every
// committed write through a Notifier.
type Postgres struct {
	records  recordStore
	notifier Notifier
}

func NewPostgres(records *store.PostgresStore, notifier Notifier) *Postgres {
	return &Postgres{records: records, notifier: notifier}
}

func (p *Postgres) Subscribe(ctx context.Context, collection string, listener Listener) (func(), error) {
	if err := validCollection(collection); err != nil {
		return nil, err
	}

	var mu sync.Mutex
	deliver := func() {
		mu.Lock()
		defer mu.Unlock()
		snapshot, err := p.load(ctx, collection)
		if err != nil {
			log.Printf("remote: reload %s: %v", collection, err)
			return
		}
		listener(snapshot)
	}

	stop, err := p.notifier.Listen(ctx, collection, deliver)
	if err != nil {
		return nil, err
	}
	deliver()
	return stop, nil
}

func (p *Postgres) Create(ctx context.Context, collection string, record any) (string, error) {
	if err := validCollection(collection); err != nil {
		return "", err
	}
	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}
	id := util.NewID("")
	if err := p.records.InsertRecord(ctx, collection, id, data); err != nil {
		return "", err
	}
	p.publish(ctx, collection)
	return id, nil
}

func (p *Postgres) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := validCollection(collection); err != nil {
		return err
	}
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}
	found, err := p.records.MergeRecord(ctx, collection, id, patch)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("update %s/%s: %w", collection, id, ErrNotFound)
	}
	p.publish(ctx, collection)
	return nil
}

func (p *Postgres) Delete(ctx context.Context, collection, id string) error {
	if err := validCollection(collection); err != nil {
		return err
	}
	found, err := p.records.DeleteRecord(ctx, collection, id)
	if err != nil {
		return err
	}
	if found {
		p.publish(ctx, collection)
	}
	return nil
}

func (p *Postgres) Transaction(ctx context.Context, collection string, fn TransactionFunc) error {
	if err := validCollection(collection); err != nil {
		return err
	}
	changed, err := p.records.ReplaceCollection(ctx, collection, func(current []store.Record) ([]store.Record, error) {
		next, err := fn(recordsToSnapshot(collection, current))
		if err != nil || next == nil {
			return nil, err
		}
		out := make([]store.Record, 0, len(next.Entries))
		for _, entry := range next.Entries {
			out = append(out, store.Record{Collection: collection, ID: entry.ID, Data: entry.Data})
		}
		return out, nil
	})
	if err != nil {
		return err
	}
	if changed {
		p.publish(ctx, collection)
	}
	return nil
}

func (p *Postgres) load(ctx context.Context, collection string) (*Snapshot, error) {
	records, err := p.records.ListRecords(ctx, collection)
	if err != nil {
		return nil, err
	}
	return recordsToSnapshot(collection, records), nil
}

// publish failures are logged only: the write is already committed.
func (p *Postgres) publish(ctx context.Context, collection string) {
	if err := p.notifier.Publish(ctx, collection); err != nil {
		log.Printf("remote: notify %s: %v", collection, err)
	}
}

func recordsToSnapshot(collection string, records []store.Record) *Snapshot {
	if len(records) == 0 {
		return nil
	}
	out := &Snapshot{Collection: collection, Entries: make([]Entry, 0, len(records))}
	for _, record := range records {
		out.Entries = append(out.Entries, Entry{ID: record.ID, Data: record.Data})
	}
	return out
}

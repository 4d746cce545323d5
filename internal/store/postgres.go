package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// ListRecords returns the collection in insertion order.
func (s *PostgresStore) ListRecords(ctx context.Context, collection string) ([]Record, error) {
	return listRecords(ctx, s.db, collection)
}

func (s *PostgresStore) InsertRecord(ctx context.Context, collection, id string, data json.RawMessage) error {
	return s.withCollectionLock(ctx, collection, false, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO records (collection, id, data)
			VALUES ($1, $2, $3::jsonb)
		`, collection, id, string(data))
		if err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
		return nil
	})
}

// MergeRecord shallow-merges patch into the stored object. It reports false
// when no record with that id exists.
func (s *PostgresStore) MergeRecord(ctx context.Context, collection, id string, patch json.RawMessage) (bool, error) {
	var found bool
	err := s.withCollectionLock(ctx, collection, false, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE records
			SET data = data || $3::jsonb, updated_at = NOW()
			WHERE collection=$1 AND id=$2
		`, collection, id, string(patch))
		if err != nil {
			return fmt.Errorf("merge record: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("merge record: %w", err)
		}
		found = affected > 0
		return nil
	})
	return found, err
}

func (s *PostgresStore) DeleteRecord(ctx context.Context, collection, id string) (bool, error) {
	var found bool
	err := s.withCollectionLock(ctx, collection, false, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM records WHERE collection=$1 AND id=$2`, collection, id)
		if err != nil {
			return fmt.Errorf("delete record: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete record: %w", err)
		}
		found = affected > 0
		return nil
	})
	return found, err
}

// ReplaceCollection reads the whole collection under an exclusive lock, hands
// it to fn and writes back the difference between input and output. A nil
// result from fn leaves the collection untouched. It reports whether anything
// was written.
func (s *PostgresStore) ReplaceCollection(ctx context.Context, collection string, fn func([]Record) ([]Record, error)) (bool, error) {
	var changed bool
	err := s.withCollectionLock(ctx, collection, true, func(tx *sql.Tx) error {
		current, err := listRecords(ctx, tx, collection)
		if err != nil {
			return err
		}
		next, err := fn(cloneRecords(current))
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		changed, err = writeDiff(ctx, tx, collection, current, next)
		return err
	})
	return changed, err
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// withCollectionLock serializes collection-wide transactions against single
// record writes: ReplaceCollection holds the exclusive advisory lock, every
// other write holds it shared.
func (s *PostgresStore) withCollectionLock(ctx context.Context, collection string, exclusive bool, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	lock := `SELECT pg_advisory_xact_lock_shared(hashtext($1))`
	if exclusive {
		lock = `SELECT pg_advisory_xact_lock(hashtext($1))`
	}
	if _, err := tx.ExecContext(ctx, lock, collection); err != nil {
		return fmt.Errorf("lock collection %s: %w", collection, err)
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listRecords(ctx context.Context, q queryer, collection string) ([]Record, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT collection, id, seq, data, updated_at
		FROM records
		WHERE collection=$1
		ORDER BY seq ASC
	`, collection)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	items := make([]Record, 0)
	for rows.Next() {
		var item Record
		var data []byte
		if err := rows.Scan(&item.Collection, &item.ID, &item.Seq, &data, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		item.Data = json.RawMessage(data)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return items, nil
}

func writeDiff(ctx context.Context, tx *sql.Tx, collection string, current, next []Record) (bool, error) {
	before := make(map[string]json.RawMessage, len(current))
	for _, item := range current {
		before[item.ID] = item.Data
	}

	changed := false
	kept := make(map[string]struct{}, len(next))
	for _, item := range next {
		kept[item.ID] = struct{}{}
		old, exists := before[item.ID]
		switch {
		case !exists:
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO records (collection, id, data) VALUES ($1, $2, $3::jsonb)
			`, collection, item.ID, string(item.Data)); err != nil {
				return false, fmt.Errorf("insert record %s: %w", item.ID, err)
			}
			changed = true
		case !jsonEqual(old, item.Data):
			if _, err := tx.ExecContext(ctx, `
				UPDATE records SET data=$3::jsonb, updated_at=NOW() WHERE collection=$1 AND id=$2
			`, collection, item.ID, string(item.Data)); err != nil {
				return false, fmt.Errorf("update record %s: %w", item.ID, err)
			}
			changed = true
		}
	}

	for id := range before {
		if _, ok := kept[id]; ok {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE collection=$1 AND id=$2`, collection, id); err != nil {
			return false, fmt.Errorf("delete record %s: %w", id, err)
		}
		changed = true
	}
	return changed, nil
}

func jsonEqual(a, b json.RawMessage) bool {
	if bytes.Equal(a, b) {
		return true
	}
	var left, right any
	if json.Unmarshal(a, &left) != nil || json.Unmarshal(b, &right) != nil {
		return false
	}
	l, _ := json.Marshal(left)
	r, _ := json.Marshal(right)
	return bytes.Equal(l, r)
}

func cloneRecords(items []Record) []Record {
	out := make([]Record, len(items))
	for i, item := range items {
		out[i] = item
		out[i].Data = append(json.RawMessage(nil), item.Data...)
	}
	return out
}

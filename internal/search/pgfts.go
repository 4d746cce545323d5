package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher over the generated fts column of the records
// table. It needs no indexing; the column follows every write.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	countSQL, dataSQL, args := buildFTSQuery(q)
	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Text, &r.Snippet, &r.Group, &r.IsDifficult); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}

func buildFTSQuery(q Query) (string, string, []any) {
	tsQuery := "plainto_tsquery('simple', $1)"
	args := []any{q.Text}

	where := "r.collection = 'sentences' AND r.fts @@ " + tsQuery
	if q.Group != "" {
		where += " AND r.data->>'group' = $2"
		args = append(args, q.Group)
	}

	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	countSQL := "SELECT count(*) FROM records r WHERE " + where
	dataSQL := fmt.Sprintf(`SELECT r.id,
			coalesce(r.data->>'text', ''),
			ts_headline('simple', coalesce(r.data->>'text', ''), %s, 'MaxFragments=1,MaxWords=30'),
			coalesce(r.data->>'group', ''),
			coalesce((r.data->>'isDifficult')::boolean, false)
		FROM records r
		WHERE %s
		ORDER BY ts_rank(r.fts, %s) DESC, r.seq
		LIMIT %d OFFSET %d`,
		tsQuery, where, tsQuery, normalizeLimit(q.Limit), offset)

	return countSQL, dataSQL, args
}

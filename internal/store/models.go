package store

import (
	"encoding/json"
	"time"
)

// Record is one row of a collection. Seq is assigned on insert and gives the
// collection its iteration order.
type Record struct {
	Collection string
	ID         string
	Seq        int64
	Data       json.RawMessage
	UpdatedAt  time.Time
}

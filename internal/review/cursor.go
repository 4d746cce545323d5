// Package review steps through a sentence list one card at a time.
package review

import (
	"context"
	"sync"

	"tts/api/internal/library"
)

// Marker flags a sentence as difficult.
type Marker interface {
	MarkDifficult(ctx context.Context, id string) error
}

// Cursor walks a caller-supplied list, wrapping at the end. There is no
// previous step and the position is not persisted.
type Cursor struct {
	marker Marker

	mu    sync.Mutex
	items []library.Sentence
	index int
}

func NewCursor(marker Marker, items []library.Sentence) *Cursor {
	return &Cursor{marker: marker, items: append([]library.Sentence(nil), items...)}
}

// Reset swaps the list. The position is kept while it stays in range and
// falls back to the first card otherwise.
func (c *Cursor) Reset(items []library.Sentence) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append([]library.Sentence(nil), items...)
	if c.index >= len(c.items) {
		c.index = 0
	}
}

// Restart swaps the list and goes back to the first card.
func (c *Cursor) Restart(items []library.Sentence) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append([]library.Sentence(nil), items...)
	c.index = 0
}

// Next is a no-op on an empty list.
func (c *Cursor) Next() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.items) == 0 {
		return
	}
	c.index = (c.index + 1) % len(c.items)
}

// Current reports false on an empty list; callers show a placeholder.
func (c *Cursor) Current() (library.Sentence, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.items) == 0 {
		return library.Sentence{}, false
	}
	return c.items[c.index], true
}

func (c *Cursor) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

func (c *Cursor) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// MarkCurrentDifficult flags the sentence under the cursor. It does nothing
// on an empty list.
func (c *Cursor) MarkCurrentDifficult(ctx context.Context) error {
	current, ok := c.Current()
	if !ok {
		return nil
	}
	return c.marker.MarkDifficult(ctx, current.ID)
}

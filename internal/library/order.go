package library

import "fmt"

// viewOrder is the client-local display order, keyed by sentence id. It is
// never persisted and is rebuilt from store order on every snapshot.
type viewOrder struct {
	ids []string
}

func (o *viewOrder) reset(items []Sentence) {
	o.ids = make([]string, len(items))
	for i, item := range items {
		o.ids[i] = item.ID
	}
}

func (o *viewOrder) move(from, to int) error {
	if from < 0 || from >= len(o.ids) || to < 0 || to >= len(o.ids) {
		return fmt.Errorf("move %d -> %d of %d: %w", from, to, len(o.ids), ErrIndexOutOfRange)
	}
	id := o.ids[from]
	o.ids = append(o.ids[:from], o.ids[from+1:]...)
	o.ids = append(o.ids[:to], append([]string{id}, o.ids[to:]...)...)
	return nil
}

// arrange returns items in view order. Items unknown to the order keep their
// relative position at the end.
func (o *viewOrder) arrange(items []Sentence) []Sentence {
	byID := make(map[string]Sentence, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	out := make([]Sentence, 0, len(items))
	placed := make(map[string]struct{}, len(items))
	for _, id := range o.ids {
		if item, ok := byID[id]; ok {
			out = append(out, item)
			placed[id] = struct{}{}
		}
	}
	for _, item := range items {
		if _, ok := placed[item.ID]; !ok {
			out = append(out, item)
		}
	}
	return out
}

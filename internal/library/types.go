package library

// Sentence mirrors one record of the sentences collection.
type Sentence struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Group       string `json:"group"`
	IsDifficult bool   `json:"isDifficult"`
}

// GroupKey is the value a sentence uses to reference its group. Groups are
// referenced by name, not id; every lookup goes through here.
func (s Sentence) GroupKey() string {
	return s.Group
}

type Group struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Key is the value sentences store to reference this group.
func (g Group) Key() string {
	return g.Name
}

// Draft holds the pending input fields: entered text and selected group.
type Draft struct {
	Text  string `json:"text"`
	Group string `json:"group"`
}

// PendingEdit is set between the delete and re-create halves of an edit.
// While it is non-nil the original sentence exists only in Draft.
type PendingEdit struct {
	OriginalID string `json:"originalId"`
	Draft      Draft  `json:"draft"`
}

type sentenceRecord struct {
	Text        string `json:"text"`
	Group       string `json:"group"`
	IsDifficult bool   `json:"isDifficult"`
}

type groupRecord struct {
	Name string `json:"name"`
}

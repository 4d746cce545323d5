package library

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"tts/api/internal/remote"
)

func startLibrary(t *testing.T) (*Library, *remote.Memory) {
	t.Helper()
	store := remote.NewMemory()
	lib := New(store)
	stop, err := lib.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(stop)
	return lib, store
}

func mustAdd(t *testing.T, lib *Library, text, group string) string {
	t.Helper()
	id, err := lib.AddSentence(context.Background(), text, group)
	if err != nil {
		t.Fatalf("add %q: %v", text, err)
	}
	if id == "" {
		t.Fatalf("add %q returned no id", text)
	}
	return id
}

func texts(items []Sentence) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Text
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestAddSentenceCreatesOneRecord(t *testing.T) {
	lib, _ := startLibrary(t)
	lib.SetDraft("Good morning", "Greetings")

	id := mustAdd(t, lib, "Good morning", "Greetings")

	got := lib.Sentences()
	if len(got) != 1 {
		t.Fatalf("expected 1 sentence, got %d", len(got))
	}
	want := Sentence{ID: id, Text: "Good morning", Group: "Greetings", IsDifficult: false}
	if got[0] != want {
		t.Fatalf("expected %+v, got %+v", want, got[0])
	}
	if draft := lib.Draft(); draft.Text != "" || draft.Group != "Greetings" {
		t.Fatalf("expected cleared draft text with group kept, got %+v", draft)
	}
}

func TestAddSentenceIgnoresBlankText(t *testing.T) {
	lib, _ := startLibrary(t)
	for _, text := range []string{"", "   ", "\t\n"} {
		id, err := lib.AddSentence(context.Background(), text, "A")
		if err != nil || id != "" {
			t.Fatalf("blank %q: id=%q err=%v", text, id, err)
		}
	}
	if n := len(lib.Sentences()); n != 0 {
		t.Fatalf("expected no sentences, got %d", n)
	}
}

func TestFilteredByGroup(t *testing.T) {
	lib, _ := startLibrary(t)
	mustAdd(t, lib, "one", "A")
	mustAdd(t, lib, "two", "B")
	mustAdd(t, lib, "three", "A")
	mustAdd(t, lib, "four", "a")

	if got := texts(lib.FilteredByGroup("")); !equalStrings(got, []string{"one", "two", "three", "four"}) {
		t.Fatalf("empty filter: %v", got)
	}
	if got := texts(lib.FilteredByGroup("A")); !equalStrings(got, []string{"one", "three"}) {
		t.Fatalf("group A: %v", got)
	}
	if got := lib.FilteredByGroup("missing"); len(got) != 0 {
		t.Fatalf("unknown group: %v", got)
	}
}

func TestMoveSentenceIsPermutation(t *testing.T) {
	lib, _ := startLibrary(t)
	for _, text := range []string{"a", "b", "c", "d"} {
		mustAdd(t, lib, text, "")
	}

	cases := []struct {
		from, to int
		want     []string
	}{
		{0, 2, []string{"b", "c", "a", "d"}},
		{3, 0, []string{"d", "b", "c", "a"}},
		{1, 1, []string{"d", "b", "c", "a"}},
	}
	for _, tc := range cases {
		if err := lib.MoveSentence(tc.from, tc.to); err != nil {
			t.Fatalf("move %d->%d: %v", tc.from, tc.to, err)
		}
		if got := texts(lib.Sentences()); !equalStrings(got, tc.want) {
			t.Fatalf("move %d->%d: got %v want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestMoveSentenceRejectsOutOfRange(t *testing.T) {
	lib, _ := startLibrary(t)
	mustAdd(t, lib, "a", "")
	mustAdd(t, lib, "b", "")

	for _, tc := range [][2]int{{-1, 0}, {0, 2}, {2, 0}, {0, -1}} {
		if err := lib.MoveSentence(tc[0], tc[1]); !errors.Is(err, ErrIndexOutOfRange) {
			t.Fatalf("move %v: expected ErrIndexOutOfRange, got %v", tc, err)
		}
	}
	if got := texts(lib.Sentences()); !equalStrings(got, []string{"a", "b"}) {
		t.Fatalf("order changed by rejected move: %v", got)
	}
}

func TestSnapshotResetsManualOrder(t *testing.T) {
	lib, _ := startLibrary(t)
	mustAdd(t, lib, "a", "")
	mustAdd(t, lib, "b", "")
	if err := lib.MoveSentence(0, 1); err != nil {
		t.Fatalf("move: %v", err)
	}

	mustAdd(t, lib, "c", "")

	if got := texts(lib.Sentences()); !equalStrings(got, []string{"a", "b", "c"}) {
		t.Fatalf("expected store order after refresh, got %v", got)
	}
}

func TestMarkDifficultFlagsOnlyThatSentence(t *testing.T) {
	lib, _ := startLibrary(t)
	mustAdd(t, lib, "one", "")
	id := mustAdd(t, lib, "two", "")
	mustAdd(t, lib, "three", "")

	if err := lib.MarkDifficult(context.Background(), id); err != nil {
		t.Fatalf("mark: %v", err)
	}

	difficult := lib.DifficultOnly()
	if len(difficult) != 1 || difficult[0].ID != id || !difficult[0].IsDifficult {
		t.Fatalf("unexpected difficult list %+v", difficult)
	}
	for _, item := range lib.Sentences() {
		if item.ID != id && item.IsDifficult {
			t.Fatalf("sentence %s flagged unexpectedly", item.ID)
		}
	}
}

func TestMarkDifficultMissingSentence(t *testing.T) {
	lib, _ := startLibrary(t)
	err := lib.MarkDifficult(context.Background(), "missing")
	if !errors.Is(err, remote.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// An edit that is never re-added loses the sentence. PendingEdit exposes the
// window instead of silently restoring it.
func TestEditWithoutAddLosesSentence(t *testing.T) {
	lib, _ := startLibrary(t)
	id := mustAdd(t, lib, "Hello there", "Greetings")
	original, _ := lib.Sentence(id)

	if err := lib.EditSentence(context.Background(), original); err != nil {
		t.Fatalf("edit: %v", err)
	}

	if n := len(lib.Sentences()); n != 0 {
		t.Fatalf("expected original deleted with nothing replacing it, got %d sentences", n)
	}
	pending := lib.PendingEdit()
	if pending == nil || pending.OriginalID != id {
		t.Fatalf("expected pending edit for %s, got %+v", id, pending)
	}
	if draft := lib.Draft(); draft.Text != "Hello there" || draft.Group != "Greetings" {
		t.Fatalf("draft not prefilled: %+v", draft)
	}
}

func TestEditThenCommitRecreatesWithNewID(t *testing.T) {
	lib, _ := startLibrary(t)
	id := mustAdd(t, lib, "Helo", "A")
	original, _ := lib.Sentence(id)

	if err := lib.EditSentence(context.Background(), original); err != nil {
		t.Fatalf("edit: %v", err)
	}
	lib.SetDraft("Hello", lib.Draft().Group)
	newID, err := lib.CommitEdit(context.Background())
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	if newID == "" || newID == id {
		t.Fatalf("expected a new id, got %q (old %q)", newID, id)
	}
	got := lib.Sentences()
	if len(got) != 1 || got[0].Text != "Hello" || got[0].Group != "A" {
		t.Fatalf("unexpected sentences %+v", got)
	}
	if lib.PendingEdit() != nil {
		t.Fatal("pending edit not cleared")
	}
}

func TestRenameGroupCascades(t *testing.T) {
	ctx := context.Background()
	lib, _ := startLibrary(t)
	groupID, err := lib.CreateGroup(ctx, "A")
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	mustAdd(t, lib, "first", "A")
	mustAdd(t, lib, "second", "B")

	if err := lib.RenameGroup(ctx, groupID, "A", "C"); err != nil {
		t.Fatalf("rename: %v", err)
	}

	groups := lib.Groups()
	if len(groups) != 1 || groups[0].Name != "C" {
		t.Fatalf("expected group renamed to C, got %+v", groups)
	}
	var got []string
	for _, item := range lib.Sentences() {
		got = append(got, item.Group)
	}
	if !equalStrings(got, []string{"C", "B"}) {
		t.Fatalf("expected groups [C B], got %v", got)
	}
}

func TestRenameGroupIgnoresBlankName(t *testing.T) {
	ctx := context.Background()
	lib, _ := startLibrary(t)
	groupID, _ := lib.CreateGroup(ctx, "A")
	mustAdd(t, lib, "first", "A")

	if err := lib.RenameGroup(ctx, groupID, "A", "  "); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if g, _ := lib.Group(groupID); g.Name != "A" {
		t.Fatalf("group renamed by blank name: %+v", g)
	}
}

func TestRenameGroupSkipsCascadeWhenRenameFails(t *testing.T) {
	store := &fakeStore{updateErr: errors.New("offline")}
	lib := New(store)

	err := lib.RenameGroup(context.Background(), "g1", "A", "C")
	if err == nil {
		t.Fatal("expected error")
	}
	if store.transactions != 0 {
		t.Fatalf("cascade ran after failed rename: %d transactions", store.transactions)
	}
}

func TestRenameGroupRunsCascadeAfterRename(t *testing.T) {
	store := &fakeStore{}
	lib := New(store)

	if err := lib.RenameGroup(context.Background(), "g1", "A", "C"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if !equalStrings(store.calls, []string{"update groups/g1", "transaction sentences"}) {
		t.Fatalf("unexpected call order %v", store.calls)
	}
}

func TestDeleteGroupLeavesSentences(t *testing.T) {
	ctx := context.Background()
	lib, _ := startLibrary(t)
	groupID, _ := lib.CreateGroup(ctx, "A")
	mustAdd(t, lib, "first", "A")

	if err := lib.DeleteGroup(ctx, groupID); err != nil {
		t.Fatalf("delete group: %v", err)
	}
	if n := len(lib.Groups()); n != 0 {
		t.Fatalf("expected no groups, got %d", n)
	}
	got := lib.Sentences()
	if len(got) != 1 || got[0].Group != "A" {
		t.Fatalf("sentence should keep dangling group, got %+v", got)
	}
}

func TestCreateGroupIgnoresBlankName(t *testing.T) {
	lib, _ := startLibrary(t)
	id, err := lib.CreateGroup(context.Background(), " ")
	if err != nil || id != "" {
		t.Fatalf("blank group: id=%q err=%v", id, err)
	}
	if n := len(lib.Groups()); n != 0 {
		t.Fatalf("expected no groups, got %d", n)
	}
}

func TestDeleteVisibleOnlyAfterPush(t *testing.T) {
	store := &fakeStore{}
	lib := New(store)
	lib.OnSentencesChanged(&remote.Snapshot{
		Collection: remote.CollectionSentences,
		Entries:    []remote.Entry{{ID: "s1", Data: json.RawMessage(`{"text":"hi","group":"","isDifficult":false}`)}},
	})

	if err := lib.DeleteSentence(context.Background(), "s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n := len(lib.Sentences()); n != 1 {
		t.Fatalf("mirror changed before push: %d sentences", n)
	}
	lib.OnSentencesChanged(nil)
	if n := len(lib.Sentences()); n != 0 {
		t.Fatalf("expected empty mirror after nil snapshot, got %d", n)
	}
}

func TestOnSentencesChangedSkipsMalformedEntries(t *testing.T) {
	lib := New(&fakeStore{})
	lib.OnSentencesChanged(&remote.Snapshot{Entries: []remote.Entry{
		{ID: "bad", Data: json.RawMessage(`"not an object"`)},
		{ID: "ok", Data: json.RawMessage(`{"text":"fine"}`)},
	}})
	got := lib.Sentences()
	if len(got) != 1 || got[0].ID != "ok" || got[0].IsDifficult {
		t.Fatalf("unexpected sentences %+v", got)
	}
}

func TestWatchReceivesSnapshots(t *testing.T) {
	lib, _ := startLibrary(t)
	var seen [][]Sentence
	lib.Watch(func(items []Sentence) { seen = append(seen, items) })

	mustAdd(t, lib, "one", "")
	if len(seen) != 1 || len(seen[0]) != 1 {
		t.Fatalf("unexpected watch deliveries %+v", seen)
	}
}

func TestEveryWatcherGetsItsOwnCopy(t *testing.T) {
	lib, _ := startLibrary(t)
	var first, second []Sentence
	lib.Watch(func(items []Sentence) {
		first = items
		if len(items) > 0 {
			items[0].Text = "changed"
		}
	})
	lib.Watch(func(items []Sentence) {
		second = items
		// Registering from inside a delivery must not block.
		lib.Watch(func([]Sentence) {})
	})

	mustAdd(t, lib, "one", "")
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("unexpected deliveries first=%+v second=%+v", first, second)
	}
	if second[0].Text != "one" || lib.Sentences()[0].Text != "one" {
		t.Fatalf("watcher mutation leaked: second=%+v library=%+v", second, lib.Sentences())
	}
}

func TestCascadeRenameNilSnapshot(t *testing.T) {
	if got := cascadeRename(nil, "A", "B"); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestCascadeRenamePreservesOtherFields(t *testing.T) {
	snap := &remote.Snapshot{Entries: []remote.Entry{
		{ID: "1", Data: json.RawMessage(`{"text":"x","group":"A","isDifficult":true,"extra":1}`)},
		{ID: "2", Data: json.RawMessage(`{"text":"y"}`)},
	}}
	cascadeRename(snap, "A", "Z")

	var first map[string]any
	_ = json.Unmarshal(snap.Entries[0].Data, &first)
	if first["group"] != "Z" || first["isDifficult"] != true || first["extra"] != float64(1) {
		t.Fatalf("unexpected first entry %v", first)
	}
	if string(snap.Entries[1].Data) != `{"text":"y"}` {
		t.Fatalf("entry without group rewritten: %s", snap.Entries[1].Data)
	}
}

func TestEditSentenceRestoresDraftWhenDeleteFails(t *testing.T) {
	store := &fakeStore{deleteErr: errors.New("offline")}
	lib := New(store)
	lib.SetDraft("typing", "B")

	err := lib.EditSentence(context.Background(), Sentence{ID: "s1", Text: "old", Group: "A"})
	if err == nil {
		t.Fatal("expected error")
	}
	if lib.PendingEdit() != nil {
		t.Fatal("pending edit left behind after failed delete")
	}
	if draft := lib.Draft(); draft.Text != "typing" || draft.Group != "B" {
		t.Fatalf("draft not restored: %+v", draft)
	}
}

package library

import (
	"context"

	"tts/api/internal/remote"
)

// fakeStore records calls and never pushes snapshots.
type fakeStore struct {
	calls        []string
	transactions int
	updateErr    error
	deleteErr    error
}

func (f *fakeStore) Subscribe(context.Context, string, remote.Listener) (func(), error) {
	return func() {}, nil
}

func (f *fakeStore) Create(_ context.Context, collection string, _ any) (string, error) {
	f.calls = append(f.calls, "create "+collection)
	return "new-id", nil
}

func (f *fakeStore) Update(_ context.Context, collection, id string, _ map[string]any) error {
	f.calls = append(f.calls, "update "+collection+"/"+id)
	return f.updateErr
}

func (f *fakeStore) Delete(_ context.Context, collection, id string) error {
	f.calls = append(f.calls, "delete "+collection+"/"+id)
	return f.deleteErr
}

func (f *fakeStore) Transaction(_ context.Context, collection string, fn remote.TransactionFunc) error {
	f.calls = append(f.calls, "transaction "+collection)
	f.transactions++
	_, err := fn(nil)
	return err
}

package dirtree

import (
	"context"

	"github.com/nicolagi/naming/internal/path"
	"github.com/nicolagi/naming/internal/stub"
)

// fakeStorage and fakeCommand are minimal stub.Storage/stub.Command
// implementations identified only by name, for tests that only care about
// replica-set identity and dedup, not actual byte or command RPCs.
type fakeStorage struct{ name string }

var _ stub.Storage = fakeStorage{}

func (f fakeStorage) Identity() string { return f.name }
func (f fakeStorage) Size(context.Context, path.Path) (int64, error) { return 0, nil }
func (f fakeStorage) Read(context.Context, path.Path, int64, int64) ([]byte, error) {
	return nil, nil
}
func (f fakeStorage) Write(context.Context, path.Path, int64, []byte) error { return nil }
func (f fakeStorage) Endpoint() (string, string)                           { return "fake", f.name }

type fakeCommand struct {
	name     string
	onDelete func(path.Path) error
}

var _ stub.Command = fakeCommand{}

func (f fakeCommand) Identity() string { return f.name }
func (f fakeCommand) Create(context.Context, path.Path) (bool, error) { return true, nil }
func (f fakeCommand) Delete(ctx context.Context, p path.Path) (bool, error) {
	if f.onDelete != nil {
		if err := f.onDelete(p); err != nil {
			return false, err
		}
	}
	return true, nil
}
func (f fakeCommand) Copy(context.Context, path.Path, stub.Storage) (bool, error) { return true, nil }

func storageNamed(name string) fakeStorage { return fakeStorage{name: name} }
func commandNamed(name string) fakeCommand { return fakeCommand{name: name} }

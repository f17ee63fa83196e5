package fixdeps

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/openms/fixdeps/internal/deps"
	"github.com/spf13/afero"
)

type fakeObject struct {
	kind   deps.Kind
	id     string
	deps   []string
	rpaths []string
}

// fakeTools keeps load commands per path; a copied file carries its source path as
// content and inherits the source's load commands on first lookup.
type fakeTools struct {
	fs      afero.Fs
	objects map[string]*fakeObject
	changes map[string][]string
}

func newFakeTools() *fakeTools {
	return &fakeTools{
		fs:      afero.NewMemMapFs(),
		objects: make(map[string]*fakeObject),
		changes: make(map[string][]string),
	}
}

func (f *fakeTools) add(t *testing.T, path string, kind deps.Kind, ds ...string) *fakeObject {
	t.Helper()
	if err := f.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(f.fs, path, []byte(path), 0o644); err != nil {
		t.Fatal(err)
	}
	o := &fakeObject{kind: kind, deps: ds}
	if kind != deps.Executable {
		o.id = path
	}
	f.objects[path] = o
	return o
}

func (f *fakeTools) lookup(path string) (*fakeObject, error) {
	if o, ok := f.objects[path]; ok {
		return o, nil
	}
	data, err := afero.ReadFile(f.fs, path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, deps.ErrNotObject)
	}
	src, ok := f.objects[string(data)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, deps.ErrNotObject)
	}
	c := *src
	c.deps = append([]string(nil), src.deps...)
	f.objects[path] = &c
	return &c, nil
}

func (f *fakeTools) IsObject(path string) bool {
	_, err := f.lookup(path)
	return err == nil
}

func (f *fakeTools) Inspect(path string) (*deps.Object, error) {
	o, err := f.lookup(path)
	if err != nil {
		return nil, err
	}
	return &deps.Object{
		Path:         path,
		Kind:         o.kind,
		ID:           o.id,
		Dependencies: append([]string(nil), o.deps...),
		Rpaths:       o.rpaths,
	}, nil
}

func (f *fakeTools) SetID(ctx context.Context, path, id string) error {
	o, err := f.lookup(path)
	if err != nil {
		return err
	}
	o.id = id
	return nil
}

func (f *fakeTools) ChangeDependency(ctx context.Context, path, oldRef, newRef string) error {
	o, err := f.lookup(path)
	if err != nil {
		return err
	}
	for i, d := range o.deps {
		if d == oldRef {
			o.deps[i] = newRef
		}
	}
	f.changes[path] = append(f.changes[path], newRef)
	return nil
}

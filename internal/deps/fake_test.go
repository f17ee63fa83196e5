package deps

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
)

const testPrefix = "@executable_path/../lib/"

// fakeObject is the load command state of one file in a fakeTree
type fakeObject struct {
	Kind   Kind
	ID     string
	Deps   []string
	Rpaths []string
}

func (o *fakeObject) clone() *fakeObject {
	c := *o
	c.Deps = append([]string(nil), o.Deps...)
	c.Rpaths = append([]string(nil), o.Rpaths...)
	return &c
}

type rewrite struct {
	Path string
	Old  string
	New  string
}

// fakeTree stands in for otool and install_name_tool. Each object file holds its
// original path as content, so a copy made by the materializer starts out with the
// load commands of its source and diverges once it is rewritten.
type fakeTree struct {
	fs      afero.Fs
	objects map[string]*fakeObject
	ids     []rewrite
	changes []rewrite
	failID  map[string]bool
}

func newFakeTree() *fakeTree {
	return &fakeTree{
		fs:      afero.NewMemMapFs(),
		objects: make(map[string]*fakeObject),
		failID:  make(map[string]bool),
	}
}

func (f *fakeTree) add(t *testing.T, path string, kind Kind, deps ...string) *fakeObject {
	t.Helper()
	if err := f.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(f.fs, path, []byte(path), 0o444); err != nil {
		t.Fatal(err)
	}
	o := &fakeObject{Kind: kind, Deps: deps}
	if kind != Executable {
		o.ID = path
	}
	f.objects[path] = o
	return o
}

func (f *fakeTree) lookup(path string) (*fakeObject, error) {
	if o, ok := f.objects[path]; ok {
		return o, nil
	}
	data, err := afero.ReadFile(f.fs, path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, ErrNotObject, err)
	}
	orig, ok := f.objects[string(data)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrNotObject)
	}
	o := orig.clone()
	f.objects[path] = o
	return o, nil
}

func (f *fakeTree) IsObject(path string) bool {
	_, err := f.lookup(path)
	return err == nil
}

func (f *fakeTree) Inspect(path string) (*Object, error) {
	o, err := f.lookup(path)
	if err != nil {
		return nil, err
	}
	return &Object{
		Path:         path,
		Kind:         o.Kind,
		ID:           o.ID,
		Dependencies: append([]string(nil), o.Deps...),
		Rpaths:       append([]string(nil), o.Rpaths...),
	}, nil
}

func (f *fakeTree) SetID(ctx context.Context, path, id string) error {
	if f.failID[path] {
		return errors.New("install_name_tool: object is read-only")
	}
	o, err := f.lookup(path)
	if err != nil {
		return err
	}
	f.ids = append(f.ids, rewrite{Path: path, New: id})
	o.ID = id
	return nil
}

func (f *fakeTree) ChangeDependency(ctx context.Context, path, oldRef, newRef string) error {
	o, err := f.lookup(path)
	if err != nil {
		return err
	}
	f.changes = append(f.changes, rewrite{Path: path, Old: oldRef, New: newRef})
	for i, d := range o.Deps {
		if d == oldRef {
			o.Deps[i] = newRef
		}
	}
	return nil
}

func (f *fakeTree) idCalls(path string) int {
	n := 0
	for _, r := range f.ids {
		if r.Path == path {
			n++
		}
	}
	return n
}

func (f *fakeTree) snapshot() map[string]fakeObject {
	out := make(map[string]fakeObject, len(f.objects))
	for k, v := range f.objects {
		out[k] = *v.clone()
	}
	return out
}

func (f *fakeTree) walker(libDir string, opts Options) *Walker {
	if len(opts.Prefix) == 0 {
		opts.Prefix = testPrefix
	}
	return &Walker{
		Introspector: f,
		Rewriter:     f,
		Materializer: &Materializer{Fs: f.fs, Dest: libDir, Extract: opts.Extract},
		Classifier:   NewClassifier(f.fs, "@executable_path/"),
		Options:      opts,
	}
}

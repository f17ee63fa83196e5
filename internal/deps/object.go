// Package deps walks Mach-O dependency graphs, copying non-system libraries next to the
// binaries that load them and rewriting install names and load paths to a relocatable
// prefix.
package deps

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrNotObject is returned when a path is not a Mach-O binary, dylib or framework
var ErrNotObject = errors.New("not a mach-o object")

// ErrUnavailable is returned for a library that could not be copied or inspected
// earlier in the same run
var ErrUnavailable = errors.New("library is unavailable")

// Kind is the kind of object being processed
type Kind int

const (
	Executable Kind = iota
	SharedLibrary
	Framework
)

func (k Kind) String() string {
	switch k {
	case Executable:
		return "executable"
	case SharedLibrary:
		return "dylib"
	case Framework:
		return "framework"
	default:
		return "unknown"
	}
}

// Object is one binary, dylib or framework binary as read from disk
type Object struct {
	Path         string
	Kind         Kind
	ID           string // LC_ID_DYLIB (empty for executables)
	Dependencies []string
	Rpaths       []string
}

// FrameworkPath is the split of a path that lives inside a .framework bundle
type FrameworkPath struct {
	Name      string // Foo.framework
	Subpath   string // Versions/A/Foo
	BundleDir string // /x/Foo.framework
}

// LocalName returns the bundle relative name, e.g. Foo.framework/Versions/A/Foo
func (f *FrameworkPath) LocalName() string {
	return filepath.ToSlash(filepath.Join(f.Name, f.Subpath))
}

// ParseFrameworkPath splits a path at its first ".framework/" component so nested
// frameworks are copied along with their outer bundle.
// It returns nil for paths that are not inside a framework bundle.
func ParseFrameworkPath(path string) *FrameworkPath {
	p := filepath.ToSlash(path)
	idx := strings.Index(p, ".framework/")
	if idx < 0 {
		return nil
	}
	bundleDir := p[:idx+len(".framework")]
	sub := strings.Trim(p[idx+len(".framework/"):], "/")
	if sub == "" {
		return nil
	}
	return &FrameworkPath{
		Name:      filepath.Base(bundleDir),
		Subpath:   sub,
		BundleDir: filepath.FromSlash(bundleDir),
	}
}

// KindOf guesses the object kind for a library path from its location
func KindOf(path string) Kind {
	if ParseFrameworkPath(path) != nil {
		return Framework
	}
	return SharedLibrary
}

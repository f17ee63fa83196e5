package deps

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	"github.com/openms/fixdeps/internal/utils"
)

// Options control how references are rewritten
type Options struct {
	// Prefix is prepended to every rewritten install name and load path,
	// e.g. @executable_path/../lib/
	Prefix string
	// NoCopy rewrites external references to their bare local name in place and
	// never copies or recurses into them.
	NoCopy bool
	// Extract flattens framework binaries; already relocated references are
	// rewritten to their basename.
	Extract bool
}

// Walker walks the dependency graph of binaries and libraries
type Walker struct {
	Introspector Introspector
	Rewriter     Rewriter
	Materializer *Materializer
	Classifier   *Classifier
	Options
}

type forgetter interface {
	Forget(path string)
}

// ProcessRoot walks the dependencies of a top-level executable; the executable itself is
// neither copied nor given a new install name.
func (w *Walker) ProcessRoot(ctx context.Context, st *State, objPath string) error {
	return w.ProcessRootWithPrefix(ctx, st, objPath, w.Prefix)
}

// ProcessRootWithPrefix is ProcessRoot with a different prefix for the root's own load
// paths (plugins use @loader_path based references).
func (w *Walker) ProcessRootWithPrefix(ctx context.Context, st *State, objPath, prefix string) error {
	st.Summary.Roots++
	_, err := w.process(ctx, st, objPath, true, prefix, filepath.Dir(objPath), 0)
	return err
}

// ProcessLibrary walks a library that already lives in (or must be copied to) the library
// directory and returns its local name. There is no executable to expand
// @executable_path rpaths against, so those are ignored.
func (w *Walker) ProcessLibrary(ctx context.Context, st *State, objPath string) (string, error) {
	return w.process(ctx, st, objPath, false, w.Prefix, "", 0)
}

func (w *Walker) reference(prefix, name string) string {
	if w.NoCopy {
		return name
	}
	return prefix + name
}

// process walks one object. execDir is the directory of the root the walk started from
// and is empty when it started from a library.
func (w *Walker) process(ctx context.Context, st *State, objPath string, isRoot bool, prefix, execDir string, depth int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	localPath := objPath
	localName := filepath.Base(objPath)

	if !isRoot {
		localName = w.Materializer.LocalName(objPath)
		if v, ok := st.Visited[localName]; ok {
			switch v {
			case failed:
				utils.Indent(log.Debug, depth+1)(fmt.Sprintf("%s failed earlier", localName))
				return "", fmt.Errorf("%s: %w", localName, ErrUnavailable)
			case inProgress:
				utils.Indent(log.Debug, depth+1)(fmt.Sprintf("%s is being processed (cycle)", localName))
			default:
				utils.Indent(log.Debug, depth+1)(fmt.Sprintf("%s already processed", localName))
			}
			return localName, nil
		}
		// mark before walking dependencies so cycles terminate
		st.Visited[localName] = inProgress
		defer func() {
			if st.Visited[localName] == inProgress {
				st.Visited[localName] = done
			}
		}()

		if w.NoCopy {
			if w.Materializer.Dest == "" || !utils.IsSubPath(w.Materializer.Dest, objPath) {
				return localName, nil
			}
		} else {
			m, err := w.Materializer.Materialize(objPath)
			if err != nil {
				st.fail("copy", objPath, err)
				st.Visited[localName] = failed
				utils.Indent(log.WithError(err).Warn, depth+1)(fmt.Sprintf("failed to materialize %s", objPath))
				return "", err
			}
			localPath = m.LocalPath
			localName = m.LocalName
			if m.Copied {
				st.Summary.Copied++
				st.Summary.Bytes += m.Bytes
				utils.Indent(log.Info, depth+1)(fmt.Sprintf("copied %s -> %s (%s)", objPath, localPath, humanize.Bytes(uint64(m.Bytes))))
			}
		}
	}

	st.addVertex(localName, isRoot)

	obj, err := w.Introspector.Inspect(objPath)
	if err != nil {
		st.Summary.Skipped++
		st.Summary.Warnings++
		if !isRoot {
			st.Visited[localName] = failed
		}
		utils.Indent(log.WithError(err).Warn, depth+1)(fmt.Sprintf("skipping %s", objPath))
		return "", err
	}

	utils.Indent(log.WithField("kind", obj.Kind).Info, depth+1)(fmt.Sprintf("processing %s", localName))

	if !isRoot {
		st.Summary.Libraries++
		if err := w.Rewriter.SetID(ctx, localPath, w.reference(w.Prefix, localName)); err != nil {
			w.toolFailed(st, "id", localPath, err, depth)
		} else {
			st.Summary.Rewrites++
		}
	}

	rpaths := ExpandRpaths(obj.Rpaths, filepath.Dir(objPath), execDir)

	for _, dep := range obj.Dependencies {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if len(obj.ID) > 0 && dep == obj.ID {
			continue
		}

		ref := w.Classifier.Classify(dep, rpaths)
		switch ref.Class {
		case SystemLibrary, SameDirectory:
			utils.Indent(log.Debug, depth+2)(fmt.Sprintf("skipping %s (%s)", dep, ref.Class))
		case RpathRelative:
			st.Summary.Warnings++
			utils.Indent(log.Warn, depth+2)(fmt.Sprintf("%s: no rpath to resolve %s, assuming it is fixed", localName, dep))
		case AlreadyRelocated:
			if ref.Unresolved {
				st.Summary.Warnings++
				utils.Indent(log.Warn, depth+2)(fmt.Sprintf("%s: could not resolve %s against %v, assuming it is fixed", localName, dep, rpaths))
				continue
			}
			if w.Extract && strings.HasPrefix(dep, w.Classifier.RelocatedPrefix) {
				w.change(ctx, st, localPath, dep, w.reference(prefix, path.Base(dep)), depth)
			}
		case ExternalAbsolute:
			if w.NoCopy {
				w.change(ctx, st, localPath, dep, w.Materializer.LocalName(ref.Resolved), depth)
				continue
			}
			childName, err := w.process(ctx, st, ref.Resolved, false, w.Prefix, execDir, depth+1)
			if err != nil {
				if ctx.Err() != nil {
					return "", ctx.Err()
				}
				continue
			}
			st.addEdge(localName, childName)
			// also fixes our reference when the child was handled by another branch
			w.change(ctx, st, localPath, dep, w.reference(prefix, childName), depth)
		}
	}

	if f, ok := w.Introspector.(forgetter); ok {
		f.Forget(localPath)
	}

	return localName, nil
}

func (w *Walker) change(ctx context.Context, st *State, objPath, oldRef, newRef string, depth int) {
	if oldRef == newRef {
		return
	}
	if err := w.Rewriter.ChangeDependency(ctx, objPath, oldRef, newRef); err != nil {
		w.toolFailed(st, "change", objPath, err, depth+1)
		return
	}
	st.Summary.Rewrites++
	utils.Indent(log.Debug, depth+2)(fmt.Sprintf("%s -> %s", oldRef, newRef))
}

func (w *Walker) toolFailed(st *State, op, objPath string, err error, depth int) {
	st.fail(op, objPath, err)
	utils.Indent(log.WithError(err).Warn, depth+1)(fmt.Sprintf("failed to rewrite %s", objPath))
}

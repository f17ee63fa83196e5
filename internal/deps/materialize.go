package deps

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/openms/fixdeps/internal/utils"
	"github.com/spf13/afero"
)

// Materializer makes sure a local copy of a library exists in the destination
// directory. All operations are idempotent.
type Materializer struct {
	Fs      afero.Fs
	Dest    string
	Extract bool // copy only the binary out of framework bundles
}

// Materialized is the result of a Materialize call
type Materialized struct {
	LocalPath string
	LocalName string
	Copied    bool
	Bytes     int64
}

// LocalName returns the name a library will have under the destination directory
// without touching the filesystem.
func (m *Materializer) LocalName(source string) string {
	if fw := ParseFrameworkPath(source); fw != nil && !m.Extract {
		return fw.LocalName()
	}
	return filepath.Base(source)
}

// Materialize copies source into the destination directory unless a copy is already
// there or source already lives under it.
func (m *Materializer) Materialize(source string) (*Materialized, error) {
	name := m.LocalName(source)
	out := &Materialized{
		LocalPath: filepath.Join(m.Dest, filepath.FromSlash(name)),
		LocalName: name,
	}

	if utils.IsSubPath(m.Dest, source) {
		out.LocalPath = source
		return out, nil
	}
	if m.exists(out.LocalPath) {
		return out, nil
	}

	fw := ParseFrameworkPath(source)
	switch {
	case fw != nil && !m.Extract:
		n, err := m.copyTree(fw.BundleDir, filepath.Join(m.Dest, fw.Name))
		if err != nil {
			return nil, fmt.Errorf("failed to copy framework %s: %w", fw.BundleDir, err)
		}
		out.Bytes = n
	default:
		// NOTE: extracting a framework binary leaves its resources and headers behind
		n, err := m.copyFile(source, out.LocalPath)
		if err != nil {
			return nil, fmt.Errorf("failed to copy %s: %w", source, err)
		}
		out.Bytes = n
	}
	out.Copied = true

	return out, nil
}

func (m *Materializer) exists(path string) bool {
	_, err := m.Fs.Stat(path)
	return err == nil
}

// copyFile copies src to dst and adds owner write permission to the copy
func (m *Materializer) copyFile(src, dst string) (int64, error) {
	fi, err := m.Fs.Stat(src)
	if err != nil {
		return 0, err
	}
	if err := m.Fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, err
	}

	from, err := m.Fs.Open(src)
	if err != nil {
		return 0, err
	}
	defer from.Close()

	to, err := m.Fs.OpenFile(dst, os.O_RDWR|os.O_CREATE|os.O_TRUNC, fi.Mode().Perm()|0o200)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(to, from)
	if cerr := to.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, err
	}

	// OpenFile does not touch the mode of an existing file
	return n, m.Fs.Chmod(dst, fi.Mode().Perm()|0o200)
}

// copyTree recursively copies a framework bundle, recreating symlinks
func (m *Materializer) copyTree(src, dst string) (int64, error) {
	var total int64
	err := afero.Walk(m.Fs, src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if info.Mode()&os.ModeSymlink != 0 {
			return m.copySymlink(path, target)
		}
		if info.IsDir() {
			return m.Fs.MkdirAll(target, info.Mode().Perm()|0o700)
		}
		n, err := m.copyFile(path, target)
		total += n
		return err
	})
	return total, err
}

func (m *Materializer) copySymlink(path, target string) error {
	lr, ok := m.Fs.(afero.LinkReader)
	if !ok {
		_, err := m.copyFile(path, target)
		return err
	}
	link, err := lr.ReadlinkIfPossible(path)
	if err != nil {
		return err
	}
	if ln, ok := m.Fs.(afero.Linker); ok {
		if ls, ok := m.Fs.(afero.Lstater); ok {
			if _, _, err := ls.LstatIfPossible(target); err == nil {
				return nil
			}
		}
		return ln.SymlinkIfPossible(link, target)
	}
	_, err = m.copyFile(path, target)
	return err
}

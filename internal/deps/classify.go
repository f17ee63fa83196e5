package deps

import (
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Class is the outcome of classifying a dependency reference
type Class int

const (
	SystemLibrary Class = iota
	AlreadyRelocated
	SameDirectory
	RpathRelative
	ExternalAbsolute
)

func (c Class) String() string {
	switch c {
	case SystemLibrary:
		return "system"
	case AlreadyRelocated:
		return "relocated"
	case SameDirectory:
		return "same-dir"
	case RpathRelative:
		return "rpath"
	case ExternalAbsolute:
		return "external"
	default:
		return "unknown"
	}
}

const (
	rpathToken          = "@rpath"
	executablePathToken = "@executable_path"
	loaderPathToken     = "@loader_path"
)

// DefaultSystemRoots are the locations of OS provided libraries that are never copied
var DefaultSystemRoots = []string{
	"/usr/lib/",
	"/System/Library/",
}

// Reference is one load command path of an object after classification
type Reference struct {
	Raw        string
	Resolved   string // absolute path to materialize (ExternalAbsolute only)
	Class      Class
	Unresolved bool // @rpath reference no rpath entry could resolve
	Framework  *FrameworkPath
}

// Classifier classifies raw references. It has no mutable state; the result only
// depends on the reference, the rpath list and the configuration below.
type Classifier struct {
	Fs              afero.Fs
	SystemRoots     []string
	RelocatedPrefix string
}

// NewClassifier returns a classifier using the default system roots when none are given
func NewClassifier(fs afero.Fs, relocatedPrefix string, systemRoots ...string) *Classifier {
	if len(systemRoots) == 0 {
		systemRoots = DefaultSystemRoots
	}
	return &Classifier{
		Fs:              fs,
		SystemRoots:     systemRoots,
		RelocatedPrefix: relocatedPrefix,
	}
}

// Classify classifies ref; rpaths are the already expanded LC_RPATH entries of the
// object that declares ref.
func (c *Classifier) Classify(ref string, rpaths []string) Reference {
	r := Reference{Raw: ref}

	for _, root := range c.SystemRoots {
		if strings.HasPrefix(ref, root) {
			r.Class = SystemLibrary
			return r
		}
	}

	if (len(c.RelocatedPrefix) > 0 && strings.HasPrefix(ref, c.RelocatedPrefix)) ||
		strings.HasPrefix(ref, executablePathToken) ||
		strings.HasPrefix(ref, loaderPathToken) {
		r.Class = AlreadyRelocated
		r.Framework = ParseFrameworkPath(ref)
		return r
	}

	if !strings.Contains(ref, "/") {
		r.Class = SameDirectory
		return r
	}

	if strings.HasPrefix(ref, rpathToken) {
		r.Class = RpathRelative
		if len(rpaths) == 0 {
			r.Unresolved = true
			return r
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(ref, rpathToken), "/")
		for _, rp := range rpaths {
			candidate := filepath.Join(rp, rel)
			if c.exists(candidate) {
				r.Class = ExternalAbsolute
				r.Resolved = candidate
				r.Framework = ParseFrameworkPath(candidate)
				return r
			}
		}
		// nothing on disk, assume it was fixed up already
		r.Class = AlreadyRelocated
		r.Unresolved = true
		return r
	}

	r.Class = ExternalAbsolute
	r.Resolved = ref
	r.Framework = ParseFrameworkPath(ref)
	return r
}

func (c *Classifier) exists(path string) bool {
	fi, err := c.Fs.Stat(path)
	return err == nil && !fi.IsDir()
}

// ExpandRpaths replaces @loader_path and @executable_path in the rpath entries of an
// object; loaderDir is the object's original directory and execDir the directory of
// the root executable being processed (may be empty).
func ExpandRpaths(rpaths []string, loaderDir, execDir string) []string {
	var out []string
	for _, rp := range rpaths {
		switch {
		case strings.HasPrefix(rp, loaderPathToken):
			rp = filepath.Join(loaderDir, strings.TrimPrefix(rp, loaderPathToken))
		case strings.HasPrefix(rp, executablePathToken):
			if len(execDir) == 0 {
				continue
			}
			rp = filepath.Join(execDir, strings.TrimPrefix(rp, executablePathToken))
		}
		out = append(out, rp)
	}
	return out
}

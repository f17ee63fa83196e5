package fixdeps

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/openms/fixdeps/internal/colors"
	"github.com/openms/fixdeps/internal/deps"
)

// Describe prints the kind, install name, rpaths and classified dependencies of an
// object without modifying it.
func Describe(w io.Writer, intro deps.Introspector, c *deps.Classifier, path string) error {
	obj, err := intro.Inspect(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s (%s)\n", colors.Bold().Sprint(path), obj.Kind)
	if len(obj.ID) > 0 {
		fmt.Fprintf(w, "  id: %s\n", obj.ID)
	}
	for _, rp := range obj.Rpaths {
		fmt.Fprintf(w, "  rpath: %s\n", colors.Faint().Sprint(rp))
	}

	rpaths := deps.ExpandRpaths(obj.Rpaths, filepath.Dir(path), filepath.Dir(path))
	for _, dep := range obj.Dependencies {
		if dep == obj.ID {
			continue
		}
		ref := c.Classify(dep, rpaths)
		class := colors.ForClass(ref.Class.String()).Sprintf("%-9s", ref.Class)
		switch {
		case ref.Unresolved:
			fmt.Fprintf(w, "  %s %s %s\n", class, dep, colors.Yellow().Sprint("(unresolved)"))
		case len(ref.Resolved) > 0 && ref.Resolved != dep:
			fmt.Fprintf(w, "  %s %s => %s\n", class, dep, ref.Resolved)
		default:
			fmt.Fprintf(w, "  %s %s\n", class, dep)
		}
	}
	return nil
}

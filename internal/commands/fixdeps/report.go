package fixdeps

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/openms/fixdeps/internal/colors"
	"github.com/openms/fixdeps/internal/deps"
	"gopkg.in/yaml.v3"
)

// Report is the YAML document written by --report
type Report struct {
	deps.Summary `yaml:",inline"`
	// Dependents lists, per bundled library, the objects that load it
	Dependents map[string][]string `yaml:"dependents,omitempty"`
}

// WriteReport writes the run summary and the dependents of every library as YAML
func WriteReport(w io.Writer, st *deps.State) error {
	dependents, err := st.Dependents()
	if err != nil {
		return fmt.Errorf("failed to collect dependents: %v", err)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&Report{Summary: st.Summary, Dependents: dependents}); err != nil {
		return fmt.Errorf("failed to encode report: %v", err)
	}
	return enc.Close()
}

// PrintSummary prints a short human readable summary of a run
func PrintSummary(w io.Writer, s *deps.Summary) {
	label := colors.Bold().SprintFunc()
	fmt.Fprintf(w, "%s %d binaries, %d libraries\n", label("Processed:"), s.Roots, s.Libraries)
	fmt.Fprintf(w, "%s %d (%s)\n", label("Copied:   "), s.Copied, humanize.Bytes(uint64(s.Bytes)))
	fmt.Fprintf(w, "%s %d\n", label("Rewrites: "), s.Rewrites)
	if s.Skipped > 0 {
		fmt.Fprintf(w, "%s %d\n", label("Skipped:  "), s.Skipped)
	}
	if s.Warnings > 0 {
		fmt.Fprintf(w, "%s %s\n", label("Warnings: "), colors.Yellow().Sprint(s.Warnings))
	}
	if len(s.Failures) > 0 {
		fmt.Fprintf(w, "%s %s\n", label("Failures: "), colors.Red().Sprint(len(s.Failures)))
		for _, f := range s.Failures {
			fmt.Fprintf(w, "  %s %s: %s\n", colors.Red().Sprintf("[%s]", f.Op), f.Path, f.Error)
		}
	}
}

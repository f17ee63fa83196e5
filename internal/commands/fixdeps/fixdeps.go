// Package fixdeps relocates the non-system dependencies of a set of binaries into a
// library directory and rewrites every load path to be relative.
package fixdeps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apex/log"
	"github.com/openms/fixdeps/internal/config"
	"github.com/openms/fixdeps/internal/deps"
	"github.com/spf13/afero"
)

// Fixer drives a whole run over the configured directories
type Fixer struct {
	Conf         *config.Config
	Fs           afero.Fs
	Introspector deps.Introspector
	Rewriter     deps.Rewriter
}

// New returns a Fixer using the real filesystem and the configured tools
func New(conf *config.Config) (*Fixer, error) {
	f := &Fixer{
		Conf:     conf,
		Fs:       afero.NewOsFs(),
		Rewriter: deps.NewInstallNameTool(conf.InstallNameTool),
	}
	switch conf.Introspector {
	case config.IntrospectorOtool:
		f.Introspector = deps.NewOtoolIntrospector(conf.Otool)
	default:
		i, err := deps.NewMachoIntrospector(0)
		if err != nil {
			return nil, err
		}
		f.Introspector = i
	}
	return f, nil
}

func (f *Fixer) walker() (*deps.Walker, error) {
	prefix, err := f.Conf.Prefix()
	if err != nil {
		return nil, err
	}
	roots := f.Conf.SystemRoots
	if len(roots) == 0 {
		roots = deps.DefaultSystemRoots
	}
	return &deps.Walker{
		Introspector: f.Introspector,
		Rewriter:     f.Rewriter,
		Materializer: &deps.Materializer{
			Fs:      f.Fs,
			Dest:    f.Conf.LibPath,
			Extract: f.Conf.ExtractFromFramework,
		},
		Classifier: deps.NewClassifier(f.Fs, f.Conf.PathPrefix, roots...),
		Options: deps.Options{
			Prefix:  prefix,
			NoCopy:  f.Conf.NoCopy,
			Extract: f.Conf.ExtractFromFramework,
		},
	}, nil
}

// Objects returns the object files found below dir in lexical order. Symlinks are
// skipped so a framework's top-level alias is not processed twice.
func (f *Fixer) Objects(dir string) ([]string, error) {
	var objs []string
	err := afero.Walk(f.Fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || info.Mode()&os.ModeSymlink != 0 {
			return nil
		}
		if f.Introspector.IsObject(path) {
			objs = append(objs, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %v", dir, err)
	}
	return objs, nil
}

// Run processes every binary, then every plugin, then every library already in the
// library directory. Per-object failures are recorded in the returned state; only
// setup errors and cancellation are returned.
func (f *Fixer) Run(ctx context.Context) (*deps.State, error) {
	w, err := f.walker()
	if err != nil {
		return nil, err
	}

	if !f.Conf.NoCopy {
		if err := f.Fs.MkdirAll(f.Conf.LibPath, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %v", f.Conf.LibPath, err)
		}
	}

	st := deps.NewState()

	if len(f.Conf.BinPath) > 0 {
		log.WithField("prefix", w.Prefix).Infof("Fixing binaries in %s", f.Conf.BinPath)
		bins, err := f.Objects(f.Conf.BinPath)
		if err != nil {
			return st, err
		}
		for _, bin := range bins {
			if err := w.ProcessRoot(ctx, st, bin); err != nil && ctx.Err() != nil {
				return st, ctx.Err()
			}
		}
	}

	if len(f.Conf.PluginPath) > 0 {
		prefix, err := f.Conf.PluginPrefix()
		if err != nil {
			return st, err
		}
		log.WithField("prefix", prefix).Infof("Fixing plugins in %s", f.Conf.PluginPath)
		plugins, err := f.Objects(f.Conf.PluginPath)
		if err != nil {
			return st, err
		}
		for _, plugin := range plugins {
			if err := w.ProcessRootWithPrefix(ctx, st, plugin, prefix); err != nil && ctx.Err() != nil {
				return st, ctx.Err()
			}
		}
	}

	if len(f.Conf.LibPath) > 0 {
		if _, err := f.Fs.Stat(f.Conf.LibPath); err == nil {
			log.WithField("prefix", w.Prefix).Infof("Fixing libraries in %s", f.Conf.LibPath)
			libs, err := f.Objects(f.Conf.LibPath)
			if err != nil {
				return st, err
			}
			for _, lib := range libs {
				if _, err := w.ProcessLibrary(ctx, st, lib); err != nil && ctx.Err() != nil {
					return st, ctx.Err()
				}
			}
		} else {
			log.Warnf("library directory %s does not exist", f.Conf.LibPath)
		}
	}

	return st, nil
}

// WriteOutputs writes the YAML report and the DOT graph when they were asked for
func (f *Fixer) WriteOutputs(st *deps.State) error {
	if len(f.Conf.Report) > 0 {
		out, err := f.Fs.Create(filepath.Clean(f.Conf.Report))
		if err != nil {
			return fmt.Errorf("failed to create report: %v", err)
		}
		defer out.Close()
		if err := WriteReport(out, st); err != nil {
			return err
		}
		log.Infof("Wrote report to %s", f.Conf.Report)
	}
	if len(f.Conf.Dot) > 0 {
		out, err := f.Fs.Create(filepath.Clean(f.Conf.Dot))
		if err != nil {
			return fmt.Errorf("failed to create dot file: %v", err)
		}
		defer out.Close()
		if err := st.WriteDOT(out); err != nil {
			return fmt.Errorf("failed to write dependency graph: %v", err)
		}
		log.Infof("Wrote dependency graph to %s", f.Conf.Dot)
	}
	return nil
}

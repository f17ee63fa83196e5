package deps

import (
	"context"
	"os/exec"
	"strings"

	"github.com/apex/log"
	"github.com/pkg/errors"
)

// Runner runs an external tool and returns its combined output
type Runner func(ctx context.Context, name string, args ...string) (string, error)

// ExecRunner runs tools with os/exec
func ExecRunner(ctx context.Context, name string, args ...string) (string, error) {
	log.Debugf("running: %s %s", name, strings.Join(args, " "))
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return string(out), errors.Wrapf(err, "%s %s: %s", name, strings.Join(args, " "), strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// Rewriter rewrites the install name of an object and the load paths it records
type Rewriter interface {
	SetID(ctx context.Context, objectPath, id string) error
	ChangeDependency(ctx context.Context, objectPath, oldRef, newRef string) error
}

// InstallNameTool rewrites load commands with install_name_tool
type InstallNameTool struct {
	Path string
	Run  Runner
}

// NewInstallNameTool returns a rewriter for the tool at path (install_name_tool on $PATH when empty)
func NewInstallNameTool(path string) *InstallNameTool {
	if len(path) == 0 {
		path = "install_name_tool"
	}
	return &InstallNameTool{Path: path, Run: ExecRunner}
}

func (t *InstallNameTool) SetID(ctx context.Context, objectPath, id string) error {
	_, err := t.Run(ctx, t.Path, "-id", id, objectPath)
	return err
}

func (t *InstallNameTool) ChangeDependency(ctx context.Context, objectPath, oldRef, newRef string) error {
	if oldRef == newRef {
		return nil
	}
	_, err := t.Run(ctx, t.Path, "-change", oldRef, newRef, objectPath)
	return err
}

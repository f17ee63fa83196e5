package deps

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/apex/log"
	"github.com/openms/fixdeps/internal/utils"
)

// OtoolIntrospector shells out to otool instead of parsing load commands in process
type OtoolIntrospector struct {
	Path string
	Run  Runner
}

// NewOtoolIntrospector returns an introspector for the otool at path (otool on $PATH when empty)
func NewOtoolIntrospector(path string) *OtoolIntrospector {
	if len(path) == 0 {
		path = "otool"
	}
	return &OtoolIntrospector{Path: path, Run: ExecRunner}
}

func (o *OtoolIntrospector) IsObject(path string) bool {
	out, err := o.Run(context.Background(), o.Path, "-D", path)
	if err != nil || strings.Contains(out, "is not an object file") {
		log.Debugf("skipping %s: not an object file", path)
		return false
	}
	return true
}

func (o *OtoolIntrospector) Inspect(path string) (*Object, error) {
	ctx := context.Background()

	out, err := o.Run(ctx, o.Path, "-D", path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, ErrNotObject, err)
	}
	obj := &Object{
		Path: path,
		ID:   parseOtoolID(out),
	}
	if len(obj.ID) > 0 {
		obj.Kind = KindOf(path)
	} else {
		obj.Kind = Executable
	}

	if out, err = o.Run(ctx, o.Path, "-L", path); err != nil {
		return nil, fmt.Errorf("failed to list dependencies of %s: %w", path, err)
	}
	obj.Dependencies = parseOtoolDeps(out, obj.ID)

	if out, err = o.Run(ctx, o.Path, "-l", path); err != nil {
		return nil, fmt.Errorf("failed to list load commands of %s: %w", path, err)
	}
	obj.Rpaths = parseOtoolRpaths(out)

	return obj, nil
}

func isOtoolHeader(line string) bool {
	return strings.HasSuffix(line, ":") && !strings.HasPrefix(line, "\t")
}

// parseOtoolID parses `otool -D`; the install name is the first line after the header
func parseOtoolID(out string) string {
	s := bufio.NewScanner(strings.NewReader(out))
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if len(line) == 0 || isOtoolHeader(s.Text()) {
			continue
		}
		return line
	}
	return ""
}

// parseOtoolDeps parses `otool -L`; dylibs list their own install name first
func parseOtoolDeps(out, id string) []string {
	var deps []string
	s := bufio.NewScanner(strings.NewReader(out))
	for s.Scan() {
		line := s.Text()
		if !strings.HasPrefix(line, "\t") {
			continue
		}
		line = strings.TrimSpace(line)
		if idx := strings.LastIndex(line, " (compatibility version"); idx > 0 {
			line = line[:idx]
		} else if idx := strings.LastIndex(line, " ("); idx > 0 {
			line = line[:idx]
		}
		if line == id {
			continue
		}
		deps = append(deps, line)
	}
	return utils.Unique(deps)
}

// parseOtoolRpaths parses the LC_RPATH commands out of `otool -l`
func parseOtoolRpaths(out string) []string {
	var rpaths []string
	inRpath := false
	s := bufio.NewScanner(strings.NewReader(out))
	for s.Scan() {
		fields := strings.Fields(s.Text())
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "cmd":
			inRpath = fields[1] == "LC_RPATH"
		case "path":
			if inRpath {
				p := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s.Text()), "path"))
				if idx := strings.LastIndex(p, " (offset"); idx > 0 {
					p = p[:idx]
				}
				rpaths = append(rpaths, p)
				inRpath = false
			}
		}
	}
	return utils.Unique(rpaths)
}

// Package config is used to load the configuration file and flags
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/openms/fixdeps/internal/utils"
	"github.com/spf13/viper"
)

const (
	// DefaultPathPrefix is the relocation prefix baked into rewritten load paths
	DefaultPathPrefix = "@executable_path/"

	IntrospectorNative = "native"
	IntrospectorOtool  = "otool"
)

// ErrMissingPath is returned when neither a usable lib nor bin path was given
var ErrMissingPath = errors.New("missing required path argument")

// Config is the configuration struct
type Config struct {
	LibPath              string   `mapstructure:"lib-path"`
	BinPath              string   `mapstructure:"bin-path"`
	PluginPath           string   `mapstructure:"plugin-path"`
	PathPrefix           string   `mapstructure:"path-prefix"`
	NoAutoRelative       bool     `mapstructure:"no-auto-relative"`
	ExtractFromFramework bool     `mapstructure:"extract-from-framework"`
	NoCopy               bool     `mapstructure:"no-copy"`
	InstallNameTool      string   `mapstructure:"install-name-tool"`
	Otool                string   `mapstructure:"otool"`
	Introspector         string   `mapstructure:"introspector"`
	SystemRoots          []string `mapstructure:"system-root"`
	Report               string   `mapstructure:"report"`
	Dot                  string   `mapstructure:"dot"`
	Verbose              bool     `mapstructure:"verbose"`
}

func (c *Config) verify() error {
	if c.LibPath == "" {
		if c.BinPath == "" {
			return fmt.Errorf("%w: --lib-path (or --bin-path with --no-copy) must be set", ErrMissingPath)
		}
		if !c.NoCopy {
			return fmt.Errorf("%w: --lib-path is required unless --no-copy is set", ErrMissingPath)
		}
	}
	if c.PluginPath != "" && c.LibPath == "" {
		return fmt.Errorf("%w: --plugin-path requires --lib-path", ErrMissingPath)
	}

	for _, dir := range []string{c.BinPath, c.PluginPath} {
		if dir == "" {
			continue
		}
		if fi, err := os.Stat(dir); err != nil {
			return fmt.Errorf("config: %v", err)
		} else if !fi.IsDir() {
			return fmt.Errorf("config: %s is not a directory", dir)
		}
	}

	if c.PathPrefix == "" {
		c.PathPrefix = DefaultPathPrefix
	}
	if !strings.HasSuffix(c.PathPrefix, "/") {
		c.PathPrefix += "/"
	}

	if c.Introspector == "" {
		c.Introspector = IntrospectorNative
	}
	if !utils.StrSliceHas([]string{IntrospectorNative, IntrospectorOtool}, c.Introspector) {
		return fmt.Errorf("config: unsupported introspector %q; must be one of: %s, %s", c.Introspector, IntrospectorNative, IntrospectorOtool)
	}

	return nil
}

// Prefix returns the prefix for load paths of executables: the path prefix plus the
// relative offset from the bin path to the lib path unless auto-relative is disabled.
func (c *Config) Prefix() (string, error) {
	if c.NoAutoRelative || c.BinPath == "" || c.LibPath == "" {
		return c.PathPrefix, nil
	}
	rel, err := utils.RelDir(c.BinPath, c.LibPath)
	if err != nil {
		return "", fmt.Errorf("config: failed to compute offset from %s to %s: %v", c.BinPath, c.LibPath, err)
	}
	return c.PathPrefix + rel, nil
}

// PluginPrefix returns the prefix for load paths recorded in plugins; plugins are
// loaded by hosts we know nothing about so their references are loader relative.
func (c *Config) PluginPrefix() (string, error) {
	rel, err := utils.RelDir(c.PluginPath, c.LibPath)
	if err != nil {
		return "", fmt.Errorf("config: failed to compute offset from %s to %s: %v", c.PluginPath, c.LibPath, err)
	}
	return "@loader_path/" + rel, nil
}

// Load unmarshals and verifies the configuration held by v
func Load(v *viper.Viper) (*Config, error) {
	var c *Config

	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal: %v", err)
	}
	if c == nil {
		c = &Config{}
	}

	if err := c.verify(); err != nil {
		return nil, err
	}

	return c, nil
}

// LoadConfig loads the configuration from the global viper instance
func LoadConfig() (*Config, error) {
	return Load(viper.GetViper())
}

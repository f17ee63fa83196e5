package config

import (
	"errors"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(kv map[string]any) *viper.Viper {
	v := viper.New()
	for k, val := range kv {
		v.Set(k, val)
	}
	return v
}

func TestLoadMissingPaths(t *testing.T) {
	tests := []struct {
		name string
		kv   map[string]any
	}{
		{"nothing", map[string]any{}},
		{"bin without no-copy", map[string]any{"bin-path": t.TempDir()}},
		{"plugin without lib", map[string]any{"bin-path": t.TempDir(), "no-copy": true, "plugin-path": t.TempDir()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(newViper(tt.kv))
			assert.True(t, errors.Is(err, ErrMissingPath), "got %v", err)
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load(newViper(map[string]any{"lib-path": "/opt/app/lib"}))
	require.NoError(t, err)
	assert.Equal(t, DefaultPathPrefix, c.PathPrefix)
	assert.Equal(t, IntrospectorNative, c.Introspector)
}

func TestLoadNoCopyBinOnly(t *testing.T) {
	c, err := Load(newViper(map[string]any{"bin-path": t.TempDir(), "no-copy": true}))
	require.NoError(t, err)
	assert.True(t, c.NoCopy)
}

func TestLoadBadIntrospector(t *testing.T) {
	_, err := Load(newViper(map[string]any{"lib-path": "/opt/app/lib", "introspector": "objdump"}))
	assert.Error(t, err)
}

func TestLoadBinPathNotDir(t *testing.T) {
	_, err := Load(newViper(map[string]any{"lib-path": "/opt/app/lib", "bin-path": "/definitely/not/here"}))
	assert.Error(t, err)
}

func TestPrefix(t *testing.T) {
	tests := []struct {
		name string
		conf Config
		want string
	}{
		{
			name: "auto relative",
			conf: Config{BinPath: "/opt/app/bin", LibPath: "/opt/app/lib", PathPrefix: DefaultPathPrefix},
			want: "@executable_path/../lib/",
		},
		{
			name: "same directory",
			conf: Config{BinPath: "/opt/app/bin", LibPath: "/opt/app/bin", PathPrefix: DefaultPathPrefix},
			want: "@executable_path/",
		},
		{
			name: "no auto relative",
			conf: Config{BinPath: "/opt/app/bin", LibPath: "/opt/app/lib", PathPrefix: "@rpath/", NoAutoRelative: true},
			want: "@rpath/",
		},
		{
			name: "lib only",
			conf: Config{LibPath: "/opt/app/lib", PathPrefix: DefaultPathPrefix},
			want: "@executable_path/",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.conf.Prefix()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPluginPrefix(t *testing.T) {
	c := Config{PluginPath: "/opt/app/plugins", LibPath: "/opt/app/lib"}
	got, err := c.PluginPrefix()
	require.NoError(t, err)
	assert.Equal(t, "@loader_path/../lib/", got)
}

func TestLoadTrailingSlash(t *testing.T) {
	c, err := Load(newViper(map[string]any{"lib-path": "/opt/app/lib", "path-prefix": "@executable_path"}))
	require.NoError(t, err)
	assert.Equal(t, "@executable_path/", c.PathPrefix)
}

package magic

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestIsMachOReader(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"64-bit", []byte{0xcf, 0xfa, 0xed, 0xfe, 0x07}, true},
		{"32-bit", []byte{0xce, 0xfa, 0xed, 0xfe}, true},
		{"universal", []byte{0xca, 0xfe, 0xba, 0xbe}, true},
		{"script", []byte("#!/bin/sh\n"), false},
		{"short", []byte{0xcf}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IsMachOReader(bytes.NewReader(tt.data))
			if got != tt.want {
				t.Errorf("IsMachOReader() = %v, want %v (err: %v)", got, tt.want, err)
			}
		})
	}
}

func TestIsMachODirectory(t *testing.T) {
	if ok, err := IsMachO(t.TempDir()); ok || err == nil {
		t.Errorf("IsMachO(dir) = %v, %v; want false with error", ok, err)
	}
}

func TestIsMachONoExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "QtCore")
	if err := os.WriteFile(path, []byte{0xcf, 0xfa, 0xed, 0xfe, 0, 0, 0, 0}, 0o644); err != nil {
		t.Fatal(err)
	}
	if ok, err := IsMachO(path); !ok {
		t.Errorf("IsMachO() = false: %v", err)
	}
}

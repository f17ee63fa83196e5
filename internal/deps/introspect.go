package deps

import (
	"errors"
	"fmt"

	"github.com/apex/log"
	"github.com/blacktop/go-macho"
	"github.com/blacktop/go-macho/types"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/openms/fixdeps/internal/magic"
)

// Introspector reads the identity, dependencies and rpaths of an object
type Introspector interface {
	// IsObject probes path with the same machinery Inspect uses
	IsObject(path string) bool
	Inspect(path string) (*Object, error)
}

const defaultCacheSize = 1024

// MachoIntrospector parses load commands in process with go-macho
type MachoIntrospector struct {
	cache *lru.Cache[string, *Object]
}

// NewMachoIntrospector returns an introspector that caches up to size parsed objects
func NewMachoIntrospector(size int) (*MachoIntrospector, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	c, err := lru.New[string, *Object](size)
	if err != nil {
		return nil, err
	}
	return &MachoIntrospector{cache: c}, nil
}

func (i *MachoIntrospector) IsObject(path string) bool {
	if ok, err := magic.IsMachO(path); !ok {
		log.WithError(err).Debugf("skipping %s", path)
		return false
	}
	_, err := i.Inspect(path)
	return err == nil
}

func (i *MachoIntrospector) Inspect(path string) (*Object, error) {
	if obj, ok := i.cache.Get(path); ok {
		return obj, nil
	}

	var m *macho.File
	if fat, err := macho.OpenFat(path); err == nil { // UNIVERSAL MACHO
		defer fat.Close()
		if len(fat.Arches) == 0 {
			return nil, fmt.Errorf("%s: %w", path, ErrNotObject)
		}
		// every slice carries the same load commands for our purposes
		m = fat.Arches[0].File
	} else {
		if !errors.Is(err, macho.ErrNotFat) {
			return nil, fmt.Errorf("%s: %w: %v", path, ErrNotObject, err)
		}
		m, err = macho.Open(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %v", path, ErrNotObject, err)
		}
		defer m.Close()
	}

	obj := &Object{
		Path:         path,
		Dependencies: m.ImportedLibraries(),
	}

	switch m.FileHeader.Type {
	case types.MH_EXECUTE:
		obj.Kind = Executable
	case types.MH_DYLIB, types.MH_BUNDLE:
		obj.Kind = KindOf(path)
		if id := m.DylibID(); id != nil {
			obj.ID = id.Name
		}
	default:
		return nil, fmt.Errorf("%s: %w: unsupported file type %v", path, ErrNotObject, m.FileHeader.Type)
	}

	for _, lc := range m.GetLoadsByName("LC_RPATH") {
		if rp, ok := lc.(*macho.Rpath); ok {
			obj.Rpaths = append(obj.Rpaths, rp.Path)
		}
	}

	i.cache.Add(path, obj)

	return obj, nil
}

// Forget drops a cached object, e.g. after it was rewritten on disk
func (i *MachoIntrospector) Forget(path string) {
	i.cache.Remove(path)
}

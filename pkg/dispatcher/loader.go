package dispatcher

import (
	"fmt"

	"github.com/ebitengine/purego"
)

// SymbolName is one entry of the required export table (spec.md §4.6
// step 2 / §6 "On-disk contract"). Grounded on
// original_source/src/dispatcher/common/mfx_dispatcher_util.cpp's
// FunctionDesc2 table.
type SymbolName string

const (
	SymQueryImplDescription   SymbolName = "query_impl_description"
	SymReleaseImplDescription SymbolName = "release_impl_description"
	SymGetSurfaceForVPP       SymbolName = "get_surface_for_vpp"
	SymGetSurfaceForEncode    SymbolName = "get_surface_for_encode"
	SymGetSurfaceForDecode    SymbolName = "get_surface_for_decode"
)

// RequiredSymbols is the full export table every candidate must
// resolve to survive validation.
var RequiredSymbols = []SymbolName{
	SymQueryImplDescription,
	SymReleaseImplDescription,
	SymGetSurfaceForVPP,
	SymGetSurfaceForEncode,
	SymGetSurfaceForDecode,
}

// Loader abstracts dynamic-library loading so the dispatcher's
// discovery/validation algorithm can be exercised without touching the
// filesystem or the dynamic loader — an injectable fake loader is used
// by tests, mirroring the pattern in
// _examples/other_examples/1052c328_obinnaokechukwu-ffgo's use of
// purego callbacks for testable native-boundary code.
type Loader interface {
	Open(path string) (uintptr, error)
	Symbol(handle uintptr, name string) (uintptr, error)
	Close(handle uintptr) error
}

// PuregoLoader is the production Loader, backed by
// github.com/ebitengine/purego's cgo-free dlopen/dlsym binding. This is
// the dispatcher's only contact with the dynamic loader; everything
// above this layer is pure Go.
type PuregoLoader struct{}

func (PuregoLoader) Open(path string) (uintptr, error) {
	h, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return 0, fmt.Errorf("dispatcher: dlopen %s: %w", path, err)
	}
	return h, nil
}

func (PuregoLoader) Symbol(handle uintptr, name string) (uintptr, error) {
	sym, err := purego.Dlsym(handle, name)
	if err != nil {
		return 0, fmt.Errorf("dispatcher: dlsym %s: %w", name, err)
	}
	return sym, nil
}

func (PuregoLoader) Close(handle uintptr) error {
	return purego.Dlclose(handle)
}

//go:build linux

package driver

// Bindings for libgdrapi.so via purego. No cgo required — the library
// is dlopen'd on first use. Set GDRCOPY_LIBRARY_PATH to load it from a
// specific directory instead of the system search path.

import (
	"os"
	"path/filepath"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

const libName = "libgdrapi.so"

var (
	loadOnce sync.Once
	loadErr  error

	gdrOpen             func() uintptr
	gdrClose            func(g uintptr) int32
	gdrPinBuffer        func(g uintptr, addr uintptr, size uint64, p2pToken uint64, vaSpace uint32, handle *uint64) int32
	gdrPinBufferV2      func(g uintptr, addr uintptr, size uint64, flags uint32, handle *uint64) int32
	gdrUnpinBuffer      func(g uintptr, handle uint64) int32
	gdrGetCallbackFlag  func(g uintptr, handle uint64, flag *int32) int32
	gdrGetInfoV2        func(g uintptr, handle uint64, info *infoRaw) int32
	gdrMap              func(g uintptr, handle uint64, va *uintptr, size uint64) int32
	gdrUnmap            func(g uintptr, handle uint64, va uintptr, size uint64) int32
	gdrCopyToMapping    func(handle uint64, mapDPtr uintptr, hPtr unsafe.Pointer, size uint64) int32
	gdrCopyFromMapping  func(handle uint64, hPtr unsafe.Pointer, mapDPtr uintptr, size uint64) int32
	gdrRuntimeGetVer    func(major, minor *int32)
	gdrDriverGetVersion func(g uintptr, major, minor *int32) int32
	gdrGetAttribute     func(g uintptr, attr int32, v *int32) int32
)

// infoRaw mirrors gdr_info_v2_t. The mapped and wc_mapping bitfields
// share one unsigned int; mapping_type follows.
type infoRaw struct {
	va          uint64
	mappedSize  uint64
	pageSize    uint32
	_           uint32
	tmCycles    uint64
	cyclesPerMs uint32
	flags       uint32
	mappingType int32
	_           uint32
}

// Load dlopens libgdrapi and resolves all entry points. It runs at most
// once; every driver operation calls it implicitly, but callers that
// want load failures reported at startup rather than first use should
// call it directly.
func Load() error {
	loadOnce.Do(func() {
		var lib uintptr
		if dir := os.Getenv("GDRCOPY_LIBRARY_PATH"); dir != "" {
			path := filepath.Join(dir, libName)
			lib, loadErr = purego.Dlopen(path, purego.RTLD_LAZY|purego.RTLD_GLOBAL)
			if loadErr != nil {
				loadErr = &LoadError{Path: path, Err: loadErr}
				return
			}
		} else {
			lib, loadErr = purego.Dlopen(libName+".2", purego.RTLD_LAZY|purego.RTLD_GLOBAL)
			if loadErr != nil {
				lib, loadErr = purego.Dlopen(libName, purego.RTLD_LAZY|purego.RTLD_GLOBAL)
				if loadErr != nil {
					loadErr = &LoadError{Path: libName, Err: loadErr}
					return
				}
			}
		}

		purego.RegisterLibFunc(&gdrOpen, lib, "gdr_open")
		purego.RegisterLibFunc(&gdrClose, lib, "gdr_close")
		purego.RegisterLibFunc(&gdrPinBuffer, lib, "gdr_pin_buffer")
		purego.RegisterLibFunc(&gdrPinBufferV2, lib, "gdr_pin_buffer_v2")
		purego.RegisterLibFunc(&gdrUnpinBuffer, lib, "gdr_unpin_buffer")
		purego.RegisterLibFunc(&gdrGetCallbackFlag, lib, "gdr_get_callback_flag")
		purego.RegisterLibFunc(&gdrGetInfoV2, lib, "gdr_get_info_v2")
		purego.RegisterLibFunc(&gdrMap, lib, "gdr_map")
		purego.RegisterLibFunc(&gdrUnmap, lib, "gdr_unmap")
		purego.RegisterLibFunc(&gdrCopyToMapping, lib, "gdr_copy_to_mapping")
		purego.RegisterLibFunc(&gdrCopyFromMapping, lib, "gdr_copy_from_mapping")
		purego.RegisterLibFunc(&gdrRuntimeGetVer, lib, "gdr_runtime_get_version")
		purego.RegisterLibFunc(&gdrDriverGetVersion, lib, "gdr_driver_get_version")
		purego.RegisterLibFunc(&gdrGetAttribute, lib, "gdr_get_attribute")
	})
	return loadErr
}

// gdrapi is the real Driver backed by libgdrapi.
type gdrapi struct{}

// Native returns the Driver backed by the system libgdrapi.
func Native() Driver {
	return gdrapi{}
}

func status(ret int32) error {
	if ret != 0 {
		return Errno(ret)
	}
	return nil
}

func (gdrapi) Open() (Ctx, error) {
	if err := Load(); err != nil {
		return 0, err
	}
	g := gdrOpen()
	if g == 0 {
		// gdr_open reports failure only through a NULL return.
		return 0, Errno(-1)
	}
	return Ctx(g), nil
}

func (gdrapi) Close(c Ctx) error {
	if err := Load(); err != nil {
		return err
	}
	return status(gdrClose(uintptr(c)))
}

func (gdrapi) Pin(c Ctx, addr uintptr, size uint64, p2pToken uint64, vaSpace uint32) (Handle, error) {
	if err := Load(); err != nil {
		return 0, err
	}
	var h uint64
	if err := status(gdrPinBuffer(uintptr(c), addr, size, p2pToken, vaSpace, &h)); err != nil {
		return 0, err
	}
	return Handle(h), nil
}

func (gdrapi) PinV2(c Ctx, addr uintptr, size uint64, flags PinFlags) (Handle, error) {
	if err := Load(); err != nil {
		return 0, err
	}
	var h uint64
	if err := status(gdrPinBufferV2(uintptr(c), addr, size, uint32(flags), &h)); err != nil {
		return 0, err
	}
	return Handle(h), nil
}

func (gdrapi) Unpin(c Ctx, h Handle) error {
	if err := Load(); err != nil {
		return err
	}
	return status(gdrUnpinBuffer(uintptr(c), uint64(h)))
}

func (gdrapi) GetInfo(c Ctx, h Handle) (Info, error) {
	if err := Load(); err != nil {
		return Info{}, err
	}
	var raw infoRaw
	if err := status(gdrGetInfoV2(uintptr(c), uint64(h), &raw)); err != nil {
		return Info{}, err
	}
	return Info{
		VA:          raw.va,
		MappedSize:  raw.mappedSize,
		PageSize:    raw.pageSize,
		TmCycles:    raw.tmCycles,
		CyclesPerMs: raw.cyclesPerMs,
		Mapped:      raw.flags&0x1 != 0,
		WCMapping:   raw.flags&0x2 != 0,
		MappingType: MappingType(raw.mappingType),
	}, nil
}

func (gdrapi) Map(c Ctx, h Handle, size uint64) (uintptr, error) {
	if err := Load(); err != nil {
		return 0, err
	}
	var va uintptr
	if err := status(gdrMap(uintptr(c), uint64(h), &va, size)); err != nil {
		return 0, err
	}
	return va, nil
}

func (gdrapi) Unmap(c Ctx, h Handle, va uintptr, size uint64) error {
	if err := Load(); err != nil {
		return err
	}
	return status(gdrUnmap(uintptr(c), uint64(h), va, size))
}

func (gdrapi) CopyToMapping(h Handle, mapPtr uintptr, src unsafe.Pointer, size uint64) error {
	if err := Load(); err != nil {
		return err
	}
	return status(gdrCopyToMapping(uint64(h), mapPtr, src, size))
}

func (gdrapi) CopyFromMapping(h Handle, dst unsafe.Pointer, mapPtr uintptr, size uint64) error {
	if err := Load(); err != nil {
		return err
	}
	return status(gdrCopyFromMapping(uint64(h), dst, mapPtr, size))
}

func (gdrapi) GetCallbackFlag(c Ctx, h Handle) (bool, error) {
	if err := Load(); err != nil {
		return false, err
	}
	var flag int32
	if err := status(gdrGetCallbackFlag(uintptr(c), uint64(h), &flag)); err != nil {
		return false, err
	}
	return flag != 0, nil
}

func (gdrapi) RuntimeVersion() (int, int) {
	if err := Load(); err != nil {
		return 0, 0
	}
	var major, minor int32
	gdrRuntimeGetVer(&major, &minor)
	return int(major), int(minor)
}

func (gdrapi) DriverVersion(c Ctx) (int, int, error) {
	if err := Load(); err != nil {
		return 0, 0, err
	}
	var major, minor int32
	if err := status(gdrDriverGetVersion(uintptr(c), &major, &minor)); err != nil {
		return 0, 0, err
	}
	return int(major), int(minor), nil
}

func (gdrapi) Attribute(c Ctx, attr Attr) (int, error) {
	if err := Load(); err != nil {
		return 0, err
	}
	var v int32
	if err := status(gdrGetAttribute(uintptr(c), int32(attr), &v)); err != nil {
		return 0, err
	}
	return int(v), nil
}

var _ Driver = gdrapi{}

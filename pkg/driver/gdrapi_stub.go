//go:build !linux

package driver

import (
	"errors"
	"unsafe"
)

// GDRCopy requires the gdrdrv kernel module; there is nothing to load
// on other platforms.

var errUnsupported = &LoadError{Path: libName, Err: errors.New("gdrcopy requires linux")}

const libName = "libgdrapi.so"

// Load reports that the native library is unavailable on this platform.
func Load() error {
	return errUnsupported
}

type gdrapi struct{}

// Native returns the Driver backed by the system libgdrapi. On
// non-linux platforms every operation fails with a LoadError.
func Native() Driver {
	return gdrapi{}
}

func (gdrapi) Open() (Ctx, error)      { return 0, errUnsupported }
func (gdrapi) Close(Ctx) error         { return errUnsupported }
func (gdrapi) Unpin(Ctx, Handle) error { return errUnsupported }

func (gdrapi) Pin(Ctx, uintptr, uint64, uint64, uint32) (Handle, error) {
	return 0, errUnsupported
}

func (gdrapi) PinV2(Ctx, uintptr, uint64, PinFlags) (Handle, error) {
	return 0, errUnsupported
}

func (gdrapi) GetInfo(Ctx, Handle) (Info, error) { return Info{}, errUnsupported }

func (gdrapi) Map(Ctx, Handle, uint64) (uintptr, error) { return 0, errUnsupported }

func (gdrapi) Unmap(Ctx, Handle, uintptr, uint64) error { return errUnsupported }

func (gdrapi) CopyToMapping(Handle, uintptr, unsafe.Pointer, uint64) error {
	return errUnsupported
}

func (gdrapi) CopyFromMapping(Handle, unsafe.Pointer, uintptr, uint64) error {
	return errUnsupported
}

func (gdrapi) GetCallbackFlag(Ctx, Handle) (bool, error) { return false, errUnsupported }

func (gdrapi) RuntimeVersion() (int, int) { return 0, 0 }

func (gdrapi) DriverVersion(Ctx) (int, int, error) { return 0, 0, errUnsupported }

func (gdrapi) Attribute(Ctx, Attr) (int, error) { return 0, errUnsupported }

var _ Driver = gdrapi{}

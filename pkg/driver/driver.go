// Package driver exposes the GDRCopy native operation set (libgdrapi)
// behind a narrow interface so the core can run against either the real
// library or an in-process mock.
package driver

import (
	"fmt"
	"unsafe"
)

// Ctx is an opaque driver context as returned by gdr_open.
type Ctx uintptr

// Handle is an opaque pin-handle token (gdr_mh_t). It identifies one
// pinned GPU memory range and is meaningless once unpinned.
type Handle uint64

// MappingType describes how a range is mapped into host memory.
// Values match gdr_mapping_type_t.
type MappingType int

const (
	MappingNone          MappingType = 0
	MappingWriteCombined MappingType = 1
	MappingCaching       MappingType = 2
	MappingDevice        MappingType = 3
)

// String returns the gdrapi name for the mapping type.
func (t MappingType) String() string {
	switch t {
	case MappingNone:
		return "NONE"
	case MappingWriteCombined:
		return "WC"
	case MappingCaching:
		return "CACHING"
	case MappingDevice:
		return "DEVICE"
	}
	return fmt.Sprintf("MappingType(%d)", int(t))
}

// PinFlags select the pinning strategy for the flags-based pin variant.
type PinFlags uint32

const (
	PinDefault   PinFlags = 0
	PinForcePCIe PinFlags = 1
)

// Attr identifies a driver capability flag (gdr_attr_t).
type Attr int

const (
	AttrUsePersistentMapping    Attr = 1
	AttrSupportPinFlagForcePCIe Attr = 2
)

// PageSizeClass buckets the mapping page size reported by the driver.
type PageSizeClass int

const (
	Page4K  PageSizeClass = iota // host 4 KiB pages
	Page64K                      // GPU BAR 64 KiB pages
	Page2M                       // huge pages
)

func (c PageSizeClass) String() string {
	switch c {
	case Page4K:
		return "4K"
	case Page64K:
		return "64K"
	case Page2M:
		return "2M"
	}
	return fmt.Sprintf("PageSizeClass(%d)", int(c))
}

// Info is the mapping metadata snapshot for one pinned range
// (gdr_info_v2_t).
type Info struct {
	VA          uint64 // GPU virtual address of the pinned range
	MappedSize  uint64
	PageSize    uint32
	TmCycles    uint64
	CyclesPerMs uint32
	Mapped      bool
	WCMapping   bool
	MappingType MappingType
}

// PageSizeClass classifies Info.PageSize.
func (i Info) PageSizeClass() PageSizeClass {
	switch {
	case i.PageSize >= 2<<20:
		return Page2M
	case i.PageSize >= 64<<10:
		return Page64K
	}
	return Page4K
}

// Errno is a non-zero status code returned by a native gdrapi call.
type Errno int

func (e Errno) Error() string {
	return fmt.Sprintf("gdrapi error code %d", int(e))
}

// LoadError reports that the native library could not be located or
// loaded. It is fatal: no driver operation can succeed afterwards.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Driver is the native operation set. Implementations are not safe for
// concurrent use on the same Ctx or Handle; callers serialize.
type Driver interface {
	// Open acquires a driver context.
	Open() (Ctx, error)

	// Close releases a driver context.
	Close(c Ctx) error

	// Pin pins the GPU byte range [addr, addr+size). The p2pToken and
	// vaSpace parameters are deprecated; callers pass zero.
	Pin(c Ctx, addr uintptr, size uint64, p2pToken uint64, vaSpace uint32) (Handle, error)

	// PinV2 pins the GPU byte range [addr, addr+size) with the
	// flags-based variant.
	PinV2(c Ctx, addr uintptr, size uint64, flags PinFlags) (Handle, error)

	// Unpin releases a pinned range. The handle is invalid afterwards.
	Unpin(c Ctx, h Handle) error

	// GetInfo queries current mapping metadata for a pinned range.
	GetInfo(c Ctx, h Handle) (Info, error)

	// Map maps a pinned range into host virtual address space and
	// returns the host virtual address.
	Map(c Ctx, h Handle, size uint64) (uintptr, error)

	// Unmap tears down a host mapping previously returned by Map.
	Unmap(c Ctx, h Handle, va uintptr, size uint64) error

	// CopyToMapping copies size bytes from host memory at src into the
	// mapping at mapPtr. Either all bytes are copied or an error is
	// returned; size beyond the mapped extent is rejected.
	CopyToMapping(h Handle, mapPtr uintptr, src unsafe.Pointer, size uint64) error

	// CopyFromMapping copies size bytes from the mapping at mapPtr into
	// host memory at dst.
	CopyFromMapping(h Handle, dst unsafe.Pointer, mapPtr uintptr, size uint64) error

	// GetCallbackFlag reports whether the driver invalidation callback
	// fired for this pin (GPU memory freed or moved under it).
	GetCallbackFlag(c Ctx, h Handle) (bool, error)

	// RuntimeVersion returns the library version. No context required.
	RuntimeVersion() (major, minor int)

	// DriverVersion returns the kernel driver version.
	DriverVersion(c Ctx) (major, minor int, err error)

	// Attribute queries a capability flag.
	Attribute(c Ctx, attr Attr) (int, error)
}

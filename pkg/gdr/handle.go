package gdr

import (
	"unsafe"

	"github.com/kabu1204/gdrcopy/pkg/driver"
)

// BufferHandle represents one pinned GPU memory range. A handle moves
// through three states: pinned (initial), mapped (after Map), and
// unpinned (terminal, after Unpin). At most one host mapping is live at
// any time.
type BufferHandle struct {
	owner   *Context
	token   driver.Handle
	pinned  bool
	mapAddr uintptr
	mapSize uint64
	info    *driver.Info
}

// Valid reports whether the handle has not been unpinned.
func (h *BufferHandle) Valid() bool { return h.pinned }

// Mapped reports whether a host mapping is live.
func (h *BufferHandle) Mapped() bool { return h.pinned && h.mapSize != 0 }

// Info returns mapping metadata for the pinned range. The result is
// cached until the next Map or Unmap, which change the fields the
// driver reports.
func (h *BufferHandle) Info() (driver.Info, error) {
	if !h.pinned {
		return driver.Info{}, errInvalidHandle("get_info")
	}
	if h.info != nil {
		return *h.info, nil
	}
	info, err := h.owner.drv.GetInfo(h.owner.ctx, h.token)
	if err != nil {
		return driver.Info{}, wrapDriver("get_info", err)
	}
	h.info = &info
	return info, nil
}

// Map maps the pinned range into host virtual address space and returns
// the host virtual address. Fails with ErrAlreadyMapped while a mapping
// is live.
func (h *BufferHandle) Map(size uint64) (uintptr, error) {
	if !h.pinned {
		return 0, errInvalidHandle("map")
	}
	if h.mapSize != 0 {
		return 0, ErrAlreadyMapped
	}
	va, err := h.owner.drv.Map(h.owner.ctx, h.token, size)
	if err != nil {
		return 0, wrapDriver("map", err)
	}
	h.mapAddr = va
	h.mapSize = size
	h.info = nil
	return va, nil
}

// Unmap tears down the host mapping. It is a no-op without a live
// mapping, so cleanup paths may call it unconditionally. The mapping
// record is cleared even when the driver call fails; a broken mapping
// must not wedge the handle.
func (h *BufferHandle) Unmap() error {
	if !h.pinned || h.mapSize == 0 {
		return nil
	}
	va, size := h.mapAddr, h.mapSize
	h.mapAddr = 0
	h.mapSize = 0
	h.info = nil
	if err := h.owner.drv.Unmap(h.owner.ctx, h.token, va, size); err != nil {
		return wrapDriver("unmap", err)
	}
	return nil
}

// Unpin releases the pinned range, unmapping first if a mapping is
// still live so no mapping survives the pin. It is a no-op on an
// already-unpinned handle; the second call performs no driver
// operation. The pin token is invalidated even when the driver call
// fails.
func (h *BufferHandle) Unpin() error {
	if !h.pinned {
		return nil
	}
	if err := h.Unmap(); err != nil {
		h.owner.log.WithError(err).Warn("gdr: unmap before unpin failed")
	}
	h.pinned = false
	delete(h.owner.handles, h)
	if err := h.owner.drv.Unpin(h.owner.ctx, h.token); err != nil {
		return wrapDriver("unpin", err)
	}
	return nil
}

// CopyToMapping copies src into the start of the mapped range. The
// copy is all-or-nothing: a length beyond the mapped size is rejected
// by the driver and nothing is written.
func (h *BufferHandle) CopyToMapping(src []byte) error {
	return h.CopyToMappingAt(src, 0)
}

// CopyToMappingAt copies src into the mapped range starting at offset.
func (h *BufferHandle) CopyToMappingAt(src []byte, offset uint64) error {
	if !h.Mapped() {
		return ErrNotMapped
	}
	if len(src) == 0 {
		return nil
	}
	err := h.owner.drv.CopyToMapping(h.token, h.mapAddr+uintptr(offset),
		unsafe.Pointer(&src[0]), uint64(len(src)))
	return wrapDriver("copy_to_mapping", err)
}

// CopyFromMapping fills dst from the start of the mapped range.
func (h *BufferHandle) CopyFromMapping(dst []byte) error {
	return h.CopyFromMappingAt(dst, 0)
}

// CopyFromMappingAt fills dst from the mapped range starting at offset.
func (h *BufferHandle) CopyFromMappingAt(dst []byte, offset uint64) error {
	if !h.Mapped() {
		return ErrNotMapped
	}
	if len(dst) == 0 {
		return nil
	}
	err := h.owner.drv.CopyFromMapping(h.token, unsafe.Pointer(&dst[0]),
		h.mapAddr+uintptr(offset), uint64(len(dst)))
	return wrapDriver("copy_from_mapping", err)
}

// Bytes returns the live mapping as a byte slice, or nil when no
// mapping is live. Writes through the slice go straight to GPU memory;
// prefer CopyToMapping for bulk writes on write-combined mappings.
func (h *BufferHandle) Bytes() []byte {
	if !h.Mapped() {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(h.mapAddr)), h.mapSize)
}

// CallbackFlag reports whether the driver invalidation callback fired
// for this pin, meaning the GPU memory was freed or moved while pinned.
func (h *BufferHandle) CallbackFlag() (bool, error) {
	if !h.pinned {
		return false, errInvalidHandle("get_callback_flag")
	}
	fired, err := h.owner.drv.GetCallbackFlag(h.owner.ctx, h.token)
	if err != nil {
		return false, wrapDriver("get_callback_flag", err)
	}
	return fired, nil
}

// release force-releases the handle during owner teardown. Secondary
// errors are logged, never raised into the caller's unwind.
func (h *BufferHandle) release() {
	if !h.pinned {
		return
	}
	if err := h.Unmap(); err != nil {
		h.owner.log.WithError(err).Warn("gdr: unmap during context close failed")
	}
	h.pinned = false
	if err := h.owner.drv.Unpin(h.owner.ctx, h.token); err != nil {
		h.owner.log.WithError(err).Warn("gdr: unpin during context close failed")
	}
}

// Package gdr provides pinned GPU memory mapping on top of the GDRCopy
// driver: pin a device address range, map it into host virtual address
// space, and move bytes through the mapping with plain memory copies
// instead of DMA transfers.
//
// The package is synchronous and not safe for concurrent use on the
// same Context or BufferHandle; callers serialize access, typically by
// keeping one Context per goroutine.
package gdr

import "github.com/kabu1204/gdrcopy/pkg/driver"

// RuntimeVersion returns the (major, minor) version of the loaded
// libgdrapi. It needs no open context. Both values are zero when the
// library cannot be loaded.
func RuntimeVersion() (major, minor int) {
	return driver.Native().RuntimeVersion()
}

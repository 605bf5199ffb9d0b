// Package hostmem provides a pool of page-aligned host staging buffers
// for copies through GPU memory mappings. On unix builds buffers come
// from anonymous mmap so they start on a page boundary; elsewhere the
// pool falls back to heap slices.
package hostmem

import "errors"

var (
	ErrPoolExhausted = errors.New("host memory pool exhausted")
	ErrPoolClosed    = errors.New("host memory pool closed")
)

// PoolStats contains pool statistics.
type PoolStats struct {
	MaxSize     int64
	CurrentSize int64
	BufferCount int
	FreeCount   int
}

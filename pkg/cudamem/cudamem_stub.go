//go:build !cuda

// Package cudamem allocates CUDA device memory for tools and examples
// that need a real GPU pointer to pin. Build with -tags cuda; without
// the tag every call reports ErrNotAvailable.
package cudamem

import "errors"

// ErrNotAvailable is returned when the binary was built without CUDA
// support.
var ErrNotAvailable = errors.New("cuda support not compiled in (build with -tags cuda)")

// Available reports whether CUDA support is compiled in.
func Available() bool { return false }

// Alloc allocates device memory.
func Alloc(size int) (uintptr, error) { return 0, ErrNotAvailable }

// Free releases device memory.
func Free(ptr uintptr) error { return ErrNotAvailable }

// Memset fills device memory with value.
func Memset(ptr uintptr, value byte, size int) error { return ErrNotAvailable }

// CopyToDevice copies src into device memory at dst.
func CopyToDevice(dst uintptr, src []byte) error { return ErrNotAvailable }

// CopyFromDevice fills dst from device memory at src.
func CopyFromDevice(dst []byte, src uintptr) error { return ErrNotAvailable }

// MemInfo returns free and total device memory in bytes.
func MemInfo() (free, total int64, err error) { return 0, 0, ErrNotAvailable }

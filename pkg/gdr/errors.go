package gdr

import (
	"errors"
	"fmt"

	"github.com/kabu1204/gdrcopy/pkg/driver"
)

var (
	ErrNotOpen       = errors.New("gdr: context not open")
	ErrAlreadyOpen   = errors.New("gdr: context already open")
	ErrNotMapped     = errors.New("gdr: buffer not mapped")
	ErrAlreadyMapped = errors.New("gdr: buffer already mapped")
)

// DriverError reports a native gdrapi call that returned a non-success
// status. Op names the failing operation; Code is the raw status.
type DriverError struct {
	Op   string
	Code driver.Errno
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("gdr: %s failed: %v", e.Op, e.Code)
}

func (e *DriverError) Unwrap() error { return e.Code }

// wrapDriver converts a native status into a DriverError. Load errors
// pass through unchanged so callers can detect the fatal case.
func wrapDriver(op string, err error) error {
	if err == nil {
		return nil
	}
	var code driver.Errno
	if errors.As(err, &code) {
		return &DriverError{Op: op, Code: code}
	}
	return err
}

// errInvalidHandle is returned for operations on an unpinned handle.
// The native driver would reject the stale token the same way.
func errInvalidHandle(op string) error {
	return &DriverError{Op: op, Code: driver.ErrnoInvalid}
}

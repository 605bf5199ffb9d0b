package gdr

import (
	"github.com/sirupsen/logrus"

	"github.com/kabu1204/gdrcopy/pkg/driver"
)

// Context owns one connection to the GDRCopy driver and is the root of
// all pin/map resource allocation. It is created closed; Open must
// succeed before any other operation.
type Context struct {
	drv     driver.Driver
	ctx     driver.Ctx
	open    bool
	handles map[*BufferHandle]struct{}
	log     *logrus.Logger
}

// Option configures a Context.
type Option func(*Context)

// WithDriver replaces the native driver, e.g. with driver.NewMock()
// for tests.
func WithDriver(d driver.Driver) Option {
	return func(c *Context) { c.drv = d }
}

// WithLogger sets the logger used for teardown-path warnings.
func WithLogger(l *logrus.Logger) Option {
	return func(c *Context) { c.log = l }
}

// New creates a closed Context backed by the native driver unless
// overridden.
func New(opts ...Option) *Context {
	c := &Context{
		drv:     driver.Native(),
		handles: make(map[*BufferHandle]struct{}),
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open acquires a driver context. It fails with ErrAlreadyOpen when the
// context is already open.
func (c *Context) Open() error {
	if c.open {
		return ErrAlreadyOpen
	}
	g, err := c.drv.Open()
	if err != nil {
		return wrapDriver("open", err)
	}
	c.ctx = g
	c.open = true
	return nil
}

// Close releases the driver context. It is a no-op on a closed context.
// Live handles are force-released first (unmapped and unpinned, errors
// logged) so no handle survives its owner. A failure from the driver
// close is returned, but the context is considered closed regardless.
func (c *Context) Close() error {
	if !c.open {
		return nil
	}
	for h := range c.handles {
		h.release()
	}
	c.handles = make(map[*BufferHandle]struct{})

	ctx := c.ctx
	c.ctx = 0
	c.open = false
	if err := c.drv.Close(ctx); err != nil {
		return wrapDriver("close", err)
	}
	return nil
}

// IsOpen reports whether the context holds a driver connection.
func (c *Context) IsOpen() bool { return c.open }

// Pin pins the GPU byte range [addr, addr+size) and returns a handle in
// the Pinned state. Fails with ErrNotOpen on a closed context.
func (c *Context) Pin(addr uintptr, size uint64, flags driver.PinFlags) (*BufferHandle, error) {
	if !c.open {
		return nil, ErrNotOpen
	}
	tok, err := c.drv.PinV2(c.ctx, addr, size, flags)
	if err != nil {
		return nil, wrapDriver("pin", err)
	}
	return c.adopt(tok), nil
}

// PinLegacy pins through the legacy entry point that accepts a
// peer-to-peer token and virtual-address-space selector.
//
// Deprecated: both extra parameters are deprecated at the driver level;
// use Pin, or pass zeros here.
func (c *Context) PinLegacy(addr uintptr, size uint64, p2pToken uint64, vaSpace uint32) (*BufferHandle, error) {
	if !c.open {
		return nil, ErrNotOpen
	}
	tok, err := c.drv.Pin(c.ctx, addr, size, p2pToken, vaSpace)
	if err != nil {
		return nil, wrapDriver("pin", err)
	}
	return c.adopt(tok), nil
}

// adopt registers a freshly pinned token as a live handle.
func (c *Context) adopt(tok driver.Handle) *BufferHandle {
	h := &BufferHandle{owner: c, token: tok, pinned: true}
	c.handles[h] = struct{}{}
	return h
}

// Attribute queries a driver capability flag.
func (c *Context) Attribute(attr driver.Attr) (int, error) {
	if !c.open {
		return 0, ErrNotOpen
	}
	v, err := c.drv.Attribute(c.ctx, attr)
	if err != nil {
		return 0, wrapDriver("get_attribute", err)
	}
	return v, nil
}

// DriverVersion returns the kernel driver (major, minor) version.
func (c *Context) DriverVersion() (major, minor int, err error) {
	if !c.open {
		return 0, 0, ErrNotOpen
	}
	major, minor, err = c.drv.DriverVersion(c.ctx)
	if err != nil {
		return 0, 0, wrapDriver("get_driver_version", err)
	}
	return major, minor, nil
}

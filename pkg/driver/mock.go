package driver

import (
	"sync"
	"unsafe"
)

// Mock call-site names, as used by Calls and FailNext.
const (
	OpOpen            = "open"
	OpClose           = "close"
	OpPin             = "pin"
	OpPinV2           = "pin_v2"
	OpUnpin           = "unpin"
	OpGetInfo         = "get_info"
	OpMap             = "map"
	OpUnmap           = "unmap"
	OpCopyToMapping   = "copy_to_mapping"
	OpCopyFromMapping = "copy_from_mapping"
	OpGetCallbackFlag = "get_callback_flag"
	OpDriverVersion   = "driver_version"
	OpAttribute       = "attribute"
)

// EINVAL-equivalent status the mock returns for malformed requests.
const ErrnoInvalid = Errno(22)

// MockPageSize is the page size the mock reports. Real gdrcopy maps in
// GPU BAR pages of 64 KiB.
const MockPageSize = 64 << 10

// Mock implements Driver without a GPU. Each pin gets a simulated
// device memory window; mapping exposes that window at a real host
// address so copies through the mock move actual bytes. The mock
// counts calls per operation and supports one-shot error injection, so
// tests can verify idempotence and leak-freedom.
type Mock struct {
	mu         sync.Mutex
	nextCtx    Ctx
	nextHandle Handle
	ctxs       map[Ctx]bool
	pins       map[Handle]*mockPin
	calls      map[string]int
	failNext   map[string]Errno
	attrs      map[Attr]int
}

type mockPin struct {
	ctx      Ctx
	addr     uintptr
	size     uint64
	flags    PinFlags
	backing  []byte // simulated device memory, len == size
	mapSize  uint64 // 0 when unmapped
	callback bool
}

// NewMock creates a mock driver with no open contexts.
func NewMock() *Mock {
	return &Mock{
		nextCtx:    1,
		nextHandle: 1,
		ctxs:       make(map[Ctx]bool),
		pins:       make(map[Handle]*mockPin),
		calls:      make(map[string]int),
		failNext:   make(map[string]Errno),
		attrs: map[Attr]int{
			AttrUsePersistentMapping:    1,
			AttrSupportPinFlagForcePCIe: 1,
		},
	}
}

// Calls returns how many times the named operation reached the mock.
func (m *Mock) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// FailNext makes the next invocation of op fail with the given status.
func (m *Mock) FailNext(op string, code Errno) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext[op] = code
}

// SetAttribute overrides the value reported for a capability flag.
func (m *Mock) SetAttribute(attr Attr, v int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attrs[attr] = v
}

// SetCallbackFlag marks the pin as invalidated by the driver callback.
func (m *Mock) SetCallbackFlag(h Handle, fired bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pins[h]; ok {
		p.callback = fired
	}
}

// SetDeviceData seeds the simulated device memory behind a pin.
func (m *Mock) SetDeviceData(h Handle, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pins[h]; ok {
		copy(p.backing, data)
	}
}

// DeviceData returns a copy of the simulated device memory behind a pin.
func (m *Mock) DeviceData(h Handle) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pins[h]
	if !ok {
		return nil
	}
	return append([]byte(nil), p.backing...)
}

// LivePins returns the number of pins not yet unpinned.
func (m *Mock) LivePins() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pins)
}

// enter counts the call and pops any injected failure. Must hold mu.
func (m *Mock) enter(op string) error {
	m.calls[op]++
	if code, ok := m.failNext[op]; ok {
		delete(m.failNext, op)
		return code
	}
	return nil
}

func (m *Mock) Open() (Ctx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpOpen); err != nil {
		return 0, err
	}
	c := m.nextCtx
	m.nextCtx++
	m.ctxs[c] = true
	return c, nil
}

func (m *Mock) Close(c Ctx) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpClose); err != nil {
		return err
	}
	if !m.ctxs[c] {
		return ErrnoInvalid
	}
	delete(m.ctxs, c)
	return nil
}

func (m *Mock) Pin(c Ctx, addr uintptr, size uint64, p2pToken uint64, vaSpace uint32) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpPin); err != nil {
		return 0, err
	}
	return m.pinLocked(c, addr, size, PinDefault)
}

func (m *Mock) PinV2(c Ctx, addr uintptr, size uint64, flags PinFlags) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpPinV2); err != nil {
		return 0, err
	}
	return m.pinLocked(c, addr, size, flags)
}

// pinLocked allocates the simulated device window. Must hold mu.
func (m *Mock) pinLocked(c Ctx, addr uintptr, size uint64, flags PinFlags) (Handle, error) {
	if !m.ctxs[c] || size == 0 {
		return 0, ErrnoInvalid
	}
	h := m.nextHandle
	m.nextHandle++
	m.pins[h] = &mockPin{
		ctx:     c,
		addr:    addr,
		size:    size,
		flags:   flags,
		backing: make([]byte, size),
	}
	return h, nil
}

func (m *Mock) Unpin(c Ctx, h Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpUnpin); err != nil {
		return err
	}
	p, ok := m.pins[h]
	if !ok || p.ctx != c {
		return ErrnoInvalid
	}
	delete(m.pins, h)
	return nil
}

func (m *Mock) GetInfo(c Ctx, h Handle) (Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpGetInfo); err != nil {
		return Info{}, err
	}
	p, ok := m.pins[h]
	if !ok || p.ctx != c {
		return Info{}, ErrnoInvalid
	}
	info := Info{
		VA:       uint64(p.addr),
		PageSize: MockPageSize,
	}
	if p.mapSize > 0 {
		info.Mapped = true
		info.MappedSize = p.mapSize
		info.WCMapping = true
		info.MappingType = MappingWriteCombined
	}
	return info, nil
}

func (m *Mock) Map(c Ctx, h Handle, size uint64) (uintptr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpMap); err != nil {
		return 0, err
	}
	p, ok := m.pins[h]
	if !ok || p.ctx != c || size == 0 || size > p.size || p.mapSize > 0 {
		return 0, ErrnoInvalid
	}
	p.mapSize = size
	// The mapping is the device window itself, so host copies through
	// it are visible via DeviceData.
	return uintptr(unsafe.Pointer(&p.backing[0])), nil
}

func (m *Mock) Unmap(c Ctx, h Handle, va uintptr, size uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpUnmap); err != nil {
		return err
	}
	p, ok := m.pins[h]
	if !ok || p.ctx != c || p.mapSize == 0 {
		return ErrnoInvalid
	}
	if va != uintptr(unsafe.Pointer(&p.backing[0])) || size != p.mapSize {
		return ErrnoInvalid
	}
	p.mapSize = 0
	return nil
}

func (m *Mock) CopyToMapping(h Handle, mapPtr uintptr, src unsafe.Pointer, size uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpCopyToMapping); err != nil {
		return err
	}
	dst, err := m.mappedRange(h, mapPtr, size)
	if err != nil {
		return err
	}
	copy(dst, unsafe.Slice((*byte)(src), size))
	return nil
}

func (m *Mock) CopyFromMapping(h Handle, dst unsafe.Pointer, mapPtr uintptr, size uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpCopyFromMapping); err != nil {
		return err
	}
	src, err := m.mappedRange(h, mapPtr, size)
	if err != nil {
		return err
	}
	copy(unsafe.Slice((*byte)(dst), size), src)
	return nil
}

// mappedRange validates [mapPtr, mapPtr+size) against the live mapping
// and returns the backing window. Must hold mu.
func (m *Mock) mappedRange(h Handle, mapPtr uintptr, size uint64) ([]byte, error) {
	p, ok := m.pins[h]
	if !ok || p.mapSize == 0 {
		return nil, ErrnoInvalid
	}
	base := uintptr(unsafe.Pointer(&p.backing[0]))
	if mapPtr < base {
		return nil, ErrnoInvalid
	}
	off := uint64(mapPtr - base)
	if off+size > p.mapSize {
		return nil, ErrnoInvalid
	}
	return p.backing[off : off+size], nil
}

func (m *Mock) GetCallbackFlag(c Ctx, h Handle) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpGetCallbackFlag); err != nil {
		return false, err
	}
	p, ok := m.pins[h]
	if !ok || p.ctx != c {
		return false, ErrnoInvalid
	}
	return p.callback, nil
}

func (m *Mock) RuntimeVersion() (int, int) {
	return 2, 4
}

func (m *Mock) DriverVersion(c Ctx) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpDriverVersion); err != nil {
		return 0, 0, err
	}
	if !m.ctxs[c] {
		return 0, 0, ErrnoInvalid
	}
	return 2, 4, nil
}

func (m *Mock) Attribute(c Ctx, attr Attr) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpAttribute); err != nil {
		return 0, err
	}
	if !m.ctxs[c] {
		return 0, ErrnoInvalid
	}
	v, ok := m.attrs[attr]
	if !ok {
		return 0, ErrnoInvalid
	}
	return v, nil
}

// Verify interface compliance.
var _ Driver = (*Mock)(nil)

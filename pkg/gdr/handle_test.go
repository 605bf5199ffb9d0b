package gdr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kabu1204/gdrcopy/pkg/driver"
)

func TestHandle_FullLifecycle(t *testing.T) {
	c, _ := newTestContext(t)

	h, err := c.Pin(0x1000, 4096, driver.PinDefault)
	require.NoError(t, err)

	info, err := h.Info()
	require.NoError(t, err)
	assert.False(t, info.Mapped)

	va, err := h.Map(4096)
	require.NoError(t, err)
	assert.NotZero(t, va)

	// Info must reflect the new mapping, not a stale pre-map snapshot.
	info, err = h.Info()
	require.NoError(t, err)
	assert.True(t, info.Mapped)
	assert.Equal(t, uint64(4096), info.MappedSize)

	require.NoError(t, h.Unmap())
	require.NoError(t, h.Unpin())
	require.NoError(t, c.Close())
}

func TestHandle_PinUnpinLeavesNoResources(t *testing.T) {
	c, m := newTestContext(t)
	defer c.Close()

	h, err := c.Pin(0x1000, 4096, driver.PinDefault)
	require.NoError(t, err)
	require.NoError(t, h.Unpin())

	assert.Equal(t, 0, m.LivePins())
	assert.Equal(t, m.Calls(driver.OpPinV2), m.Calls(driver.OpUnpin))
}

func TestHandle_MapWhileMapped(t *testing.T) {
	c, _ := newTestContext(t)
	defer c.Close()

	h, err := c.Pin(0x1000, 4096, driver.PinDefault)
	require.NoError(t, err)

	_, err = h.Map(4096)
	require.NoError(t, err)

	// Retrying never helps until Unmap.
	for i := 0; i < 3; i++ {
		_, err = h.Map(4096)
		assert.ErrorIs(t, err, ErrAlreadyMapped)
	}

	require.NoError(t, h.Unmap())
	_, err = h.Map(4096)
	assert.NoError(t, err)
}

func TestHandle_UnmapIdempotent(t *testing.T) {
	c, m := newTestContext(t)
	defer c.Close()

	h, err := c.Pin(0x1000, 4096, driver.PinDefault)
	require.NoError(t, err)

	// Never mapped: no error, no driver call.
	require.NoError(t, h.Unmap())
	assert.Equal(t, 0, m.Calls(driver.OpUnmap))

	_, err = h.Map(4096)
	require.NoError(t, err)

	require.NoError(t, h.Unmap())
	require.NoError(t, h.Unmap())
	assert.Equal(t, 1, m.Calls(driver.OpUnmap))
}

func TestHandle_UnpinIdempotent(t *testing.T) {
	c, m := newTestContext(t)
	defer c.Close()

	h, err := c.Pin(0x1000, 4096, driver.PinDefault)
	require.NoError(t, err)

	require.NoError(t, h.Unpin())
	require.NoError(t, h.Unpin())

	// The second call performs no driver operation.
	assert.Equal(t, 1, m.Calls(driver.OpUnpin))
	assert.False(t, h.Valid())
}

func TestHandle_UnpinWhileMapped(t *testing.T) {
	c, m := newTestContext(t)
	defer c.Close()

	h, err := c.Pin(0x1000, 4096, driver.PinDefault)
	require.NoError(t, err)
	_, err = h.Map(4096)
	require.NoError(t, err)

	// Unpin forces the unmap; no mapping survives the pin.
	require.NoError(t, h.Unpin())
	assert.Equal(t, 1, m.Calls(driver.OpUnmap))
	assert.Equal(t, 0, m.LivePins())
}

func TestHandle_UnmapFailureClearsMapping(t *testing.T) {
	c, m := newTestContext(t)
	defer c.Close()

	h, err := c.Pin(0x1000, 4096, driver.PinDefault)
	require.NoError(t, err)
	_, err = h.Map(4096)
	require.NoError(t, err)

	m.FailNext(driver.OpUnmap, driver.Errno(5))
	err = h.Unmap()
	var derr *DriverError
	require.ErrorAs(t, err, &derr)

	// The record is cleared even though the driver failed, so the
	// handle does not get stuck repeating broken unmaps.
	assert.False(t, h.Mapped())
	require.NoError(t, h.Unmap())
	assert.Equal(t, 1, m.Calls(driver.OpUnmap))
}

func TestHandle_RoundTrip(t *testing.T) {
	c, _ := newTestContext(t)
	defer c.Close()

	h, err := c.Pin(0x1000, 4096, driver.PinDefault)
	require.NoError(t, err)
	_, err = h.Map(4096)
	require.NoError(t, err)

	pattern := make([]byte, 4096)
	for i := range pattern {
		pattern[i] = byte(i * 7)
	}
	require.NoError(t, h.CopyToMapping(pattern))

	got := make([]byte, 4096)
	require.NoError(t, h.CopyFromMapping(got))
	assert.Equal(t, pattern, got)
}

func TestHandle_RoundTripAtOffset(t *testing.T) {
	c, m := newTestContext(t)
	defer c.Close()

	h, err := c.Pin(0x1000, 65536, driver.PinDefault)
	require.NoError(t, err)
	_, err = h.Map(65536)
	require.NoError(t, err)

	chunk := []byte("offset chunk")
	require.NoError(t, h.CopyToMappingAt(chunk, 4096))

	got := make([]byte, len(chunk))
	require.NoError(t, h.CopyFromMappingAt(got, 4096))
	assert.Equal(t, chunk, got)

	// The bytes landed at the right device offset.
	dev := m.DeviceData(1)
	assert.Equal(t, chunk, dev[4096:4096+len(chunk)])
}

func TestHandle_CopyRequiresMapping(t *testing.T) {
	c, _ := newTestContext(t)
	defer c.Close()

	h, err := c.Pin(0x1000, 4096, driver.PinDefault)
	require.NoError(t, err)

	buf := make([]byte, 16)
	assert.ErrorIs(t, h.CopyToMapping(buf), ErrNotMapped)
	assert.ErrorIs(t, h.CopyFromMapping(buf), ErrNotMapped)

	_, err = h.Map(4096)
	require.NoError(t, err)
	require.NoError(t, h.Unmap())

	assert.ErrorIs(t, h.CopyToMapping(buf), ErrNotMapped)
}

func TestHandle_CopyBeyondMappedSize(t *testing.T) {
	c, _ := newTestContext(t)
	defer c.Close()

	h, err := c.Pin(0x1000, 4096, driver.PinDefault)
	require.NoError(t, err)
	_, err = h.Map(4096)
	require.NoError(t, err)

	big := make([]byte, 8192)
	err = h.CopyToMapping(big)
	var derr *DriverError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "copy_to_mapping", derr.Op)

	err = h.CopyFromMapping(big)
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "copy_from_mapping", derr.Op)
}

func TestHandle_Bytes(t *testing.T) {
	c, _ := newTestContext(t)
	defer c.Close()

	h, err := c.Pin(0x1000, 4096, driver.PinDefault)
	require.NoError(t, err)
	assert.Nil(t, h.Bytes())

	_, err = h.Map(4096)
	require.NoError(t, err)

	window := h.Bytes()
	require.Len(t, window, 4096)
	copy(window, "direct write")

	got := make([]byte, 12)
	require.NoError(t, h.CopyFromMapping(got))
	assert.Equal(t, []byte("direct write"), got)

	require.NoError(t, h.Unmap())
	assert.Nil(t, h.Bytes())
}

func TestHandle_InfoCacheInvalidation(t *testing.T) {
	c, m := newTestContext(t)
	defer c.Close()

	h, err := c.Pin(0x1000, 4096, driver.PinDefault)
	require.NoError(t, err)

	_, err = h.Info()
	require.NoError(t, err)
	_, err = h.Info()
	require.NoError(t, err)
	// Second call served from cache.
	assert.Equal(t, 1, m.Calls(driver.OpGetInfo))

	_, err = h.Map(4096)
	require.NoError(t, err)
	info, err := h.Info()
	require.NoError(t, err)
	assert.True(t, info.Mapped)
	assert.Equal(t, 2, m.Calls(driver.OpGetInfo))

	require.NoError(t, h.Unmap())
	info, err = h.Info()
	require.NoError(t, err)
	assert.False(t, info.Mapped)
	assert.Equal(t, 3, m.Calls(driver.OpGetInfo))
}

func TestHandle_InfoAfterUnpin(t *testing.T) {
	c, _ := newTestContext(t)
	defer c.Close()

	h, err := c.Pin(0x1000, 4096, driver.PinDefault)
	require.NoError(t, err)
	require.NoError(t, h.Unpin())

	_, err = h.Info()
	var derr *DriverError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, driver.ErrnoInvalid, derr.Code)

	_, err = h.Map(4096)
	assert.ErrorAs(t, err, &derr)

	_, err = h.CallbackFlag()
	assert.ErrorAs(t, err, &derr)
}

func TestHandle_CallbackFlag(t *testing.T) {
	c, m := newTestContext(t)
	defer c.Close()

	h, err := c.Pin(0x1000, 4096, driver.PinDefault)
	require.NoError(t, err)

	fired, err := h.CallbackFlag()
	require.NoError(t, err)
	assert.False(t, fired)

	// Driver reports the GPU memory was freed under the pin.
	m.SetCallbackFlag(1, true)
	fired, err = h.CallbackFlag()
	require.NoError(t, err)
	assert.True(t, fired)
}

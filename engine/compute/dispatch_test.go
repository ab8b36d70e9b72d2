package compute

import (
	"testing"

	"github.com/spaghettifunk/vortex/engine/compute/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityRoundTrip(t *testing.T) {
	ctx := newTestContext(t, nil)
	buf, err := ctx.Stream()
	require.NoError(t, err)

	input := []float32{1, -2, 3.5, 0, 42, -0.25, 7, 8}
	ext := []uint32{uint32(len(input)), 1, 1, 0}

	ub, err := ctx.NewUniformBuffer(16)
	require.NoError(t, err)
	defer ub.Destroy()
	require.NoError(t, ub.WriteUint32(ext))

	src, err := ctx.NewStorageBuffer(uint64(len(input) * 4))
	require.NoError(t, err)
	defer src.Destroy()
	require.NoError(t, src.WriteFloat32(input))

	dst, err := ctx.NewStorageBuffer(uint64(len(input) * 4))
	require.NoError(t, err)
	defer dst.Destroy()

	sig := Signature(driver.KindUniformBuffer, driver.KindStorageBuffer, driver.KindStorageBuffer)
	err = ctx.Dispatch(buf, sig, Kernel("identity"),
		Extent(uint32(len(input))), Extent3D{}, Uint32Bytes(ext), ub, src, dst)
	require.NoError(t, err)
	require.NoError(t, ctx.Flush())

	out, err := dst.ReadFloat32(len(input))
	require.NoError(t, err)
	assert.Equal(t, input, out)
}

func TestHardSigmoidSaturates(t *testing.T) {
	ctx := newTestContext(t, nil)
	buf, err := ctx.Stream()
	require.NoError(t, err)

	input := []float32{-3, 0, 3, -100, 100, 1.5}
	ext := []uint32{uint32(len(input)), 1, 1, 0}

	ub, err := ctx.NewUniformBuffer(16)
	require.NoError(t, err)
	defer ub.Destroy()
	require.NoError(t, ub.WriteUint32(ext))

	data, err := ctx.NewStorageBuffer(uint64(len(input) * 4))
	require.NoError(t, err)
	defer data.Destroy()
	require.NoError(t, data.WriteFloat32(input))

	sig := Signature(driver.KindUniformBuffer, driver.KindStorageBuffer)
	err = ctx.Dispatch(buf, sig, Kernel("hardsigmoid"),
		Extent(uint32(len(input))), Extent3D{}, Uint32Bytes(ext), ub, data)
	require.NoError(t, err)
	require.NoError(t, ctx.Flush())

	out, err := data.ReadFloat32(len(input))
	require.NoError(t, err)

	assert.InDelta(t, 0.0, out[0], 1e-6)  // -3/6 + 0.5 = 0
	assert.InDelta(t, 0.5, out[1], 1e-6)  // 0/6 + 0.5 = 0.5
	assert.InDelta(t, 1.0, out[2], 1e-6)  // 3/6 + 0.5 = 1
	assert.InDelta(t, 0.0, out[3], 1e-6)  // clamped low
	assert.InDelta(t, 1.0, out[4], 1e-6)  // clamped high
	assert.InDelta(t, 0.75, out[5], 1e-6) // 1.5/6 + 0.5
}

func TestDispatchPlanarExtent(t *testing.T) {
	ctx := newTestContext(t, nil)
	buf, err := ctx.Stream()
	require.NoError(t, err)

	// A 3x3 plane with a 2x2 local size exercises both the ceil-div
	// group count and the kernel's own bounds guard.
	const w, h = 3, 3
	input := make([]float32, w*h)
	for i := range input {
		input[i] = float32(i)
	}
	ext := []uint32{w, h, 1, 0}

	ub, err := ctx.NewUniformBuffer(16)
	require.NoError(t, err)
	defer ub.Destroy()
	require.NoError(t, ub.WriteUint32(ext))

	src, err := ctx.NewStorageBuffer(uint64(len(input) * 4))
	require.NoError(t, err)
	defer src.Destroy()
	require.NoError(t, src.WriteFloat32(input))

	dst, err := ctx.NewStorageBuffer(uint64(len(input) * 4))
	require.NoError(t, err)
	defer dst.Destroy()

	sig := Signature(driver.KindUniformBuffer, driver.KindStorageBuffer, driver.KindStorageBuffer)
	err = ctx.Dispatch(buf, sig, Kernel("identity"),
		Extent(w, h), Extent3D{2, 2, 1}, Uint32Bytes(ext), ub, src, dst)
	require.NoError(t, err)
	require.NoError(t, ctx.Flush())

	out, err := dst.ReadFloat32(len(input))
	require.NoError(t, err)
	assert.Equal(t, input, out)
}

func TestDispatchCountsMetrics(t *testing.T) {
	ctx := newTestContext(t, nil)
	buf, err := ctx.Stream()
	require.NoError(t, err)

	ub, err := ctx.NewUniformBuffer(16)
	require.NoError(t, err)
	defer ub.Destroy()
	require.NoError(t, ub.WriteUint32([]uint32{4, 1, 1, 0}))
	data, err := ctx.NewStorageBuffer(16)
	require.NoError(t, err)
	defer data.Destroy()

	sig := Signature(driver.KindUniformBuffer, driver.KindStorageBuffer)
	params := Uint32Bytes([]uint32{4, 1, 1, 0})
	require.NoError(t, ctx.Dispatch(buf, sig, Kernel("hardsigmoid"), Extent(4), Extent3D{}, params, ub, data))

	assert.Equal(t, uint32(1), buf.Dispatches())
	require.NoError(t, ctx.Flush())
	assert.Equal(t, BufferStateReady, buf.State())
}

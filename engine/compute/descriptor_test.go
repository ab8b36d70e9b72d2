package compute

import (
	"testing"

	"github.com/spaghettifunk/vortex/engine/compute/driver"
	"github.com/spaghettifunk/vortex/engine/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetInvalidatedByPoolReset(t *testing.T) {
	ctx := newTestContext(t, nil)

	layout, err := ctx.Shaders().Layout(Signature(driver.KindStorageBuffer))
	require.NoError(t, err)

	set, err := ctx.Descriptors().Allocate(layout)
	require.NoError(t, err)

	buf, err := ctx.NewStorageBuffer(16)
	require.NoError(t, err)
	defer buf.Destroy()

	require.NoError(t, set.BindBuffer(0, driver.KindStorageBuffer, buf.buf))

	require.NoError(t, ctx.Descriptors().Reset())

	err = set.BindBuffer(0, driver.KindStorageBuffer, buf.buf)
	assert.ErrorIs(t, err, ErrSetInvalidated)
}

func TestPoolExhaustionAndRecycle(t *testing.T) {
	cfg := config.Default()
	cfg.KernelDir = ""
	cfg.Descriptor.MaxSets = 2
	ctx := newTestContext(t, cfg)

	layout, err := ctx.Shaders().Layout(Signature(driver.KindStorageBuffer))
	require.NoError(t, err)

	_, err = ctx.Descriptors().Allocate(layout)
	require.NoError(t, err)
	_, err = ctx.Descriptors().Allocate(layout)
	require.NoError(t, err)

	_, err = ctx.Descriptors().Allocate(layout)
	assert.ErrorIs(t, err, driver.ErrOutOfPoolMemory)

	// A flush resets the pool; the full budget is available again.
	require.NoError(t, ctx.Flush())
	_, err = ctx.Descriptors().Allocate(layout)
	require.NoError(t, err)
}

func TestDispatchSurfacesPoolExhaustion(t *testing.T) {
	cfg := config.Default()
	cfg.KernelDir = ""
	cfg.Descriptor.MaxSets = 1
	ctx := newTestContext(t, cfg)

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
	err = ctx.Dispatch(buf, sig, Kernel("hardsigmoid"), Extent(4), Extent3D{}, params, ub, data)
	assert.ErrorIs(t, err, driver.ErrOutOfPoolMemory)

	require.NoError(t, ctx.Flush())

	// The recording period rolled over; dispatching works again.
	buf, err = ctx.Stream()
	require.NoError(t, err)
	require.NoError(t, ctx.Dispatch(buf, sig, Kernel("hardsigmoid"), Extent(4), Extent3D{}, params, ub, data))
	require.NoError(t, ctx.Flush())
}

package compute

import (
	"testing"

	"github.com/spaghettifunk/vortex/engine/compute/driver"
	"github.com/spaghettifunk/vortex/engine/compute/driver/software"
	"github.com/spaghettifunk/vortex/engine/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestContext builds a context over the CPU reference driver so the
// whole dispatch path runs in-process.
func newTestContext(t *testing.T, cfg *config.Config) *Context {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
		cfg.KernelDir = ""
	}
	ctx, err := New(Options{Config: cfg, Driver: software.New()})
	require.NoError(t, err)
	t.Cleanup(ctx.Destroy)
	return ctx
}

func TestAvailable(t *testing.T) {
	// The CPU reference driver registers itself, so a usable driver
	// always exists.
	assert.True(t, Available())
}

func TestNewUnknownDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Driver = "no-such-backend"
	_, err := New(Options{Config: cfg})
	assert.ErrorIs(t, err, ErrNoDriver)
}

func TestDispatchArityMismatch(t *testing.T) {
	ctx := newTestContext(t, nil)
	buf, err := ctx.Stream()
	require.NoError(t, err)

	out, err := ctx.NewStorageBuffer(16)
	require.NoError(t, err)
	defer out.Destroy()

	sig := Signature(driver.KindUniformBuffer, driver.KindStorageBuffer)
	err = ctx.Dispatch(buf, sig, Kernel("hardsigmoid"), Extent(4), Extent3D{}, nil, out)
	assert.ErrorIs(t, err, ErrArityMismatch)
}

func TestDispatchKindMismatch(t *testing.T) {
	ctx := newTestContext(t, nil)
	buf, err := ctx.Stream()
	require.NoError(t, err)

	a, err := ctx.NewStorageBuffer(16)
	require.NoError(t, err)
	defer a.Destroy()
	b, err := ctx.NewStorageBuffer(16)
	require.NoError(t, err)
	defer b.Destroy()

	sig := Signature(driver.KindUniformBuffer, driver.KindStorageBuffer)
	err = ctx.Dispatch(buf, sig, Kernel("hardsigmoid"), Extent(4), Extent3D{}, nil, a, b)
	assert.ErrorIs(t, err, ErrKindMismatch)
}

func TestDispatchUnknownKernel(t *testing.T) {
	ctx := newTestContext(t, nil)
	buf, err := ctx.Stream()
	require.NoError(t, err)

	out, err := ctx.NewStorageBuffer(16)
	require.NoError(t, err)
	defer out.Destroy()

	sig := Signature(driver.KindStorageBuffer)
	err = ctx.Dispatch(buf, sig, Kernel("no-such-kernel"), Extent(4), Extent3D{}, nil, out)
	assert.ErrorIs(t, err, ErrUnknownKernel)
}

func TestDispatchPushConstantLimit(t *testing.T) {
	ctx := newTestContext(t, nil)
	buf, err := ctx.Stream()
	require.NoError(t, err)

	out, err := ctx.NewStorageBuffer(16)
	require.NoError(t, err)
	defer out.Destroy()

	oversized := make([]byte, ctx.Limits().MaxPushConstantBytes+4)
	sig := Signature(driver.KindStorageBuffer)
	err = ctx.Dispatch(buf, sig, Kernel("hardsigmoid"), Extent(4), Extent3D{}, oversized, out)
	assert.ErrorIs(t, err, ErrPushConstantRange)
}

func TestDispatchWorkgroupLimit(t *testing.T) {
	ctx := newTestContext(t, nil)
	buf, err := ctx.Stream()
	require.NoError(t, err)

	out, err := ctx.NewStorageBuffer(16)
	require.NoError(t, err)
	defer out.Destroy()

	sig := Signature(driver.KindStorageBuffer)
	tooWide := Extent3D{ctx.Limits().MaxWorkgroupSize[0] + 1, 1, 1}
	err = ctx.Dispatch(buf, sig, Kernel("hardsigmoid"), Extent(4), tooWide, nil, out)
	assert.ErrorIs(t, err, ErrWorkgroupLimit)
}

func TestPipelineCacheReturnsIdenticalPipeline(t *testing.T) {
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
	for i := 0; i < 3; i++ {
		err = ctx.Dispatch(buf, sig, Kernel("hardsigmoid"), Extent(4), Extent3D{}, params, ub, data)
		require.NoError(t, err)
	}

	_, moduleStats := ctx.Shaders().Stats()
	assert.Equal(t, uint64(1), moduleStats.Creations)

	_, pipeStats := ctx.Pipelines().Stats()
	assert.Equal(t, uint64(1), pipeStats.Creations)
	assert.Equal(t, uint64(2), pipeStats.Hits)

	require.NoError(t, ctx.Flush())
}

func TestFlushKeepsCaches(t *testing.T) {
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
	require.NoError(t, ctx.Flush())

	// A second round after the flush hits every persistent cache.
	buf, err = ctx.Stream()
	require.NoError(t, err)
	require.NoError(t, ctx.Dispatch(buf, sig, Kernel("hardsigmoid"), Extent(4), Extent3D{}, params, ub, data))
	require.NoError(t, ctx.Flush())

	_, pipeStats := ctx.Pipelines().Stats()
	assert.Equal(t, uint64(1), pipeStats.Creations)
}

func TestFlushWithNothingRecorded(t *testing.T) {
	ctx := newTestContext(t, nil)
	require.NoError(t, ctx.Flush())

	// Flush with a begun but empty stream is also fine.
	_, err := ctx.Stream()
	require.NoError(t, err)
	require.NoError(t, ctx.Flush())
}

func TestFailedConstructionTearsDown(t *testing.T) {
	drv := software.New()
	cfg := config.Default()
	cfg.KernelDir = ""
	cfg.Descriptor.MaxSets = 0 // pool creation fails

	_, err := New(Options{Config: cfg, Driver: drv})
	require.Error(t, err)

	device := drv.LastDevice()
	require.NotNil(t, device, "a device was opened before the failure")
	assert.Contains(t, device.DestroyLog(), "device",
		"the partially built context must release the device")
}

func TestDestroyOrder(t *testing.T) {
	dev := software.New()
	cfg := config.Default()
	cfg.KernelDir = ""
	ctx, err := New(Options{Config: cfg, Driver: dev})
	require.NoError(t, err)

	buf, err := ctx.Stream()
	require.NoError(t, err)

	ub, err := ctx.NewUniformBuffer(16)
	require.NoError(t, err)
	require.NoError(t, ub.WriteUint32([]uint32{4, 1, 1, 0}))
	data, err := ctx.NewStorageBuffer(16)
	require.NoError(t, err)

	sig := Signature(driver.KindUniformBuffer, driver.KindStorageBuffer)
	params := Uint32Bytes([]uint32{4, 1, 1, 0})
	require.NoError(t, ctx.Dispatch(buf, sig, Kernel("hardsigmoid"), Extent(4), Extent3D{}, params, ub, data))
	require.NoError(t, ctx.Flush())

	ub.Destroy()
	data.Destroy()

	device := ctx.Device().(*software.Device)
	ctx.Destroy()

	log := device.DestroyLog()
	idx := func(class string) int {
		for i, c := range log {
			if c == class {
				return i
			}
		}
		t.Fatalf("class %q never destroyed; log: %v", class, log)
		return -1
	}

	// Pools go first, then pipelines, then shader objects, then the
	// command machinery, and the device itself last.
	assert.Less(t, idx("descriptor_pool"), idx("pipeline"))
	assert.Less(t, idx("pipeline"), idx("pipeline_layout"))
	assert.Less(t, idx("pipeline_layout"), idx("shader_module"))
	assert.Less(t, idx("shader_module"), idx("set_layout"))
	assert.Less(t, idx("set_layout"), idx("fence"))
	assert.Less(t, idx("fence"), idx("command_pool"))
	assert.Equal(t, "device", log[len(log)-1])
}

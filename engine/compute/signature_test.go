package compute

import (
	"testing"

	"github.com/spaghettifunk/vortex/engine/compute/driver"
	"github.com/stretchr/testify/assert"
)

func TestSignatureKeyEquality(t *testing.T) {
	a := Signature(driver.KindUniformBuffer, driver.KindStorageBuffer)
	b := Signature(driver.KindUniformBuffer, driver.KindStorageBuffer)
	assert.Equal(t, a.Key(), b.Key())

	// Order matters.
	c := Signature(driver.KindStorageBuffer, driver.KindUniformBuffer)
	assert.NotEqual(t, a.Key(), c.Key())

	// Arity matters.
	d := Signature(driver.KindUniformBuffer)
	assert.NotEqual(t, a.Key(), d.Key())
}

func TestKernelDescriptorKey(t *testing.T) {
	assert.Equal(t, Kernel("clamp").Key(), Kernel("clamp").Key())

	withConstants := KernelDescriptor{Name: "clamp", Constants: []uint32{4}}
	assert.NotEqual(t, Kernel("clamp").Key(), withConstants.Key())
	assert.NotEqual(t,
		KernelDescriptor{Name: "clamp", Constants: []uint32{4}}.Key(),
		KernelDescriptor{Name: "clamp", Constants: []uint32{5}}.Key())
}

func TestExtentDefaultsTrailingDimensions(t *testing.T) {
	assert.Equal(t, Extent3D{8, 1, 1}, Extent(8))
	assert.Equal(t, Extent3D{8, 4, 1}, Extent(8, 4))
	assert.Equal(t, Extent3D{8, 4, 2}, Extent(8, 4, 2))
}

func TestGroupCountRoundsUp(t *testing.T) {
	global := Extent3D{65, 1, 1}
	assert.Equal(t, Extent3D{2, 1, 1}, global.GroupCount(Extent3D{64, 1, 1}))

	planar := Extent3D{9, 9, 1}
	assert.Equal(t, Extent3D{2, 2, 1}, planar.GroupCount(Extent3D{8, 8, 1}))

	exact := Extent3D{64, 1, 1}
	assert.Equal(t, Extent3D{1, 1, 1}, exact.GroupCount(Extent3D{64, 1, 1}))
}

func TestLocalSizeMatchesShape(t *testing.T) {
	assert.Equal(t, Extent3D{64, 1, 1}, LocalSize(Extent3D{100, 1, 1}))
	assert.Equal(t, Extent3D{8, 8, 1}, LocalSize(Extent3D{32, 32, 1}))
	assert.Equal(t, Extent3D{4, 4, 4}, LocalSize(Extent3D{16, 16, 16}))
}

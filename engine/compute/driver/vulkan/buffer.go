package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vortex/engine/compute/driver"
)

// CreateBuffer allocates a host-visible, host-coherent buffer and keeps
// it persistently mapped. Good enough for a compute runtime whose
// clients upload inputs and read results back; a real allocator sits
// outside this core.
func (dv *Device) CreateBuffer(size uint64, usage driver.BufferUsage) (driver.Buffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("vulkan: buffer size must be non-zero")
	}
	var usageFlags vk.BufferUsageFlagBits
	switch usage {
	case driver.UsageUniform:
		usageFlags = vk.BufferUsageUniformBufferBit
	case driver.UsageStorage:
		usageFlags = vk.BufferUsageStorageBufferBit
	default:
		return nil, fmt.Errorf("vulkan: unknown buffer usage %d", usage)
	}

	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usageFlags),
		SharingMode: vk.SharingModeExclusive,
	}
	var handle vk.Buffer
	if res := vk.CreateBuffer(dv.device, &createInfo, nil, &handle); res != vk.Success {
		return nil, fmt.Errorf("vulkan: vkCreateBuffer failed with %s", resultString(res))
	}

	var memReqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(dv.device, handle, &memReqs)
	memReqs.Deref()

	memIndex := dv.FindMemoryIndex(
		memReqs.MemoryTypeBits,
		uint32(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if memIndex < 0 {
		vk.DestroyBuffer(dv.device, handle, nil)
		return nil, fmt.Errorf("vulkan: no host-visible memory type for buffer")
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: uint32(memIndex),
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(dv.device, &allocateInfo, nil, &memory); res != vk.Success {
		vk.DestroyBuffer(dv.device, handle, nil)
		return nil, fmt.Errorf("vulkan: vkAllocateMemory failed with %s", resultString(res))
	}
	if res := vk.BindBufferMemory(dv.device, handle, memory, 0); res != vk.Success {
		vk.FreeMemory(dv.device, memory, nil)
		vk.DestroyBuffer(dv.device, handle, nil)
		return nil, fmt.Errorf("vulkan: vkBindBufferMemory failed with %s", resultString(res))
	}

	var mapped unsafe.Pointer
	if res := vk.MapMemory(dv.device, memory, 0, vk.DeviceSize(size), 0, &mapped); res != vk.Success {
		vk.FreeMemory(dv.device, memory, nil)
		vk.DestroyBuffer(dv.device, handle, nil)
		return nil, fmt.Errorf("vulkan: vkMapMemory failed with %s", resultString(res))
	}

	return &buffer{
		device: dv,
		handle: handle,
		memory: memory,
		mapped: mapped,
		size:   size,
	}, nil
}

type buffer struct {
	device *Device
	handle vk.Buffer
	memory vk.DeviceMemory
	mapped unsafe.Pointer
	size   uint64
}

func (b *buffer) Size() uint64 {
	return b.size
}

func (b *buffer) Write(data []byte, offset uint64) error {
	if offset+uint64(len(data)) > b.size {
		return fmt.Errorf("vulkan: write of %d bytes at %d exceeds buffer size %d", len(data), offset, b.size)
	}
	dst := unsafe.Slice((*byte)(b.mapped), b.size)
	copy(dst[offset:], data)
	return nil
}

func (b *buffer) Read(dst []byte, offset uint64) error {
	if offset+uint64(len(dst)) > b.size {
		return fmt.Errorf("vulkan: read of %d bytes at %d exceeds buffer size %d", len(dst), offset, b.size)
	}
	src := unsafe.Slice((*byte)(b.mapped), b.size)
	copy(dst, src[offset:])
	return nil
}

func (b *buffer) Destroy() {
	if b.handle == vk.NullBuffer {
		return
	}
	vk.UnmapMemory(b.device.device, b.memory)
	vk.FreeMemory(b.device.device, b.memory, nil)
	vk.DestroyBuffer(b.device.device, b.handle, nil)
	b.handle = vk.NullBuffer
	b.memory = vk.NullDeviceMemory
	b.mapped = nil
}

package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vortex/engine/compute/driver"
)

func (dv *Device) CreateCommandPool() (driver.CommandPool, error) {
	createInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: dv.computeFamily,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var handle vk.CommandPool
	if res := vk.CreateCommandPool(dv.device, &createInfo, nil, &handle); res != vk.Success {
		return nil, fmt.Errorf("vulkan: vkCreateCommandPool failed with %s", resultString(res))
	}
	return &commandPool{device: dv, handle: handle}, nil
}

type commandPool struct {
	device *Device
	handle vk.CommandPool
}

func (cp *commandPool) Allocate() (driver.CommandBuffer, error) {
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        cp.handle,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	handles := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(cp.device.device, &allocateInfo, handles); res != vk.Success {
		return nil, fmt.Errorf("vulkan: vkAllocateCommandBuffers failed with %s", resultString(res))
	}
	return &commandBuffer{pool: cp, handle: handles[0]}, nil
}

func (cp *commandPool) Reset() error {
	if res := vk.ResetCommandPool(cp.device.device, cp.handle, 0); res != vk.Success {
		return fmt.Errorf("vulkan: vkResetCommandPool failed with %s", resultString(res))
	}
	return nil
}

func (cp *commandPool) Destroy() {
	if cp.handle != vk.NullCommandPool {
		vk.DestroyCommandPool(cp.device.device, cp.handle, nil)
		cp.handle = vk.NullCommandPool
	}
}

type commandBuffer struct {
	pool   *commandPool
	handle vk.CommandBuffer
}

func (cb *commandBuffer) Begin() error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if res := vk.BeginCommandBuffer(cb.handle, &beginInfo); res != vk.Success {
		return fmt.Errorf("vulkan: vkBeginCommandBuffer failed with %s", resultString(res))
	}
	return nil
}

func (cb *commandBuffer) End() error {
	if res := vk.EndCommandBuffer(cb.handle); res != vk.Success {
		return fmt.Errorf("vulkan: vkEndCommandBuffer failed with %s", resultString(res))
	}
	return nil
}

func (cb *commandBuffer) BindPipeline(p driver.Pipeline) error {
	pl, ok := p.(*pipeline)
	if !ok {
		return fmt.Errorf("vulkan: foreign pipeline %T", p)
	}
	vk.CmdBindPipeline(cb.handle, vk.PipelineBindPointCompute, pl.handle)
	return nil
}

func (cb *commandBuffer) PushConstants(layout driver.PipelineLayout, data []byte) error {
	pl, ok := layout.(*pipelineLayout)
	if !ok {
		return fmt.Errorf("vulkan: foreign pipeline layout %T", layout)
	}
	if len(data) == 0 {
		return nil
	}
	vk.CmdPushConstants(
		cb.handle,
		pl.handle,
		vk.ShaderStageFlags(vk.ShaderStageComputeBit),
		0,
		uint32(len(data)),
		unsafe.Pointer(&data[0]))
	return nil
}

func (cb *commandBuffer) BindDescriptorSet(layout driver.PipelineLayout, set driver.DescriptorSet) error {
	pl, ok := layout.(*pipelineLayout)
	if !ok {
		return fmt.Errorf("vulkan: foreign pipeline layout %T", layout)
	}
	ds, ok := set.(*descriptorSet)
	if !ok {
		return fmt.Errorf("vulkan: foreign descriptor set %T", set)
	}
	vk.CmdBindDescriptorSets(
		cb.handle,
		vk.PipelineBindPointCompute,
		pl.handle,
		0, 1,
		[]vk.DescriptorSet{ds.handle},
		0, nil)
	return nil
}

func (cb *commandBuffer) Dispatch(groups [3]uint32) error {
	vk.CmdDispatch(cb.handle, groups[0], groups[1], groups[2])
	return nil
}

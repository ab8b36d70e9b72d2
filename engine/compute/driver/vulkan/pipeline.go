package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vortex/engine/compute/driver"
	"github.com/spaghettifunk/vortex/engine/core"
)

func descriptorType(kind driver.ResourceKind) vk.DescriptorType {
	switch kind {
	case driver.KindUniformBuffer:
		return vk.DescriptorTypeUniformBuffer
	case driver.KindStorageBuffer:
		return vk.DescriptorTypeStorageBuffer
	case driver.KindStorageImage:
		return vk.DescriptorTypeStorageImage
	}
	return vk.DescriptorTypeStorageBuffer
}

func (dv *Device) CreateSetLayout(slots []driver.BindingSlot) (driver.SetLayout, error) {
	bindings := make([]vk.DescriptorSetLayoutBinding, len(slots))
	for i, slot := range slots {
		count := slot.Count
		if count == 0 {
			count = 1
		}
		bindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         uint32(i),
			DescriptorType:  descriptorType(slot.Kind),
			DescriptorCount: count,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageComputeBit),
		}
	}
	createInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	var handle vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(dv.device, &createInfo, nil, &handle); res != vk.Success {
		return nil, fmt.Errorf("vulkan: vkCreateDescriptorSetLayout failed with %s", resultString(res))
	}
	out := make([]driver.BindingSlot, len(slots))
	copy(out, slots)
	return &setLayout{device: dv, handle: handle, slots: out}, nil
}

func (dv *Device) CreatePipelineLayout(layout driver.SetLayout, pushSize uint32) (driver.PipelineLayout, error) {
	sl, ok := layout.(*setLayout)
	if !ok {
		return nil, fmt.Errorf("vulkan: foreign set layout %T", layout)
	}
	createInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{sl.handle},
	}
	if pushSize > 0 {
		createInfo.PushConstantRangeCount = 1
		createInfo.PPushConstantRanges = []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit),
			Offset:     0,
			Size:       pushSize,
		}}
	}
	var handle vk.PipelineLayout
	if res := vk.CreatePipelineLayout(dv.device, &createInfo, nil, &handle); res != vk.Success {
		return nil, fmt.Errorf("vulkan: vkCreatePipelineLayout failed with %s", resultString(res))
	}
	return &pipelineLayout{device: dv, handle: handle, pushSize: pushSize}, nil
}

// CreateComputePipeline bakes local workgroup size (specialization
// constant IDs 0..2) and any extra constants (IDs 3..) into the
// compiled pipeline.
func (dv *Device) CreateComputePipeline(layout driver.PipelineLayout, module driver.ShaderModule, local [3]uint32, constants []uint32) (driver.Pipeline, error) {
	pl, ok := layout.(*pipelineLayout)
	if !ok {
		return nil, fmt.Errorf("vulkan: foreign pipeline layout %T", layout)
	}
	sm, ok := module.(*shaderModule)
	if !ok {
		return nil, fmt.Errorf("vulkan: foreign shader module %T", module)
	}

	specData := make([]uint32, 0, 3+len(constants))
	specData = append(specData, local[0], local[1], local[2])
	specData = append(specData, constants...)
	entries := make([]vk.SpecializationMapEntry, len(specData))
	for i := range specData {
		entries[i] = vk.SpecializationMapEntry{
			ConstantID: uint32(i),
			Offset:     uint32(i * 4),
			Size:       4,
		}
	}
	specInfo := vk.SpecializationInfo{
		MapEntryCount: uint32(len(entries)),
		PMapEntries:   entries,
		DataSize:      uint(len(specData) * 4),
		PData:         unsafe.Pointer(&specData[0]),
	}

	stage := vk.PipelineShaderStageCreateInfo{
		SType:               vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:               vk.ShaderStageComputeBit,
		Module:              sm.handle,
		PName:               safeString("main"),
		PSpecializationInfo: &specInfo,
	}

	createInfo := vk.ComputePipelineCreateInfo{
		SType:  vk.StructureTypeComputePipelineCreateInfo,
		Stage:  stage,
		Layout: pl.handle,
	}

	pipelines := make([]vk.Pipeline, 1)
	res := vk.CreateComputePipelines(dv.device, vk.NullPipelineCache, 1, []vk.ComputePipelineCreateInfo{createInfo}, nil, pipelines)
	if !isSuccess(res) {
		return nil, fmt.Errorf("vulkan: vkCreateComputePipelines(%s) failed with %s", sm.name, resultString(res))
	}
	core.LogDebug("Compute pipeline created for kernel '%s' local=%v", sm.name, local)
	return &pipeline{device: dv, handle: pipelines[0], local: local}, nil
}

type setLayout struct {
	device *Device
	handle vk.DescriptorSetLayout
	slots  []driver.BindingSlot
}

func (l *setLayout) Slots() []driver.BindingSlot {
	return l.slots
}

func (l *setLayout) Destroy() {
	if l.handle != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(l.device.device, l.handle, nil)
		l.handle = vk.NullDescriptorSetLayout
	}
}

type pipelineLayout struct {
	device   *Device
	handle   vk.PipelineLayout
	pushSize uint32
}

func (l *pipelineLayout) Destroy() {
	if l.handle != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(l.device.device, l.handle, nil)
		l.handle = vk.NullPipelineLayout
	}
}

type pipeline struct {
	device *Device
	handle vk.Pipeline
	local  [3]uint32
}

func (p *pipeline) Destroy() {
	if p.handle != vk.NullPipeline {
		vk.DestroyPipeline(p.device.device, p.handle, nil)
		p.handle = vk.NullPipeline
	}
}

package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vortex/engine/compute/driver"
)

func (dv *Device) CreateDescriptorPool(sizes driver.PoolSizes) (driver.DescriptorPool, error) {
	if sizes.MaxSets == 0 {
		return nil, fmt.Errorf("vulkan: descriptor pool needs max_sets > 0")
	}
	var poolSizes []vk.DescriptorPoolSize
	if sizes.UniformBuffers > 0 {
		poolSizes = append(poolSizes, vk.DescriptorPoolSize{
			Type:            vk.DescriptorTypeUniformBuffer,
			DescriptorCount: sizes.UniformBuffers,
		})
	}
	if sizes.StorageBuffers > 0 {
		poolSizes = append(poolSizes, vk.DescriptorPoolSize{
			Type:            vk.DescriptorTypeStorageBuffer,
			DescriptorCount: sizes.StorageBuffers,
		})
	}
	if sizes.StorageImages > 0 {
		poolSizes = append(poolSizes, vk.DescriptorPoolSize{
			Type:            vk.DescriptorTypeStorageImage,
			DescriptorCount: sizes.StorageImages,
		})
	}
	createInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       sizes.MaxSets,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}
	var handle vk.DescriptorPool
	if res := vk.CreateDescriptorPool(dv.device, &createInfo, nil, &handle); res != vk.Success {
		return nil, fmt.Errorf("vulkan: vkCreateDescriptorPool failed with %s", resultString(res))
	}
	return &descriptorPool{device: dv, handle: handle}, nil
}

type descriptorPool struct {
	device *Device
	handle vk.DescriptorPool
}

func (p *descriptorPool) Allocate(layout driver.SetLayout) (driver.DescriptorSet, error) {
	sl, ok := layout.(*setLayout)
	if !ok {
		return nil, fmt.Errorf("vulkan: foreign set layout %T", layout)
	}
	allocateInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     p.handle,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{sl.handle},
	}
	var handle vk.DescriptorSet
	res := vk.AllocateDescriptorSets(p.device.device, &allocateInfo, &handle)
	switch res {
	case vk.Success:
	case vk.ErrorOutOfPoolMemory, vk.ErrorFragmentedPool:
		return nil, driver.ErrOutOfPoolMemory
	default:
		return nil, fmt.Errorf("vulkan: vkAllocateDescriptorSets failed with %s", resultString(res))
	}
	return &descriptorSet{pool: p, handle: handle, layout: sl}, nil
}

// Reset reclaims every set allocated from the pool since the previous
// reset.
func (p *descriptorPool) Reset() error {
	if res := vk.ResetDescriptorPool(p.device.device, p.handle, 0); res != vk.Success {
		return fmt.Errorf("vulkan: vkResetDescriptorPool failed with %s", resultString(res))
	}
	return nil
}

func (p *descriptorPool) Destroy() {
	if p.handle != vk.NullDescriptorPool {
		vk.DestroyDescriptorPool(p.device.device, p.handle, nil)
		p.handle = vk.NullDescriptorPool
	}
}

type descriptorSet struct {
	pool   *descriptorPool
	handle vk.DescriptorSet
	layout *setLayout
}

func (s *descriptorSet) BindBuffer(binding uint32, kind driver.ResourceKind, buf driver.Buffer) error {
	b, ok := buf.(*buffer)
	if !ok {
		return fmt.Errorf("vulkan: foreign buffer %T", buf)
	}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          s.handle,
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  descriptorType(kind),
		PBufferInfo: []vk.DescriptorBufferInfo{{
			Buffer: b.handle,
			Offset: 0,
			Range:  vk.DeviceSize(b.size),
		}},
	}
	vk.UpdateDescriptorSets(s.pool.device.device, 1, []vk.WriteDescriptorSet{write}, 0, nil)
	return nil
}

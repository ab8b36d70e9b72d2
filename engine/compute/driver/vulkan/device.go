package vulkan

import (
	"fmt"
	"sync"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vortex/engine/compute/driver"
	"github.com/spaghettifunk/vortex/engine/core"
	"github.com/spaghettifunk/vortex/engine/kernels"
)

// Open creates the logical device and obtains its single compute queue.
func (d *Driver) Open(adapter driver.AdapterInfo, opts driver.DeviceOptions) (driver.Device, error) {
	if d.physicalDevice == nil {
		return nil, fmt.Errorf("vulkan: SelectAdapter must run before Open")
	}
	if err := d.ensureInstance(opts.Validation); err != nil {
		return nil, err
	}

	core.LogInfo("Creating logical device...")

	queuePriority := float32(1.0)
	queueCreateInfo := vk.DeviceQueueCreateInfo{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: d.computeFamily,
		QueueCount:       1,
		PQueuePriorities: []float32{queuePriority},
	}

	extensionNames := []string{}
	if portabilityRequired(d.physicalDevice) {
		core.LogInfo("Adding required extension 'VK_KHR_portability_subset'.")
		extensionNames = append(extensionNames, "VK_KHR_portability_subset")
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    1,
		PQueueCreateInfos:       []vk.DeviceQueueCreateInfo{queueCreateInfo},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: safeStrings(extensionNames),
	}

	var device vk.Device
	if res := vk.CreateDevice(d.physicalDevice, &deviceCreateInfo, nil, &device); res != vk.Success {
		return nil, fmt.Errorf("vulkan: vkCreateDevice failed with %s", resultString(res))
	}

	var queue vk.Queue
	vk.GetDeviceQueue(device, d.computeFamily, 0, &queue)
	core.LogInfo("Logical device created, compute queue obtained.")

	var memory vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(d.physicalDevice, &memory)
	memory.Deref()

	return &Device{
		driver:        d,
		device:        device,
		queue:         queue,
		computeFamily: d.computeFamily,
		limits:        d.limits,
		memory:        memory,
	}, nil
}

func portabilityRequired(pd vk.PhysicalDevice) bool {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(pd, "", &count, nil); res != vk.Success || count == 0 {
		return false
	}
	exts := make([]vk.ExtensionProperties, count)
	if res := vk.EnumerateDeviceExtensionProperties(pd, "", &count, exts); res != vk.Success {
		return false
	}
	for i := range exts {
		exts[i].Deref()
		end := findFirstZero(exts[i].ExtensionName[:])
		if vk.ToString(exts[i].ExtensionName[:end+1]) == "VK_KHR_portability_subset" {
			return true
		}
	}
	return false
}

// Device owns the logical device and the single compute queue.
// Submissions are serialized on queueMutex; recording is not.
type Device struct {
	driver        *Driver
	device        vk.Device
	queue         vk.Queue
	computeFamily uint32
	limits        driver.Limits
	memory        vk.PhysicalDeviceMemoryProperties

	queueMutex sync.Mutex
}

func (dv *Device) Limits() driver.Limits {
	return dv.limits
}

func (dv *Device) CreateShaderModule(k kernels.Kernel) (driver.ShaderModule, error) {
	if len(k.SPIRV) == 0 {
		return nil, fmt.Errorf("vulkan: kernel %q has no SPIR-V binary", k.Name)
	}
	if len(k.SPIRV)%4 != 0 {
		return nil, fmt.Errorf("vulkan: kernel %q SPIR-V length %d is not a multiple of 4", k.Name, len(k.SPIRV))
	}
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(k.SPIRV)),
		PCode:    repackUint32(k.SPIRV),
	}
	var module vk.ShaderModule
	if res := vk.CreateShaderModule(dv.device, &createInfo, nil, &module); res != vk.Success {
		return nil, fmt.Errorf("vulkan: vkCreateShaderModule(%s) failed with %s", k.Name, resultString(res))
	}
	return &shaderModule{device: dv, name: k.Name, handle: module}, nil
}

func (dv *Device) CreateFence(signaled bool) (driver.Fence, error) {
	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var handle vk.Fence
	if res := vk.CreateFence(dv.device, &fenceCreateInfo, nil, &handle); res != vk.Success {
		return nil, fmt.Errorf("vulkan: vkCreateFence failed with %s", resultString(res))
	}
	return &fence{device: dv, handle: handle}, nil
}

// Submit hands the recorded buffer to the compute queue without
// waiting. The fence, when non-nil, signals on completion.
func (dv *Device) Submit(buf driver.CommandBuffer, fc driver.Fence) error {
	cb, ok := buf.(*commandBuffer)
	if !ok {
		return fmt.Errorf("vulkan: foreign command buffer %T", buf)
	}
	var vkFence vk.Fence = vk.NullFence
	if fc != nil {
		f, ok := fc.(*fence)
		if !ok {
			return fmt.Errorf("vulkan: foreign fence %T", fc)
		}
		vkFence = f.handle
	}
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cb.handle},
	}
	dv.queueMutex.Lock()
	defer dv.queueMutex.Unlock()
	if res := vk.QueueSubmit(dv.queue, 1, []vk.SubmitInfo{submitInfo}, vkFence); res != vk.Success {
		return fmt.Errorf("vulkan: vkQueueSubmit failed with %s", resultString(res))
	}
	return nil
}

// WaitIdle drains the compute queue.
func (dv *Device) WaitIdle() error {
	dv.queueMutex.Lock()
	defer dv.queueMutex.Unlock()
	if res := vk.QueueWaitIdle(dv.queue); res != vk.Success {
		return fmt.Errorf("vulkan: vkQueueWaitIdle failed with %s", resultString(res))
	}
	return nil
}

func (dv *Device) Destroy() {
	if dv.device == nil {
		return
	}
	core.LogInfo("Destroying logical device...")
	dv.queue = nil
	vk.DestroyDevice(dv.device, nil)
	dv.device = nil
}

// FindMemoryIndex locates a memory type matching typeFilter with the
// given property flags, or -1.
func (dv *Device) FindMemoryIndex(typeFilter, propertyFlags uint32) int32 {
	for i := uint32(0); i < dv.memory.MemoryTypeCount; i++ {
		dv.memory.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (uint32(dv.memory.MemoryTypes[i].PropertyFlags)&propertyFlags) == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}

type shaderModule struct {
	device *Device
	name   string
	handle vk.ShaderModule
}

func (m *shaderModule) Destroy() {
	if m.handle != vk.NullShaderModule {
		vk.DestroyShaderModule(m.device.device, m.handle, nil)
		m.handle = vk.NullShaderModule
	}
}

type fence struct {
	device *Device
	handle vk.Fence
}

func (f *fence) Wait(timeoutNs uint64) error {
	result := vk.WaitForFences(f.device.device, 1, []vk.Fence{f.handle}, vk.True, timeoutNs)
	switch result {
	case vk.Success:
		return nil
	case vk.Timeout:
		return fmt.Errorf("vulkan: fence wait timed out")
	default:
		return fmt.Errorf("vulkan: vkWaitForFences failed with %s", resultString(result))
	}
}

func (f *fence) Reset() error {
	if res := vk.ResetFences(f.device.device, 1, []vk.Fence{f.handle}); res != vk.Success {
		return fmt.Errorf("vulkan: vkResetFences failed with %s", resultString(res))
	}
	return nil
}

func (f *fence) Destroy() {
	if f.handle != vk.NullFence {
		vk.DestroyFence(f.device.device, f.handle, nil)
		f.handle = vk.NullFence
	}
}

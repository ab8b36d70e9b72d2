// Package vulkan implements the compute driver on top of the Vulkan
// API via github.com/goki/vulkan. One instance, one physical device,
// one logical device with a single compute queue.
package vulkan

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vortex/engine/compute/driver"
	"github.com/spaghettifunk/vortex/engine/core"
)

const DriverName = "vulkan"

func init() {
	driver.Register(DriverName, func() driver.Driver {
		return &Driver{}
	})
}

var (
	loaderOnce sync.Once
	loaderErr  error
)

// initLoader wires the Vulkan loader through GLFW, headless (no window
// is ever created).
func initLoader() error {
	loaderOnce.Do(func() {
		if err := glfw.Init(); err != nil {
			loaderErr = fmt.Errorf("vulkan: glfw init failed: %w", err)
			return
		}
		procAddr := glfw.GetVulkanGetInstanceProcAddress()
		if procAddr == nil {
			loaderErr = fmt.Errorf("vulkan: GetInstanceProcAddress is nil")
			return
		}
		vk.SetGetInstanceProcAddr(procAddr)
		if err := vk.Init(); err != nil {
			loaderErr = fmt.Errorf("vulkan: loader init failed: %w", err)
		}
	})
	return loaderErr
}

type Driver struct {
	instance vk.Instance

	physicalDevice vk.PhysicalDevice
	computeFamily  uint32
	properties     vk.PhysicalDeviceProperties
	limits         driver.Limits
}

func New() *Driver {
	return &Driver{}
}

func (d *Driver) Name() string {
	return DriverName
}

// Available reports whether the Vulkan loader can be initialized in
// this process.
func (d *Driver) Available() bool {
	return initLoader() == nil
}

func (d *Driver) ensureInstance(validation bool) error {
	if d.instance != nil {
		return nil
	}
	if err := initLoader(); err != nil {
		return err
	}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   safeString("vortex"),
		PEngineName:        safeString("Vortex Compute"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	requiredExtensions := []string{}
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		createInfo.Flags |= 1
	}
	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = safeStrings(requiredExtensions)

	layers := []string{}
	if validation && hasValidationLayer() {
		layers = append(layers, "VK_LAYER_KHRONOS_validation")
		core.LogInfo("Vulkan validation layer enabled.")
	}
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = safeStrings(layers)

	var instance vk.Instance
	if res := vk.CreateInstance(&createInfo, nil, &instance); res != vk.Success {
		return fmt.Errorf("vulkan: vkCreateInstance failed with %s", resultString(res))
	}
	if err := vk.InitInstance(instance); err != nil {
		vk.DestroyInstance(instance, nil)
		return err
	}
	d.instance = instance
	core.LogInfo("Vulkan instance created.")
	return nil
}

func hasValidationLayer() bool {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success || count == 0 {
		return false
	}
	layers := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, layers); res != vk.Success {
		return false
	}
	for i := range layers {
		layers[i].Deref()
		end := findFirstZero(layers[i].LayerName[:])
		if vk.ToString(layers[i].LayerName[:end+1]) == "VK_LAYER_KHRONOS_validation" {
			return true
		}
	}
	return false
}

// SelectAdapter enumerates physical devices and picks the first one
// with a compute-capable queue family, preferring a discrete GPU when
// asked for one.
func (d *Driver) SelectAdapter(preferDiscrete bool) (driver.AdapterInfo, error) {
	if err := d.ensureInstance(false); err != nil {
		return driver.AdapterInfo{}, err
	}

	var count uint32
	if res := vk.EnumeratePhysicalDevices(d.instance, &count, nil); res != vk.Success {
		return driver.AdapterInfo{}, fmt.Errorf("vulkan: vkEnumeratePhysicalDevices failed with %s", resultString(res))
	}
	if count == 0 {
		return driver.AdapterInfo{}, fmt.Errorf("vulkan: no devices which support Vulkan were found")
	}
	physicalDevices := make([]vk.PhysicalDevice, count)
	if res := vk.EnumeratePhysicalDevices(d.instance, &count, physicalDevices); res != vk.Success {
		return driver.AdapterInfo{}, fmt.Errorf("vulkan: vkEnumeratePhysicalDevices failed with %s", resultString(res))
	}

	type candidate struct {
		device   vk.PhysicalDevice
		family   uint32
		props    vk.PhysicalDeviceProperties
		discrete bool
	}
	var picked *candidate
	for _, pd := range physicalDevices {
		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(pd, &props)
		props.Deref()
		props.Limits.Deref()

		family, ok := findComputeFamily(pd)
		if !ok {
			continue
		}
		c := &candidate{
			device:   pd,
			family:   family,
			props:    props,
			discrete: props.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu,
		}
		if picked == nil {
			picked = c
			continue
		}
		if preferDiscrete && c.discrete && !picked.discrete {
			picked = c
		}
	}
	if picked == nil {
		return driver.AdapterInfo{}, fmt.Errorf("vulkan: no physical device exposes a compute queue")
	}

	d.physicalDevice = picked.device
	d.computeFamily = picked.family
	d.properties = picked.props

	lim := picked.props.Limits
	d.limits = driver.Limits{
		MaxPushConstantBytes:    lim.MaxPushConstantsSize,
		MaxWorkgroupSize:        lim.MaxComputeWorkGroupSize,
		MaxWorkgroupInvocations: lim.MaxComputeWorkGroupInvocations,
		MaxWorkgroupCount:       lim.MaxComputeWorkGroupCount,
	}

	end := findFirstZero(picked.props.DeviceName[:])
	name := vk.ToString(picked.props.DeviceName[:end+1])
	core.LogInfo("Selected device: '%s'.", name)
	core.LogInfo(
		"GPU Driver version: %d.%d.%d",
		vk.Version.Major(vk.Version(picked.props.DriverVersion)),
		vk.Version.Minor(vk.Version(picked.props.DriverVersion)),
		vk.Version.Patch(vk.Version(picked.props.DriverVersion)),
	)

	return driver.AdapterInfo{
		Name:       name,
		DeviceType: deviceTypeString(picked.props.DeviceType),
		Discrete:   picked.discrete,
		DriverVersion: fmt.Sprintf("%d.%d.%d",
			vk.Version.Major(vk.Version(picked.props.DriverVersion)),
			vk.Version.Minor(vk.Version(picked.props.DriverVersion)),
			vk.Version.Patch(vk.Version(picked.props.DriverVersion))),
		Limits: d.limits,
	}, nil
}

func findComputeFamily(pd vk.PhysicalDevice) (uint32, bool) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, families)

	// Prefer a dedicated compute family over the graphics one.
	best := uint32(0)
	found := false
	for i := uint32(0); i < count; i++ {
		families[i].Deref()
		flags := vk.QueueFlagBits(families[i].QueueFlags)
		if flags&vk.QueueComputeBit == 0 {
			continue
		}
		if !found || flags&vk.QueueGraphicsBit == 0 {
			best = i
			found = true
		}
	}
	return best, found
}

func deviceTypeString(t vk.PhysicalDeviceType) string {
	switch t {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return "integrated"
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return "discrete"
	case vk.PhysicalDeviceTypeVirtualGpu:
		return "virtual"
	case vk.PhysicalDeviceTypeCpu:
		return "cpu"
	}
	return "unknown"
}

// Release destroys the instance. Called by the adapter at the very end
// of context teardown.
func (d *Driver) Release() {
	if d.instance != nil {
		vk.DestroyInstance(d.instance, nil)
		d.instance = nil
	}
	d.physicalDevice = nil
}

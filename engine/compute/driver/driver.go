package driver

import (
	"errors"

	"github.com/spaghettifunk/vortex/engine/kernels"
)

// Common driver errors.
var (
	// ErrNotAvailable is returned when a requested driver cannot run in
	// this process.
	ErrNotAvailable = errors.New("driver: not available")

	// ErrOutOfPoolMemory is returned when a descriptor pool cannot
	// satisfy an allocation before its next reset.
	ErrOutOfPoolMemory = errors.New("driver: descriptor pool exhausted")
)

// ResourceKind tags a bindable resource slot.
type ResourceKind uint8

const (
	KindUniformBuffer ResourceKind = iota
	KindStorageBuffer
	KindStorageImage
)

func (k ResourceKind) String() string {
	switch k {
	case KindUniformBuffer:
		return "uniform_buffer"
	case KindStorageBuffer:
		return "storage_buffer"
	case KindStorageImage:
		return "storage_image"
	}
	return "unknown"
}

// StageFlags marks the pipeline stages a binding is visible to. Only
// the compute stage exists on this queue, but the flag travels with the
// binding signature so equal signatures stay equal.
type StageFlags uint32

const (
	StageCompute StageFlags = 1 << iota
)

// BindingSlot is one entry of a binding signature: what kind of
// resource is expected at this slot, which stages see it, and how many
// descriptors back it.
type BindingSlot struct {
	Kind   ResourceKind
	Stages StageFlags
	Count  uint32
}

// Limits carries the device limits the runtime validates against.
type Limits struct {
	MaxPushConstantBytes    uint32
	MaxWorkgroupSize        [3]uint32
	MaxWorkgroupInvocations uint32
	MaxWorkgroupCount       [3]uint32
}

// AdapterInfo describes one physical device.
type AdapterInfo struct {
	Name          string
	DeviceType    string
	Discrete      bool
	DriverVersion string
	Limits        Limits
}

// PoolSizes sizes a descriptor pool for one recording period.
type PoolSizes struct {
	MaxSets        uint32
	UniformBuffers uint32
	StorageBuffers uint32
	StorageImages  uint32
}

// BufferUsage selects how a buffer is bound.
type BufferUsage uint8

const (
	UsageUniform BufferUsage = iota
	UsageStorage
)

// DeviceOptions configures logical-device creation.
type DeviceOptions struct {
	Validation bool
}

// Releaser is implemented by drivers that hold process-level native
// state (e.g. a Vulkan instance) beyond the logical device. Released
// last, after the device is destroyed.
type Releaser interface {
	Release()
}

// Driver is a compute backend. Implementations register themselves via
// Register in an init function.
type Driver interface {
	// Name returns the driver identifier (e.g. "vulkan", "software").
	Name() string

	// Available reports whether this driver can run in the current
	// process.
	Available() bool

	// SelectAdapter queries physical devices and picks one.
	SelectAdapter(preferDiscrete bool) (AdapterInfo, error)

	// Open creates the logical device and its single compute queue.
	Open(adapter AdapterInfo, opts DeviceOptions) (Device, error)
}

// Device is an open logical device with one compute queue. All object
// creation goes through it; Destroy releases the device and queue.
// Callers own destruction order of the objects they create.
type Device interface {
	Limits() Limits

	CreateShaderModule(k kernels.Kernel) (ShaderModule, error)
	CreateSetLayout(slots []BindingSlot) (SetLayout, error)
	CreatePipelineLayout(layout SetLayout, pushSize uint32) (PipelineLayout, error)
	// CreateComputePipeline bakes the local workgroup size and any
	// extra specialization constants into a ready-to-bind pipeline.
	CreateComputePipeline(layout PipelineLayout, module ShaderModule, local [3]uint32, constants []uint32) (Pipeline, error)
	CreateDescriptorPool(sizes PoolSizes) (DescriptorPool, error)
	CreateCommandPool() (CommandPool, error)
	CreateFence(signaled bool) (Fence, error)
	CreateBuffer(size uint64, usage BufferUsage) (Buffer, error)

	// Submit hands a recorded command buffer to the queue, signaling
	// fence on completion. It does not block.
	Submit(buf CommandBuffer, fence Fence) error

	// WaitIdle blocks until the queue drains.
	WaitIdle() error

	Destroy()
}

type ShaderModule interface {
	Destroy()
}

type SetLayout interface {
	Slots() []BindingSlot
	Destroy()
}

type PipelineLayout interface {
	Destroy()
}

type Pipeline interface {
	Destroy()
}

type Fence interface {
	// Wait blocks until the fence signals or timeoutNs elapses.
	Wait(timeoutNs uint64) error
	Reset() error
	Destroy()
}

type DescriptorPool interface {
	Allocate(layout SetLayout) (DescriptorSet, error)
	// Reset reclaims every set allocated since the previous reset.
	Reset() error
	Destroy()
}

type DescriptorSet interface {
	BindBuffer(binding uint32, kind ResourceKind, buf Buffer) error
}

type CommandPool interface {
	Allocate() (CommandBuffer, error)
	Reset() error
	Destroy()
}

// CommandBuffer records bind/dispatch operations. Recording state and
// writer exclusivity are enforced a level up; drivers only translate.
type CommandBuffer interface {
	Begin() error
	End() error
	BindPipeline(p Pipeline) error
	PushConstants(layout PipelineLayout, data []byte) error
	BindDescriptorSet(layout PipelineLayout, set DescriptorSet) error
	// Dispatch records the given 3D workgroup counts.
	Dispatch(groups [3]uint32) error
}

// Buffer is host-visible memory bindable as a uniform or storage slot.
type Buffer interface {
	Size() uint64
	Write(data []byte, offset uint64) error
	Read(dst []byte, offset uint64) error
	Destroy()
}

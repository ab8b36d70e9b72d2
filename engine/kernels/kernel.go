package kernels

// Invocation identifies one kernel thread within a dispatch.
type Invocation struct {
	// GlobalID is the 3D global invocation coordinate.
	GlobalID [3]uint32
	// GlobalSize is the full 3D extent of the dispatch.
	GlobalSize [3]uint32
}

// Func is the CPU form of a kernel, executed once per invocation by the
// software driver. params is the raw parameter block; args holds the
// backing bytes of each bound resource in signature order. The layout of
// params and of each arg must match what the GPU form of the kernel
// expects, byte for byte.
type Func func(inv Invocation, params []byte, args [][]byte)

// Kernel pairs a name with up to two executable forms: a SPIR-V binary
// consumed by the Vulkan driver and a Go function consumed by the
// software driver. Either form may be absent; a driver that needs a
// missing form fails module creation.
type Kernel struct {
	Name  string
	SPIRV []byte
	Fn    Func
}

package kernels

import (
	"encoding/binary"
	"math"
)

// Built-in kernels ship with both forms: the GLSL sources under
// shaders/ compile to the SPIR-V form, and the functions below are the
// matching software forms. Both expect a uvec4 extents uniform at
// binding 0 and index data buffers in x-major order.
func init() {
	must(Register(Kernel{Name: "identity", Fn: identityFn}))
	must(Register(Kernel{Name: "hardsigmoid", Fn: hardSigmoidFn}))
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func extentsOf(arg []byte) [3]uint32 {
	return [3]uint32{
		binary.LittleEndian.Uint32(arg[0:]),
		binary.LittleEndian.Uint32(arg[4:]),
		binary.LittleEndian.Uint32(arg[8:]),
	}
}

func linearIndex(gid, ext [3]uint32) uint32 {
	return (gid[2]*ext[1]+gid[1])*ext[0] + gid[0]
}

func inBounds(gid, ext [3]uint32) bool {
	return gid[0] < ext[0] && gid[1] < ext[1] && gid[2] < ext[2]
}

// identityFn copies binding 1 to binding 2, one float per invocation.
func identityFn(inv Invocation, params []byte, args [][]byte) {
	ext := extentsOf(args[0])
	if !inBounds(inv.GlobalID, ext) {
		return
	}
	i := linearIndex(inv.GlobalID, ext) * 4
	copy(args[2][i:i+4], args[1][i:i+4])
}

// hardSigmoidFn applies x -> clamp(x/6 + 0.5, 0, 1) in place on
// binding 1.
func hardSigmoidFn(inv Invocation, params []byte, args [][]byte) {
	ext := extentsOf(args[0])
	if !inBounds(inv.GlobalID, ext) {
		return
	}
	i := linearIndex(inv.GlobalID, ext) * 4
	v := math.Float32frombits(binary.LittleEndian.Uint32(args[1][i:]))
	v = v/6.0 + 0.5
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	binary.LittleEndian.PutUint32(args[1][i:], math.Float32bits(v))
}

package compute

import (
	"strconv"
	"strings"

	"github.com/spaghettifunk/vortex/engine/compute/driver"
)

// BindingSignature is the ordered list of resource slots a kernel
// expects. Two dispatches with equal signatures share one descriptor
// set layout.
type BindingSignature []driver.BindingSlot

// Signature builds a single-descriptor compute-stage signature from an
// ordered list of resource kinds. This covers every kernel shipped with
// the runtime; arrayed bindings can be built by hand.
func Signature(kinds ...driver.ResourceKind) BindingSignature {
	sig := make(BindingSignature, len(kinds))
	for i, k := range kinds {
		sig[i] = driver.BindingSlot{Kind: k, Stages: driver.StageCompute, Count: 1}
	}
	return sig
}

// Key returns a canonical string encoding of the signature, used as the
// layout cache key. Equal signatures always produce equal keys.
func (s BindingSignature) Key() string {
	var b strings.Builder
	for _, slot := range s {
		b.WriteString(strconv.FormatUint(uint64(slot.Kind), 10))
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(uint64(slot.Stages), 16))
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(uint64(slot.Count), 10))
		b.WriteByte(';')
	}
	return b.String()
}

// KernelDescriptor identifies a shader module: the registered kernel
// name plus any extra specialization constants baked into the module's
// pipelines (constant IDs 3 and up; IDs 0..2 are the local workgroup
// size).
type KernelDescriptor struct {
	Name      string
	Constants []uint32
}

// Kernel returns a descriptor with no extra specialization constants.
func Kernel(name string) KernelDescriptor {
	return KernelDescriptor{Name: name}
}

// Key returns a canonical string encoding of the descriptor, used as
// the module cache key.
func (d KernelDescriptor) Key() string {
	var b strings.Builder
	b.WriteString(d.Name)
	for _, c := range d.Constants {
		b.WriteByte('|')
		b.WriteString(strconv.FormatUint(uint64(c), 16))
	}
	return b.String()
}

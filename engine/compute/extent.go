package compute

import "golang.org/x/exp/constraints"

// Extent3D is a three-dimensional extent of invocations or workgroups.
type Extent3D [3]uint32

// Extent builds an Extent3D, defaulting unspecified dimensions to 1 so
// one- and two-dimensional dispatches stay readable at call sites.
func Extent(dims ...uint32) Extent3D {
	e := Extent3D{1, 1, 1}
	for i := 0; i < len(dims) && i < 3; i++ {
		e[i] = dims[i]
	}
	return e
}

// GroupCount returns the number of workgroups per dimension needed to
// cover the global extent with the given local size: the ceiling of
// global/local. Kernels guard the tail with their extents parameter.
func (e Extent3D) GroupCount(local Extent3D) Extent3D {
	var groups Extent3D
	for i := range groups {
		groups[i] = ceilDiv(e[i], local[i])
	}
	return groups
}

// Invocations returns the total invocation count of the extent.
func (e Extent3D) Invocations() uint64 {
	return uint64(e[0]) * uint64(e[1]) * uint64(e[2])
}

func ceilDiv[T constraints.Unsigned](a, b T) T {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

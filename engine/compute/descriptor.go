package compute

import (
	"fmt"
	"sync/atomic"

	"github.com/spaghettifunk/vortex/engine/compute/driver"
	"github.com/spaghettifunk/vortex/engine/core"
)

// Descriptors owns the transient descriptor pool. Sets allocated from
// it live only until the next Reset; the pool reclaims them in bulk
// instead of freeing one by one.
type Descriptors struct {
	pool       driver.DescriptorPool
	generation atomic.Uint64
}

// NewDescriptors creates the descriptor pool with the given sizes.
func NewDescriptors(device driver.Device, sizes driver.PoolSizes) (*Descriptors, error) {
	pool, err := device.CreateDescriptorPool(sizes)
	if err != nil {
		return nil, fmt.Errorf("creating descriptor pool: %w", err)
	}
	return &Descriptors{pool: pool}, nil
}

// Allocate carves a transient set for layout out of the pool. The set
// stays usable until the next Reset.
func (d *Descriptors) Allocate(layout *SetLayout) (*Set, error) {
	handle, err := d.pool.Allocate(layout.handle)
	if err != nil {
		return nil, fmt.Errorf("allocating descriptor set: %w", err)
	}
	core.MetricsDescriptorAlloc()
	return &Set{
		owner:      d,
		generation: d.generation.Load(),
		handle:     handle,
		layout:     layout,
	}, nil
}

// Reset reclaims every set allocated since the previous reset. Call
// only after the queue has drained the work that referenced them.
func (d *Descriptors) Reset() error {
	if err := d.pool.Reset(); err != nil {
		return fmt.Errorf("resetting descriptor pool: %w", err)
	}
	d.generation.Add(1)
	return nil
}

// Destroy releases the pool and all sets with it.
func (d *Descriptors) Destroy() {
	d.pool.Destroy()
}

// Set is a transient descriptor set stamped with the pool generation it
// was allocated in. Any use after the pool resets is rejected.
type Set struct {
	owner      *Descriptors
	generation uint64
	handle     driver.DescriptorSet
	layout     *SetLayout
}

func (s *Set) valid() bool {
	return s.generation == s.owner.generation.Load()
}

// BindBuffer attaches buf to the given binding slot.
func (s *Set) BindBuffer(binding uint32, kind driver.ResourceKind, buf driver.Buffer) error {
	if !s.valid() {
		return ErrSetInvalidated
	}
	return s.handle.BindBuffer(binding, kind, buf)
}

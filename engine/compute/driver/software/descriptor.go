package software

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/vortex/engine/compute/driver"
)

type descriptorPool struct {
	device  *Device
	maxSets uint32

	mutex     sync.Mutex
	allocated uint32
	epoch     uint64
}

func (p *descriptorPool) Allocate(layout driver.SetLayout) (driver.DescriptorSet, error) {
	sl, ok := layout.(*setLayout)
	if !ok {
		return nil, fmt.Errorf("software: foreign set layout %T", layout)
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.allocated >= p.maxSets {
		return nil, driver.ErrOutOfPoolMemory
	}
	p.allocated++
	return &descriptorSet{
		pool:     p,
		epoch:    p.epoch,
		layout:   sl,
		bindings: make([]*buffer, len(sl.slots)),
	}, nil
}

// Reset reclaims every set in bulk by bumping the pool epoch; stale
// sets fail their next bind.
func (p *descriptorPool) Reset() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.allocated = 0
	p.epoch++
	return nil
}

func (p *descriptorPool) Destroy() {
	p.device.logDestroy("descriptor_pool")
}

type descriptorSet struct {
	pool     *descriptorPool
	epoch    uint64
	layout   *setLayout
	bindings []*buffer
}

func (s *descriptorSet) BindBuffer(binding uint32, kind driver.ResourceKind, buf driver.Buffer) error {
	s.pool.mutex.Lock()
	stale := s.epoch != s.pool.epoch
	s.pool.mutex.Unlock()
	if stale {
		return fmt.Errorf("software: descriptor set used after pool reset")
	}
	if int(binding) >= len(s.bindings) {
		return fmt.Errorf("software: binding %d out of range for layout with %d slots", binding, len(s.bindings))
	}
	b, ok := buf.(*buffer)
	if !ok {
		return fmt.Errorf("software: foreign buffer %T", buf)
	}
	s.bindings[binding] = b
	return nil
}

package software

import (
	"fmt"

	"github.com/spaghettifunk/vortex/engine/compute/driver"
	"github.com/spaghettifunk/vortex/engine/kernels"
)

type commandPool struct {
	device *Device
}

func (cp *commandPool) Allocate() (driver.CommandBuffer, error) {
	return &commandBuffer{device: cp.device}, nil
}

func (cp *commandPool) Reset() error {
	return nil
}

func (cp *commandPool) Destroy() {
	cp.device.logDestroy("command_pool")
}

// commandBuffer accumulates operations as closures, executed in order
// at submission.
type commandBuffer struct {
	device *Device
	ops    []func() error

	// recording state
	curPipeline *pipeline
	curParams   []byte
	curSet      *descriptorSet
}

func (cb *commandBuffer) Begin() error {
	cb.ops = cb.ops[:0]
	cb.curPipeline = nil
	cb.curParams = nil
	cb.curSet = nil
	return nil
}

func (cb *commandBuffer) End() error {
	return nil
}

func (cb *commandBuffer) BindPipeline(p driver.Pipeline) error {
	pl, ok := p.(*pipeline)
	if !ok {
		return fmt.Errorf("software: foreign pipeline %T", p)
	}
	cb.curPipeline = pl
	return nil
}

func (cb *commandBuffer) PushConstants(layout driver.PipelineLayout, data []byte) error {
	params := make([]byte, len(data))
	copy(params, data)
	cb.curParams = params
	return nil
}

func (cb *commandBuffer) BindDescriptorSet(layout driver.PipelineLayout, set driver.DescriptorSet) error {
	ds, ok := set.(*descriptorSet)
	if !ok {
		return fmt.Errorf("software: foreign descriptor set %T", set)
	}
	cb.curSet = ds
	return nil
}

// Dispatch snapshots the bound state and records one execution op. The
// kernel runs once per global invocation over groups*local threads;
// bounds against the real problem extent are the kernel's own job, as
// they are on the GPU.
func (cb *commandBuffer) Dispatch(groups [3]uint32) error {
	if cb.curPipeline == nil {
		return fmt.Errorf("software: dispatch recorded with no bound pipeline")
	}
	if cb.curSet == nil {
		return fmt.Errorf("software: dispatch recorded with no bound descriptor set")
	}
	pipe := cb.curPipeline
	params := cb.curParams
	set := cb.curSet
	epoch := set.epoch

	cb.ops = append(cb.ops, func() error {
		if epoch != set.pool.epoch {
			return fmt.Errorf("software: dispatch executed with descriptor set from a reset pool")
		}
		args := make([][]byte, len(set.bindings))
		for i, b := range set.bindings {
			if b == nil {
				return fmt.Errorf("software: slot %d of descriptor set never bound", i)
			}
			args[i] = b.data
		}
		global := [3]uint32{
			groups[0] * pipe.local[0],
			groups[1] * pipe.local[1],
			groups[2] * pipe.local[2],
		}
		inv := kernels.Invocation{GlobalSize: global}
		for z := uint32(0); z < global[2]; z++ {
			for y := uint32(0); y < global[1]; y++ {
				for x := uint32(0); x < global[0]; x++ {
					inv.GlobalID = [3]uint32{x, y, z}
					pipe.module.fn(inv, params, args)
				}
			}
		}
		return nil
	})
	return nil
}

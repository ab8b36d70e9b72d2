package compute

import (
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/spaghettifunk/vortex/engine/compute/driver"
	"github.com/spaghettifunk/vortex/engine/core"
)

// BufferState tracks a command buffer through its lifecycle.
type BufferState int

const (
	// BufferStateReady means the buffer is allocated and idle.
	BufferStateReady BufferState = iota
	// BufferStateRecording means Begin has been called and commands are
	// being recorded.
	BufferStateRecording
	// BufferStateRecorded means End has been called; the buffer is
	// waiting for submission.
	BufferStateRecorded
	// BufferStateSubmitted means the buffer is on the queue; it becomes
	// ready again once the fence signals.
	BufferStateSubmitted
)

func (s BufferState) String() string {
	switch s {
	case BufferStateReady:
		return "ready"
	case BufferStateRecording:
		return "recording"
	case BufferStateRecorded:
		return "recorded"
	case BufferStateSubmitted:
		return "submitted"
	}
	return "unknown"
}

// CommandBuffer wraps a driver command buffer with an explicit state
// machine. The mutex makes state transitions safe to check from any
// goroutine, but only one goroutine may record at a time: Begin fails
// on a buffer that is not ready.
type CommandBuffer struct {
	id     string
	handle driver.CommandBuffer

	mu         sync.Mutex
	state      BufferState
	dispatches uint32
}

// ID returns the buffer's unique identifier, used in log lines.
func (cb *CommandBuffer) ID() string {
	return cb.id
}

// State returns the current lifecycle state.
func (cb *CommandBuffer) State() BufferState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Dispatches returns the number of dispatches recorded since the last
// Begin.
func (cb *CommandBuffer) Dispatches() uint32 {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.dispatches
}

// Begin moves the buffer into the recording state. Exactly one caller
// wins; anyone else gets ErrBufferBusy until the work completes.
func (cb *CommandBuffer) Begin() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != BufferStateReady {
		return fmt.Errorf("%w: begin while %s", ErrBufferBusy, cb.state)
	}
	if err := cb.handle.Begin(); err != nil {
		return err
	}
	cb.state = BufferStateRecording
	cb.dispatches = 0
	return nil
}

// End closes recording; the buffer becomes submittable.
func (cb *CommandBuffer) End() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != BufferStateRecording {
		return fmt.Errorf("%w: end while %s", ErrBufferBusy, cb.state)
	}
	if err := cb.handle.End(); err != nil {
		return err
	}
	cb.state = BufferStateRecorded
	return nil
}

// recordDispatch runs fn with the state lock held, requiring recording
// state, and counts one dispatch on success. Holding the lock across
// the whole bind/push/dispatch sequence keeps concurrent recorders from
// interleaving commands.
func (cb *CommandBuffer) recordDispatch(fn func(h driver.CommandBuffer) error) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != BufferStateRecording {
		return fmt.Errorf("%w: state %s", ErrNotRecording, cb.state)
	}
	if err := fn(cb.handle); err != nil {
		return err
	}
	cb.dispatches++
	return nil
}

// Commands owns the command pool, the submission fence, and the stream
// buffer the context records dispatches into between flushes.
type Commands struct {
	device driver.Device
	pool   driver.CommandPool
	fence  driver.Fence

	mu     sync.Mutex
	stream *CommandBuffer
}

// NewCommands creates the command pool and fence over device.
func NewCommands(device driver.Device) (*Commands, error) {
	pool, err := device.CreateCommandPool()
	if err != nil {
		return nil, fmt.Errorf("creating command pool: %w", err)
	}
	fence, err := device.CreateFence(false)
	if err != nil {
		pool.Destroy()
		return nil, fmt.Errorf("creating fence: %w", err)
	}
	return &Commands{device: device, pool: pool, fence: fence}, nil
}

// Allocate hands out a fresh command buffer in the ready state.
func (c *Commands) Allocate() (*CommandBuffer, error) {
	handle, err := c.pool.Allocate()
	if err != nil {
		return nil, fmt.Errorf("allocating command buffer: %w", err)
	}
	return &CommandBuffer{id: uuid.New().String(), handle: handle, state: BufferStateReady}, nil
}

// Stream returns the shared stream buffer, allocating it and beginning
// recording on first use (and after each completed flush).
func (c *Commands) Stream() (*CommandBuffer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == nil {
		buf, err := c.Allocate()
		if err != nil {
			return nil, err
		}
		c.stream = buf
	}
	if c.stream.State() == BufferStateReady {
		if err := c.stream.Begin(); err != nil {
			return nil, err
		}
	}
	return c.stream, nil
}

// Submit ends recording if needed and hands the buffer to the queue.
// It does not block; pair with Wait.
func (c *Commands) Submit(cb *CommandBuffer) error {
	if cb.State() == BufferStateRecording {
		if err := cb.End(); err != nil {
			return err
		}
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != BufferStateRecorded {
		return fmt.Errorf("%w: submit while %s", ErrBufferBusy, cb.state)
	}
	if err := c.fence.Reset(); err != nil {
		return fmt.Errorf("resetting fence: %w", err)
	}
	if err := c.device.Submit(cb.handle, c.fence); err != nil {
		return fmt.Errorf("submitting command buffer %s: %w", cb.id, err)
	}
	cb.state = BufferStateSubmitted
	core.MetricsSubmission()
	return nil
}

// Wait blocks until the last submitted buffer completes, then returns
// it to the ready state.
func (c *Commands) Wait(cb *CommandBuffer) error {
	if err := c.fence.Wait(math.MaxUint64); err != nil {
		return fmt.Errorf("waiting for fence: %w", err)
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == BufferStateSubmitted {
		cb.state = BufferStateReady
	}
	return nil
}

// flushStream submits the stream buffer if it recorded any dispatches
// and waits for it, then resets the pool so every transient buffer can
// be recycled. A stream with nothing recorded is ended and recycled
// without touching the queue.
func (c *Commands) flushStream() error {
	c.mu.Lock()
	stream := c.stream
	c.stream = nil
	c.mu.Unlock()

	if stream == nil {
		return nil
	}
	if stream.State() == BufferStateRecording && stream.Dispatches() == 0 {
		if err := stream.End(); err != nil {
			return err
		}
	} else if stream.State() == BufferStateRecording || stream.State() == BufferStateRecorded {
		if err := c.Submit(stream); err != nil {
			return err
		}
		if err := c.Wait(stream); err != nil {
			return err
		}
	}
	if err := c.pool.Reset(); err != nil {
		return fmt.Errorf("resetting command pool: %w", err)
	}
	return nil
}

// Destroy releases the fence and the pool (and every buffer allocated
// from it).
func (c *Commands) Destroy() {
	c.fence.Destroy()
	c.pool.Destroy()
}

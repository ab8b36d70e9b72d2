package compute

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandBufferStateMachine(t *testing.T) {
	ctx := newTestContext(t, nil)

	buf, err := ctx.Commands().Allocate()
	require.NoError(t, err)
	assert.Equal(t, BufferStateReady, buf.State())
	assert.NotEmpty(t, buf.ID())

	// End before Begin is rejected.
	assert.ErrorIs(t, buf.End(), ErrBufferBusy)

	require.NoError(t, buf.Begin())
	assert.Equal(t, BufferStateRecording, buf.State())

	// Begin while recording is rejected: one writer at a time.
	assert.ErrorIs(t, buf.Begin(), ErrBufferBusy)

	require.NoError(t, buf.End())
	assert.Equal(t, BufferStateRecorded, buf.State())

	require.NoError(t, ctx.Commands().Submit(buf))
	assert.Equal(t, BufferStateSubmitted, buf.State())

	require.NoError(t, ctx.Commands().Wait(buf))
	assert.Equal(t, BufferStateReady, buf.State())
}

func TestOnlyOneWriterWinsBegin(t *testing.T) {
	ctx := newTestContext(t, nil)

	buf, err := ctx.Commands().Allocate()
	require.NoError(t, err)

	var wg sync.WaitGroup
	wins := make(chan struct{}, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if buf.Begin() == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	assert.Equal(t, 1, count, "exactly one goroutine may start recording")
}

func TestSubmitRequiresRecordedBuffer(t *testing.T) {
	ctx := newTestContext(t, nil)

	buf, err := ctx.Commands().Allocate()
	require.NoError(t, err)
	assert.ErrorIs(t, ctx.Commands().Submit(buf), ErrBufferBusy)
}

func TestStreamIsSharedUntilFlush(t *testing.T) {
	ctx := newTestContext(t, nil)

	first, err := ctx.Stream()
	require.NoError(t, err)
	second, err := ctx.Stream()
	require.NoError(t, err)
	assert.Same(t, first, second)

	require.NoError(t, ctx.Flush())

	third, err := ctx.Stream()
	require.NoError(t, err)
	assert.NotSame(t, first, third)
}

func TestDispatchOutsideRecording(t *testing.T) {
	ctx := newTestContext(t, nil)

	err := ctx.Dispatch(nil, Signature(), Kernel("identity"), Extent(1), Extent3D{}, nil)
	assert.ErrorIs(t, err, ErrNotRecording)
}

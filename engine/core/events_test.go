package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventRegisterAndFire(t *testing.T) {
	require.True(t, EventInitialize())

	type listener struct{ fired int }
	l := &listener{}

	ok := EventRegister(EVENT_CODE_KERNEL_RELOADED, l,
		func(code SystemEventCode, sender, inst interface{}, data EventContext) bool {
			inst.(*listener).fired++
			assert.Equal(t, "clamp", data.Data.C[0])
			return false
		})
	require.True(t, ok)
	defer EventUnregister(EVENT_CODE_KERNEL_RELOADED, l, nil)

	ctx := EventContext{}
	ctx.Data.C[0] = "clamp"
	EventFire(EVENT_CODE_KERNEL_RELOADED, nil, ctx)
	assert.Equal(t, 1, l.fired)

	// Same listener cannot double-register on one code.
	assert.False(t, EventRegister(EVENT_CODE_KERNEL_RELOADED, l, nil))
}

func TestEventHandledStopsDelivery(t *testing.T) {
	require.True(t, EventInitialize())

	first, second := new(int), new(int)
	EventRegister(EVENT_CODE_CONTEXT_FLUSHED, first,
		func(code SystemEventCode, sender, inst interface{}, data EventContext) bool {
			*inst.(*int)++
			return true // handled
		})
	EventRegister(EVENT_CODE_CONTEXT_FLUSHED, second,
		func(code SystemEventCode, sender, inst interface{}, data EventContext) bool {
			*inst.(*int)++
			return false
		})
	defer EventUnregister(EVENT_CODE_CONTEXT_FLUSHED, first, nil)
	defer EventUnregister(EVENT_CODE_CONTEXT_FLUSHED, second, nil)

	assert.True(t, EventFire(EVENT_CODE_CONTEXT_FLUSHED, nil, EventContext{}))
	assert.Equal(t, 1, *first)
	assert.Equal(t, 0, *second)
}

package core

import "sync"

// EventContext carries a fixed 128-byte payload so firing an event
// never allocates. Each code documents which fields it uses.
type EventContext struct {
	Data struct {
		I64 [2]int64
		U64 [2]uint64
		F64 [2]float64

		I32 [4]int32
		U32 [4]uint32
		F32 [4]float32

		C [16]string
	}
}

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// A kernel binary was registered or replaced at runtime.
	/* Context usage:
	 * name = data.C[0];
	 */
	EVENT_CODE_KERNEL_RELOADED SystemEventCode = 0x01

	// The context flushed its transient pools.
	/* Context usage:
	 * flush_count = data.U64[0];
	 * elapsed_ms  = data.F64[0];
	 */
	EVENT_CODE_CONTEXT_FLUSHED SystemEventCode = 0x02

	// The device was lost; the context is no longer usable.
	EVENT_CODE_DEVICE_LOST SystemEventCode = 0x03

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

// This should be more than enough codes...
const MAX_MESSAGE_CODES = 16384

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

type eventCodeEntry struct {
	events []*registeredEvent
}

// State structure.
type eventSystemState struct {
	// Lookup table for event codes.
	registered [MAX_MESSAGE_CODES]eventCodeEntry
}

var onceEvent sync.Once
var eventMutex sync.RWMutex
var isInitialized bool = false
var eventState *eventSystemState = nil

// Should return true if handled.
type FnOnEvent func(code SystemEventCode, sender interface{}, listenerInst interface{}, data EventContext) bool

func EventInitialize() bool {
	onceEvent.Do(func() {
		eventState = &eventSystemState{}
		isInitialized = true
	})
	return isInitialized
}

func EventShutdown() error {
	eventMutex.Lock()
	defer eventMutex.Unlock()
	if eventState == nil {
		return nil
	}
	// Free the events arrays. Objects pointed to are destroyed on their own.
	for i := 0; i < MAX_MESSAGE_CODES; i++ {
		if len(eventState.registered[i].events) != 0 {
			eventState.registered[i].events = nil
		}
	}
	return nil
}

// EventRegister subscribes onEvent to code. Duplicate listener/callback
// combos are not registered again and cause this to return false.
func EventRegister(code SystemEventCode, listener interface{}, onEvent FnOnEvent) bool {
	if !isInitialized {
		return false
	}
	eventMutex.Lock()
	defer eventMutex.Unlock()
	for _, e := range eventState.registered[code].events {
		if e.listener == listener {
			return false
		}
	}
	event := &registeredEvent{
		listener: listener,
		callback: onEvent,
	}
	eventState.registered[code].events = append(eventState.registered[code].events, event)
	return true
}

// EventUnregister removes a subscription. Returns false when no
// matching registration exists.
func EventUnregister(code SystemEventCode, listener interface{}, onEvent FnOnEvent) bool {
	if !isInitialized {
		return false
	}
	eventMutex.Lock()
	defer eventMutex.Unlock()
	events := eventState.registered[code].events
	for i, e := range events {
		if e.listener == listener && e.callback != nil {
			eventState.registered[code].events = append(events[:i], events[i+1:]...)
			return true
		}
	}
	return false
}

// EventFire delivers the event to listeners of code in registration
// order. A listener returning true stops further delivery.
func EventFire(code SystemEventCode, sender interface{}, context EventContext) bool {
	if !isInitialized {
		return false
	}
	eventMutex.RLock()
	events := make([]*registeredEvent, len(eventState.registered[code].events))
	copy(events, eventState.registered[code].events)
	eventMutex.RUnlock()

	for _, e := range events {
		if e.callback(code, sender, e.listener, context) {
			return true
		}
	}
	return false
}

package compute

import "errors"

var (
	// ErrNoDriver is returned when no registered driver can run in this
	// process.
	ErrNoDriver = errors.New("compute: no usable driver")

	// ErrArityMismatch is returned when a dispatch supplies a different
	// number of resources than its binding signature declares.
	ErrArityMismatch = errors.New("compute: resource count does not match binding signature")

	// ErrKindMismatch is returned when a resource's kind differs from
	// the slot it is bound to.
	ErrKindMismatch = errors.New("compute: resource kind does not match binding slot")

	// ErrPushConstantRange is returned when dispatch parameters exceed
	// the device push-constant limit.
	ErrPushConstantRange = errors.New("compute: push constants exceed device limit")

	// ErrWorkgroupLimit is returned when a local workgroup size exceeds
	// the device limits.
	ErrWorkgroupLimit = errors.New("compute: workgroup size exceeds device limit")

	// ErrSetInvalidated is returned when a descriptor set is used after
	// its pool has been reset.
	ErrSetInvalidated = errors.New("compute: descriptor set used after pool reset")

	// ErrNotRecording is returned when a dispatch targets a command
	// buffer that is not in the recording state.
	ErrNotRecording = errors.New("compute: command buffer is not recording")

	// ErrBufferBusy is returned when a command buffer operation is
	// invalid in its current state.
	ErrBufferBusy = errors.New("compute: command buffer is busy")

	// ErrUnknownKernel is returned when a kernel descriptor names a
	// kernel the registry has never seen.
	ErrUnknownKernel = errors.New("compute: unknown kernel")
)

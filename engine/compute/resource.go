package compute

import (
	"encoding/binary"
	"math"

	"github.com/spaghettifunk/vortex/engine/compute/driver"
)

// Bindable is a resource that can occupy a slot of a binding signature.
// Implementations live in this package; the interface is sealed.
type Bindable interface {
	Kind() driver.ResourceKind
	bindTo(set *Set, binding uint32) error
}

// StorageBuffer is a host-visible buffer bound as a storage slot.
type StorageBuffer struct {
	buf driver.Buffer
}

// NewStorageBuffer allocates a storage buffer of size bytes.
func (c *Context) NewStorageBuffer(size uint64) (*StorageBuffer, error) {
	buf, err := c.device.CreateBuffer(size, driver.UsageStorage)
	if err != nil {
		return nil, err
	}
	return &StorageBuffer{buf: buf}, nil
}

func (b *StorageBuffer) Kind() driver.ResourceKind {
	return driver.KindStorageBuffer
}

func (b *StorageBuffer) bindTo(set *Set, binding uint32) error {
	return set.BindBuffer(binding, driver.KindStorageBuffer, b.buf)
}

// Size returns the buffer size in bytes.
func (b *StorageBuffer) Size() uint64 {
	return b.buf.Size()
}

// Write copies data into the buffer at offset.
func (b *StorageBuffer) Write(data []byte, offset uint64) error {
	return b.buf.Write(data, offset)
}

// Read copies len(dst) bytes out of the buffer at offset.
func (b *StorageBuffer) Read(dst []byte, offset uint64) error {
	return b.buf.Read(dst, offset)
}

// WriteFloat32 uploads values starting at the buffer's beginning.
func (b *StorageBuffer) WriteFloat32(values []float32) error {
	return b.buf.Write(Float32Bytes(values), 0)
}

// ReadFloat32 downloads n float32 values from the buffer's beginning.
func (b *StorageBuffer) ReadFloat32(n int) ([]float32, error) {
	data := make([]byte, n*4)
	if err := b.buf.Read(data, 0); err != nil {
		return nil, err
	}
	return Float32Values(data), nil
}

// Destroy releases the buffer. The caller must ensure the queue no
// longer references it (Flush first).
func (b *StorageBuffer) Destroy() {
	b.buf.Destroy()
}

// UniformBuffer is a host-visible buffer bound as a uniform slot.
type UniformBuffer struct {
	buf driver.Buffer
}

// NewUniformBuffer allocates a uniform buffer of size bytes.
func (c *Context) NewUniformBuffer(size uint64) (*UniformBuffer, error) {
	buf, err := c.device.CreateBuffer(size, driver.UsageUniform)
	if err != nil {
		return nil, err
	}
	return &UniformBuffer{buf: buf}, nil
}

func (b *UniformBuffer) Kind() driver.ResourceKind {
	return driver.KindUniformBuffer
}

func (b *UniformBuffer) bindTo(set *Set, binding uint32) error {
	return set.BindBuffer(binding, driver.KindUniformBuffer, b.buf)
}

// Size returns the buffer size in bytes.
func (b *UniformBuffer) Size() uint64 {
	return b.buf.Size()
}

// Write copies data into the buffer at offset.
func (b *UniformBuffer) Write(data []byte, offset uint64) error {
	return b.buf.Write(data, offset)
}

// WriteUint32 uploads values starting at the buffer's beginning.
// Useful for the uvec4 extents blocks the shipped kernels declare.
func (b *UniformBuffer) WriteUint32(values []uint32) error {
	return b.buf.Write(Uint32Bytes(values), 0)
}

// Destroy releases the buffer. The caller must ensure the queue no
// longer references it (Flush first).
func (b *UniformBuffer) Destroy() {
	b.buf.Destroy()
}

// Float32Bytes encodes values as little-endian IEEE-754 words, the
// layout std430 storage buffers expect on every supported platform.
func Float32Bytes(values []float32) []byte {
	data := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	return data
}

// Float32Values decodes little-endian IEEE-754 words.
func Float32Values(data []byte) []float32 {
	values := make([]float32, len(data)/4)
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return values
}

// Uint32Bytes encodes values as little-endian words.
func Uint32Bytes(values []uint32) []byte {
	data := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[i*4:], v)
	}
	return data
}

package compute

import (
	"fmt"

	"github.com/spaghettifunk/vortex/engine/compute/driver"
	"github.com/spaghettifunk/vortex/engine/core"
)

// Adapter pairs a driver with the physical device it selected. It is
// the root of the runtime object tree and is released last, after the
// logical device is gone.
type Adapter struct {
	drv  driver.Driver
	info driver.AdapterInfo
}

// NewAdapter selects a physical device through drv.
func NewAdapter(drv driver.Driver, preferDiscrete bool) (*Adapter, error) {
	info, err := drv.SelectAdapter(preferDiscrete)
	if err != nil {
		return nil, fmt.Errorf("selecting adapter on driver %q: %w", drv.Name(), err)
	}
	core.LogInfo("using %s adapter %q (%s)", drv.Name(), info.Name, info.DeviceType)
	return &Adapter{drv: drv, info: info}, nil
}

// Driver returns the backing driver.
func (a *Adapter) Driver() driver.Driver {
	return a.drv
}

// Info returns the selected physical device description.
func (a *Adapter) Info() driver.AdapterInfo {
	return a.info
}

// Open creates the logical device and its compute queue.
func (a *Adapter) Open(opts driver.DeviceOptions) (driver.Device, error) {
	return a.drv.Open(a.info, opts)
}

// Release frees any process-level driver state. Call only after every
// device opened from this adapter has been destroyed.
func (a *Adapter) Release() {
	if r, ok := a.drv.(driver.Releaser); ok {
		r.Release()
	}
}

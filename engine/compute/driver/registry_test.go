package driver_test

import (
	"testing"

	"github.com/spaghettifunk/vortex/engine/compute/driver"
	"github.com/spaghettifunk/vortex/engine/compute/driver/software"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSoftwareDriverRegisters(t *testing.T) {
	assert.Contains(t, driver.Registered(), software.DriverName)

	d := driver.Get(software.DriverName)
	require.NotNil(t, d)
	assert.Equal(t, software.DriverName, d.Name())
	assert.True(t, d.Available())
}

func TestGetUnknownDriver(t *testing.T) {
	assert.Nil(t, driver.Get("no-such-backend"))
}

func TestDefaultFallsBackToSoftware(t *testing.T) {
	// Whatever else is registered, Default must return something usable
	// because the software driver always can run.
	d := driver.Default()
	require.NotNil(t, d)
	assert.True(t, d.Available())
}

func TestRegisterAndUnregister(t *testing.T) {
	name := "registry-test"
	driver.Register(name, func() driver.Driver { return software.New() })
	assert.Contains(t, driver.Registered(), name)

	driver.Unregister(name)
	assert.NotContains(t, driver.Registered(), name)
}

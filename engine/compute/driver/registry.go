package driver

import (
	"sync"
)

// Factory creates a new driver instance.
type Factory func() Driver

var (
	registryMu sync.RWMutex
	drivers    = make(map[string]Factory)
	// Priority order for driver selection (first available wins).
	priority = []string{"vulkan", "software"}
)

// Register registers a driver factory under the given name. Typically
// called from init functions in driver packages. Re-registering a name
// replaces the previous factory.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	drivers[name] = factory
}

// Unregister removes a driver from the registry. Useful for tests.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(drivers, name)
}

// Registered returns the names of all registered drivers.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	return names
}

// Get returns a driver instance by name, or nil if not registered.
func Get(name string) Driver {
	registryMu.RLock()
	defer registryMu.RUnlock()
	factory, ok := drivers[name]
	if !ok {
		return nil
	}
	return factory()
}

// Default returns the best available driver in priority order
// (vulkan before software), or nil when none can run.
func Default() Driver {
	registryMu.RLock()
	defer registryMu.RUnlock()

	for _, name := range priority {
		if factory, ok := drivers[name]; ok {
			d := factory()
			if d != nil && d.Available() {
				return d
			}
		}
	}
	for _, factory := range drivers {
		if d := factory(); d != nil && d.Available() {
			return d
		}
	}
	return nil
}

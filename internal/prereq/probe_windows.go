//go:build windows

package prereq

import (
	"context"

	"golang.org/x/sys/windows/registry"
)

// runtimesKeyPath is the registry location the redistributable writes its
// installation marker to.
const runtimesKeyPath = `SOFTWARE\Microsoft\VisualStudio\14.0\VC\Runtimes\x64`

// registryProbe reads the redistributable marker from the Windows registry.
type registryProbe struct{}

// NewPlatformProbe returns the registry-backed marker probe.
func NewPlatformProbe() Probe {
	return registryProbe{}
}

// Present implements Probe.
func (registryProbe) Present(_ context.Context) (bool, error) {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, runtimesKeyPath, registry.QUERY_VALUE)
	if err != nil {
		// The key does not exist until the redistributable is installed.
		return false, nil
	}

	defer func() {
		_ = key.Close()
	}()

	installed, _, err := key.GetIntegerValue("Installed")
	if err != nil {
		return false, nil
	}

	return installed == 1, nil
}

//go:build !windows

package prereq

import "context"

// unsupportedProbe is used on hosts without the registry marker mechanism.
type unsupportedProbe struct{}

// NewPlatformProbe returns a probe that reports the host as unsupported.
func NewPlatformProbe() Probe {
	return unsupportedProbe{}
}

// Present implements Probe.
func (unsupportedProbe) Present(_ context.Context) (bool, error) {
	return false, ErrUnsupportedHost
}

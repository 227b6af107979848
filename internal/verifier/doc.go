// Package verifier independently re-validates a produced bundle archive:
// it extracts into a fresh temporary location and runs an ordered battery
// of structural and functional checks, accumulating every result into one
// report instead of stopping at the first failure.
package verifier

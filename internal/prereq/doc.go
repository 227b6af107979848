// Package prereq idempotently ensures the native runtime redistributable
// is present on the build host: check the host-level installation marker
// first, run the silent installer only when absent, classify its exit code
// (success, restart pending, failure), and confirm the marker afterwards.
package prereq

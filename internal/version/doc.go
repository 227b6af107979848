// Package version exposes build metadata for the project.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags and default to sensible values for local builds.
// Helper functions Short and Full render the version string for CLI output
// and logs. DetectBundle resolves the version stamped on produced bundles
// from an explicit override or the app repository's git metadata.
package version

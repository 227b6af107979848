package pipeline

import "fmt"

// DownloadError reports that every transport attempt for one artifact failed.
type DownloadError struct {
	// URL is the artifact source that could not be fetched.
	URL string
	// Attempts is the total number of attempts made across transports.
	Attempts int
	// Err is the last transport failure.
	Err error
}

// Error implements the error interface.
func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s failed after %d attempts: %v; check network access or mirror the artifact locally",
		e.URL, e.Attempts, e.Err)
}

// Unwrap exposes the last transport failure.
func (e *DownloadError) Unwrap() error { return e.Err }

// IntegrityError reports a digest or magic-signature mismatch on a fetched file.
type IntegrityError struct {
	// Path is the local file that failed verification.
	Path string
	// Reason describes what was checked ("sha256" or "zip magic").
	Reason string
	// Expected and Actual carry the compared values when available.
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *IntegrityError) Error() string {
	if e.Expected != "" {
		return fmt.Sprintf("%s failed %s verification: expected %s, got %s; re-download the artifact or update the pinned digest",
			e.Path, e.Reason, e.Expected, e.Actual)
	}

	return fmt.Sprintf("%s failed %s verification; the download is corrupt, re-run the build", e.Path, e.Reason)
}

// PatchInvariantError reports a byte-order mark present after patching the path file.
type PatchInvariantError struct {
	// Path is the patched file.
	Path string
}

// Error implements the error interface.
func (e *PatchInvariantError) Error() string {
	return fmt.Sprintf("%s begins with a UTF-8 byte-order mark after patching; this is a bundler defect, the interpreter would fail to resolve modules", e.Path)
}

// DependencyPreflightError reports a requirement with no binary-only artifact.
type DependencyPreflightError struct {
	// Requirement is the offending requirement line.
	Requirement string
	// Err is the underlying resolver output.
	Err error
}

// Error implements the error interface.
func (e *DependencyPreflightError) Error() string {
	return fmt.Sprintf("no binary package satisfies %q: %v; pin a version that publishes wheels for the embedded interpreter",
		e.Requirement, e.Err)
}

// Unwrap exposes the underlying resolver output.
func (e *DependencyPreflightError) Unwrap() error { return e.Err }

// DependencyInstallError reports a failed install step.
type DependencyInstallError struct {
	// Requirement names what was being installed ("bulk closure" or a single package).
	Requirement string
	// Hint tells the operator how to proceed.
	Hint string
	// Err is the underlying installer failure.
	Err error
}

// Error implements the error interface.
func (e *DependencyInstallError) Error() string {
	hint := e.Hint
	if hint == "" {
		hint = "inspect the installer output above"
	}

	return fmt.Sprintf("install %s failed: %v; %s", e.Requirement, e.Err, hint)
}

// Unwrap exposes the underlying installer failure.
func (e *DependencyInstallError) Unwrap() error { return e.Err }

// SmokeTestError reports a package that installed but failed to load.
// It is deliberately distinct from DependencyInstallError: the artifact is
// present, yet importing it in a fresh interpreter failed.
type SmokeTestError struct {
	// Package is the import name that failed.
	Package string
	// Output is the interpreter diagnostic.
	Output string
	// Installed reports whether the package files are present.
	Installed bool
}

// Error implements the error interface.
func (e *SmokeTestError) Error() string {
	if !e.Installed {
		return fmt.Sprintf("package %s is not installed: %s", e.Package, e.Output)
	}

	return fmt.Sprintf("package %s is installed but failed to load: %s; a native prerequisite is likely missing, install the runtime redistributable and retry",
		e.Package, e.Output)
}

// PrerequisiteInstallError reports a failed native prerequisite installation.
type PrerequisiteInstallError struct {
	// ExitCode is the installer's exit code (-1 when the marker stayed absent
	// despite a zero exit).
	ExitCode int
	// Detail carries additional diagnostics.
	Detail string
}

// Error implements the error interface.
func (e *PrerequisiteInstallError) Error() string {
	return fmt.Sprintf("prerequisite installer failed (exit code %d): %s; install the redistributable manually and re-run the build",
		e.ExitCode, e.Detail)
}

// ArchiveStructureError reports an unsafe archive entry name.
type ArchiveStructureError struct {
	// Entry is the offending entry name.
	Entry string
	// Reason describes why the entry was rejected.
	Reason string
}

// Error implements the error interface.
func (e *ArchiveStructureError) Error() string {
	return fmt.Sprintf("unsafe archive entry %q: %s; entries must be relative to the bundle root", e.Entry, e.Reason)
}

// StructuralVerificationError reports an expected file absent from an extracted archive.
type StructuralVerificationError struct {
	// Path is the canonical relative path that was missing.
	Path string
}

// Error implements the error interface.
func (e *StructuralVerificationError) Error() string {
	return fmt.Sprintf("bundle is missing required file %s; rebuild the archive", e.Path)
}

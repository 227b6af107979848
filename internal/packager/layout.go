package packager

import "fmt"

// Canonical relative paths inside the bundle. The launcher consumes the
// exact same strings, so they change together or not at all.
const (
	// PythonExePath is the embedded interpreter binary.
	PythonExePath = "runtime/python/python.exe"
	// GitExePath is the version-control binary.
	GitExePath = "runtime/git/bin/git.exe"
	// LauncherName is the bundle's entry point script.
	LauncherName = "launcher_windows.py"
	// ConfigTemplateName is the runtime configuration template.
	ConfigTemplateName = "localis_runtime_config.json"
)

// RequiredPaths lists the canonical paths every bundle must contain.
// pathFileName is the interpreter's search-path file for the pinned version.
func RequiredPaths(pathFileName string) []string {
	return []string{
		PythonExePath,
		"runtime/python/" + pathFileName,
		GitExePath,
		LauncherName,
		ConfigTemplateName,
	}
}

// ArchiveName renders the output archive filename for a bundle version.
func ArchiveName(version string) string {
	return fmt.Sprintf("localis-runtime-%s.zip", version)
}

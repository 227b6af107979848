package resolver

import (
	"bufio"
	"bytes"
	"strings"
)

// IsolatedPackage is the one dependency known to lack portable binary
// builds on the official index and therefore handled outside the bulk
// closure.
const IsolatedPackage = "llama-cpp-python"

// Requirement is one pinned requirement line.
type Requirement struct {
	// Line is the raw requirement as written, e.g. "fastapi==0.111.0".
	Line string
}

// Name returns the distribution name portion of the requirement.
func (r Requirement) Name() string {
	name := strings.TrimSpace(r.Line)
	if cut := strings.IndexAny(name, "=<>!~[; "); cut >= 0 {
		name = name[:cut]
	}

	return strings.ToLower(name)
}

// Closure is the dependency set partitioned into the bulk subset and the
// isolated package. The isolated package never appears in Bulk.
type Closure struct {
	// Bulk is the subset installed through the generic binary-only path.
	Bulk []Requirement
	// Isolated is the requirement line for the isolated package, when present.
	Isolated Requirement
	// HasIsolated reports whether the requirements file listed the isolated package.
	HasIsolated bool
}

// ParseRequirements reads a requirements file and partitions it.
// Blank lines, comments, and pip directives (-r, --hash, ...) are skipped.
func ParseRequirements(data []byte) Closure {
	var closure Closure

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}

		if comment := strings.Index(line, " #"); comment >= 0 {
			line = strings.TrimSpace(line[:comment])
		}

		req := Requirement{Line: line}
		if req.Name() == IsolatedPackage {
			closure.Isolated = req
			closure.HasIsolated = true

			continue
		}

		closure.Bulk = append(closure.Bulk, req)
	}

	return closure
}

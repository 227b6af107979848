// Package zipx reads and writes the bundle archive format: a byte-stable
// zip writer (sorted entries, fixed timestamp, normalized modes), a safe
// extractor, and the entry-name containment check shared by the packager
// and the verifier.
package zipx

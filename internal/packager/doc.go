// Package packager assembles the canonical bundle layout from the staging
// tree and serializes it into one deterministic archive. Entry names are
// computed relative to the staging root, scanned against the unsafe-name
// pattern after writing, and the archive ships with a SHA-256 side-car.
package packager

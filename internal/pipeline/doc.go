// Package pipeline sequences the build stages (fetch, resolve, patch,
// prerequisite, package) against one shared run context and defines the
// typed error taxonomy every stage reports through. Stages before the
// verifier fail fast: the first fatal error aborts the run with no archive
// produced. A file lock on the output directory rejects concurrent builds.
package pipeline

// Package fetcher retrieves the pinned external artifacts (embedded
// interpreter distribution, git distribution, pip bootstrap script,
// native redistributable) with transport fallback, bounded retries,
// magic-signature validation for archives, and SHA-256 verification.
// Verified distribution zips are extracted into the staging tree.
package fetcher

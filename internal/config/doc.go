// Package config loads, saves and validates the YAML settings driving a
// bundler run: pinned artifact URLs and digests, the wheel source token,
// the app repository path, and network policy (timeout, retry count).
// Defaults cover every pinned value so a minimal file only needs app_repo.
package config

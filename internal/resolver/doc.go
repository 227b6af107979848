// Package resolver installs the pinned dependency closure into the staged
// embedded interpreter using only precompiled binary packages. The closure
// is partitioned into a bulk subset, preflighted and installed through the
// generic binary-only path, and one isolated package resolved through a
// single explicitly selected wheel source variant and smoke-imported in a
// fresh interpreter afterwards.
package resolver

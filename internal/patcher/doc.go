// Package patcher rewrites the embedded interpreter's module-search
// configuration file (the ._pth file) and enforces that the written bytes
// never begin with a UTF-8 byte-order mark.
package patcher

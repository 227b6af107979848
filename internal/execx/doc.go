// Package execx defines the command runner seam shared by stages that shell
// out to external tools (pip, the embedded interpreter, git, the
// redistributable installer). Production code uses Run; tests inject fakes.
package execx

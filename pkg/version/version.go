// Package version carries build-time metadata for the githound binary.
package version

// Version is the semantic version of the binary. Overridden at build time
// via -ldflags.
var Version = "dev"

// GitHash is the git hash of the source tree the binary was built from.
var GitHash = "<unknown>"

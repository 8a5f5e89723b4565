// Package version provides version information for jetlite.
//
// The version is embedded from version.txt at compile time.
package version

import (
	_ "embed"
	"runtime"
	"strings"
)

//go:embed version.txt
var versionFile string

// Version is the current version of jetlite.
var Version = strings.TrimSpace(versionFile)

// String returns the version string.
func String() string {
	return Version
}

// Full returns a full version string with the program name and Go runtime.
func Full() string {
	return "jetlite version " + Version + " (" + runtime.Version() + " " + runtime.GOOS + "/" + runtime.GOARCH + ")"
}

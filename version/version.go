// Package version provides the supervisor version strings.
package version

import (
	_ "embed"
	"runtime"
	"strings"
)

// buildVersion can be overridden at compile time by using:
//
//	go run -ldflags "-X github.com/gridhome/energy-supervisor/version.buildVersion=abc" . --version
//
// Release binaries are always built with the buildVersion variable set.

//go:embed VERSION
var baseVersion string
var buildVersion string

func Version() string {
	return strings.TrimSpace(baseVersion)
}

func BuildVersion() string {
	if buildVersion == "" {
		return "x"
	}
	return buildVersion
}

func UserAgent() string {
	return "energy-supervisor/" + Version() + "." + BuildVersion() + " (" + runtime.GOOS + "; " + runtime.GOARCH + ")"
}

// FullVersion is the version and build, for human display.
func FullVersion() string {
	return Version() + " build " + BuildVersion()
}

// Package buildinfo carries the build version, overridable at link time:
//
//	go build -ldflags "-X .../internal/buildinfo.Version=v0.2.0"
package buildinfo

var (
	Version   = "0.1.0"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Package buildinfo holds build-time metadata injected via -ldflags.
package buildinfo

import "runtime/debug"

// Version is the semantic version or tag for this build.
// Inject via: -X github.com/Lacarte/video-player/internal/buildinfo.Version=...
var Version = ""

// Commit is the git commit SHA for this build.
// Inject via: -X github.com/Lacarte/video-player/internal/buildinfo.Commit=...
var Commit = ""

// BuildDate is the RFC3339 build timestamp.
// Inject via: -X github.com/Lacarte/video-player/internal/buildinfo.BuildDate=...
var BuildDate = ""

// Release returns the identifier reported to error tracking: Version when
// injected, else the VCS revision recorded by the Go toolchain, else "dev".
func Release() string {
	if Version != "" {
		return Version
	}
	if Commit != "" {
		return Commit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				return s.Value
			}
		}
	}
	return "dev"
}

// Package version reports which strata build is running.
//
// Release builds set the variables below with ldflags:
//
//	go build -ldflags "-X github.com/teranos/strata/version.Version=v0.3.0 \
//	  -X github.com/teranos/strata/version.CommitHash=$(git rev-parse HEAD)"
//
// Plain `go build` and `go install` binaries fall back to the VCS stamp the
// Go toolchain embeds, so the MCP server still advertises a real revision.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Name is the product name used in version strings and the MCP handshake
const Name = "strata"

const unset = "dev"

// Set at build time via ldflags
var (
	CommitHash = unset
	BuildTime  = "unknown"
	Version    = unset
)

// Info contains version and build information
type Info struct {
	CommitHash string `json:"commit_hash"`
	BuildTime  string `json:"build_time"`
	Version    string `json:"version"`
	Modified   bool   `json:"modified,omitempty"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
}

// Get returns the current version information
func Get() Info {
	info := Info{
		CommitHash: CommitHash,
		BuildTime:  BuildTime,
		Version:    Version,
		GoVersion:  runtime.Version(),
		Platform:   fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info = withBuildInfo(info, bi)
	}
	return info
}

// withBuildInfo fills fields ldflags left unset from the embedded module and VCS stamp
func withBuildInfo(info Info, bi *debug.BuildInfo) Info {
	if info.Version == unset && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.CommitHash == unset {
				info.CommitHash = s.Value
			}
		case "vcs.time":
			if info.BuildTime == "unknown" {
				info.BuildTime = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

// String returns a human-readable version string
func (i Info) String() string {
	commit := i.CommitHash
	if i.Modified {
		commit += "+dirty"
	}
	return fmt.Sprintf("%s %s (commit %s, built %s)", Name, i.Version, commit, i.BuildTime)
}

// Short returns the abbreviated commit hash
func (i Info) Short() string {
	if len(i.CommitHash) >= 7 {
		return i.CommitHash[:7]
	}
	return i.CommitHash
}

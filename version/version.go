package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Build information. These variables are set at build time via ldflags.
var (
	// CommitHash is the git commit hash when the binary was built
	CommitHash = "dev"

	// BuildTime is when the binary was built
	BuildTime = "unknown"

	// Version is the semantic version (if tagged)
	Version = "dev"
)

// PayloadVersion identifies the layout of the parsed-unit payload the worker
// hands back to the coordinator. Bump it whenever decl or diag change shape.
const PayloadVersion = 1

// Info contains version and build information
type Info struct {
	CommitHash     string `json:"commit_hash" yaml:"commit_hash"`
	BuildTime      string `json:"build_time" yaml:"build_time"`
	Version        string `json:"version" yaml:"version"`
	GoVersion      string `json:"go_version" yaml:"go_version"`
	Platform       string `json:"platform" yaml:"platform"`
	PayloadVersion int    `json:"payload_version" yaml:"payload_version"`
}

// Get returns the current version information
func Get() Info {
	info := Info{
		CommitHash:     CommitHash,
		BuildTime:      BuildTime,
		Version:        Version,
		GoVersion:      runtime.Version(),
		Platform:       fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		PayloadVersion: PayloadVersion,
	}

	// `go install` builds carry VCS stamps instead of ldflags
	if info.CommitHash == "dev" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, s := range bi.Settings {
				switch s.Key {
				case "vcs.revision":
					info.CommitHash = s.Value
				case "vcs.time":
					info.BuildTime = s.Value
				}
			}
		}
	}
	return info
}

// String returns a human-readable version string
func (i Info) String() string {
	if i.Version != "dev" {
		return fmt.Sprintf("bindgen %s (commit %s, built %s)", i.Version, i.Short(), i.BuildTime)
	}
	return fmt.Sprintf("bindgen dev (commit %s, built %s)", i.Short(), i.BuildTime)
}

// Short returns a short version string with just the commit hash
func (i Info) Short() string {
	if len(i.CommitHash) >= 7 {
		return i.CommitHash[:7]
	}
	return i.CommitHash
}

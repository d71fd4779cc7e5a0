package health

import (
	"os"
	"runtime"
	"runtime/debug"
	"time"
)

type BuildInfo struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"git_commit"`
	BuildTime time.Time `json:"build_time,omitempty"`
	GoVersion string    `json:"go_version"`
	OS        string    `json:"os"`
	Arch      string    `json:"arch"`
}

// readBuildInfo combines the configured version with vcs stamps embedded by
// the go toolchain. BUILD_COMMIT and BUILD_TIME override the stamps.
func readBuildInfo(version string) BuildInfo {
	info := BuildInfo{
		Version:   version,
		GitCommit: "unknown",
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range bi.Settings {
			switch setting.Key {
			case "vcs.revision":
				info.GitCommit = shortCommit(setting.Value)
			case "vcs.time":
				if t, err := time.Parse(time.RFC3339, setting.Value); err == nil {
					info.BuildTime = t
				}
			}
		}
	}

	if commit := os.Getenv("BUILD_COMMIT"); commit != "" {
		info.GitCommit = shortCommit(commit)
	}

	if buildTime := os.Getenv("BUILD_TIME"); buildTime != "" {
		if t, err := time.Parse(time.RFC3339, buildTime); err == nil {
			info.BuildTime = t
		}
	}

	return info
}

func shortCommit(commit string) string {
	if len(commit) > 7 {
		return commit[:7]
	}
	return commit
}

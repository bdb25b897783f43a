package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

// Set at build time with -ldflags "-X".
var (
	Version   = "dev"
	Commit    = ""
	BuildTime = ""
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// Info fills commit and build time from the embedded VCS stamp when the
// linker flags did not set them.
func Info() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fromSettings(&info, bi.Settings)
	}
	if info.Commit == "" {
		info.Commit = "unknown"
	}
	info.BuildTime = formatBuildTime(info.BuildTime)
	return info
}

func fromSettings(info *BuildInfo, settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = s.Value
				if len(info.Commit) > 12 {
					info.Commit = info.Commit[:12]
				}
			}
		case "vcs.time":
			if info.BuildTime == "" {
				info.BuildTime = s.Value
			}
		}
	}
}

func formatBuildTime(s string) string {
	if s == "" {
		return "unknown"
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return t.UTC().Format("2006-01-02 15:04:05 MST")
}

// String is the one line banner shared by --version and the version command.
func String() string {
	info := Info()
	return fmt.Sprintf("screenrec %s (%s, built %s) %s", info.Version, info.Commit, info.BuildTime, info.Platform)
}

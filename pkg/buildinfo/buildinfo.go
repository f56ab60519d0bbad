// Package buildinfo reports the version of the qidlink binary.
package buildinfo

import (
	"encoding/json"
	"net/http"
	"runtime"
	"runtime/debug"
)

// Set at build time via ldflags, e.g.
// -X github.com/otherjamesbrown/qidlink/pkg/buildinfo.Version=v0.3.0
// -X github.com/otherjamesbrown/qidlink/pkg/buildinfo.Commit=1f2e3d4
// -X github.com/otherjamesbrown/qidlink/pkg/buildinfo.BuildTime=2026-10-01T09:00:00Z
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info describes a build.
type Info struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Modified  bool   `json:"modified,omitempty"`
}

// Get returns build info for the named binary. When ldflags were not set,
// the VCS stamps recorded by the Go toolchain fill Commit and BuildTime.
func Get(name string) Info {
	info := Info{
		Name:      name,
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		applyVCS(&info, bi.Settings)
	}
	return info
}

func applyVCS(info *Info, settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "unknown" && s.Value != "" {
				info.Commit = s.Value
				if len(info.Commit) > 7 {
					info.Commit = info.Commit[:7]
				}
			}
		case "vcs.time":
			if info.BuildTime == "unknown" && s.Value != "" {
				info.BuildTime = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
}

// String returns a one-liner like "v0.3.0 (1f2e3d4, 2026-10-01T09:00:00Z)".
func String() string {
	info := Get("")
	s := info.Version + " (" + info.Commit + ", " + info.BuildTime + ")"
	if info.Modified {
		s += " modified"
	}
	return s
}

// Handler serves build info as JSON, for the metrics listener's /version.
func Handler(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(Get(name))
	}
}

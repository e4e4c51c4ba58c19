// Package buildinfo reports the version of the gendercode binary.
package buildinfo

import (
	"encoding/json"
	"net/http"
	"runtime"
	"runtime/debug"
)

// ServiceName identifies this binary in logs, metrics and /version.
const ServiceName = "gendercode"

// These vars are set at build time via ldflags:
// -X github.com/otherjamesbrown/gendercode/pkg/buildinfo.Version=v0.3.0
// -X github.com/otherjamesbrown/gendercode/pkg/buildinfo.Commit=1f0c2ab
// -X github.com/otherjamesbrown/gendercode/pkg/buildinfo.BuildTime=2026-10-01T09:00:00Z
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// driverModules maps the dictionary backends' client modules to the source
// they serve.
var driverModules = map[string]string{
	"github.com/jackc/pgx/v5":      "postgres",
	"modernc.org/sqlite":           "sqlite",
	"github.com/redis/go-redis/v9": "redis",
}

// Info describes a gendercode build.
type Info struct {
	ServiceName string `json:"service_name" yaml:"service_name"`
	Version     string `json:"version" yaml:"version"`
	Commit      string `json:"commit" yaml:"commit"`
	BuildTime   string `json:"build_time" yaml:"build_time"`
	// Modified is set when the binary was built from a dirty checkout.
	Modified  bool   `json:"modified,omitempty" yaml:"modified,omitempty"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
	// Drivers lists the client module version behind each dictionary source
	// linked into the binary.
	Drivers map[string]string `json:"drivers,omitempty" yaml:"drivers,omitempty"`
}

// Get returns build info for the named service. Values not set through
// ldflags fall back to what the Go toolchain recorded in the binary.
func Get(serviceName string) Info {
	info := Info{
		ServiceName: serviceName,
		Version:     Version,
		Commit:      Commit,
		BuildTime:   BuildTime,
		GoVersion:   runtime.Version(),
		Platform:    runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info.merge(bi)
	}
	return info
}

func (info *Info) merge(bi *debug.BuildInfo) {
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}

	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "unknown" {
				info.Commit = shortRevision(s.Value)
			}
		case "vcs.time":
			if info.BuildTime == "unknown" {
				info.BuildTime = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}

	for _, dep := range bi.Deps {
		source, ok := driverModules[dep.Path]
		if !ok {
			continue
		}
		if dep.Replace != nil {
			dep = dep.Replace
		}
		if info.Drivers == nil {
			info.Drivers = make(map[string]string)
		}
		info.Drivers[source] = dep.Version
	}
}

func shortRevision(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}

// String returns a human-readable one-liner like "v0.3.0 (1f0c2ab, 2026-10-01T09:00:00Z)".
func String() string {
	return Version + " (" + Commit + ", " + BuildTime + ")"
}

// Handler returns an HTTP handler that responds with build info JSON.
func Handler(serviceName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Get(serviceName))
	}
}

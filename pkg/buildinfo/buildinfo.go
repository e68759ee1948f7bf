// Package buildinfo exposes the version stamped into the grantqa binary.
package buildinfo

import (
	"net/http"
	"runtime"

	"github.com/gin-gonic/gin"
)

// ServiceName identifies this binary in build info and logs.
const ServiceName = "grantqa"

// These vars are set at build time via ldflags:
// -X github.com/otherjamesbrown/grantqa/pkg/buildinfo.Version=v0.3.0
// -X github.com/otherjamesbrown/grantqa/pkg/buildinfo.Commit=4c1d9e2
// -X github.com/otherjamesbrown/grantqa/pkg/buildinfo.BuildTime=2026-10-01T08:00:00Z
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info holds build information.
type Info struct {
	ServiceName string `json:"service_name" yaml:"service_name"`
	Version     string `json:"version" yaml:"version"`
	Commit      string `json:"commit" yaml:"commit"`
	BuildTime   string `json:"build_time" yaml:"build_time"`
	GoVersion   string `json:"go_version" yaml:"go_version"`
}

// Get returns the build info of this binary.
func Get() Info {
	return Info{
		ServiceName: ServiceName,
		Version:     Version,
		Commit:      Commit,
		BuildTime:   BuildTime,
		GoVersion:   runtime.Version(),
	}
}

// IsDev reports whether the binary was built without a release version.
func IsDev() bool {
	return Version == "dev"
}

// String returns a one-liner like "v0.3.0 (4c1d9e2, 2026-10-01T08:00:00Z)"
func String() string {
	return Version + " (" + Commit + ", " + BuildTime + ")"
}

// Handler serves build info as JSON.
func Handler(c *gin.Context) {
	c.JSON(http.StatusOK, Get())
}

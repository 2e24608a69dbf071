package meta

import (
	"fmt"
	"runtime"

	"go.uber.org/zap"
)

// Info describes the build context of a resp3d binary. Most of it is set at
// build time by the Go linker, see the vars below.
type Info struct {
	Version   string
	Build     string
	Branch    string
	BuildTime string
	Platform  string
	GoVersion string
	GoTag     string
}

// These will be filled in using the linker -X flag
var (
	// Version as an arbitrary string
	Version string

	// Build is the Git sha from when we are building
	Build string

	// Branch is the Git branch that we are building from
	Branch string

	// BuildTimeUTC is the build time in UTC (year/month/day hour:min:sec)
	BuildTimeUTC string

	// GoTag is the Go build tags, see https://golang.org/pkg/go/build/#hdr-Build_Constraints
	GoTag string

	platform = fmt.Sprintf("%s %s", runtime.GOOS, runtime.GOARCH)
)

const devVersion = "dev"

// GetInfo returns an Info struct populated with the build information.
func GetInfo() Info {
	return Info{
		GoVersion: runtime.Version(),
		Version:   VersionOrDev(),
		Build:     Build,
		Branch:    Branch,
		BuildTime: BuildTimeUTC,
		GoTag:     GoTag,
		Platform:  platform,
	}
}

// VersionOrDev returns Version, or "dev" for binaries built without it.
func VersionOrDev() string {
	if Version == "" {
		return devVersion
	}
	return Version
}

func (i Info) String() string {
	s := fmt.Sprintf("resp3d %s (%s, %s)", i.Version, i.Platform, i.GoVersion)
	if i.Build != "" {
		s += fmt.Sprintf(" build %s on %s at %s", i.Build, i.Branch, i.BuildTime)
	}
	return s
}

// Fields renders the info as log fields.
func (i Info) Fields() []zap.Field {
	return []zap.Field{
		zap.String("version", i.Version),
		zap.String("build", i.Build),
		zap.String("branch", i.Branch),
		zap.String("buildTime", i.BuildTime),
		zap.String("platform", i.Platform),
		zap.String("goVersion", i.GoVersion),
	}
}

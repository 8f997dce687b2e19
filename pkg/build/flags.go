// SPDX-License-Identifier: MIT
//
// Package build exposes the metadata stamped into the heliecho binary at link
// time. Release builds set every variable with -ldflags, for example:
//
//	go build -ldflags "-X heliecho/pkg/build.buildName=heliecho \
//	  -X heliecho/pkg/build.buildVersion=0.3.0 ..."
//
// Development builds run with the defaults below; Initialize reports which
// flags are missing so the caller can decide whether that matters.
package build

import (
	"fmt"
	"strings"
)

// Info describes the running binary.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// String renders a one-line version banner.
func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}

// Populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildInfo    = &Info{
		Name:        "heliecho",
		Description: "Stream live audio as colour data to an Adalight LED strip",
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
)

// Initialize copies the ldflags variables into the build info. It returns an
// error naming every missing flag; in that case the info keeps its
// development defaults.
func Initialize() error {
	var missing []string
	if buildName == "" {
		missing = append(missing, "BuildName")
	}
	if buildTime == "" {
		missing = append(missing, "BuildTime")
	}
	if buildCommit == "" {
		missing = append(missing, "BuildCommit")
	}
	if buildVersion == "" {
		missing = append(missing, "BuildVersion")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing build flags: %s", strings.Join(missing, ", "))
	}

	buildInfo.Name = buildName
	buildInfo.Time = buildTime
	buildInfo.Commit = buildCommit
	buildInfo.Version = buildVersion

	return nil
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *Info {
	return buildInfo
}

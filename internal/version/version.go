// Package version reports the dyncrew release and build details.
package version

import (
	_ "embed"
	"runtime/debug"
	"strings"
)

//go:embed VERSION
var versionContent string

// Get returns the current version, with whitespace trimmed
func Get() string {
	return strings.TrimSpace(versionContent)
}

// Full returns the version followed by the short VCS revision when the
// binary was built from a checkout, e.g. "0.1.0 (3f2a9c1, modified)".
func Full() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Get()
	}
	return withRevision(Get(), info.Settings)
}

func withRevision(v string, settings []debug.BuildSetting) string {
	var rev string
	var dirty bool
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if rev == "" {
		return v
	}
	if len(rev) > 7 {
		rev = rev[:7]
	}
	if dirty {
		return v + " (" + rev + ", modified)"
	}
	return v + " (" + rev + ")"
}

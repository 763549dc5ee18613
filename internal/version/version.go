package version

import (
	"runtime/debug"
	"strings"
)

var (
	Version = "0.3.0"
	Commit  = ""
)

// Resolve returns the release version, suffixed with the VCS revision when
// the binary was built from a non-release checkout.
func Resolve() string {
	info, _ := debug.ReadBuildInfo()
	return resolveVersion(Version, Commit, info)
}

func resolveVersion(base, commit string, info *debug.BuildInfo) string {
	if base == "" {
		base = "0.0.0"
	}

	revision, dirty := strings.TrimSpace(commit), false
	if info != nil {
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				if revision == "" {
					revision = setting.Value
				}
			case "vcs.modified":
				dirty = setting.Value == "true"
			}
		}
	}

	if revision == "" {
		return base
	}
	if len(revision) > 7 {
		revision = revision[:7]
	}

	suffix := "g" + revision
	if dirty {
		suffix += "-dirty"
	}
	return base + "-" + suffix
}

// Package version exposes the auditor's version derived from build
// metadata, grounded on the teacher's pkg/version package. Go 1.18+
// embeds VCS info (git commit, dirty flag) into the binary via
// runtime/debug.BuildInfo, so no -ldflags are required at build time.
package version

import "runtime/debug"

// AppName is the application name used in version strings and report metadata.
const AppName = "audit"

// GitCommit is the short git commit hash (8 chars) from build info.
// Set to "dev" when build info is unavailable (e.g. `go test`, non-git builds).
var GitCommit = initGitCommit()

func initGitCommit() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			if len(s.Value) > 8 {
				return s.Value[:8]
			}
			return s.Value
		}
	}
	return "dev"
}

// Full returns "audit/<commit>" for use in reports and logging.
func Full() string {
	return AppName + "/" + GitCommit
}

// Package version reports the build's identity for startup logs.
package version

import "runtime/debug"

// AppName identifies the binary family in logs and version strings.
const AppName = "finsight"

// commit is injected at build time for container builds where .git is
// unavailable:
//
//	go build -ldflags "-X github.com/finsight-ai/finsight/pkg/version.commit=<sha>"
var commit string

// Commit returns the short revision this binary was built from, preferring
// the ldflags injection over the module's VCS stamp. Builds with neither
// (`go test`, non-git checkouts) report "dev".
func Commit() string {
	if commit != "" {
		return short(commit)
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				return short(s.Value)
			}
		}
	}
	return "dev"
}

func short(rev string) string {
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}

// Full returns "finsight/<commit>".
func Full() string {
	return AppName + "/" + Commit()
}

// Package version carries the build stamp. The variables are overwritten
// at link time:
//
//	go build -ldflags "-X github.com/fieldsite/fieldsite/internal/version.Version=v1.2.0"
package version

var (
	Version   = "dev"
	GitCommit = ""
	BuildTime = ""
)

// Full is the version line shown by --version: the version plus commit and
// build time when the build stamped them in.
func Full() string {
	out := Version
	if GitCommit != "" {
		out += " (" + GitCommit
		if BuildTime != "" {
			out += ", built " + BuildTime
		}
		out += ")"
	}
	return out
}

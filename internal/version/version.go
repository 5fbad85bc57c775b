package version

import "fmt"

// Version and Commit are injected at build time with -ldflags.
var (
	Version = "0.1.0"
	Commit  = "dev"
)

// Full returns the version line printed by the CLI.
func Full() string {
	return fmt.Sprintf("style-hub %s (%s)", Version, Commit)
}

// Package misc keeps build time information.
package misc

// set by linker
var (
	version = "dev"
	gitHash = "unknown"
)

const appName = "dropcss"

// GetVersion returns program version as set at build time.
func GetVersion() string {
	return version
}

// GetGitHash returns hash of the commit program was built from.
func GetGitHash() string {
	return gitHash
}

func GetAppName() string {
	return appName
}

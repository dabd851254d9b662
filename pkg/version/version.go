package version

// version is set at build time with
// -ldflags "-X github.com/muster-live/muster/pkg/version.version=..."
var version = "dev"

// Get returns the build version string.
func Get() string {
	return version
}

package version

// Version is the Major.Minor.Patch tag from git, set at build time with
// -ldflags "-X github.com/jake-scott/ondus-bridge/version.Version=..."
var Version string = "dev"

// UserAgent is sent with every request to the Ondus cloud
func UserAgent() string {
	return "ondus-bridge/" + Version
}

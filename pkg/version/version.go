package version

// Version is the current version of the AMD server
const Version = "0.3.1"

// UserAgent returns the User-Agent string for outbound HTTP requests
func UserAgent() string {
	return "amd-server/" + Version
}

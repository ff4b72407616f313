package app

// Build information set with -ldflags "-X" at release time.
var (
	BuildVersion = "0.0.0-dev"
	BuildCommit  = "unknown"
	BuildDate    = "unknown"
)

// VersionString is the one-line form printed by "svgscout version" and
// reported by the health endpoint.
func VersionString() string {
	return "svgscout " + BuildVersion + " (" + BuildCommit + ", " + BuildDate + ")"
}

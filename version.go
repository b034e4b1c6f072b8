package migrate

var (
	// Used for compile time versioning - to set properly, ensure to run
	// the go install/build command like the following:
	// go install -ldflags "-X github.com/Skyrin/go-migrate.Sha=local -X github.com/Skyrin/go-migrate.Build=infinite" ./cmd/nexio-migrate

	// Sha the commit sha
	Sha string
	// Build the build number
	Build string
)

// Version returns the version/build, "dev" when not set at build time
func Version() (sha string, build string) {
	sha, build = Sha, Build
	if sha == "" {
		sha = "dev"
	}
	return sha, build
}

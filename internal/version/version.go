package version

// Version contains the application version information.
// Set via build-time ldflags in production:
// go build -ldflags "-X github.com/substra/docpipeline/internal/version.Version=v1.2.0".
var Version = "unknown"

// BuildInfo contains additional build metadata.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

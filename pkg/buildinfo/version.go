// Package buildinfo reports which forestplot build is running. The values
// are printed by `forestplot --version` and returned by the server's
// /healthz endpoint.
//
// Release builds set them with ldflags:
//
//	go build -ldflags "-X github.com/matzehuels/forestplot/pkg/buildinfo.Version=v0.3.0 \
//	    -X github.com/matzehuels/forestplot/pkg/buildinfo.Commit=$(git rev-parse --short HEAD) \
//	    -X github.com/matzehuels/forestplot/pkg/buildinfo.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)" \
//	    ./cmd/forestplot
package buildinfo

import "fmt"

// Set via ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info is the build description served as JSON.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"built"`
}

// Get returns the current build description.
func Get() Info {
	return Info{Version: Version, Commit: Commit, Date: Date}
}

// Template returns the cobra version template.
func Template() string {
	return fmt.Sprintf("{{.Name}} %s (commit %s, built %s)\n", Version, Commit, Date)
}

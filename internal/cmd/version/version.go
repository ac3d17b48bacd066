// Package version reports build metadata stamped in at release time.
package version

import (
	"fmt"
	"runtime"
)

// Overridden via -ldflags by the release build; zero-value defaults keep
// go-install builds working.
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// String returns the multi-line version banner.
func String() string {
	return fmt.Sprintf("revue %s (commit %s, built %s, %s %s/%s)",
		version, gitCommit, buildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Print writes the version banner to stdout.
func Print() {
	fmt.Println(String())
}

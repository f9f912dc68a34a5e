package version

import (
	"fmt"
	"runtime"
)

var (
	// VERSION, REVISION and BUILTAT are injected at build time via -ldflags.
	VERSION  = "unknown"
	REVISION = "unknown"
	BUILTAT  = "unknown"
)

// String renders the full multi-line version banner.
func String() string {
	version := ""
	version += fmt.Sprintf("Version:        %s\n", VERSION)
	version += fmt.Sprintf("Git hash:       %s\n", REVISION)
	version += fmt.Sprintf("Built:          %s\n", BUILTAT)
	version += fmt.Sprintf("Golang version: %s\n", runtime.Version())
	version += fmt.Sprintf("OS/Arch:        %s/%s\n", runtime.GOOS, runtime.GOARCH)
	return version
}

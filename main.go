package main

import (
	"fmt"
	"os"

	"github.com/kamiai/kamiai/cmd"
	"github.com/kamiai/kamiai/internal/buildinfo"
)

// Set at build time with -ldflags "-X main.version=... -X main.buildDate=... -X main.systemID=...".
var (
	version   string
	buildDate string
	systemID  string
)

func main() {
	info := buildinfo.NewContext(version, buildDate, systemID)

	if err := cmd.RootCommand(info).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

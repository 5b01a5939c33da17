// Command cvedash serves the CVE dashboard.
package main

import (
	"fmt"
	"os"
)

// Version is set by build flags.
var Version = "dev"

func main() {
	SetVersion(Version)
	if err := Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

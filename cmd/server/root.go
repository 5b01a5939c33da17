package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var version string

var rootCmd = &cobra.Command{
	Use:   "cvedash",
	Short: "CVE vulnerability dashboard",
	Long: `cvedash serves a read-only dashboard over a CVE database.

It lists vulnerabilities with severity filtering, vendor/product search,
sorting and pagination, and exposes per-vendor and per-product statistics.

Configuration is read from the environment and an optional .env file.
Running cvedash without a subcommand is the same as "cvedash serve".`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "cvedash %s (%s %s/%s)\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version from build flags.
func SetVersion(v string) {
	version = v
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(routesCmd)
	rootCmd.AddCommand(versionCmd)
}

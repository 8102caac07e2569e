package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is injected at build time via -ldflags "-X main.version=...".
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "wireviz-web",
	Short: "HTTP rendering service for WireViz harness descriptions",
	Long: `wireviz-web wraps the WireViz command line renderer in an HTTP API,
turning YAML harness descriptions into SVG or PNG diagrams.
Running without a subcommand starts the server.`,
	Version: version,
	Run:     runServe,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

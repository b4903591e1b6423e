package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/datalode/geodex/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("geodex-search %s (%s, %s, %s)\n",
			version.Version, version.Commit, version.Date, runtime.Version())
	},
}

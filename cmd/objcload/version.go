package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/objcload/abi"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("objcload %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built: %s\n", date)
		fmt.Printf("  runtime layout: %s\n", abi.DefaultLayoutVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

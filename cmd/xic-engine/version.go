package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of xic-engine",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("xic-engine %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

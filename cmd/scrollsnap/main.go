// Package main implements the scrollsnap CLI: scroll-and-snap webpage
// capture with optional stitching into one long image.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "scrollsnap",
	Short: "Scroll-and-snap webpage capture",
	Long:  "scrollsnap captures a tall web page as a sequence of viewport-sized tiles while scrolling, and can stitch the tiles into one continuous long image.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Package main provides the entry point for the Portfolio content API.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "portfolio_api",
	Short: "Portfolio content API server",
	Long:  "Portfolio API serves projects, writings, systems, vault notes, arena threads and contact messages for a personal site.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

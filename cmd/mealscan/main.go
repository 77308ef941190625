// Package main provides the mealscan CLI.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mealscan",
	Short: "AI-powered meal nutrition analysis",
	Long: `Analyzes meal descriptions and photos with hosted vision models to
estimate protein, calories, portion weight, and where the numbers came from.

Nutrition values are resolved through a source cascade: a readable label
wins, then the online product database, then previously cached products,
then a reference table of common foods.`,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if rootCmd.Execute() != nil {
		os.Exit(1)
	}
}

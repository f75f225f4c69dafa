package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"docintel/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "docintel",
	Short: "docintel - document layout analysis from the command line",
	Long: `docintel analyzes documents with a cloud document intelligence service
and produces a normalized JSON result: paragraphs, headers, formulas, tables,
key-value pairs, bounding boxes, pages, document metadata and confidence
scores.

Use "docintel analyze" for one-off analysis or "docintel serve" to run the
upload server.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Welcome to docintel!")
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}

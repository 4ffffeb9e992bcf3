// Package cli defines the lexiscope command tree.
package cli

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// RootCmd builds the command tree. A .env file in the working directory
// is loaded before configuration, matching local-development habits.
func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "lexiscope",
		Short: "Policy document analysis service",
		Long: "Lexiscope analyzes policy and legal documents with an LLM pipeline:\n" +
			"chunked analysis, retrieval-grounded chat, and feedback-driven\n" +
			"prompt improvement.",
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			_ = godotenv.Load()
		},
	}
	root.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().Bool("log-json", false, "Emit logs as JSON")
	root.PersistentFlags().Bool("log-source", false, "Annotate logs with source locations")

	root.AddCommand(ServeCmd())
	return root
}

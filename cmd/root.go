package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "conjugar",
	Short: "Spanish verb conjugation drill backend",
	Long: "Conjugar serves fill-in-the-blank Spanish conjugation drills, generates new\n" +
		"question sets with a language model and stores them per user.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("events-db", "", "Path to the LLM event log database (overrides CONJUGAR_EVENTS_DB)")
	rootCmd.PersistentFlags().String("env-file", ".env", "Dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log to stderr (always on for serve)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(setsCmd)
	rootCmd.AddCommand(tensesCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

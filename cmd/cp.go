package cmd

import (
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/rtzll/insight/internal"
)

// cpCmd copies the analysis to the system clipboard instead of printing to stdout.
var cpCmd = &cobra.Command{
	Use:   "cp [URL]",
	Short: "Copy the video analysis as markdown to the clipboard",
	Example: `  # Copy summary, questions and papers
  insight cp "https://www.youtube.com/watch?v=tAP1eZYEuKA"
  insight cp tAP1eZYEuKA`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := internal.ValidateOpenAIRequirements(cmd, config); err != nil {
			return err
		}
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp(app)

		res, err := analyzeArg(cmd, app, internal.DefaultSessionID, args[0])
		if err != nil {
			return err
		}

		if err := clipboard.WriteAll(internal.AnalysisMarkdown(res)); err != nil {
			return fmt.Errorf("copying analysis to clipboard: %w", err)
		}
		if !config.Quiet {
			fmt.Println("Analysis copied to clipboard")
		}
		return nil
	},
}

func init() {
	internal.AddOpenAIFlags(cpCmd)
	rootCmd.AddCommand(cpCmd)
}

package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/rtzll/insight/internal"
)

// queryCmd asks the paper index a question after analyzing a video
var queryCmd = &cobra.Command{
	Use:   "query [YouTube URL or ID] [prompt]",
	Short: "Analyze a video, then ask the research paper index a question",
	Example: `  # Find papers on a topic raised in the talk
  insight query tAP1eZYEuKA "Which papers introduced sparse attention?"`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := internal.ValidateOpenAIRequirements(cmd, config); err != nil {
			return err
		}
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp(app)

		sessionID, _ := cmd.Flags().GetString("session")
		if _, err := analyzeArg(cmd, app, sessionID, args[0]); err != nil {
			return err
		}

		res, err := app.Query(cmd.Context(), sessionID, strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		return printMarkdown(internal.PapersMarkdown(res))
	},
}

func init() {
	internal.AddOpenAIFlags(queryCmd)
	internal.AddSessionFlag(queryCmd)
	rootCmd.AddCommand(queryCmd)
}

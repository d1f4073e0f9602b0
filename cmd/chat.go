package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rtzll/insight/internal"
)

// chatCmd analyzes a video and then talks about it on stdin
var chatCmd = &cobra.Command{
	Use:   "chat [YouTube URL or ID]",
	Short: "Analyze a video, then chat about it and related papers",
	Example: `  # Chat about a video
  insight chat tAP1eZYEuKA

  # Use Gemini for the conversation
  INSIGHT_CHAT_PROVIDER=gemini INSIGHT_CHAT_MODEL=gemini-2.0-flash insight chat tAP1eZYEuKA`,
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

		sessionID, _ := cmd.Flags().GetString("session")
		res, err := analyzeArg(cmd, app, sessionID, args[0])
		if err != nil {
			return err
		}
		if err := printMarkdown(internal.AnalysisMarkdown(res)); err != nil {
			return err
		}

		fmt.Println("Ask about the video or related research. /reset forgets the conversation, /exit quits.")
		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				fmt.Println()
				return scanner.Err()
			}

			line := strings.TrimSpace(scanner.Text())
			switch line {
			case "":
				continue
			case "/exit", "/quit":
				return nil
			case "/reset":
				if err := app.ResetChat(cmd.Context(), sessionID); err != nil {
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				}
				continue
			}

			answer, err := app.Chat(cmd.Context(), sessionID, line)
			if err != nil {
				if cmd.Context().Err() != nil {
					return cmd.Context().Err()
				}
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				continue
			}
			if err := printMarkdown(answer); err != nil {
				return err
			}
		}
	},
}

func init() {
	internal.AddOpenAIFlags(chatCmd)
	internal.AddSessionFlag(chatCmd)
	rootCmd.AddCommand(chatCmd)
}

package internal

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rtzll/insight/pkg/logx"
)

// AddOpenAIFlags adds flags related to the summary model
func AddOpenAIFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("model", "m", "", "OpenAI model for structured summaries")
	cmd.Flags().StringP("prompt", "p", "", "Custom summary prompt (string or file path)")
}

// AddSessionFlag adds the --session flag
func AddSessionFlag(cmd *cobra.Command) {
	cmd.Flags().String("session", DefaultSessionID, "Session id for the conversation")
}

// HandlePromptFlag processes the --prompt flag to set custom prompt
func HandlePromptFlag(cmd *cobra.Command, app *App) error {
	promptFlag := cmd.Flags().Lookup("prompt")
	if promptFlag == nil || !promptFlag.Changed {
		return nil
	}

	prompt, err := cmd.Flags().GetString("prompt")
	if err != nil {
		return fmt.Errorf("failed to get prompt flag: %w", err)
	}
	if prompt == "" {
		return nil
	}

	app.SetPromptManager(NewPromptManager(app.config.ConfigDir, prompt))
	if IsLikelyFilePath(prompt) && FileExists(prompt) {
		logx.Debug().Str("file", prompt).Msg("using custom prompt file")
	} else {
		logx.Debug().Msg("using custom prompt string")
	}
	return nil
}

// HandleVerboseFlag processes the --verbose flag to update config
func HandleVerboseFlag(cmd *cobra.Command, config *Config) error {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return fmt.Errorf("failed to get verbose flag: %w", err)
	}
	config.Verbose = config.Verbose || verbose
	return nil
}

// ValidateOpenAIRequirements checks the API key and applies --model.
func ValidateOpenAIRequirements(cmd *cobra.Command, config *Config) error {
	if err := ValidateOpenAIAPIKey(config.OpenAIAPIKey); err != nil {
		return err
	}
	if f := cmd.Flags().Lookup("model"); f != nil && f.Changed {
		config.SummaryModel = f.Value.String()
	}
	if config.SummaryModel == "" {
		return fmt.Errorf("summary_model must not be empty")
	}
	return nil
}

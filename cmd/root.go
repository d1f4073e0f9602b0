package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rtzll/insight/internal"
	"github.com/rtzll/insight/pkg/logx"
)

var (
	config *internal.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "insight [YouTube URL or ID]",
	Short: "Summarize YouTube talks and find the research behind them",
	Long: `insight analyzes a YouTube video transcript.

It writes a short summary, suggests technical questions to ask the speaker
and retrieves related research papers from a vector index of arXiv papers.
Follow up with "insight chat" to talk about the video and the papers.`,
	Example: `  # Analyze a video (default behavior)
  insight "https://www.youtube.com/watch?v=tAP1eZYEuKA"
  insight tAP1eZYEuKA

  # Use a specific OpenAI model for the summary
  insight "https://youtu.be/tAP1eZYEuKA" --model gpt-4o-mini

  # Use a custom summary prompt
  insight tAP1eZYEuKA --prompt "Context: {{.Context}} Task: {{.Query}}"`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logx.Close()
	},
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
		return printMarkdown(internal.AnalysisMarkdown(res))
	},
}

// setup loads configuration and logging once flags are parsed.
func setup(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := internal.InitConfig(configFile)
	if err != nil {
		return err
	}
	config = cfg

	if err := internal.HandleVerboseFlag(cmd, config); err != nil {
		return err
	}
	config.Quiet, _ = cmd.Flags().GetBool("quiet")

	if err := internal.EnsureDirs(config.ConfigDir, config.DataDir, config.CacheDir); err != nil {
		return fmt.Errorf("creating XDG directories: %w", err)
	}
	if err := internal.EnsureDefaultConfig(config.ConfigDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to ensure default config: %v\n", err)
	}
	if err := internal.EnsureDefaultPrompt(config.ConfigDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to ensure default prompt: %v\n", err)
	}

	opts := logx.Options{
		Environment: logx.ParseEnvironment(config.Environment),
		Verbose:     config.Verbose,
	}
	// stdout belongs to the protocol
	if cmd.Name() == mcpCmd.Name() {
		opts.File = config.LogFile
	}
	return logx.Init(opts)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// a missing .env is fine
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: Failed to load .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	internal.AddOpenAIFlags(rootCmd)
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output for debugging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress status output")
	rootCmd.PersistentFlags().String("config", "", "Config file (default is $XDG_CONFIG_HOME/insight/config.toml)")
}

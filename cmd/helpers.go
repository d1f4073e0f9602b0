package cmd

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/rtzll/insight/internal"
	"github.com/rtzll/insight/internal/model"
)

var availableCommands = []string{"chat", "query", "transcript", "cp", "serve", "mcp", "paths", "version", "help"}

// newApp builds the app for a CLI command and applies --prompt.
func newApp(cmd *cobra.Command) (*internal.App, error) {
	app, err := internal.NewApp(cmd.Context(), config)
	if err != nil {
		return nil, err
	}
	if err := internal.HandlePromptFlag(cmd, app); err != nil {
		closeApp(app)
		return nil, err
	}
	return app, nil
}

func closeApp(app *internal.App) {
	if err := app.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

// analyzeArg validates a video argument and analyzes it in sessionID.
func analyzeArg(cmd *cobra.Command, app *internal.App, sessionID, arg string) (model.AnalysisResult, error) {
	parsed := internal.ClassifyArg(arg)
	if parsed.ContentType == internal.ContentTypeCommand {
		return model.AnalysisResult{}, fmt.Errorf("%w; %s", parsed.Error, parsed.SuggestCorrection(availableCommands))
	}
	if parsed.ContentType == internal.ContentTypePlaylist {
		return model.AnalysisResult{}, fmt.Errorf("%q is a playlist; pass a single video", arg)
	}
	return app.AnalyzeWithStatus(cmd.Context(), sessionID, arg)
}

// printMarkdown renders markdown on a terminal and prints it raw otherwise.
func printMarkdown(content string) error {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		fmt.Println(content)
		return nil
	}
	rendered, err := internal.RenderMarkdown(content)
	if err != nil {
		return err
	}
	fmt.Print(rendered)
	return nil
}

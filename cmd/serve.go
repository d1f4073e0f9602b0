package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rtzll/insight/internal"
)

// serveCmd runs the HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve the analyzer over HTTP.

Endpoints:
  POST   /analyzer        {"youtube_url": "..."}
  POST   /query           {"prompt": "..."}
  POST   /chat            {"message": "..."}
  POST   /sessions
  DELETE /sessions/{id}
  GET    /healthz

Requests without an X-Session-ID header share the "default" session.`,
	Example: `  # Serve on the configured port (default 8080, or $PORT)
  insight serve

  # Serve on another port
  insight serve --port 9000`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := internal.ValidateOpenAIRequirements(cmd, config); err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			config.Port, _ = cmd.Flags().GetInt("port")
		}

		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp(app)
		app.Start(cmd.Context())

		return internal.NewServer(app).ListenAndServe(cmd.Context(), fmt.Sprintf(":%d", config.Port))
	},
}

func init() {
	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	internal.AddOpenAIFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)
}

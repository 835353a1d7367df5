package main

import (
	"github.com/spf13/cobra"

	"snigexport/internal/server"
)

var portFlag int

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the local viewer and relay SNIG requests",
	Long: `Start a local HTTP server that serves the web viewer and the exported
artifacts, and relays MapServer/geocoder requests so the browser is not
blocked by missing CORS headers upstream.`,
	Example: `  # Serve on the default port (5000, or $PORT)
  snigexport serve

  # Serve on a specific port
  snigexport serve --port 8080`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVar(&portFlag, "port", 0, "listening port (default: 5000 or $PORT)")
}

func runServe() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if portFlag != 0 {
		cfg.Server.Port = portFlag
	}

	return server.New(cfg, nil).ListenAndServe()
}

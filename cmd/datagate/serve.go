package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/artpar/datagate/bootstrap"
	"github.com/artpar/datagate/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway server",
	Long: `Start the datagate server.

The server will:
  - Load configuration from datagate.yaml (or --config)
  - Load and index the compiled schema artifact
  - Load the access-control policy (reloadable via SIGHUP or file watch)
  - Accept dispatch calls over HTTP and route them through
    validation, authorization and the registered callbacks

Environment variables override file settings:
  DATAGATE_SERVER_PORT      - Server port (default: 8440)
  DATAGATE_SCHEMA_ARTIFACT  - Schema artifact path
  DATAGATE_POLICY_FILE      - Policy rules path
  DATAGATE_LOG_LEVEL        - Log level: debug, info, warn, error

Examples:
  datagate serve
  datagate serve --config /etc/datagate/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	app, err := bootstrap.New(cfg)
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run()
}

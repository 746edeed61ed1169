package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "datagate",
	Short: "Schema-governed configuration gateway with validation and access control",
	Long: `Datagate is a validation and authorization gateway for structured
configuration data.

Every inbound call is resolved against a compiled schema, validated
against the constraints the schema declares, checked against the
access-control policy, and only then handed to the registered callback.

Quick start:
  datagate validate  # Check config, schema artifact and policy
  datagate serve     # Start the gateway server

Utilities:
  datagate token     # Issue a session token for a principal`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "datagate.yaml", "config file path")
}

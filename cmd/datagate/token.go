package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/artpar/datagate/adapters/auth"
	"github.com/artpar/datagate/config"
)

var (
	tokenPrincipal string
	tokenClass     string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a session token for a principal",
	Long: `Issue a signed session token carrying a principal name and its
principal class. The token is accepted by the dispatch endpoint until
it expires.

Requires auth.jwt_secret to be set in the config; tokens signed with a
random per-process secret would not survive a server restart.

Examples:
  datagate token --principal alice --class operator
  datagate token --principal probe-7 --class monitor`,
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().StringVar(&tokenPrincipal, "principal", "", "principal name (required)")
	tokenCmd.Flags().StringVar(&tokenClass, "class", "", "principal class (required)")
	tokenCmd.MarkFlagRequired("principal")
	tokenCmd.MarkFlagRequired("class")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is not set in %s", cfgFile)
	}

	svc := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	token, expires, err := svc.GenerateToken(tokenPrincipal, tokenClass)
	if err != nil {
		return fmt.Errorf("error signing token: %w", err)
	}

	fmt.Println(token)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires: %s\n", expires.Format("2006-01-02 15:04:05 MST"))
	return nil
}

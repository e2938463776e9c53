package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Aniket2927/Renx-sub004/pkg/config"
	"github.com/Aniket2927/Renx-sub004/pkg/observability"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "renx-gateway",
	Short: "Multi-tenant authentication and security gateway for the RenX trading API",
	Long: `renx-gateway runs the security layer in front of the RenX trading API:
JWT verification, tenant resolution, role and permission checks, rate
limiting, CSRF protection, brute-force lockout and session monitoring.

Configuration is read from built-in defaults, then the YAML file given with
--config (or RENX_CONFIG_FILE), then RENX_* environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to YAML config file")
}

// loadConfig reads the configuration and builds the logger it describes
func loadConfig(cmd *cobra.Command) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, nil, err
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

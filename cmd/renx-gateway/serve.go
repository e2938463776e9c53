package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Aniket2927/Renx-sub004/pkg/gateway"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway HTTP server",
	Long: `Start the gateway. The server shuts down gracefully on SIGINT or
SIGTERM: in-flight requests drain, sweeps stop, queued audit events are
flushed, and Redis and PostgreSQL connections close.

Example:
  renx-gateway serve --config /etc/renx/gateway.yaml
  RENX_STORE_BACKEND=redis RENX_REDIS_URL=redis://localhost:6379 renx-gateway serve`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if servePort != "" {
		cfg.Server.Port = servePort
	}

	logger.WithFields(logrus.Fields{
		"version":     version,
		"environment": cfg.Environment,
		"store":       cfg.Store.Backend,
		"rbac":        cfg.RBAC.Backend,
	}).Info("Starting RenX gateway")

	gw, err := gateway.New(cmd.Context(), cfg, logger, version)
	if err != nil {
		return err
	}
	return gw.Run(cmd.Context())
}

package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/raptorflow/lead-engine/internal/lead"
	"github.com/raptorflow/lead-engine/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if cfg.Lifecycle.AutoParkEnabled {
			interval := time.Duration(cfg.Lifecycle.SweepIntervalHours) * time.Hour
			sweeper := lead.NewSweeper(env.Manager, interval)
			go sweeper.Run(ctx)
		}

		api := server.New(env.Store, env.Pipeline, env.Manager, env.Cache)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: api.Routes(),
		}

		zap.L().Info("starting server", zap.Int("port", port))
		return server.ListenAndServe(ctx, srv, 10*time.Second)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

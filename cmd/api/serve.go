package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/VEEP09/xc-test-apim/internal/api/routes"
	"github.com/VEEP09/xc-test-apim/internal/config"
	"github.com/VEEP09/xc-test-apim/internal/database"
	"github.com/VEEP09/xc-test-apim/internal/kube"
	"github.com/VEEP09/xc-test-apim/internal/logger"
	"github.com/VEEP09/xc-test-apim/internal/server"
	"github.com/VEEP09/xc-test-apim/internal/version"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "serve the HTTP API (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg)
	logger.Log().WithField("version", version.Full()).Infof("starting %s", version.Name)

	db, err := database.Connect(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	clients, err := kube.NewClients(cfg)
	if err != nil {
		return fmt.Errorf("kubernetes clients: %w", err)
	}

	svc := routes.NewServices(cfg, clients, db)
	if err := svc.Incidents.Schedule(cfg.ReconcileSchedule); err != nil {
		return err
	}
	defer svc.Incidents.Stop()
	if !svc.Notifier.Enabled() {
		logger.Log().Info("no notification URLs configured; inconsistencies are only logged")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	router := server.NewRouter(cfg.Debug)
	routes.Register(router, svc, registry)

	return server.Run(ctx, router, ":"+cfg.HTTPPort)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/VEEP09/xc-test-apim/internal/api/routes"
	"github.com/VEEP09/xc-test-apim/internal/config"
	"github.com/VEEP09/xc-test-apim/internal/database"
	"github.com/VEEP09/xc-test-apim/internal/kube"
)

const reconcileDescription = `
Run one repair sweep over the open dual-write incidents and print a summary.
The command exits non-zero when any incident is still open afterwards.
`

func newReconcileCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "repair open cluster/database inconsistencies once",
		Long:  reconcileDescription,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return reconcile(cmd.Context(), out)
		},
	}
}

func reconcile(ctx context.Context, out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg)

	db, err := database.Connect(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	clients, err := kube.NewClients(cfg)
	if err != nil {
		return fmt.Errorf("kubernetes clients: %w", err)
	}

	report, sweepErr := routes.NewServices(cfg, clients, db).Incidents.Reconcile(ctx)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	return sweepErr
}

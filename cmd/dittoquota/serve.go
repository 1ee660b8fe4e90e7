package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/marmos91/dittoquota/internal/logger"
	"github.com/marmos91/dittoquota/pkg/reconcile"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Recount the totals of every monitored collection once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := current.caller().RequirePrivilege(); err != nil {
				return err
			}
			r, err := reconcile.NewReconciler(current.store, current.ledger, current.metrics.Quota, reconcile.Config{
				RecountsPerSecond: current.cfg.Quotas.ReconcileRecountsPerSecond,
			})
			if err != nil {
				return err
			}
			stats, err := r.RunNow(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(stats.Summary())
			return nil
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the metrics endpoint and the periodic reconciler",
		Long: `Run until interrupted. When metrics.enabled is set, serves /metrics,
/healthz and /readyz (metadata store health) on metrics.port. Recounts every
monitored collection each quotas.reconcile_interval.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := current.cfg

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := current.store.Healthcheck(ctx); err != nil {
		return fmt.Errorf("metadata store is not healthy: %w", err)
	}

	reconciler, err := reconcile.NewReconciler(current.store, current.ledger, current.metrics.Quota, reconcile.Config{
		Enabled:           cfg.Quotas.ReconcileInterval > 0,
		Interval:          cfg.Quotas.ReconcileInterval,
		RecountsPerSecond: cfg.Quotas.ReconcileRecountsPerSecond,
	})
	if err != nil {
		return err
	}

	// Publish the current totals before the first tick
	if stats, err := reconciler.RunNow(ctx); err != nil {
		logger.Warn("Initial reconciliation failed: %v", err)
	} else {
		logger.Info("Initial reconciliation completed: %s", stats.Summary())
	}

	g, gctx := errgroup.WithContext(ctx)

	if srv := current.metrics.Server; srv != nil {
		srv.AddCheck("metadata_store", current.store.Healthcheck)
		g.Go(func() error {
			return srv.Start(gctx)
		})
	}

	reconciler.Start()
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return reconciler.Stop(shutdownCtx)
	})

	logger.Info("DittoQuota is running. Press Ctrl+C to stop.")

	if err := g.Wait(); err != nil {
		logger.Error("Shutdown error: %v", err)
		return err
	}
	logger.Info("DittoQuota stopped gracefully")
	return nil
}

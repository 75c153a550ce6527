// Command worker runs the background side of the media platform: the
// periodic CDB reconciler, the periodic OAI-PMH harvester and the outbound
// updater consuming item events from the bus. It runs until interrupted.
//
// Exit codes: 0 = clean shutdown, 1 = startup or worker failure.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/uisautomation/mediaplatform/internal/app"
	"github.com/uisautomation/mediaplatform/internal/domain"
	"github.com/uisautomation/mediaplatform/pkg/ctxutil"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		log.Fatalf("start worker: %v", err)
	}
	defer a.Close()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.Outbound.Run(ctx, a.Bus)
	})
	g.Go(func() error {
		return runReconciler(ctx, a)
	})
	g.Go(func() error {
		return runHarvester(ctx, a)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		a.Log.Error("worker failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	a.Log.Info("worker stopped")
}

// runReconciler runs the CDB reconciler on its configured interval. A
// failing run is logged and retried on the next tick.
func runReconciler(ctx context.Context, a *app.App) error {
	ticker := time.NewTicker(a.Config.Reconcile.Interval)
	defer ticker.Stop()

	for {
		runCtx, cancel := context.WithTimeout(ctxutil.WithRunID(ctx, domain.NewToken()), a.Config.Reconcile.RunDeadline)
		if _, err := a.Reconcile.Run(runCtx, false); err != nil && ctx.Err() == nil {
			a.Log.Error("reconcile run failed", slog.String("error", err.Error()))
		}
		cancel()

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// runHarvester runs the OAI-PMH harvester on its configured interval.
func runHarvester(ctx context.Context, a *app.App) error {
	ticker := time.NewTicker(a.Config.OAI.HarvestInterval)
	defer ticker.Stop()

	for {
		runCtx, cancel := context.WithTimeout(ctxutil.WithRunID(ctx, domain.NewToken()), a.Config.OAI.RunDeadline)
		if _, err := a.OAI.Harvest(runCtx, false); err != nil && ctx.Err() == nil {
			a.Log.Error("harvest run failed", slog.String("error", err.Error()))
		}
		cancel()

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

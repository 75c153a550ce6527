// Command reconcile performs one CDB reconciliation run and exits. Pass
// -sync-all to refresh metadata for every linked resource regardless of
// its watermark.
//
// Exit codes: 0 = success, 1 = run finished but some resources failed to
// sync, 2 = run failed without progress.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/uisautomation/mediaplatform/internal/app"
	"github.com/uisautomation/mediaplatform/internal/domain"
	"github.com/uisautomation/mediaplatform/pkg/ctxutil"
)

func main() {
	syncAll := flag.Bool("sync-all", false, "resync metadata for every linked resource")
	flag.Parse()

	ctx := ctxutil.WithRunID(context.Background(), domain.NewToken())

	a, err := app.New(ctx)
	if err != nil {
		log.Fatalf("start reconcile: %v", err)
	}
	defer a.Close()

	runCtx, cancel := context.WithTimeout(ctx, a.Config.Reconcile.RunDeadline)
	defer cancel()

	stats, err := a.Reconcile.Run(runCtx, *syncAll)
	if err != nil {
		a.Log.Error("reconcile run failed", slog.String("error", err.Error()))
	} else if stats.Errors > 0 {
		a.Log.Warn("reconcile run finished with errors", slog.Int("errors", stats.Errors))
	}
	if code := app.RunExitCode(err, stats.Errors); code != app.ExitOK {
		os.Exit(code)
	}
}

// Command oai-cleanup re-runs OAI materialisations for harvested rows
// missing their downstream artefacts, e.g. after binding a playlist to a
// series whose tracks were harvested earlier. Safe to run repeatedly.
//
// Exit codes: 0 = success, 1 = run finished but some rows failed to
// materialise, 2 = run failed without progress.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/uisautomation/mediaplatform/internal/app"
	"github.com/uisautomation/mediaplatform/internal/domain"
	"github.com/uisautomation/mediaplatform/pkg/ctxutil"
)

func main() {
	ctx := ctxutil.WithRunID(context.Background(), domain.NewToken())

	a, err := app.New(ctx)
	if err != nil {
		log.Fatalf("start oai-cleanup: %v", err)
	}
	defer a.Close()

	runCtx, cancel := context.WithTimeout(ctx, a.Config.OAI.RunDeadline)
	defer cancel()

	stats, err := a.OAI.Cleanup(runCtx)
	if err != nil {
		a.Log.Error("cleanup failed", slog.String("error", err.Error()))
	} else {
		a.Log.Info("cleanup finished",
			slog.Int("records", stats.Records),
			slog.Int("items", stats.Items),
			slog.Int("errors", stats.Errors),
		)
	}
	if code := app.RunExitCode(err, stats.Errors); code != app.ExitOK {
		os.Exit(code)
	}
}

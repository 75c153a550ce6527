// Package app wires configuration, storage adapters and services into a
// running application. The cmd binaries share this wiring and differ only
// in which operations they invoke.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/uisautomation/mediaplatform/internal/adapter/postgres"
	"github.com/uisautomation/mediaplatform/internal/adapter/postgres/billingaccount"
	"github.com/uisautomation/mediaplatform/internal/adapter/postgres/cdbcache"
	"github.com/uisautomation/mediaplatform/internal/adapter/postgres/cdblink"
	"github.com/uisautomation/mediaplatform/internal/adapter/postgres/channel"
	"github.com/uisautomation/mediaplatform/internal/adapter/postgres/legacy"
	"github.com/uisautomation/mediaplatform/internal/adapter/postgres/mediaitem"
	oairepo "github.com/uisautomation/mediaplatform/internal/adapter/postgres/oai"
	"github.com/uisautomation/mediaplatform/internal/adapter/postgres/permission"
	"github.com/uisautomation/mediaplatform/internal/adapter/postgres/playlist"
	"github.com/uisautomation/mediaplatform/internal/adapter/postgres/uploadendpoint"
	"github.com/uisautomation/mediaplatform/internal/cdb"
	"github.com/uisautomation/mediaplatform/internal/config"
	"github.com/uisautomation/mediaplatform/internal/domain"
	"github.com/uisautomation/mediaplatform/internal/event"
	"github.com/uisautomation/mediaplatform/internal/lookup"
	"github.com/uisautomation/mediaplatform/internal/oaipmh"
	"github.com/uisautomation/mediaplatform/internal/perm"
	"github.com/uisautomation/mediaplatform/internal/service/catalogue"
	oaisvc "github.com/uisautomation/mediaplatform/internal/service/oai"
	"github.com/uisautomation/mediaplatform/internal/service/outbound"
	"github.com/uisautomation/mediaplatform/internal/service/reconcile"
)

// App holds the wired application.
type App struct {
	Config *config.Config
	Log    *slog.Logger
	Pool   *pgxpool.Pool
	Bus    *event.Bus

	Lookup    *lookup.Client
	Catalogue *catalogue.Service
	Outbound  *outbound.Service
	Reconcile *reconcile.Service
	OAI       *oaisvc.Service
}

// New loads configuration, connects to the database and wires every
// service. The caller owns the returned App and must Close it.
func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := NewLogger(cfg.Log)
	logger.Info("starting application",
		slog.String("version", BuildVersion()),
		slog.String("log_level", cfg.Log.Level),
	)

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	return build(cfg, logger, pool), nil
}

func build(cfg *config.Config, logger *slog.Logger, pool *pgxpool.Pool) *App {
	tx := postgres.NewTxManager(pool)

	items := mediaitem.New(pool)
	channels := channel.New(pool)
	playlists := playlist.New(pool)
	perms := permission.New(pool)
	accounts := billingaccount.New(pool)
	legacyLinks := legacy.New(pool)
	endpoints := uploadendpoint.New(pool)
	cache := cdbcache.New(pool)
	links := cdblink.New(pool)
	oaiStore := oairepo.New(pool)

	bus := event.NewBus(logger)
	evaluator := perm.New(time.Now)
	lookupClient := lookup.NewClient(cfg.Lookup, logger)
	cdbClient := cdb.NewClient(cfg.CDB, logger)

	cat := catalogue.NewService(
		logger, evaluator,
		items, channels, playlists, perms, accounts, legacyLinks,
		endpoints, links, cache, bus, tx,
	)

	out := outbound.NewService(
		logger, cfg.CDB.SyncItems, cdbClient,
		items, perms, links, endpoints, tx,
	)

	rec := reconcile.NewService(
		logger, cdbClient,
		cache, links, items, channels, playlists, perms, legacyLinks, accounts, tx,
	)

	oai := oaisvc.NewService(
		logger, oaiStore, items, perms, playlists, tx,
		cfg.OAI.TrackTypes,
		func(repo domain.OAIRepository) oaisvc.Client {
			return oaipmh.NewClient(repo.URL, repo.BasicAuthUser, repo.BasicAuthPassword, cfg.OAI.RequestTimeout, logger)
		},
	)

	return &App{
		Config:    cfg,
		Log:       logger,
		Pool:      pool,
		Bus:       bus,
		Lookup:    lookupClient,
		Catalogue: cat,
		Outbound:  out,
		Reconcile: rec,
		OAI:       oai,
	}
}

// Close releases the application's resources.
func (a *App) Close() {
	if err := a.Bus.Close(); err != nil {
		a.Log.Error("close event bus", slog.String("error", err.Error()))
	}
	a.Pool.Close()
}

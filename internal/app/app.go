// Package app assembles the ledger service from configuration.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/seaclub/backend/internal/cache"
	"github.com/seaclub/backend/internal/config"
	"github.com/seaclub/backend/internal/database"
	"github.com/seaclub/backend/internal/events"
	"github.com/seaclub/backend/internal/ledger"
	"github.com/seaclub/backend/internal/services"
	"github.com/sirupsen/logrus"
)

type App struct {
	Config  *config.Config
	DB      *sql.DB
	Redis   *redis.Client
	Events  *events.Client
	Service *services.LedgerService

	log logrus.FieldLogger
}

// Options toggles the optional collaborators.
type Options struct {
	Migrate bool
	Cache   bool
	Events  bool
}

// New connects to Postgres and, when available, Redis and RabbitMQ. Redis
// and RabbitMQ failures degrade to running without cache or events.
func New(ctx context.Context, cfg *config.Config, log logrus.FieldLogger, opts Options) (*App, error) {
	db, err := database.Open(cfg.Database, log)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, DB: db, log: log}

	if opts.Migrate {
		if err := database.RunMigrations(db); err != nil {
			a.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		log.Info("database migrations applied")
	}

	// a nil *ReconcileCache must not reach the service as a non-nil interface
	var reconCache ledger.ReconcileCache
	if opts.Cache {
		if a.Redis = database.InitRedis(ctx, cfg.Redis, log); a.Redis != nil {
			reconCache = cache.NewReconcileCache(a.Redis, cfg.Ledger.ReconcileCacheTTL, log)
		}
	}

	a.Service = services.NewLedgerService(database.NewLedgerStore(db), reconCache, cfg.Ledger.Location(), log)

	if opts.Events && cfg.AMQP.Enabled {
		client, err := events.NewClient(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.Queue)
		if err != nil {
			log.WithError(err).Warn("amqp unavailable, ledger events disabled")
		} else {
			a.Events = client
			a.Service.Observe(events.NewPublisher(client.Channel(), client.Exchange(), log))
			log.WithField("exchange", client.Exchange()).Info("ledger events enabled")
		}
	}

	return a, nil
}

// Close releases every connection that was opened.
func (a *App) Close() {
	if a.Events != nil {
		if err := a.Events.Close(); err != nil {
			a.log.WithError(err).Warn("close amqp client")
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

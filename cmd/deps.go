// Package cmd provides CLI commands for the grantqa tool.
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/otherjamesbrown/grantqa/config"
	"github.com/otherjamesbrown/grantqa/pkg/buildinfo"
	"github.com/otherjamesbrown/grantqa/pkg/dashboard"
	"github.com/otherjamesbrown/grantqa/pkg/db"
	"github.com/otherjamesbrown/grantqa/pkg/listing"
	"github.com/otherjamesbrown/grantqa/pkg/logging"
	"github.com/otherjamesbrown/grantqa/pkg/observability"
	"github.com/otherjamesbrown/grantqa/pkg/review"
	"github.com/otherjamesbrown/grantqa/pkg/search"
	"github.com/otherjamesbrown/grantqa/pkg/store"
	"github.com/otherjamesbrown/grantqa/pkg/web"
)

const connectRetryDelay = 2 * time.Second

// Store is everything the services read and write. store.Postgres and
// store.Memory both satisfy it.
type Store interface {
	listing.Store
	search.Store
	review.Store
	dashboard.Store
	web.HealthChecker
}

// Backend is the set of services one command runs against.
type Backend struct {
	Listing   *listing.Service
	Search    *search.Service
	Review    *review.Service
	Dashboard *dashboard.Service
	Health    web.HealthChecker

	closers []func()
}

// NewBackend builds the services over s.
func NewBackend(s Store, logger logging.Logger, metrics *observability.Metrics, opts ...review.Option) *Backend {
	return &Backend{
		Listing:   listing.NewService(s, logger, metrics),
		Search:    search.NewService(s, logger, metrics),
		Review:    review.NewService(s, logger, metrics, opts...),
		Dashboard: dashboard.NewService(s, logger),
		Health:    s,
	}
}

// Services returns the backend as the HTTP server's service set.
func (b *Backend) Services() web.Services {
	return web.Services{
		Listing:   b.Listing,
		Search:    b.Search,
		Review:    b.Review,
		Dashboard: b.Dashboard,
		Health:    b.Health,
	}
}

// Close releases connections held by the backend.
func (b *Backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

// CommandDeps holds the dependencies shared by all commands.
type CommandDeps struct {
	// Config is loaded by the root command before any subcommand runs.
	Config *config.Config
	Logger logging.Logger

	// Registry collects the process, store and HTTP metrics.
	Registry *prometheus.Registry
	Metrics  *observability.Metrics

	// Demo runs against the in-memory demo catalog instead of PostgreSQL.
	Demo bool

	// ConnectAttempts bounds database connection retries. serve raises it.
	ConnectAttempts int

	// OpenBackend connects the services. Tests replace it.
	OpenBackend func(ctx context.Context, deps *CommandDeps) (*Backend, error)
}

// DefaultDeps returns the dependencies for production use.
func DefaultDeps() *CommandDeps {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &CommandDeps{
		Config:          config.DefaultConfig(),
		Logger:          logging.NewNopLogger(),
		Registry:        reg,
		Metrics:         observability.NewMetrics(reg),
		ConnectAttempts: 1,
		OpenBackend:     openBackend,
	}
}

// open connects the backend and reports the failure in CLI terms.
func (d *CommandDeps) open(ctx context.Context) (*Backend, error) {
	b, err := d.OpenBackend(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("connecting to store: %w", err)
	}
	return b, nil
}

// openBackend connects to PostgreSQL, or serves the demo catalog when
// Demo is set. Redis publishing is attached when configured; a Redis
// outage only disables events.
func openBackend(ctx context.Context, deps *CommandDeps) (*Backend, error) {
	var opts []review.Option
	var closers []func()

	if deps.Config.Redis.Enabled() {
		pub, err := review.NewRedisPublisherFromConfig(review.PublisherConfig{
			Address:  deps.Config.Redis.Address,
			Password: deps.Config.Redis.Password,
			DB:       deps.Config.Redis.DB,
		}, deps.Logger, deps.Metrics)
		if err != nil {
			deps.Logger.Warn("Duplicate review events disabled", logging.Err(err))
		} else {
			opts = append(opts, review.WithPublisher(pub))
			closers = append(closers, func() { _ = pub.Close() })
		}
	}

	if deps.Demo {
		deps.Logger.Info("Using in-memory demo catalog")
		b := NewBackend(store.NewDemo(), deps.Logger, deps.Metrics, opts...)
		b.closers = closers
		return b, nil
	}

	dbCfg := deps.Config.DB()
	pool, err := db.ConnectWithRetry(ctx, dbCfg, deps.ConnectAttempts, connectRetryDelay)
	if err != nil {
		closeAll(closers)
		return nil, err
	}
	closers = append(closers, func() { db.Close(pool) })
	registerPoolStats(pool, deps)

	pg := store.NewPostgres(pool, deps.Logger, dbCfg.QueryTimeout, deps.Metrics)
	b := NewBackend(pg, deps.Logger, deps.Metrics, opts...)
	b.closers = closers
	return b, nil
}

func registerPoolStats(pool *pgxpool.Pool, deps *CommandDeps) {
	if deps.Registry == nil {
		return
	}
	if _, err := db.RegisterPoolStatsCollector(pool, "grantqa", buildinfo.ServiceName, deps.Registry); err != nil {
		deps.Logger.Warn("Pool metrics unavailable", logging.Err(err))
	}
}

func closeAll(closers []func()) {
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
}

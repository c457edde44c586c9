package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/facet-db/facet/internal/cli/config"
	"github.com/facet-db/facet/internal/engine"
	"github.com/facet-db/facet/internal/hierarchy"
	"github.com/facet-db/facet/internal/serial"
	"github.com/facet-db/facet/internal/store"
	"github.com/facet-db/facet/internal/store/memory"
	"github.com/facet-db/facet/internal/store/postgres"
	redisstore "github.com/facet-db/facet/internal/store/redis"
	"github.com/facet-db/facet/internal/store/sqlite"
	"github.com/facet-db/facet/internal/web"
)

var serveDev bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the facet API server",
	Long:  "Start the HTTP API configured by facet.yml, serving until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveDev, "dev", false, "use human-readable development logging")
}

// backends bundles the stores the engine runs on, plus whatever needs
// closing on shutdown.
type backends struct {
	aggregates store.AggregateStore
	documents  store.DocumentStore
	items      store.ItemStore
	closers    []func() error
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := buildLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	be, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer be.Close()

	items := be.items
	var schemas *redisstore.SchemaCache
	if cfg.Redis.Enabled {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		be.closers = append(be.closers, client.Close)

		items = redisstore.NewItemStoreWithClient(client, cfg.Redis.Prefix)
		schemas = redisstore.NewSchemaCache(client, cfg.Redis.Prefix, cfg.Redis.SchemaTTL)
		logger.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
	}

	// Validated by config.Load.
	policy, _ := hierarchy.ParseConflictPolicy(cfg.Hierarchy.ConflictPolicy)

	feed := web.NewFeed(logger)
	eng := engine.New(engine.Options{
		Aggregates: be.aggregates,
		Documents:  be.documents,
		Serials:    serial.NewGenerator(items, cfg.Serial.MaxAttempts, logger),
		Hierarchy:  hierarchy.New(be.aggregates, be.documents, policy, logger),
		Publisher:  feed,
		Logger:     logger,
	})

	var tokens *web.TokenService
	if cfg.Auth.Secret != "" {
		tokens = web.NewTokenService(cfg.Auth.Secret, cfg.Auth.TokenTTL)
	} else {
		logger.Warn("auth.secret is empty, the API is unauthenticated")
	}

	var limiter *web.RateLimiter
	if cfg.Server.RateLimit > 0 {
		limiter = web.NewRateLimiter(cfg.Server.RateLimit, time.Minute)
		defer limiter.Close()
	}

	handler := web.NewHandler(web.HandlerOptions{
		Engine:  eng,
		Feed:    feed,
		Tokens:  tokens,
		Schemas: schemas,
		Limiter: limiter,
		Logger:  logger,
	})

	serverCfg := web.DefaultServerConfig()
	serverCfg.Host = cfg.Server.Host
	serverCfg.Port = cfg.Server.Port
	server := web.NewServer(serverCfg, handler.Router(), logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	stop()

	return server.Shutdown(context.Background())
}

func buildLogger() (*zap.Logger, error) {
	if serveDev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func databaseURL(cfg *config.Config) string {
	if cfg.Database.URL != "" {
		return cfg.Database.URL
	}
	return os.Getenv("DATABASE_URL")
}

func openBackends(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*backends, error) {
	switch cfg.Database.Driver {
	case "memory":
		logger.Warn("using in-memory storage, data is lost on restart")
		return &backends{
			aggregates: memory.NewAggregateStore(),
			documents:  memory.NewDocumentStore(),
			items:      memory.NewItemStore(),
		}, nil

	case "sqlite":
		s, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("sqlite opened", zap.String("path", cfg.Database.Path))
		return &backends{
			aggregates: s,
			documents:  s,
			items:      s,
			closers:    []func() error{s.Close},
		}, nil

	case "postgres":
		url := databaseURL(cfg)
		db, err := sql.Open("postgres", url)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}

		aggregates := postgres.NewAggregateStore(db)
		items := postgres.NewItemStore(db)
		if err := aggregates.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		if err := items.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}

		pool, err := pgxpool.New(ctx, url)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("open pgx pool: %w", err)
		}
		logger.Info("postgres connected")
		return &backends{
			aggregates: aggregates,
			documents:  postgres.NewDocumentStore(pool),
			items:      items,
			closers: []func() error{
				db.Close,
				func() error { pool.Close(); return nil },
			},
		}, nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

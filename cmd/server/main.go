package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"libris/internal/activity"
	"libris/internal/activity/storage"
	"libris/internal/activity/store/kafkamirror"
	memstore "libris/internal/activity/store/memory"
	pgstore "libris/internal/activity/store/postgres"
	"libris/internal/activity/store/remote"
	"libris/internal/catalog"
	"libris/internal/identity"
	"libris/internal/loans"
	"libris/internal/platform/config"
	"libris/internal/platform/httpserver"
	"libris/internal/platform/logger"
	"libris/internal/platform/metrics"
	platformredis "libris/internal/platform/redis"
	httptransport "libris/internal/transport/http"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal services packages.
func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New(slog.LevelInfo)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var db *sql.DB
	if cfg.PostgresURL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
	}

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	activityStore, activityReader, storeClose, err := buildActivityStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer storeClose()

	activityStore, kafkaClose, err := wrapMirror(ctx, cfg, activityStore, log)
	if err != nil {
		return err
	}
	defer kafkaClose()

	httpMetrics := metrics.New(nil)
	activityMetrics := activity.NewMetrics(nil)

	activityOpts := []activity.Option{activity.WithMetrics(activityMetrics)}
	if cfg.ActivityDisabled {
		activityOpts = append(activityOpts, activity.Disabled())
	}
	if cfg.IPLookupURL != "" {
		activityOpts = append(activityOpts,
			activity.WithProbe(activity.NewHTTPProbe(cfg.IPLookupURL, cfg.UserAgent)))
	}
	activityLog := activity.New(activityStore, buildQueueStorage(cfg, redisClient, log), log, activityOpts...)

	userStore, catalogStore, loanStore, err := buildDomainStores(ctx, db)
	if err != nil {
		return err
	}

	tokens := identity.NewTokenIssuer(cfg.JWTSigningKey)
	identitySvc := identity.NewService(userStore, tokens, log)
	catalogSvc := catalog.NewService(catalogStore, log)
	loansSvc := loans.NewService(loanStore, catalogSvc, log)

	// Queued activity from failed-authorization periods replays once a
	// sign-in completes.
	identitySvc.OnAuthStateChanged(func(ctx context.Context, user identity.User) {
		activityLog.Replay(ctx, user.ID)
	})

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:         log,
		Metrics:        httpMetrics,
		Identity:       identitySvc,
		Catalog:        catalogSvc,
		Loans:          loansSvc,
		Activity:       activityLog,
		ActivityReader: activityReader,
		Validator:      tokens,
	})

	srv := httpserver.New(cfg.Addr, router)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting libris portal", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return activityLog.Close(shutdownCtx)
	})

	return g.Wait()
}

// buildActivityStore picks the activity destination backend: hosted docstore
// when configured, then Postgres, then memory. The reader is nil when the
// backend cannot serve /me/activity. The returned func releases the
// backend's own connections.
func buildActivityStore(ctx context.Context, cfg config.Server, log *slog.Logger) (activity.Store, activity.Reader, func(), error) {
	if cfg.DocstoreURL != "" {
		log.Info("activity store: remote docstore", "url", cfg.DocstoreURL)
		token := cfg.DocstoreToken
		store := remote.New(cfg.DocstoreURL, remote.TokenFunc(func(context.Context) string { return token }))
		return store, nil, func() {}, nil
	}
	if cfg.PostgresURL != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("activity pool: %w", err)
		}
		store := pgstore.New(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		log.Info("activity store: postgres")
		return store, store, pool.Close, nil
	}
	log.Info("activity store: in-memory")
	store := memstore.NewStore()
	return store, store, func() {}, nil
}

// buildQueueStorage picks where the offline activity queue persists:
// redis, then file, then memory.
func buildQueueStorage(cfg config.Server, redisClient *platformredis.Client, log *slog.Logger) activity.Storage {
	if redisClient != nil {
		log.Info("activity queue storage: redis")
		return storage.NewRedis(redisClient.Client)
	}
	if cfg.QueueDir != "" {
		store, err := storage.NewFile(cfg.QueueDir)
		if err == nil {
			log.Info("activity queue storage: file", "dir", cfg.QueueDir)
			return store
		}
		log.Warn("file queue storage unavailable, using memory", "error", err)
	}
	return storage.NewMemory()
}

// wrapMirror decorates the store with a Kafka mirror of system-destination
// records when brokers are configured. The returned func closes the client.
func wrapMirror(ctx context.Context, cfg config.Server, store activity.Store, log *slog.Logger) (activity.Store, func(), error) {
	if len(cfg.KafkaBrokers) == 0 {
		return store, func() {}, nil
	}
	client, err := kgo.NewClient(kgo.SeedBrokers(cfg.KafkaBrokers...))
	if err != nil {
		return nil, nil, fmt.Errorf("kafka client: %w", err)
	}
	topic := cfg.KafkaTopic
	if topic == "" {
		topic = kafkamirror.DefaultTopic
	}
	if err := kafkamirror.EnsureTopic(ctx, client, topic); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("ensure kafka topic: %w", err)
	}
	log.Info("mirroring system events to kafka", "brokers", cfg.KafkaBrokers, "topic", topic)
	return kafkamirror.New(store, client, topic, log), client.Close, nil
}

func buildDomainStores(ctx context.Context, db *sql.DB) (identity.UserStore, catalog.Store, loans.Store, error) {
	if db == nil {
		return identity.NewMemoryUserStore(), catalog.NewMemoryStore(), loans.NewMemoryStore(), nil
	}
	users := identity.NewPostgresUserStore(db)
	if err := users.Migrate(ctx); err != nil {
		return nil, nil, nil, err
	}
	books := catalog.NewPostgresStore(db)
	if err := books.Migrate(ctx); err != nil {
		return nil, nil, nil, err
	}
	loanStore := loans.NewPostgresStore(db)
	if err := loanStore.Migrate(ctx); err != nil {
		return nil, nil, nil, err
	}
	return users, books, loanStore, nil
}

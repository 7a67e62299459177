package main

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/ayush/secrets-app/backend/internal/auth"
	"github.com/ayush/secrets-app/backend/internal/config"
	"github.com/ayush/secrets-app/backend/internal/server"
	"github.com/ayush/secrets-app/backend/internal/store"
	"github.com/ayush/secrets-app/backend/internal/web"
)

const connectTimeout = 10 * time.Second

// closer releases a backend connection.
type closer func()

// migrator is a store whose schema can be brought up to date.
type migrator interface {
	migrate(ctx context.Context) error
}

type mongoMigrator struct{ s *store.MongoStore }

func (m mongoMigrator) migrate(ctx context.Context) error { return m.s.EnsureIndexes(ctx) }

type postgresMigrator struct{ s *store.PostgresStore }

func (m postgresMigrator) migrate(ctx context.Context) error { return m.s.Migrate(ctx) }

type noopMigrator struct{}

func (noopMigrator) migrate(context.Context) error { return nil }

// openStore connects the configured credential store.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (server.Store, migrator, closer, error) {
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	switch cfg.Store.Driver {
	case config.DriverMongo:
		client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return nil, nil, nil, oops.Code("DB_CONNECT_FAILED").With("driver", "mongo").Wrap(err)
		}
		if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, nil, oops.Code("DB_CONNECT_FAILED").With("driver", "mongo").Wrap(err)
		}
		s := store.NewMongoStore(client.Database(cfg.Mongo.Database))
		log.Info().Str("database", cfg.Mongo.Database).Msg("Connected to MongoDB")
		return s, mongoMigrator{s}, func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Warn().Err(err).Msg("MongoDB disconnect failed")
			}
		}, nil

	case config.DriverPostgres:
		pool, err := pgxpool.New(connectCtx, cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, nil, oops.Code("DB_CONNECT_FAILED").With("driver", "postgres").Wrap(err)
		}
		if err := pool.Ping(connectCtx); err != nil {
			pool.Close()
			return nil, nil, nil, oops.Code("DB_CONNECT_FAILED").With("driver", "postgres").Wrap(err)
		}
		s := store.NewPostgresStore(pool)
		log.Info().Msg("Connected to PostgreSQL")
		return s, postgresMigrator{s}, pool.Close, nil

	default:
		log.Warn().Msg("Using in-memory credential store, data is lost on restart")
		return store.NewMemoryStore(), noopMigrator{}, func() {}, nil
	}
}

// openSessions connects the configured session backend.
func openSessions(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*auth.SessionStore, closer, error) {
	var (
		backend auth.SessionBackend
		release closer
	)
	switch cfg.Session.Driver {
	case config.DriverRedis:
		rdb, err := store.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password)
		if err != nil {
			return nil, nil, err
		}
		sessions := store.NewRedisSessions(rdb)
		backend = sessions
		release = func() { _ = sessions.Close() }
		log.Info().Str("redis.addr", cfg.Redis.Addr).Msg("Connected to Redis")
	default:
		mem, err := store.NewMemorySessions(cfg.Session.TTL)
		if err != nil {
			return nil, nil, err
		}
		backend = mem
		release = func() { _ = mem.Close() }
		log.Warn().Msg("Using in-memory sessions, logins are lost on restart")
	}
	return auth.NewSessionStore(backend, cfg.Session.TTL, cfg.Session.SecureCookie), release, nil
}

// openAssets returns the static asset handler, backed by MinIO when an
// endpoint is configured.
func openAssets(ctx context.Context, cfg *config.Config, log zerolog.Logger) (http.Handler, error) {
	if !cfg.MinioEnabled() {
		log.Info().Str("dir", cfg.Assets.Dir).Msg("Serving static assets from disk")
		return web.DirAssets(cfg.Assets.Dir), nil
	}
	bucket, err := openBucket(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log.Info().Str("bucket", cfg.Minio.Bucket).Msg("Serving static assets from MinIO")
	return web.BucketAssets(bucket), nil
}

func openBucket(ctx context.Context, cfg *config.Config) (*store.MinioStore, error) {
	return store.NewMinioStore(ctx, store.MinioConfig{
		Endpoint:  cfg.Minio.Endpoint,
		AccessKey: cfg.Minio.AccessKey,
		SecretKey: cfg.Minio.SecretKey,
		Bucket:    cfg.Minio.Bucket,
		UseSSL:    cfg.Minio.UseSSL,
	})
}

// googleProvider returns nil when Google login is not configured.
func googleProvider(cfg *config.Config) auth.FederatedProvider {
	if !cfg.GoogleEnabled() {
		return nil
	}
	return auth.NewGoogleProvider(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.CallbackURL)
}

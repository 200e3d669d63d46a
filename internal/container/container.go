package container

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/lms-backend/config"
	"github.com/oksasatya/lms-backend/internal/domain/repository"
	"github.com/oksasatya/lms-backend/internal/infrastructure/memory"
	mongoinfra "github.com/oksasatya/lms-backend/internal/infrastructure/mongodb"
	pginfra "github.com/oksasatya/lms-backend/internal/infrastructure/postgres"
	"github.com/oksasatya/lms-backend/pkg/helpers"
)

// Container holds the process-wide dependencies. It is built once at startup
// and passed down explicitly; Close releases everything it opened.
type Container struct {
	Config *config.Config
	Logger *logrus.Logger
	Users  repository.UserRepository
	Redis  *redis.Client
	Hasher *helpers.PasswordHasher

	closers []func(context.Context) error
}

// New connects the store and the cache. On failure anything already opened
// is released before returning.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (c *Container, err error) {
	c = &Container{
		Config: cfg,
		Logger: logger,
		Hasher: helpers.NewPasswordHasher(cfg.BcryptCost),
	}
	defer func() {
		if err != nil {
			_ = c.Close(context.Background())
			c = nil
		}
	}()

	switch {
	case cfg.UsesMemory():
		c.Users = memory.NewUserRepository()
		logger.Warn("using in-memory user store; data is lost on exit")
	case cfg.UsesMongo():
		err = c.openMongo(ctx)
	default:
		err = c.openPostgres(ctx)
	}
	if err != nil {
		return c, err
	}

	rdb, err := helpers.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return c, err
	}
	if err = rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return c, err
	}
	logger.Info("redis connected")
	c.Redis = rdb
	c.closers = append(c.closers, func(context.Context) error { return rdb.Close() })
	return c, nil
}

func (c *Container) openPostgres(ctx context.Context) error {
	dsn := c.Config.PostgresDSN()
	pool, err := pginfra.NewPool(ctx, dsn, pginfra.PoolOptions{
		MaxConns:    c.Config.DBMaxConns,
		MinConns:    c.Config.DBMinConns,
		MaxConnLife: c.Config.DBMaxConnLife,
	})
	if err != nil {
		return err
	}
	c.closers = append(c.closers, func(context.Context) error { pool.Close(); return nil })
	if err := pginfra.Migrate(dsn, c.Config.MigrationsDir, c.Logger); err != nil {
		return err
	}
	c.Users = pginfra.NewUserRepository(pool)
	c.Logger.Info("postgres connected")
	return nil
}

func (c *Container) openMongo(ctx context.Context) error {
	client, err := mongoinfra.NewClient(ctx, c.Config.DatabaseURL)
	if err != nil {
		return err
	}
	c.closers = append(c.closers, client.Disconnect)
	users := mongoinfra.NewUserRepository(client, c.Config.MongoDatabase)
	if err := users.EnsureIndexes(ctx); err != nil {
		return err
	}
	c.Users = users
	c.Logger.WithField("database", c.Config.MongoDatabase).Info("mongodb connected")
	return nil
}

// Close releases resources in reverse order of acquisition.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

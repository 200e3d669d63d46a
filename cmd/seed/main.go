package main

import (
	"context"
	"errors"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/lms-backend/config"
	userapp "github.com/oksasatya/lms-backend/internal/application"
	"github.com/oksasatya/lms-backend/internal/container"
	"github.com/oksasatya/lms-backend/pkg/apperror"
	"github.com/oksasatya/lms-backend/pkg/helpers"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-seed", cfg.Env)

	if err := run(context.Background(), cfg, logger); err != nil {
		helpers.LogError(logger, "seed failed", err, nil)
		os.Exit(1)
	}
}

// run returns instead of exiting so deferred cleanup always happens.
func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	deps, err := container.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(context.Background()); err != nil {
			helpers.LogError(logger, "failed to release dependencies", err, nil)
		}
	}()

	svc := userapp.NewService(deps.Users, deps.Hasher, deps.Redis, logger, cfg.UserCacheTTL)

	email := getenv("SEED_EMAIL", "demo@example.com")
	u, err := svc.Register(ctx, userapp.RegisterInput{
		Name:     getenv("SEED_NAME", "Demo User"),
		Email:    email,
		Password: getenv("SEED_PASSWORD", "password123"),
	})
	if errors.Is(err, apperror.ErrValidation) {
		logger.WithError(err).WithField("email", email).Warn("seed user not created")
		return nil
	}
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{"user_id": u.ID, "email": u.Email}).Info("seeded user")
	return nil
}

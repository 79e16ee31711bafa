// Command server runs the profile API.
//
// Configuration comes from an optional YAML file named by CONFIG_PATH, a
// .env file in the working directory, and the process environment. See
// internal/config for every setting.
package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/neoori/profile-api/internal/config"
	"github.com/neoori/profile-api/internal/server"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic during startup", slog.Any("panic", r))
			os.Exit(1)
		}
	}()

	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Mongo.ConnectTimeout+5*time.Second)
	srv, err := server.New(ctx, cfg, logger)
	cancel()
	if err != nil {
		return err
	}

	return srv.Start()
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fastygo/ocxers/internal/config"
	esInfra "github.com/fastygo/ocxers/internal/infrastructure/elastic"
	"github.com/fastygo/ocxers/pkg/logger"
	"github.com/fastygo/ocxers/repository/bolt"
	"github.com/fastygo/ocxers/repository/docstore"
	"github.com/fastygo/ocxers/repository/elastic"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "ocxers",
		Short:        "Account, invitation and realtime backend",
		Long:         "ocxers serves the GraphQL account API, the realtime notification channel and the mail and upload endpoints.",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE:         runServe,
	}
	root.AddCommand(newServeCommand(), newIndicesCommand())
	return root
}

// bootstrap loads configuration and builds the process logger.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config error: %w", err)
	}
	log, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger error: %w", err)
	}
	return cfg, log.With(zap.String("app", cfg.AppName), zap.String("env", cfg.Environment)), nil
}

// openStore connects the configured document store and waits until it answers.
func openStore(ctx context.Context, cfg config.StoreConfig, log *zap.Logger) (docstore.Gateway, error) {
	var store docstore.Gateway
	switch cfg.Engine {
	case config.EngineBolt:
		gw, err := bolt.Open(cfg.BoltPath, log)
		if err != nil {
			return nil, fmt.Errorf("open bolt store: %w", err)
		}
		store = gw
	default:
		client, err := esInfra.NewClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("elasticsearch client: %w", err)
		}
		store = elastic.NewGateway(client, log)
	}
	if err := esInfra.Wait(ctx, store, cfg.ReadyTimeout, log); err != nil {
		_ = store.Close()
		return nil, err
	}
	log.Info("document store ready", zap.String("engine", cfg.Engine))
	return store, nil
}

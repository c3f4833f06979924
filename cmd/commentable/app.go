package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-chi/chi/v5"
	"github.com/nisimpson/commentable"
	"github.com/nisimpson/commentable/internal/auth"
	"github.com/nisimpson/commentable/internal/config"
	"github.com/nisimpson/commentable/internal/handler"
	"github.com/nisimpson/commentable/internal/logging"
	"github.com/nisimpson/commentable/internal/service"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// app holds the dependencies shared by the subcommands.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	client *dynamodb.Client
	store  *commentable.Store
}

func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(viper.GetViper(), cmd)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		return nil, err
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	store := commentable.New(client, cfg.Table,
		commentable.WithIndexes(cfg.RepliesIndex, cfg.ReactionsIndex),
		commentable.WithCallTimeout(cfg.CallTimeout),
		commentable.WithLogger(logger),
	)
	store.Orphans = cfg.OrphanPolicy

	logger.Debug("configuration loaded",
		zap.String("table", cfg.Table),
		zap.String("region", cfg.Region),
		zap.String("endpoint", cfg.Endpoint),
		zap.Stringer("orphan_policy", cfg.OrphanPolicy),
	)

	return &app{cfg: cfg, logger: logger, client: client, store: store}, nil
}

// router builds the HTTP API over the store.
func (a *app) router() *chi.Mux {
	verifier := auth.NewTokenInfoVerifier(a.cfg.TokenInfoURL, a.logger)
	svc := service.New(a.store, verifier, a.logger)
	return handler.NewRouter(svc, a.logger, handler.Options{CORSOrigins: a.cfg.CORSOrigins})
}

func (a *app) close() {
	_ = a.logger.Sync()
}

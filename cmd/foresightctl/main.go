// Package main implements foresightctl, the operator CLI for schema
// migration, account bootstrap and cost reports.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"demand-foresight/internal/app"
	"demand-foresight/internal/bootstrap"
	"demand-foresight/internal/config"
	"demand-foresight/internal/logging"
	"demand-foresight/internal/model"
)

var (
	configPath string
	version    = "dev"
)

// operator is the identity CLI actions run as.
var operator = app.Actor{Username: "foresightctl", Role: model.RoleAdmin}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "foresightctl",
	Short:   "Operator CLI for the demand foresight service",
	Version: version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if configPath != "" {
			_ = os.Setenv("CONFIG_FILE", configPath)
		}
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default configs/config.toml or $CONFIG_FILE)")
}

// env is what store-backed commands need.
type env struct {
	cfg    *config.Config
	db     *gorm.DB
	logger *zap.Logger
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	db, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, db: db, logger: logger}, nil
}

func (e *env) Close() {
	if sqlDB, err := e.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = e.logger.Sync()
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vistable/vistable/logger"
	"github.com/vistable/vistable/sqlite"
	"github.com/vistable/vistable/sqlite/migrations"
)

func newLogger(v *viper.Viper) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(v.GetString("log-level"))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", v.GetString("log-level"), err)
	}
	return logger.New(os.Stdout, level), nil
}

// openStore opens the sqlite database and brings its schema up to date.
func openStore(ctx context.Context, v *viper.Viper, log *zap.Logger) (*sqlite.SqlStore, error) {
	store, err := sqlite.NewSqlStore(v.GetString("sqlite-path"), log.With(zap.String("service", "sqlite")))
	if err != nil {
		return nil, err
	}
	if err := sqlite.NewMigrator(store, log.With(zap.String("service", "sqlite-migrator"))).Up(ctx, migrations.All); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/vistable/vistable/changelog"
	"github.com/vistable/vistable/dashboards"
)

func newMigrateCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Migrate every stored dashboard to the latest content schema",
		Long: "Walks all dashboards and applies outstanding content schema " +
			"migrations, persisting after each step and recording a changelog " +
			"row per step. Exits non-zero if any dashboard is at an unknown " +
			"version.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd.Context(), v)
		},
	}
}

func runMigrate(ctx context.Context, v *viper.Viper) error {
	log, err := newLogger(v)
	if err != nil {
		return err
	}
	defer log.Sync()

	store, err := openStore(ctx, v, log)
	if err != nil {
		return err
	}
	defer store.Close()

	changelogSvc := changelog.NewService(log.With(zap.String("service", "changelog")), store)
	migrator := dashboards.NewMigrator(
		log.With(zap.String("service", "content-migrator")),
		store,
		dashboards.DefaultRegistry(),
		changelogSvc,
	)

	if err := migrator.MigrateAll(ctx); err != nil {
		log.Error("Migration of dashboards failed", zap.Error(err))
		return err
	}
	return nil
}

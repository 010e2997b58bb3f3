package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/vistable/vistable/authorizer"
	"github.com/vistable/vistable/changelog"
	"github.com/vistable/vistable/dashboards"
	"github.com/vistable/vistable/datasources"
	"github.com/vistable/vistable/jobs"
	"github.com/vistable/vistable/migration"
	"github.com/vistable/vistable/permissions"
	"github.com/vistable/vistable/principals"
	"github.com/vistable/vistable/transport"
)

func newServeCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), v)
		},
	}

	cmd.Flags().String("http-bind-addr", ":8080", "address the HTTP server listens on")
	bindFlags(v, cmd.Flags(), "http-bind-addr")
	return cmd
}

func runServe(ctx context.Context, v *viper.Viper) error {
	log, err := newLogger(v)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, v, log)
	if err != nil {
		return err
	}
	defer store.Close()

	principalSvc := principals.NewService(log.With(zap.String("service", "principals")), store)
	permissionSvc := permissions.NewService(log.With(zap.String("service", "permissions")), store, principalSvc)
	changelogSvc := changelog.NewService(log.With(zap.String("service", "changelog")), store)
	datasourceSvc := datasources.NewService(log.With(zap.String("service", "datasources")), store)
	jobSvc := jobs.NewService(log.With(zap.String("service", "jobs")), store, jobs.NopEvictor{}, changelogSvc)

	runner := migration.NewRunner(dashboards.DefaultRegistry(), log.With(zap.String("service", "migration")))
	dashboardSvc := authorizer.NewDashboardService(
		dashboards.NewLoggingService(
			log.With(zap.String("service", "dashboards")),
			dashboards.NewService(log.With(zap.String("service", "dashboards")), store, runner, permissionSvc, changelogSvc),
		),
		permissionSvc,
	)

	handler := transport.NewHandler(log, transport.Services{
		Principals:  principalSvc,
		Dashboards:  dashboardSvc,
		Permissions: permissionSvc,
		DataSources: datasourceSvc,
		Jobs:        jobSvc,
		Changelogs:  changelogSvc,
	})

	srv := &http.Server{
		Addr:    v.GetString("http-bind-addr"),
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}

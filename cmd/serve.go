package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/monitoring"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the scheduled jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if cfg.Schedule.Enabled {
			sched, err := startSchedule(ctx, env)
			if err != nil {
				return err
			}
			defer sched.Stop()
			go env.Checker.Run(ctx)
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(env, cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// startSchedule registers the weekly cleanup and dashboard jobs.
func startSchedule(ctx context.Context, env *appEnv) (*monitoring.Scheduler, error) {
	sched, err := monitoring.NewScheduler(ctx, cfg.Schedule)
	if err != nil {
		return nil, err
	}
	if err := sched.Add("cleanup", cfg.Schedule.Cleanup, func(ctx context.Context) error {
		_, err := env.Cleanup.Run(ctx, 0)
		return err
	}); err != nil {
		return nil, err
	}
	if err := sched.Add("dashboard", cfg.Schedule.Dashboard, func(ctx context.Context) error {
		_, err := env.Collector.Dashboard(ctx)
		return err
	}); err != nil {
		return nil, err
	}
	sched.Start()
	return sched, nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lexiguard/lexiguard/internal/config"
	"github.com/lexiguard/lexiguard/internal/httpapi"
	"github.com/lexiguard/lexiguard/internal/service"
	"github.com/lexiguard/lexiguard/pkg/icron"
	"github.com/lexiguard/lexiguard/pkg/log"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

type scheduler interface {
	Schedule(ctx context.Context) error
}

type cronEngine interface {
	Start()
	Stop() context.Context
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var ingestOnStart bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scheduled re-ingestion",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			svc, err := service.New(ctx, cfg)
			if err != nil {
				service.Handle(err)
				return err
			}
			defer svc.Close()

			if ingestOnStart && svc.Pipeline() != nil {
				if _, err := svc.Ingest(ctx); err != nil {
					log.Warn("Initial ingestion finished with errors: %v", err)
				}
			}

			engine := cron.New(cron.WithParser(icron.Parser))
			var sched scheduler
			if cfg.Ingest.CronExpr != "" && svc.Pipeline() != nil {
				sched = service.NewReindexer(svc.Pipeline(), engine, cfg.Ingest.CronExpr)
			}
			srv := httpapi.NewServer(svc, httpapi.WithMetrics(svc.Gatherer()))
			return runWithComponents(ctx, cfg, sched, engine, srv)
		},
	}
	cmd.Flags().BoolVar(&ingestOnStart, "ingest", false, "Ingest the documents directory before serving")
	return cmd
}

// runWithComponents schedules re-ingestion, starts the cron engine and
// serves HTTP until ctx is done or the server fails.
func runWithComponents(
	ctx context.Context,
	cfg *config.Config,
	sched scheduler,
	engine cronEngine,
	srv httpServer,
) error {
	if sched != nil {
		if err := sched.Schedule(ctx); err != nil {
			return err
		}
	}
	engine.Start()
	defer func() {
		stopped := engine.Stop()
		select {
		case <-stopped.Done():
		case <-time.After(shutdownTimeout):
			log.Warn("Timed out waiting for running ingestion to finish")
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening on %s", cfg.HTTP.Addr)
		errCh <- srv.ListenAndServe(cfg.HTTP.Addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

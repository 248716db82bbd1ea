package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"aggregator/internal/logger"
	"aggregator/internal/service"
)

const shutdownGrace = 30 * time.Second

func newWatchCommand() *cobra.Command {
	var runNow bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run the pipeline on a cron schedule and/or when input files change",
		Long: `watch keeps running until interrupted. Runs are triggered by watch.schedule
(a standard 5-field cron expression) and by writes to any file in watch.files.
A trigger that fires while a run is active is skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			st, err := openStores()
			if err != nil {
				return err
			}
			defer st.Close()

			engine, err := newEngine(st)
			if err != nil {
				return err
			}
			svc := service.NewPipelineService(engine, service.LogEmitter{Log: log}, log)

			if runNow {
				if _, err := svc.RunOnce(ctx); err != nil && !errors.Is(err, service.ErrRunInProgress) {
					log.Error("initial run failed", logger.Error(err))
				}
			}

			if err := svc.Watch(ctx, service.WatchOptions{
				Schedule: cfg.Watch.Schedule,
				Files:    cfg.Watch.Files,
				Debounce: cfg.Watch.Debounce,
			}); err != nil {
				return err
			}
			log.Info("watching, press Ctrl+C to stop")

			<-ctx.Done()
			log.Info("shutting down")
			svc.Stop()

			waitCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			svc.WaitRunning(waitCtx)
			return nil
		},
	}

	cmd.Flags().BoolVar(&runNow, "now", false, "run once immediately before waiting for triggers")
	return cmd
}

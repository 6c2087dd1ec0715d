package cli

import (
	"errors"

	"finboard/internal/core"
	"finboard/internal/worker"

	"github.com/spf13/cobra"
)

var errNothingToDo = errors.New("worker needs AMQP_URL to consume jobs or FINBOARD_OWNER_ID to sweep")

func newWorkerCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume queued Open Finance syncs and sweep stale connections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := GracefulShutdown(cmd.Context(), a.logger)
			defer stop()

			rt, err := buildRuntime(ctx, a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			// Without a broker the worker only sweeps.
			var consumer worker.Consumer
			if rt.publisher != nil {
				consumer = rt.publisher
			} else if a.cfg.OwnerID == "" {
				return errNothingToDo
			}

			w := worker.NewSyncWorker(rt.openFinance, worker.Config{
				StaleAfter:    a.cfg.SyncStaleAfter,
				SweepInterval: a.cfg.SyncSweepInterval,
				Owner:         core.Owner{ID: a.cfg.OwnerID, Email: a.cfg.OwnerEmail},
			}, a.logger)

			a.logger.Info("Starting finboard worker",
				"queue", a.cfg.AMQPQueue,
				"consuming", consumer != nil,
				"sweep_interval", a.cfg.SyncSweepInterval.String())
			return w.Run(ctx, consumer)
		},
	}
}

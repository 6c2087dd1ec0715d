package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"finboard/internal/amqp"
	"finboard/internal/backend"
	"finboard/internal/cache"
	"finboard/internal/config"
	apphttp "finboard/internal/http"
	"finboard/internal/importer"
	"finboard/internal/log"
	"finboard/internal/openfinance"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout    = 30 * time.Second
	cacheSweepInterval = time.Minute
	accountCacheSize   = 256
)

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := GracefulShutdown(cmd.Context(), a.logger)
			defer stop()
			return runServe(ctx, a.cfg, a.logger)
		},
	}
}

// runtime is everything the API process owns.
type runtime struct {
	backend     *backend.BackendResult
	openFinance *openfinance.Service
	importer    *importer.Importer
	publisher   *amqp.Client
	janitor     *cache.Janitor
}

func (r *runtime) Close() error {
	var errs []error
	if r.publisher != nil {
		errs = append(errs, r.publisher.Close())
	}
	errs = append(errs, r.backend.Close())
	return errors.Join(errs...)
}

// buildRuntime wires the data service and the services on top of it. The
// AMQP publisher is optional: without AMQP_URL syncs run inline.
func buildRuntime(ctx context.Context, cfg *config.Config, logger *log.Logger) (*runtime, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	be, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}
	rt := &runtime{backend: be}

	accounts := cache.NewLRUCache[[]openfinance.Account](accountCacheSize, cfg.OpenFinanceCacheTTL)
	opts := []openfinance.Option{
		openfinance.WithAccountCache(accounts),
		openfinance.WithLogger(logger),
	}
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		rt.publisher = client
		opts = append(opts, openfinance.WithPublisher(client, be.Owners))
	}
	rt.openFinance = openfinance.New(be.Data, cfg.OpenFinanceRedirectURL, opts...)

	policy := importer.Policy{
		PendingThreshold:    cfg.ImportPendingThreshold,
		MaxCategoryDistance: importer.DefaultPolicy().MaxCategoryDistance,
	}
	rt.importer = importer.New(be.Data, importer.CSVExtractor{}, policy, logger)
	rt.janitor = cache.NewJanitor(logger, accounts)
	return rt, nil
}

func runServe(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	rt, err := buildRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Error("Closing runtime failed", log.FieldError, err)
		}
	}()

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Data:               rt.backend.Data,
		OpenFinance:        rt.openFinance,
		Importer:           rt.importer,
		Logger:             logger,
		PageSize:           cfg.TransactionsPageSize,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	g, ctx := errgroup.WithContext(ctx)
	rt.janitor.Start(ctx, cacheSweepInterval)

	g.Go(func() error {
		logger.Info("Starting finboard server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"mode", rt.backend.Data.Mode().String(),
			"queued_sync", rt.publisher != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("Shutting down server", log.FieldOperation, log.OpShutdown)
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	rt.janitor.Wait()
	if err == nil {
		logger.Info("Server stopped gracefully")
	}
	return err
}

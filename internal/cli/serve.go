package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tutu-network/credits/internal/api"
	"github.com/tutu-network/credits/internal/app/reconcile"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the payment reconciliation worker",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return withStack(func(s *stack) error {
			return serve(ctx, s)
		})
	},
}

// serve runs until ctx is cancelled, then drains in-flight requests.
func serve(ctx context.Context, s *stack) error {
	logger := s.logger

	apiCfg := api.DefaultConfig()
	if d, err := time.ParseDuration(s.cfg.API.RequestTimeout); err == nil {
		apiCfg.RequestTimeout = d
	}
	apiCfg.AdminToken = s.cfg.API.AdminToken
	apiCfg.CORSOrigins = s.cfg.API.CORSOrigins
	if apiCfg.AdminToken == "" {
		logger.Warn("api.admin_token is empty; balance-moving routes will refuse every request")
	}
	deps := api.Deps{
		Pricer: s.engine,
		Ledger: s.ledger,
		Health: s.db,
		Logger: logger,
	}
	if s.cfg.API.Metrics {
		deps.Gatherer = s.registry
	}
	if s.cfg.API.Traces {
		deps.Tracer = s.tracer
	}

	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           api.NewServer(apiCfg, deps).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	worker := reconcile.New(s.cfg.ReconcileConfig(), s.ledger, logger)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(ctx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var err error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-serveErr:
		if err != nil {
			err = fmt.Errorf("listen %s: %w", srv.Addr, err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		logger.Warn("shutdown incomplete", zap.Error(serr))
	}
	cancelWorker()
	<-workerDone

	st := worker.Stats()
	logger.Info("stopped",
		zap.Int64("reconcilePasses", st.Passes),
		zap.Int64("paymentsCredited", st.Credited))
	return err
}

package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dyluth/discgraph/internal/api"
	"github.com/dyluth/discgraph/internal/printer"
	"github.com/dyluth/discgraph/internal/reconciler"
	"github.com/dyluth/discgraph/pkg/graph"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the background reconciler",
	Long: `Run the HTTP query API together with one polling task per tracked program.

Programs are tracked from reconciler.programs in the config, from every program
already in the graph (reconciler.discover_from_store), and from every program a
discriminator is uploaded for while the server runs.

The server stops gracefully on SIGINT or SIGTERM: pollers are cancelled and
in-flight requests are given time to finish.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rt, err := newRuntime(ctx, true)
	if err != nil {
		return err
	}
	defer rt.Close()
	logger := rt.logger

	addr := rt.cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	if err := rt.source.Health(ctx); err != nil {
		return printer.ErrorWithContext(
			"ledger endpoint unreachable",
			err.Error(),
			map[string]string{"endpoint": rt.source.Endpoint()},
			[]string{
				"Check that the RPC node is running and ledger.endpoint is correct",
				"Set DISCGRAPH_LEDGER_ENDPOINT to a reachable node",
			},
		)
	}

	if err := rt.store.EnsureCollections(ctx, graph.AllCollections()); err != nil {
		return printer.Error("failed to provision collections", err.Error(), nil)
	}

	programs, err := rt.seedPrograms(ctx, nil)
	if err != nil {
		return err
	}

	rec := reconciler.New(rt.source, rt.engine, reconciler.Options{
		Interval: rt.cfg.Reconciler.Interval,
		Decoder:  rt.decoder,
		Logger:   logger,
	})
	srv := api.NewServer(rt.queryService(), rec, rt.store, logger)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	if err := srv.Start(runCtx, addr); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- rec.Run(runCtx, programs)
	}()

	printer.Success("discgraph serving on %s\n", addr)
	printer.Field("namespace", rt.cfg.Namespace)
	printer.Field("store", rt.cfg.Store.Backend)
	printer.Field("ledger", rt.source.Endpoint())
	printer.Field("programs", len(programs))

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("event", "shutdown"), zap.String("signal", sig.String()))
		cancel()
		<-errCh
	case runErr := <-errCh:
		if runErr != nil && runCtx.Err() == nil {
			logger.Error("reconciler stopped", zap.Error(runErr))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	rec.StopAll()

	printer.Info("discgraph stopped\n")
	return nil
}

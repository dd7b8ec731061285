package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/dyluth/discgraph/internal/printer"
	"github.com/dyluth/discgraph/internal/reconciler"
	"github.com/spf13/cobra"
)

var reconcileOnce bool

var reconcileCmd = &cobra.Command{
	Use:   "reconcile [PROGRAM_ID...]",
	Short: "Poll the ledger and ingest new records",
	Long: `Poll the given programs (plus any configured or already stored, see
reconciler.programs and reconciler.discover_from_store) and ingest every decodable
record. Runs until interrupted, or for a single pass with --once.

Failed fetches and failed records are logged and skipped; polling carries on.`,
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().BoolVar(&reconcileOnce, "once", false, "Run a single pass per program and exit")
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rt, err := newRuntime(ctx, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	programs, err := rt.seedPrograms(ctx, args)
	if err != nil {
		return err
	}
	if len(programs) == 0 {
		return printer.Error(
			"no programs to reconcile",
			"No program ids were given, configured, or found in the graph.",
			[]string{"Pass one:\n  discgraph reconcile <PROGRAM_ID>"},
		)
	}

	rec := reconciler.New(rt.source, rt.engine, reconciler.Options{
		Interval: rt.cfg.Reconciler.Interval,
		Decoder:  rt.decoder,
		Logger:   rt.logger,
	})

	if reconcileOnce {
		failed := 0
		for _, id := range programs {
			pass := rec.ReconcileOnce(ctx, id)
			if pass.FetchErr != nil {
				failed++
				printer.Warning("%s: fetch failed: %v\n", id, pass.FetchErr)
				continue
			}
			printer.Success("%s: %d accounts, %d ingested, %d malformed, %d failed\n",
				id, pass.Result.Accounts, pass.Result.Ingested, pass.Result.Malformed, pass.Result.Failed)
		}
		if failed == len(programs) {
			return printer.Error("reconcile failed", "The ledger could not be read for any program.", nil)
		}
		return nil
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	printer.Step("polling %d programs every %s (Ctrl-C to stop)\n", len(programs), rec.Interval())
	if err := rec.Run(runCtx, programs); err != nil {
		return err
	}
	printer.Info("stopped\n")
	return nil
}

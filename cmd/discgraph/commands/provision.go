package commands

import (
	"fmt"

	"github.com/dyluth/discgraph/internal/catalog"
	"github.com/dyluth/discgraph/internal/printer"
	"github.com/dyluth/discgraph/pkg/graph"
	"github.com/spf13/cobra"
)

var provisionCheck bool

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Create the graph collections",
	Long: `Register every node and edge collection in the graph store. Safe to run
repeatedly. With --check nothing is created; the current state is printed.`,
	Args: cobra.NoArgs,
	RunE: runProvision,
}

func init() {
	provisionCmd.Flags().BoolVar(&provisionCheck, "check", false, "Only report which collections exist")
	rootCmd.AddCommand(provisionCmd)
}

func runProvision(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rt, err := newRuntime(ctx, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	if !provisionCheck {
		printer.Step("provisioning %d collections in namespace '%s'\n", len(graph.AllCollections()), rt.cfg.Namespace)
		if err := rt.store.EnsureCollections(ctx, graph.AllCollections()); err != nil {
			return printer.Error("failed to provision collections", err.Error(), nil)
		}
	}

	insp, ok := rt.store.(graph.Inspector)
	if !ok {
		printer.Success("collections provisioned\n")
		return nil
	}

	kinds, err := insp.Collections(ctx)
	if err != nil {
		return fmt.Errorf("failed to read collections: %w", err)
	}
	counts := make(map[graph.Collection]int64, len(kinds))
	for c := range kinds {
		n, err := insp.Count(ctx, c)
		if err != nil {
			return fmt.Errorf("failed to count %s: %w", c, err)
		}
		counts[c] = n
	}

	catalog.FormatCollections(printer.Out(), kinds, counts)
	return nil
}

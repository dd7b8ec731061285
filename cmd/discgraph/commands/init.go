package commands

import (
	"errors"
	"fmt"

	"github.com/dyluth/discgraph/internal/printer"
	"github.com/dyluth/discgraph/internal/scaffold"
	"github.com/spf13/cobra"
)

var (
	forceInit bool
	initDir   string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter discgraph.yml",
	Long: `Write a discgraph.yml with every setting at its documented default.

Use --force to overwrite an existing file.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing discgraph.yml")
	initCmd.Flags().StringVar(&initDir, "dir", ".", "Directory to write discgraph.yml into")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	path, err := scaffold.Initialize(initDir, forceInit)
	if err != nil {
		if errors.Is(err, scaffold.ErrAlreadyInitialized) {
			return printer.Error(
				"already initialized",
				err.Error(),
				[]string{"Reinitialize (overwrites the existing configuration):\n  discgraph init --force"},
			)
		}
		return fmt.Errorf("initialization failed: %w", err)
	}

	printer.Success("created %s\n", path)
	printer.Info("\nNext steps:\n")
	printer.Info("  1. Set ledger.endpoint and reconciler.programs\n")
	printer.Info("  2. Run 'discgraph provision --config %s'\n", path)
	printer.Info("  3. Run 'discgraph serve --config %s'\n", path)
	return nil
}

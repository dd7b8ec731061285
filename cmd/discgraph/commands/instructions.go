package commands

import (
	"errors"
	"fmt"

	"github.com/dyluth/discgraph/internal/catalog"
	"github.com/dyluth/discgraph/internal/printer"
	"github.com/dyluth/discgraph/internal/resolver"
	"github.com/spf13/cobra"
)

var (
	instructionsOutputFormat string
	instructionsProgramID    string
)

var instructionsCmd = &cobra.Command{
	Use:   "instructions DISCRIMINATOR_KEY",
	Short: "Show the instructions a discriminator maps to",
	Long: `Follow MappedTo edges from a discriminator and print the instructions found.

The key is either the full namespaced key printed by "discgraph query -o jsonl",
or the short KEY column of "discgraph query" together with --program.

Examples:
  discgraph instructions P1:a3f1c2d4e5f6...
  discgraph instructions a3f1c2d4 --program P1`,
	Args: cobra.ExactArgs(1),
	RunE: runInstructions,
}

func init() {
	instructionsCmd.Flags().StringVarP(&instructionsProgramID, "program", "p", "", "Program id, required for short keys")
	instructionsCmd.Flags().StringVarP(&instructionsOutputFormat, "output", "o", outputDefault, "Output format: default, jsonl or json")
	rootCmd.AddCommand(instructionsCmd)
}

func runInstructions(cmd *cobra.Command, args []string) error {
	if err := validateOutput(instructionsOutputFormat); err != nil {
		return err
	}
	ctx := cmd.Context()

	rt, err := newRuntime(ctx, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	key, err := resolver.ResolveDiscriminatorKey(ctx, rt.store, instructionsProgramID, args[0])
	if err != nil {
		var ambig *resolver.AmbiguousError
		if errors.As(err, &ambig) {
			fmt.Fprintln(printer.ErrOut(), resolver.FormatAmbiguousError(ambig))
			return fmt.Errorf("ambiguous short key")
		}
		if resolver.IsNotFoundError(err) {
			return printer.Error(
				fmt.Sprintf("discriminator '%s' not found", args[0]),
				err.Error(),
				[]string{fmt.Sprintf("List the program's discriminators:\n  discgraph query %s", instructionsProgramID)},
			)
		}
		return printer.Error("cannot resolve key", err.Error(), []string{"Pass the full key, or a short key with --program"})
	}

	views, err := rt.queryService().Instructions(ctx, key)
	if err != nil {
		return queryFailure(err, key)
	}

	switch instructionsOutputFormat {
	case outputJSONL:
		return catalog.FormatJSONL(printer.Out(), views)
	case outputJSON:
		return catalog.FormatJSON(printer.Out(), views)
	}
	catalog.FormatInstructions(printer.Out(), views, key)
	return nil
}

package commands

import (
	"github.com/dyluth/discgraph/internal/catalog"
	"github.com/dyluth/discgraph/internal/printer"
	"github.com/spf13/cobra"
)

var programsOutputFormat string

var programsCmd = &cobra.Command{
	Use:   "programs",
	Short: "List programs with ingested records",
	Args:  cobra.NoArgs,
	RunE:  runPrograms,
}

func init() {
	programsCmd.Flags().StringVarP(&programsOutputFormat, "output", "o", outputDefault, "Output format: default or json")
	rootCmd.AddCommand(programsCmd)
}

func runPrograms(cmd *cobra.Command, args []string) error {
	if err := validateOutput(programsOutputFormat); err != nil {
		return err
	}
	ctx := cmd.Context()

	rt, err := newRuntime(ctx, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	ids, err := rt.queryService().Programs(ctx)
	if err != nil {
		return queryFailure(err, "")
	}

	if programsOutputFormat != outputDefault {
		return catalog.FormatJSON(printer.Out(), ids)
	}
	catalog.FormatPrograms(printer.Out(), ids)
	return nil
}

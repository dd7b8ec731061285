package commands

import (
	"github.com/dyluth/discgraph/internal/catalog"
	"github.com/dyluth/discgraph/internal/printer"
	"github.com/spf13/cobra"
)

var queryOutputFormat string

var queryCmd = &cobra.Command{
	Use:   "query PROGRAM_ID",
	Short: "List the discriminators known for a program",
	Long: `List every discriminator recorded for a program, joined with the instruction
it maps to.

The graph is read first. When it holds nothing for the program, the program's
accounts are fetched from the ledger, ingested, and the graph is read again.

Output Formats:
  default - Human-readable table
  jsonl   - Line-delimited JSON, one discriminator per line
  json    - A single JSON array

Examples:
  # Query a program (fills the graph from the ledger on first use)
  discgraph query 6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P

  # Stream as JSONL for jq
  discgraph query 6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P -o jsonl | jq .discriminator`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&queryOutputFormat, "output", "o", outputDefault, "Output format: default, jsonl or json")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if err := validateOutput(queryOutputFormat); err != nil {
		return err
	}
	ctx := cmd.Context()
	programID := args[0]

	rt, err := newRuntime(ctx, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	views, err := rt.queryService().Discriminators(ctx, programID)
	if err != nil {
		return queryFailure(err, programID)
	}

	switch queryOutputFormat {
	case outputJSONL:
		return catalog.FormatJSONL(printer.Out(), views)
	case outputJSON:
		return catalog.FormatJSON(printer.Out(), views)
	}
	catalog.FormatTable(printer.Out(), views, programID)
	return nil
}

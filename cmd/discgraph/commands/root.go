package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string
)

var configPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "discgraph",
	Short: "discgraph - discriminator knowledge graph for on-chain programs",
	Long: `discgraph builds a knowledge graph of the discriminators used by on-chain
programs and the instruction payloads they map to.

Records are read from a Solana RPC endpoint, split into discriminator and
instruction segments, and written to a graph store (Redis or Pebble) as
Programs, Discriminators, Instructions and Users linked by edges.

Queries read the graph first and fall back to the ledger on a miss, filling the
graph so the next query is served from it.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to discgraph.yml (defaults are used when omitted)")
}

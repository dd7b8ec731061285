package commands

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/dyluth/discgraph/internal/ingest"
	"github.com/dyluth/discgraph/internal/printer"
	"github.com/spf13/cobra"
)

var (
	ingestDiscriminator string
	ingestInstruction   string
	ingestUser          string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest PROGRAM_ID",
	Short: "Write one discriminator record into the graph",
	Long: `Write a single discriminator/instruction pair for a program, attributed to a
user. Both byte strings are hex encoded. Writing the same record twice leaves
the graph unchanged.

Example:
  discgraph ingest P1 --discriminator 0102030405060708 --instruction 0a0b --user alice`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDiscriminator, "discriminator", "", "Discriminator bytes, hex encoded (required)")
	ingestCmd.Flags().StringVar(&ingestInstruction, "instruction", "", "Instruction bytes, hex encoded (required)")
	ingestCmd.Flags().StringVar(&ingestUser, "user", "", "Contributing user id (required)")
	ingestCmd.MarkFlagRequired("discriminator")
	ingestCmd.MarkFlagRequired("instruction")
	ingestCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	disc, err := decodeHexFlag("discriminator", ingestDiscriminator)
	if err != nil {
		return err
	}
	instr, err := decodeHexFlag("instruction", ingestInstruction)
	if err != nil {
		return err
	}

	rt, err := newRuntime(ctx, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	rec := ingest.Record{
		ProgramID:     args[0],
		Discriminator: disc,
		Instruction:   instr,
		UserID:        ingestUser,
	}
	if err := rt.queryService().IngestOne(ctx, rec); err != nil {
		return queryFailure(err, args[0])
	}

	k, err := ingest.DeriveKeys(rec)
	if err != nil {
		return err
	}
	printer.Success("ingested discriminator for program '%s'\n", args[0])
	printer.Field("key", k.Discriminator)
	printer.Field("instruction", k.Instruction)
	printer.Field("user", k.User)
	return nil
}

func decodeHexFlag(name, value string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(value, "0x"))
	if err != nil {
		return nil, printer.Error(
			fmt.Sprintf("invalid --%s", name),
			fmt.Sprintf("%q is not valid hex: %v", value, err),
			[]string{"Pass bytes as an even number of hex digits, e.g. 0102ab"},
		)
	}
	return b, nil
}

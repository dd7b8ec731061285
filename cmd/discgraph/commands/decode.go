package commands

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/dyluth/discgraph/internal/decoder"
	"github.com/dyluth/discgraph/internal/keys"
	"github.com/dyluth/discgraph/internal/printer"
	"github.com/spf13/cobra"
)

var (
	decodeBase64     bool
	decodeHeaderLen  int
	decodePayloadLen int
	decodeProgramID  string
)

var decodeCmd = &cobra.Command{
	Use:   "decode DATA",
	Short: "Split raw account data into discriminator and instruction",
	Long: `Decode one record offline, using the configured layout unless
--header-len or --payload-len is given. DATA is hex unless --base64 is set.

With --program the keys the record would be stored under are printed too.`,
	Args: cobra.ExactArgs(1),
	RunE: runDecode,
}

func init() {
	decodeCmd.Flags().BoolVar(&decodeBase64, "base64", false, "DATA is base64 encoded, as returned by the RPC API")
	decodeCmd.Flags().IntVar(&decodeHeaderLen, "header-len", 0, "Discriminator width in bytes (overrides decoder.header_len)")
	decodeCmd.Flags().IntVar(&decodePayloadLen, "payload-len", 0, "Instruction width in bytes, 0 for the remainder (overrides decoder.payload_len)")
	decodeCmd.Flags().StringVar(&decodeProgramID, "program", "", "Program id to derive storage keys under")
	rootCmd.AddCommand(decodeCmd)
}

func runDecode(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	layout := cfg.DecoderLayout()
	if cmd.Flags().Changed("header-len") {
		layout.HeaderLen = decodeHeaderLen
	}
	if cmd.Flags().Changed("payload-len") {
		layout.PayloadLen = decodePayloadLen
	}

	dec, err := decoder.New(layout)
	if err != nil {
		return printer.Error("invalid layout", err.Error(), nil)
	}

	var raw []byte
	if decodeBase64 {
		raw, err = base64.StdEncoding.DecodeString(args[0])
	} else {
		raw, err = hex.DecodeString(args[0])
	}
	if err != nil {
		return printer.Error("invalid record data", err.Error(), []string{"Use --base64 for base64 encoded data"})
	}

	seg, err := dec.Decode(raw)
	if err != nil {
		var me *decoder.MalformedRecordError
		if errors.As(err, &me) {
			return printer.Error("malformed record", err.Error(),
				[]string{fmt.Sprintf("The layout needs at least %d bytes, got %d", me.MinLength, me.Length)})
		}
		return err
	}

	printer.Field("length", len(raw))
	printer.Field("discriminator", hex.EncodeToString(seg.Discriminator))
	printer.Field("instruction", hex.EncodeToString(seg.Instruction))

	if decodeProgramID != "" {
		dk, err := keys.Derive(decodeProgramID, seg.Discriminator)
		if err != nil {
			return printer.Error("cannot derive key", err.Error(), nil)
		}
		printer.Field("key", dk)
		if len(seg.Instruction) > 0 {
			ik, _ := keys.Derive(decodeProgramID, seg.Instruction)
			printer.Field("instr key", ik)
		}
	}
	return nil
}

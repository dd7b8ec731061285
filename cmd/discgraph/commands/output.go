package commands

import (
	"fmt"

	"github.com/dyluth/discgraph/internal/printer"
)

// Output formats accepted by --output.
const (
	outputDefault = "default"
	outputJSONL   = "jsonl"
	outputJSON    = "json"
)

func validateOutput(format string) error {
	switch format {
	case outputDefault, outputJSONL, outputJSON:
		return nil
	}
	return printer.Error(
		"invalid output format",
		fmt.Sprintf("Unknown format: %s", format),
		[]string{"Valid formats: default, jsonl, json"},
	)
}

// Package catalog renders graph query results for the command line.
package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dyluth/discgraph/internal/keys"
	"github.com/dyluth/discgraph/pkg/graph"
)

// FormatTable writes discriminators as a formatted table to the provided writer.
// The table includes columns: KEY, DISCRIMINATOR, BY, and INSTRUCTION (truncated).
// Returns the number of discriminators formatted.
func FormatTable(w io.Writer, views []graph.DiscriminatorView, programID string) int {
	if len(views) == 0 {
		fmt.Fprintf(w, "No discriminators found for program '%s'\n", programID)
		return 0
	}

	fmt.Fprintf(w, "Discriminators for program '%s':\n\n", programID)

	fmt.Fprintf(w, "%-10s %-18s %-20s %s\n",
		"KEY", "DISCRIMINATOR", "BY", "INSTRUCTION")
	fmt.Fprintf(w, "%-10s %-18s %-20s %s\n",
		"----------", "------------------", "--------------------", "----------------------------------------")

	for _, v := range views {
		fmt.Fprintf(w, "%-10s %-18s %-20s %s\n",
			formatKey(v.Key),
			truncate(v.Discriminator, 18),
			truncate(v.Contributor, 20),
			truncate(v.Instruction, 40),
		)
	}

	fmt.Fprintf(w, "\n%s found\n", plural(len(views), "discriminator"))
	return len(views)
}

// FormatInstructions writes the instructions mapped from one discriminator.
func FormatInstructions(w io.Writer, views []graph.InstructionView, discriminatorKey string) int {
	if len(views) == 0 {
		fmt.Fprintf(w, "No instructions found for discriminator '%s'\n", discriminatorKey)
		return 0
	}

	fmt.Fprintf(w, "Instructions for discriminator '%s':\n\n", formatKey(discriminatorKey))
	fmt.Fprintf(w, "%-10s %s\n", "KEY", "INSTRUCTION")
	fmt.Fprintf(w, "%-10s %s\n", "----------", "----------------------------------------")
	for _, v := range views {
		fmt.Fprintf(w, "%-10s %s\n", formatKey(v.Key), truncate(v.Instruction, 40))
	}

	fmt.Fprintf(w, "\n%s found\n", plural(len(views), "instruction"))
	return len(views)
}

// FormatPrograms writes one program id per line followed by a count.
func FormatPrograms(w io.Writer, programIDs []string) int {
	if len(programIDs) == 0 {
		fmt.Fprintln(w, "No programs ingested yet")
		return 0
	}
	for _, id := range programIDs {
		fmt.Fprintln(w, id)
	}
	fmt.Fprintf(w, "\n%s found\n", plural(len(programIDs), "program"))
	return len(programIDs)
}

// FormatCollections writes the provisioning state of every schema collection.
// kinds holds the registered collections; counts may be nil.
func FormatCollections(w io.Writer, kinds map[graph.Collection]string, counts map[graph.Collection]int64) {
	fmt.Fprintf(w, "%-18s %-5s %-8s %s\n", "COLLECTION", "KIND", "STATUS", "DOCS")
	fmt.Fprintf(w, "%-18s %-5s %-8s %s\n", "------------------", "-----", "--------", "--------")

	for _, c := range graph.AllCollections() {
		status := "missing"
		if _, ok := kinds[c]; ok {
			status = "ready"
		}

		docs := "-"
		if n, ok := counts[c]; ok {
			docs = fmt.Sprintf("%d", n)
		}

		fmt.Fprintf(w, "%-18s %-5s %-8s %s\n", string(c), c.Kind(), status, docs)
	}
}

// FormatJSONL writes items as line-delimited JSON (JSONL) to the provided writer.
// Each item is written as a single JSON object on its own line.
func FormatJSONL[T any](w io.Writer, items []T) error {
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to marshal result to JSON: %w", err)
		}

		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}

	return nil
}

// FormatJSON writes v as pretty-printed JSON followed by a newline.
func FormatJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result to JSON: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}

	fmt.Fprintln(w)
	return nil
}

// formatKey drops the program namespace and keeps the first 8 hash characters.
func formatKey(key string) string {
	if i := strings.LastIndex(key, keys.Separator); i >= 0 {
		key = key[i+len(keys.Separator):]
	}
	if len(key) > 8 {
		return key[:8]
	}
	return key
}

// truncate shortens s to max characters with a trailing ellipsis. Empty values return "-".
func truncate(s string, max int) string {
	if s == "" {
		return "-"
	}
	if len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

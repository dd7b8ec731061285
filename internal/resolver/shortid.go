// Package resolver expands the short discriminator keys shown in tables.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dyluth/discgraph/internal/keys"
	"github.com/dyluth/discgraph/pkg/graph"
)

// MinShortKeyLength is the minimum required length for short key prefixes.
const MinShortKeyLength = 6

// ResolveDiscriminatorKey resolves a short hash prefix to a full discriminator key
// within programID.
//
// The function handles three cases:
// 1. Input already contains the namespace separator - returned if the discriminator exists
// 2. Input is too short (< 6 chars) - returns validation error
// 3. Input is a short prefix - matched against the program's discriminators
func ResolveDiscriminatorKey(ctx context.Context, store graph.Store, programID, short string) (string, error) {
	if strings.Contains(short, keys.Separator) {
		if _, err := store.GetNode(ctx, graph.CollectionDiscriminators, short); err != nil {
			if graph.IsNotFound(err) {
				return "", &NotFoundError{ShortKey: short, ProgramID: programID}
			}
			return "", fmt.Errorf("failed to look up discriminator: %w", err)
		}
		return short, nil
	}

	if programID == "" {
		return "", fmt.Errorf("a program id is required to resolve short key '%s'", short)
	}
	if len(short) < MinShortKeyLength {
		return "", fmt.Errorf("short key must be at least %d characters (got %d)", MinShortKeyLength, len(short))
	}

	views, err := store.QueryByProgramPrefix(ctx, programID)
	if err != nil {
		return "", fmt.Errorf("failed to search for discriminator: %w", err)
	}

	prefix := keys.Prefix(programID) + strings.ToLower(short)
	var matches []string
	for _, v := range views {
		if strings.HasPrefix(v.Key, prefix) {
			matches = append(matches, v.Key)
		}
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{ShortKey: short, ProgramID: programID}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguousError{ShortKey: short, Matches: matches}
	}
}

// NotFoundError indicates no discriminators matched the short key.
type NotFoundError struct {
	ShortKey  string
	ProgramID string
}

func (e *NotFoundError) Error() string {
	if e.ProgramID == "" {
		return fmt.Sprintf("no discriminator with key '%s'", e.ShortKey)
	}
	return fmt.Sprintf("no discriminators of program '%s' match '%s'", e.ProgramID, e.ShortKey)
}

// AmbiguousError indicates multiple discriminators matched the short key.
type AmbiguousError struct {
	ShortKey string
	Matches  []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous short key '%s' matches %d discriminators", e.ShortKey, len(e.Matches))
}

// FormatAmbiguousError lists the matching keys (up to 10, then "...and N more").
func FormatAmbiguousError(err *AmbiguousError) string {
	msg := fmt.Sprintf("ambiguous short key '%s' matches %d discriminators:\n", err.ShortKey, len(err.Matches))

	displayCount := len(err.Matches)
	if displayCount > 10 {
		displayCount = 10
	}

	for i := 0; i < displayCount; i++ {
		msg += fmt.Sprintf("  %s\n", err.Matches[i])
	}

	if len(err.Matches) > 10 {
		msg += fmt.Sprintf("  ...and %d more\n", len(err.Matches)-10)
	}

	msg += "\nUse a longer prefix to uniquely identify the discriminator."
	return msg
}

// IsNotFoundError checks if an error is a NotFoundError.
func IsNotFoundError(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsAmbiguousError checks if an error is an AmbiguousError.
func IsAmbiguousError(err error) bool {
	var ae *AmbiguousError
	return errors.As(err, &ae)
}

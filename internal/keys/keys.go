// Package keys derives the content-addressed document keys used by the graph store.
//
// A key is a pure function of (program id, raw bytes):
//
//	Namespace(programID) + ":" + hex(sha256(raw))
//
// Hashing bounds key length regardless of payload size and keeps the raw bytes out of
// the key itself. The program namespace is sanitized so that the ":" separator and
// glob metacharacters never appear in it, which is what makes prefix queries by
// program unambiguous ("P1:" never matches keys of program "P10"). Ids that needed
// sanitizing carry a hash of the unsanitized id, so "P/1" and "P_1" stay apart.
package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Separator divides the program namespace from the content hash.
const Separator = ":"

// suffixSeparator joins a sanitized id to its disambiguating hash. Sanitize
// never emits it, so a clean id can not collide with a suffixed one.
const suffixSeparator = "~"

// suffixLen is the number of hex digits of the id hash kept in a suffix.
const suffixLen = 16

// ErrInvalidInput is returned for empty program ids or empty payloads.
var ErrInvalidInput = errors.New("invalid input")

// Derive returns the namespaced key for raw under programID.
func Derive(programID string, raw []byte) (string, error) {
	if programID == "" {
		return "", fmt.Errorf("%w: program id is empty", ErrInvalidInput)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("%w: raw bytes are empty", ErrInvalidInput)
	}

	sum := sha256.Sum256(raw)
	return Namespace(programID) + Separator + hex.EncodeToString(sum[:]), nil
}

// Sanitize substitutes every byte outside [A-Za-z0-9_.-] with '_'.
// The mapping is deterministic, so the same input always yields the same namespace.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isKeyByte(c) {
			b.WriteByte(c)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Namespace returns the store-safe form of id. Ids made only of [A-Za-z0-9_.-]
// are returned unchanged; any other id is sanitized and suffixed with "~" and a
// hash of the unsanitized id, keeping distinct ids distinct.
func Namespace(id string) string {
	clean := Sanitize(id)
	if clean == id {
		return id
	}
	sum := sha256.Sum256([]byte(id))
	return clean + suffixSeparator + hex.EncodeToString(sum[:])[:suffixLen]
}

// Prefix returns the key prefix shared by every key derived under programID.
func Prefix(programID string) string {
	return Namespace(programID) + Separator
}

// Ref renders a document reference in Collection/key form, as used for edge endpoints.
func Ref(collection, key string) string {
	return collection + "/" + key
}

// IsInvalidInput reports whether err was caused by degenerate input to Derive.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

func isKeyByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_' || c == '.' || c == '-':
		return true
	}
	return false
}

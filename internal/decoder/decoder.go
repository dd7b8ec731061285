// Package decoder splits raw program-account data into its discriminator and
// instruction segments.
package decoder

import (
	"errors"
	"fmt"
)

// DefaultHeaderLen is the width of an account discriminator (the leading 8 bytes).
const DefaultHeaderLen = 8

// Layout describes where the segments sit inside a record.
// PayloadLen == 0 means the instruction is everything after the header.
type Layout struct {
	HeaderLen  int
	PayloadLen int
}

// DefaultLayout is an 8-byte discriminator followed by the rest of the record.
var DefaultLayout = Layout{HeaderLen: DefaultHeaderLen}

// Validate checks the layout is usable.
func (l Layout) Validate() error {
	if l.HeaderLen <= 0 {
		return fmt.Errorf("header length must be > 0, got %d", l.HeaderLen)
	}
	if l.PayloadLen < 0 {
		return fmt.Errorf("payload length must be >= 0, got %d", l.PayloadLen)
	}
	return nil
}

// Segments is a decoded record.
type Segments struct {
	Discriminator []byte
	Instruction   []byte
}

// Decoder is stateless and safe for concurrent use.
type Decoder struct {
	layout Layout
}

// New returns a Decoder for layout.
func New(layout Layout) (*Decoder, error) {
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("invalid layout: %w", err)
	}
	return &Decoder{layout: layout}, nil
}

// Default returns a Decoder using DefaultLayout.
func Default() *Decoder {
	return &Decoder{layout: DefaultLayout}
}

// Layout returns the decoder's layout.
func (d *Decoder) Layout() Layout {
	return d.layout
}

// Decode splits raw. The returned slices are copies of raw's bytes.
// Returns *MalformedRecordError when raw is too short for the layout.
func (d *Decoder) Decode(raw []byte) (Segments, error) {
	h := d.layout.HeaderLen
	if len(raw) < h {
		return Segments{}, &MalformedRecordError{Length: len(raw), MinLength: h, Reason: ReasonTooShort}
	}

	end := len(raw)
	if d.layout.PayloadLen > 0 {
		end = h + d.layout.PayloadLen
		if len(raw) < end {
			return Segments{}, &MalformedRecordError{Length: len(raw), MinLength: end, Reason: ReasonTruncatedPayload}
		}
	}

	if end == h {
		return Segments{}, &MalformedRecordError{Length: len(raw), MinLength: h + 1, Reason: ReasonEmptyPayload}
	}

	return Segments{
		Discriminator: append([]byte(nil), raw[:h]...),
		Instruction:   append([]byte(nil), raw[h:end]...),
	}, nil
}

// Reason explains why a record was rejected.
type Reason string

const (
	ReasonTooShort         Reason = "shorter than discriminator header"
	ReasonEmptyPayload     Reason = "no instruction bytes after header"
	ReasonTruncatedPayload Reason = "shorter than fixed instruction width"
)

// MalformedRecordError reports a record that cannot be split.
type MalformedRecordError struct {
	Length    int
	MinLength int
	Reason    Reason
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record: %s (length %d, need at least %d)", e.Reason, e.Length, e.MinLength)
}

// IsMalformed reports whether err is a *MalformedRecordError.
func IsMalformed(err error) bool {
	var me *MalformedRecordError
	return errors.As(err, &me)
}

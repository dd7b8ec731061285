package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Serialization helpers for converting between graph documents and Redis hashes.
// Every field is a plain string; byte payloads are carried as lowercase hex.

const (
	fieldID             = "id"
	fieldProgramID      = "program_id"
	fieldDiscriminator  = "discriminator_bytes"
	fieldInstructionKey = "linked_instruction_id"
	fieldContributor    = "contributor_user_id"
	fieldInstruction    = "instruction_bytes"
	fieldFrom           = "_from"
	fieldTo             = "_to"
)

// ProgramToFields converts a Program to its stored fields.
func ProgramToFields(p *Program) map[string]string {
	return map[string]string{fieldID: p.ID}
}

// DiscriminatorToFields converts a Discriminator to its stored fields.
func DiscriminatorToFields(d *Discriminator) map[string]string {
	return map[string]string{
		fieldID:             d.Key,
		fieldProgramID:      d.ProgramID,
		fieldDiscriminator:  d.Bytes,
		fieldInstructionKey: d.InstructionKey,
		fieldContributor:    d.ContributorID,
	}
}

// FieldsToDiscriminator converts stored fields back to a Discriminator.
func FieldsToDiscriminator(fields map[string]string) (*Discriminator, error) {
	d := &Discriminator{
		Key:            fields[fieldID],
		ProgramID:      fields[fieldProgramID],
		Bytes:          fields[fieldDiscriminator],
		InstructionKey: fields[fieldInstructionKey],
		ContributorID:  fields[fieldContributor],
	}
	if d.Key == "" {
		return nil, fmt.Errorf("discriminator document missing %q", fieldID)
	}
	if _, err := hex.DecodeString(d.Bytes); err != nil {
		return nil, fmt.Errorf("invalid %s field: %w", fieldDiscriminator, err)
	}
	return d, nil
}

// InstructionToFields converts an Instruction to its stored fields.
func InstructionToFields(i *Instruction) map[string]string {
	return map[string]string{
		fieldID:          i.Key,
		fieldInstruction: i.Bytes,
	}
}

// FieldsToInstruction converts stored fields back to an Instruction.
func FieldsToInstruction(fields map[string]string) (*Instruction, error) {
	i := &Instruction{
		Key:   fields[fieldID],
		Bytes: fields[fieldInstruction],
	}
	if i.Key == "" {
		return nil, fmt.Errorf("instruction document missing %q", fieldID)
	}
	if _, err := hex.DecodeString(i.Bytes); err != nil {
		return nil, fmt.Errorf("invalid %s field: %w", fieldInstruction, err)
	}
	return i, nil
}

// UserToFields converts a User to its stored fields.
func UserToFields(u *User) map[string]string {
	return map[string]string{fieldID: u.ID}
}

// EdgeID identifies an edge by its endpoints.
func EdgeID(from, to string) string {
	sum := sha256.Sum256([]byte(from + "|" + to))
	return hex.EncodeToString(sum[:])
}

// SplitRef splits a Collection/key reference.
func SplitRef(ref string) (Collection, string, error) {
	collection, key, ok := strings.Cut(ref, "/")
	if !ok || collection == "" || key == "" {
		return "", "", fmt.Errorf("malformed document reference: %q", ref)
	}
	return Collection(collection), key, nil
}

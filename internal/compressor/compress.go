// Package compressor implements the per-field compression actions and their
// exact inverses.
//
// A compressed header is the rule id in the rule set's fixed bit width,
// followed by the residue: one contribution per descriptor whose action
// sends data, concatenated in rule field order with no delimiters. Both ends
// derive every contribution width from the shared rule, so nothing else
// travels on the wire. The final byte is zero-padded.
package compressor

import (
	"fmt"

	"firestige.xyz/schc/internal/bits"
	"firestige.xyz/schc/internal/core"
	"firestige.xyz/schc/internal/matcher"
	"firestige.xyz/schc/internal/rules"
)

// Compressed is the result of applying a matched rule.
type Compressed struct {
	Data       []byte // rule id + residue, bit-packed, zero-padded
	RuleID     uint32
	HeaderBits uint32 // rule id + residue width before padding
}

// Compress converts a match into the rule id + residue form.
func Compress(set *rules.Set, m *matcher.Match) (*Compressed, error) {
	var w bits.Writer
	w.WriteUint(uint64(m.Rule.ID), uint16(set.RuleIDBits()))

	for _, fm := range m.Fields {
		if err := writeResidue(&w, fm); err != nil {
			return nil, err
		}
	}
	return &Compressed{
		Data:       w.Bytes(),
		RuleID:     m.Rule.ID,
		HeaderBits: w.Len(),
	}, nil
}

func writeResidue(w *bits.Writer, fm matcher.FieldMatch) error {
	desc, f := fm.Desc, fm.Field
	switch desc.CDA {
	case rules.ActionNotSent, rules.ActionComputeLength, rules.ActionComputeChecksum:
		// Nothing on the wire; the decompressor supplies the value.

	case rules.ActionValueSent:
		if desc.Variable {
			if f.Bits%8 != 0 {
				return fmt.Errorf("%w: variable-length field %s not byte aligned",
					core.ErrComputeFailed, desc.ID)
			}
			writeVarLength(w, f.Bits/8)
		}
		w.WriteBits(f.Value, f.Bits)

	case rules.ActionLSB:
		n := desc.Bits - desc.MSBLen
		w.WriteBits(bits.Low(f.Value, f.Bits, n), n)

	case rules.ActionMappingSent:
		w.WriteUint(uint64(fm.MappingIndex), desc.MappingIndexBits())
	}
	return nil
}

// Variable-length residue contributions carry their byte count up front:
// 4 bits for 0-14, 0xF + 8 bits for 15-254, 0xF + 0xFF + 16 bits beyond.
func writeVarLength(w *bits.Writer, n uint16) {
	switch {
	case n < 15:
		w.WriteUint(uint64(n), 4)
	case n < 255:
		w.WriteUint(0xF, 4)
		w.WriteUint(uint64(n), 8)
	default:
		w.WriteUint(0xF, 4)
		w.WriteUint(0xFF, 8)
		w.WriteUint(uint64(n), 16)
	}
}

func readVarLength(r *bits.Reader) (uint16, error) {
	n, err := r.ReadUint(4)
	if err != nil {
		return 0, err
	}
	if n < 15 {
		return uint16(n), nil
	}
	n, err = r.ReadUint(8)
	if err != nil {
		return 0, err
	}
	if n < 255 {
		return uint16(n), nil
	}
	n, err = r.ReadUint(16)
	if err != nil {
		return 0, err
	}
	return uint16(n), nil
}

// ResidueBits returns the total residue width a match will produce, without
// building the buffer. Analyze-only callers use it for statistics.
func ResidueBits(m *matcher.Match) uint32 {
	var total uint32
	for _, fm := range m.Fields {
		if n, fixed := fm.Desc.ResidueBits(); fixed {
			total += uint32(n)
		} else {
			total += uint32(varLengthBits(fm.Field.Bits/8)) + uint32(fm.Field.Bits)
		}
	}
	return total
}

func varLengthBits(n uint16) uint16 {
	switch {
	case n < 15:
		return 4
	case n < 255:
		return 12
	default:
		return 28
	}
}

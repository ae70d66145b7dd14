package compressor

import (
	"errors"
	"fmt"

	"firestige.xyz/schc/internal/bits"
	"firestige.xyz/schc/internal/core"
	"firestige.xyz/schc/internal/rules"
)

// Decompressed is a reconstructed packet.
type Decompressed struct {
	Header       []byte // reconstructed header bytes
	Payload      []byte // application payload carried after the residue
	RuleID       uint32
	BitsConsumed uint32 // rule id + residue width
}

// Packet returns header and payload as one buffer.
func (d *Decompressed) Packet() []byte {
	out := make([]byte, 0, len(d.Header)+len(d.Payload))
	out = append(out, d.Header...)
	return append(out, d.Payload...)
}

// reconField tracks where each descriptor landed in the reconstructed
// header, for the compute patch pass.
type reconField struct {
	desc   rules.FieldDescriptor
	offset uint32 // bit offset within the header
	nbits  uint16
}

// Decompress reconstructs the original header from a compressed packet.
//
// Non-compute fields come back byte-identical; compute fields (lengths,
// checksums) are recomputed over the reconstructed packet and are
// numerically valid even when the original encoding differed.
func Decompress(set *rules.Set, data []byte, dir core.Direction) (*Decompressed, error) {
	r := bits.NewReader(data)

	id, err := r.ReadUint(uint16(set.RuleIDBits()))
	if err != nil {
		return nil, fmt.Errorf("%w: missing rule id", core.ErrResidueUnderflow)
	}
	rule, ok := set.ByID(uint32(id))
	if !ok {
		return nil, fmt.Errorf("%w: rule %d", core.ErrUnknownRuleID, id)
	}

	var (
		w     bits.Writer
		recon []reconField
	)
	for _, desc := range rule.FieldsFor(dir) {
		offset := w.Len()
		nbits, err := reconstructField(&w, r, desc)
		if err != nil {
			return nil, err
		}
		recon = append(recon, reconField{desc: desc, offset: offset, nbits: nbits})
	}

	if w.Len()%8 != 0 {
		return nil, fmt.Errorf("%w: rule %d reconstructs %d bits, not byte aligned",
			core.ErrComputeFailed, rule.ID, w.Len())
	}

	consumed := r.Pos()
	payload := data[(consumed+7)/8:]
	header := w.Bytes()

	if err := patchComputed(header, recon, payload); err != nil {
		return nil, err
	}

	return &Decompressed{
		Header:       header,
		Payload:      payload,
		RuleID:       rule.ID,
		BitsConsumed: consumed,
	}, nil
}

// reconstructField writes one descriptor's value and returns its bit width.
func reconstructField(w *bits.Writer, r *bits.Reader, desc rules.FieldDescriptor) (uint16, error) {
	switch desc.CDA {
	case rules.ActionNotSent:
		w.WriteBits(desc.Target, desc.TargetBits)
		return desc.TargetBits, nil

	case rules.ActionValueSent:
		n := desc.Bits
		if desc.Variable {
			nbytes, err := readVarLength(r)
			if err != nil {
				return 0, underflow(err, desc)
			}
			n = nbytes * 8
		}
		v, err := r.ReadBits(n)
		if err != nil {
			return 0, underflow(err, desc)
		}
		w.WriteBits(v, n)
		return n, nil

	case rules.ActionLSB:
		n := desc.Bits - desc.MSBLen
		low, err := r.ReadBits(n)
		if err != nil {
			return 0, underflow(err, desc)
		}
		msb := bits.Leading(desc.Target, desc.TargetBits, desc.MSBLen)
		w.WriteBits(bits.Concat(msb, desc.MSBLen, low, n), desc.Bits)
		return desc.Bits, nil

	case rules.ActionMappingSent:
		idx, err := r.ReadUint(desc.MappingIndexBits())
		if err != nil {
			return 0, underflow(err, desc)
		}
		if int(idx) >= len(desc.Mapping) {
			return 0, fmt.Errorf("%w: field %s: mapping index %d out of range",
				core.ErrResidueUnderflow, desc.ID, idx)
		}
		entry := desc.Mapping[idx]
		n := desc.Bits
		if desc.Variable {
			n = uint16(len(entry)) * 8
		}
		w.WriteBits(entry, n)
		return n, nil

	case rules.ActionComputeLength, rules.ActionComputeChecksum:
		// Placeholder; patched once the whole header exists.
		w.WriteUint(0, desc.Bits)
		return desc.Bits, nil

	default:
		return 0, fmt.Errorf("%w: field %s: action %s", core.ErrComputeFailed, desc.ID, desc.CDA)
	}
}

func underflow(err error, desc rules.FieldDescriptor) error {
	if errors.Is(err, bits.ErrShortBuffer) {
		return fmt.Errorf("%w: field %s", core.ErrResidueUnderflow, desc.ID)
	}
	return err
}

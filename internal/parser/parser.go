// Package parser implements protocol-aware header field extraction.
//
// Given a raw octet buffer and a declared protocol stack, Parse produces the
// ordered field sequence the rule matcher consumes, with exact bit offsets
// and widths. It is a pure function of its input: no shared state, no
// retained buffers.
package parser

import (
	"errors"
	"fmt"

	"firestige.xyz/schc/internal/bits"
	"firestige.xyz/schc/internal/core"
	"firestige.xyz/schc/internal/rules"
)

// Result is the parsed header of one packet.
type Result struct {
	Fields     []core.ParsedField
	HeaderBits uint32 // bits consumed by the declared layers; always byte aligned
	Payload    []byte // application payload after the parsed headers
}

type parser struct {
	r         *bits.Reader
	ctx       *rules.FieldContext
	fields    []core.ParsedField
	positions map[core.FieldID]uint8
}

// Parse extracts the fields of the declared layers from raw.
//
// A declared field width running past the buffer yields ErrTruncated; an
// unrecognised header form (unknown QUIC packet type, unexpected IP version)
// yields ErrUnsupportedVariant. Both are per-packet and recoverable: the
// caller treats the packet as unmatched.
func Parse(raw []byte, stack []core.Layer, ctx *rules.FieldContext) (*Result, error) {
	p := &parser{
		r:         bits.NewReader(raw),
		ctx:       ctx,
		positions: make(map[core.FieldID]uint8),
	}

	for _, layer := range stack {
		var err error
		switch layer {
		case core.LayerEthernet:
			err = p.parseEthernet()
		case core.LayerIPv4:
			err = p.parseIPv4()
		case core.LayerIPv6:
			err = p.parseIPv6()
		case core.LayerUDP:
			err = p.parseUDP()
		case core.LayerQUIC:
			err = p.parseQUIC()
		default:
			err = fmt.Errorf("%w: layer %s", core.ErrUnsupportedVariant, layer)
		}
		if err != nil {
			return nil, err
		}
	}

	headerBits := p.r.Pos()
	return &Result{
		Fields:     p.fields,
		HeaderBits: headerBits,
		Payload:    raw[headerBits/8:],
	}, nil
}

// field reads n bits and records them as the next occurrence of id.
func (p *parser) field(id core.FieldID, n uint16) (core.ParsedField, error) {
	offset := p.r.Pos()
	v, err := p.r.ReadBits(n)
	if err != nil {
		if errors.Is(err, bits.ErrShortBuffer) {
			return core.ParsedField{}, fmt.Errorf("%w: field %s", core.ErrTruncated, id)
		}
		return core.ParsedField{}, err
	}
	p.positions[id]++
	f := core.ParsedField{
		ID:       id,
		Position: p.positions[id],
		Value:    v,
		Bits:     n,
		Offset:   offset,
	}
	p.fields = append(p.fields, f)
	return f, nil
}

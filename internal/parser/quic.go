package parser

import (
	"errors"
	"fmt"

	"firestige.xyz/schc/internal/bits"
	"firestige.xyz/schc/internal/core"
)

// QUIC first-byte layout (RFC 9000 §17).
const (
	quicFormBit  = 0x80 // 1 = long header
	quicTypeBits = 0x30

	quicTypeInitial   = 0x0
	quicTypeZeroRTT   = 0x1
	quicTypeHandshake = 0x2
	quicTypeRetry     = 0x3
)

// parseQUIC extracts the QUIC header fields. Long and short headers are
// discriminated on the header-form bit; unknown forms (Retry, version
// negotiation) reject the packet as an unsupported variant.
//
// The engine operates on simulated, unprotected headers, so the packet
// number length is read straight from the first byte's low two bits.
func (p *parser) parseQUIC() error {
	first, err := p.field(core.FieldQUICFirstByte, 8)
	if err != nil {
		return err
	}
	if first.Uint()&quicFormBit != 0 {
		return p.parseQUICLong(first.Uint())
	}
	return p.parseQUICShort(first.Uint())
}

func (p *parser) parseQUICLong(first uint64) error {
	version, err := p.field(core.FieldQUICVersion, 32)
	if err != nil {
		return err
	}
	if version.Uint() == 0 {
		return fmt.Errorf("%w: quic version negotiation", core.ErrUnsupportedVariant)
	}

	pktType := (first & quicTypeBits) >> 4
	if pktType == quicTypeRetry {
		return fmt.Errorf("%w: quic retry packet", core.ErrUnsupportedVariant)
	}

	dcidLen, err := p.field(core.FieldQUICDCIDLen, 8)
	if err != nil {
		return err
	}
	if dcidLen.Uint() > 0 {
		if _, err := p.field(core.FieldQUICDCID, uint16(dcidLen.Uint())*8); err != nil {
			return err
		}
	}

	scidLen, err := p.field(core.FieldQUICSCIDLen, 8)
	if err != nil {
		return err
	}
	if scidLen.Uint() > 0 {
		if _, err := p.field(core.FieldQUICSCID, uint16(scidLen.Uint())*8); err != nil {
			return err
		}
	}

	if pktType == quicTypeInitial {
		tokenLen, err := p.varint(core.FieldQUICTokenLen)
		if err != nil {
			return err
		}
		// The token length is a full varint while field widths are 16-bit
		// bit counts; converting first would wrap a large token to a bogus
		// small width. Reject anything past the buffer or past the
		// representable width before converting.
		if tokenLen > uint64(p.r.Remaining())/8 || tokenLen > 8191 {
			return fmt.Errorf("%w: field %s", core.ErrTruncated, core.FieldQUICToken)
		}
		if tokenLen > 0 {
			if _, err := p.field(core.FieldQUICToken, uint16(tokenLen)*8); err != nil {
				return err
			}
		}
	}

	if _, err := p.varint(core.FieldQUICLength); err != nil {
		return err
	}

	pnBits := uint16(first&0x03+1) * 8
	_, err = p.field(core.FieldQUICPktNumber, pnBits)
	return err
}

// parseQUICShort extracts a short (1-RTT) header. The wire carries no DCID
// length, so the field context must pin quic.dcid to the connection's CID
// width; without that agreement the packet cannot be delimited.
func (p *parser) parseQUICShort(first uint64) error {
	info, ok := p.ctx.Lookup(core.FieldQUICDCID)
	if !ok || info.Variable {
		return fmt.Errorf("%w: short header needs quic.dcid length in the field context",
			core.ErrUnsupportedVariant)
	}
	if _, err := p.field(core.FieldQUICDCID, info.Bits); err != nil {
		return err
	}

	pnBits := uint16(first&0x03+1) * 8
	_, err := p.field(core.FieldQUICPktNumber, pnBits)
	return err
}

// varint reads a QUIC variable-length integer (RFC 9000 §16), recording the
// raw encoding as the field value so reconstruction is bit-exact, and
// returning the numeric value.
func (p *parser) varint(id core.FieldID) (uint64, error) {
	offset := p.r.Pos()
	first, err := p.r.ReadUint(8)
	if err != nil {
		if errors.Is(err, bits.ErrShortBuffer) {
			return 0, fmt.Errorf("%w: field %s", core.ErrTruncated, id)
		}
		return 0, err
	}

	n := 1 << (first >> 6) // 1, 2, 4 or 8 bytes total
	raw := make([]byte, n)
	raw[0] = byte(first)
	for i := 1; i < n; i++ {
		b, err := p.r.ReadUint(8)
		if err != nil {
			if errors.Is(err, bits.ErrShortBuffer) {
				return 0, fmt.Errorf("%w: field %s", core.ErrTruncated, id)
			}
			return 0, err
		}
		raw[i] = byte(b)
	}

	p.positions[id]++
	p.fields = append(p.fields, core.ParsedField{
		ID:       id,
		Position: p.positions[id],
		Value:    raw,
		Bits:     uint16(n) * 8,
		Offset:   offset,
	})
	return VarintValue(raw), nil
}

// VarintValue decodes the numeric value of a raw QUIC varint encoding.
func VarintValue(raw []byte) uint64 {
	v := uint64(raw[0] & 0x3F)
	for _, b := range raw[1:] {
		v = v<<8 | uint64(b)
	}
	return v
}

// EncodeVarint produces the shortest QUIC varint encoding of v.
func EncodeVarint(v uint64) ([]byte, error) {
	switch {
	case v < 1<<6:
		return []byte{byte(v)}, nil
	case v < 1<<14:
		return []byte{0x40 | byte(v>>8), byte(v)}, nil
	case v < 1<<30:
		return []byte{0x80 | byte(v>>24), byte(v >> 16), byte(v >> 8), byte(v)}, nil
	case v < 1<<62:
		return []byte{
			0xC0 | byte(v>>56), byte(v >> 48), byte(v >> 40), byte(v >> 32),
			byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v),
		}, nil
	default:
		return nil, fmt.Errorf("%w: varint value %d out of range", core.ErrComputeFailed, v)
	}
}

package parser

import (
	"fmt"

	"firestige.xyz/schc/internal/core"
)

const ipv4MinIHL = 5

// parseIPv4 extracts the IPv4 header fields, options included when IHL > 5.
func (p *parser) parseIPv4() error {
	version, err := p.field(core.FieldIPv4Version, 4)
	if err != nil {
		return err
	}
	if version.Uint() != 4 {
		return fmt.Errorf("%w: ip version %d, declared ipv4",
			core.ErrUnsupportedVariant, version.Uint())
	}

	ihl, err := p.field(core.FieldIPv4IHL, 4)
	if err != nil {
		return err
	}
	if ihl.Uint() < ipv4MinIHL {
		return fmt.Errorf("%w: ihl %d", core.ErrUnsupportedVariant, ihl.Uint())
	}

	for _, f := range []struct {
		id   core.FieldID
		bits uint16
	}{
		{core.FieldIPv4DSCP, 6},
		{core.FieldIPv4ECN, 2},
		{core.FieldIPv4TotalLen, 16},
		{core.FieldIPv4Identifier, 16},
		{core.FieldIPv4Flags, 3},
		{core.FieldIPv4FragOffset, 13},
		{core.FieldIPv4TTL, 8},
		{core.FieldIPv4Protocol, 8},
		{core.FieldIPv4Checksum, 16},
		{core.FieldIPv4SrcAddr, 32},
		{core.FieldIPv4DstAddr, 32},
	} {
		if _, err := p.field(f.id, f.bits); err != nil {
			return err
		}
	}

	if opts := ihl.Uint() - ipv4MinIHL; opts > 0 {
		if _, err := p.field(core.FieldIPv4Options, uint16(opts)*32); err != nil {
			return err
		}
	}
	return nil
}

// IPv6 extension headers with the standard 8-bit next-header / 8-bit
// length-in-8-octets layout. Fragment (44) is out of scope and AH (51)
// counts its length differently; both reject the packet.
func ipv6ChainedHeader(nextHeader uint64) bool {
	switch nextHeader {
	case 0, 43, 60: // hop-by-hop, routing, destination options
		return true
	default:
		return false
	}
}

// parseIPv6 extracts the fixed IPv6 header and walks the extension-header
// chain via next-header pointers. Each chain entry contributes three
// repeated fields (next_header, length, data) at the same position.
func (p *parser) parseIPv6() error {
	version, err := p.field(core.FieldIPv6Version, 4)
	if err != nil {
		return err
	}
	if version.Uint() != 6 {
		return fmt.Errorf("%w: ip version %d, declared ipv6",
			core.ErrUnsupportedVariant, version.Uint())
	}

	for _, f := range []struct {
		id   core.FieldID
		bits uint16
	}{
		{core.FieldIPv6TrafficClass, 8},
		{core.FieldIPv6FlowLabel, 20},
		{core.FieldIPv6PayloadLen, 16},
	} {
		if _, err := p.field(f.id, f.bits); err != nil {
			return err
		}
	}

	next, err := p.field(core.FieldIPv6NextHeader, 8)
	if err != nil {
		return err
	}
	for _, f := range []struct {
		id   core.FieldID
		bits uint16
	}{
		{core.FieldIPv6HopLimit, 8},
		{core.FieldIPv6SrcAddr, 128},
		{core.FieldIPv6DstAddr, 128},
	} {
		if _, err := p.field(f.id, f.bits); err != nil {
			return err
		}
	}

	nextHeader := next.Uint()
	for ipv6ChainedHeader(nextHeader) {
		nh, err := p.field(core.FieldIPv6ExtNextHeader, 8)
		if err != nil {
			return err
		}
		length, err := p.field(core.FieldIPv6ExtLength, 8)
		if err != nil {
			return err
		}
		// Extension header total size is (length+1) * 8 octets, of which
		// two are already consumed.
		dataBits := uint16(length.Uint()+1)*64 - 16
		if _, err := p.field(core.FieldIPv6ExtData, dataBits); err != nil {
			return err
		}
		nextHeader = nh.Uint()
	}
	return nil
}

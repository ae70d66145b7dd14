package parser

import "firestige.xyz/schc/internal/core"

const (
	etherTypeVLAN = 0x8100
	etherTypeQinQ = 0x88A8

	maxVLANTags = 2 // QinQ
)

// parseEthernet extracts the Ethernet header fields in wire order.
//
// VLAN tags are emitted as repeated eth.type (the TPID) / eth.vlan (the TCI)
// pairs so that the byte stream reconstructs exactly; the EtherType of the
// encapsulated protocol is the last eth.type occurrence.
func (p *parser) parseEthernet() error {
	if _, err := p.field(core.FieldEthDstMAC, 48); err != nil {
		return err
	}
	if _, err := p.field(core.FieldEthSrcMAC, 48); err != nil {
		return err
	}

	for i := 0; ; i++ {
		et, err := p.field(core.FieldEthType, 16)
		if err != nil {
			return err
		}
		v := et.Uint()
		if (v != etherTypeVLAN && v != etherTypeQinQ) || i == maxVLANTags {
			return nil
		}
		if _, err := p.field(core.FieldEthVLAN, 16); err != nil {
			return err
		}
	}
}

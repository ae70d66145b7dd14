package parser

import "firestige.xyz/schc/internal/core"

// parseUDP extracts the four fixed UDP header fields.
func (p *parser) parseUDP() error {
	for _, id := range []core.FieldID{
		core.FieldUDPSrcPort,
		core.FieldUDPDstPort,
		core.FieldUDPLength,
		core.FieldUDPChecksum,
	} {
		if _, err := p.field(id, 16); err != nil {
			return err
		}
	}
	return nil
}

package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/schc/internal/core"
	"firestige.xyz/schc/internal/parser"
	"firestige.xyz/schc/internal/rules"
)

// uplinkRule compresses the telemetry flow 10.0.0.1:5000-500x -> 10.0.0.2:8080
// down to 21 residue bits.
const uplinkRule = `
      - {field: eth.dst_mac, target: "02:00:00:00:00:02", cda: not-sent}
      - {field: eth.src_mac, target: "02:00:00:00:00:01", cda: not-sent}
      - {field: eth.type, target: "0x0800", cda: not-sent}
      - {field: ipv4.version, target: 4, cda: not-sent}
      - {field: ipv4.ihl, target: 5, cda: not-sent}
      - {field: ipv4.dscp, target: 0, cda: not-sent}
      - {field: ipv4.ecn, target: 0, cda: not-sent}
      - {field: ipv4.total_length, mo: ignore, cda: compute-length}
      - {field: ipv4.identification, mo: ignore, cda: value-sent}
      - {field: ipv4.flags, target: 2, cda: not-sent}
      - {field: ipv4.fragment_offset, target: 0, cda: not-sent}
      - {field: ipv4.ttl, mo: msb, msb: 5, target: 64, cda: lsb}
      - {field: ipv4.protocol, target: 17, cda: not-sent}
      - {field: ipv4.checksum, mo: ignore, cda: compute-checksum}
      - {field: ipv4.src_addr, target: "10.0.0.1", cda: not-sent}
      - {field: ipv4.dst_addr, target: "10.0.0.2", cda: not-sent}
      - {field: udp.src_port, mo: match-mapping, target: [5000, 5001, 5002, 5003], cda: mapping-sent}
      - {field: udp.dst_port, target: 8080, cda: not-sent}
      - {field: udp.length, mo: ignore, cda: compute-length}
      - {field: udp.checksum, mo: ignore, cda: compute-checksum}
`

const sendAllRule = `
      - {field: eth.dst_mac, mo: ignore, cda: value-sent}
      - {field: eth.src_mac, mo: ignore, cda: value-sent}
      - {field: eth.type, mo: ignore, cda: value-sent}
      - {field: ipv4.version, mo: ignore, cda: value-sent}
      - {field: ipv4.ihl, mo: ignore, cda: value-sent}
      - {field: ipv4.dscp, mo: ignore, cda: value-sent}
      - {field: ipv4.ecn, mo: ignore, cda: value-sent}
      - {field: ipv4.total_length, mo: ignore, cda: value-sent}
      - {field: ipv4.identification, mo: ignore, cda: value-sent}
      - {field: ipv4.flags, mo: ignore, cda: value-sent}
      - {field: ipv4.fragment_offset, mo: ignore, cda: value-sent}
      - {field: ipv4.ttl, mo: ignore, cda: value-sent}
      - {field: ipv4.protocol, mo: ignore, cda: value-sent}
      - {field: ipv4.checksum, mo: ignore, cda: value-sent}
      - {field: ipv4.src_addr, mo: ignore, cda: value-sent}
      - {field: ipv4.dst_addr, mo: ignore, cda: value-sent}
      - {field: udp.src_port, mo: ignore, cda: value-sent}
      - {field: udp.dst_port, mo: ignore, cda: value-sent}
      - {field: udp.length, mo: ignore, cda: value-sent}
      - {field: udp.checksum, mo: ignore, cda: value-sent}
`

func ethIPv4UDPPacket() []byte {
	return []byte{
		0x02, 0x00, 0x00, 0x00, 0x00, 0x02,
		0x02, 0x00, 0x00, 0x00, 0x00, 0x01,
		0x08, 0x00,
		0x45, 0x00, 0x00, 0x20, 0x12, 0x34, 0x40, 0x00, 0x40, 0x11, 0x14, 0x97,
		0x0A, 0x00, 0x00, 0x01, 0x0A, 0x00, 0x00, 0x02,
		0x13, 0x88, 0x1F, 0x90, 0x00, 0x0C, 0xD9, 0xEA,
		'p', 'i', 'n', 'g',
	}
}

func mustRules(t *testing.T, doc string) *rules.Set {
	t.Helper()
	set, err := rules.Parse([]byte(doc), rules.DefaultFieldContext())
	require.NoError(t, err)
	return set
}

func mustParse(t *testing.T, raw []byte, stack []core.Layer) *parser.Result {
	t.Helper()
	res, err := parser.Parse(raw, stack, rules.DefaultFieldContext())
	require.NoError(t, err)
	return res
}

func TestSelectMatchesUplinkRule(t *testing.T) {
	set := mustRules(t, "rules:\n  - id: 1\n    fields:\n"+uplinkRule)
	parsed := mustParse(t, ethIPv4UDPPacket(), core.DefaultStack[:3])

	m, ok := Select(set, parsed, core.DirectionUp)
	require.True(t, ok)
	assert.Equal(t, uint32(1), m.Rule.ID)
	require.Len(t, m.Fields, 20)
	assert.Equal(t, parsed.HeaderBits, m.HeaderEndBits)

	// udp.src_port 5000 is entry 0 of the mapping.
	srcPort := m.Fields[16]
	assert.Equal(t, core.FieldUDPSrcPort, srcPort.Desc.ID)
	assert.Equal(t, 0, srcPort.MappingIndex)
	assert.Equal(t, -1, m.Fields[0].MappingIndex)
}

func TestSelectFirstMatchWins(t *testing.T) {
	// Rule 1 sends everything, rule 2 would compress far better. Matching
	// order is rule id, not compression efficiency.
	doc := "rules:\n" +
		"  - id: 1\n    fields:\n" + sendAllRule +
		"  - id: 2\n    fields:\n" + uplinkRule
	set := mustRules(t, doc)
	parsed := mustParse(t, ethIPv4UDPPacket(), core.DefaultStack[:3])

	m, ok := Select(set, parsed, core.DirectionUp)
	require.True(t, ok)
	assert.Equal(t, uint32(1), m.Rule.ID)
}

func TestSelectFallsThroughOnMismatch(t *testing.T) {
	tight := uplinkRule
	doc := "rules:\n" +
		"  - id: 1\n    fields:\n" + tight +
		"  - id: 2\n    fields:\n" + sendAllRule
	set := mustRules(t, doc)

	pkt := ethIPv4UDPPacket()
	pkt[36], pkt[37] = 0x01, 0xBB // dst port 443, rule 1 expects 8080
	parsed := mustParse(t, pkt, core.DefaultStack[:3])

	m, ok := Select(set, parsed, core.DirectionUp)
	require.True(t, ok)
	assert.Equal(t, uint32(2), m.Rule.ID)
}

func TestSelectNoRuleMatches(t *testing.T) {
	set := mustRules(t, "rules:\n  - id: 1\n    fields:\n"+uplinkRule)

	pkt := ethIPv4UDPPacket()
	pkt[22] = 0x05 // TTL 5, outside MSB(64, 5 bits)
	parsed := mustParse(t, pkt, core.DefaultStack[:3])

	_, ok := Select(set, parsed, core.DirectionUp)
	assert.False(t, ok)
}

func TestSelectMappingMiss(t *testing.T) {
	set := mustRules(t, "rules:\n  - id: 1\n    fields:\n"+uplinkRule)

	pkt := ethIPv4UDPPacket()
	pkt[34], pkt[35] = 0x13, 0x8D // src port 5005, not in the mapping
	parsed := mustParse(t, pkt, core.DefaultStack[:3])

	_, ok := Select(set, parsed, core.DirectionUp)
	assert.False(t, ok)
}

func TestSelectTrailingFields(t *testing.T) {
	ethOnly := `
rules:
  - id: 1
    permit_trailing: true
    fields:
      - {field: eth.dst_mac, target: "02:00:00:00:00:02", cda: not-sent}
      - {field: eth.src_mac, target: "02:00:00:00:00:01", cda: not-sent}
      - {field: eth.type, target: "0x0800", cda: not-sent}
`
	set := mustRules(t, ethOnly)
	parsed := mustParse(t, ethIPv4UDPPacket(), core.DefaultStack[:3])

	m, ok := Select(set, parsed, core.DirectionUp)
	require.True(t, ok)
	// The unmatched IPv4 header onwards rides along as payload.
	assert.Equal(t, uint32(14*8), m.HeaderEndBits)

	strict := mustRules(t, `
rules:
  - id: 1
    fields:
      - {field: eth.dst_mac, target: "02:00:00:00:00:02", cda: not-sent}
      - {field: eth.src_mac, target: "02:00:00:00:00:01", cda: not-sent}
      - {field: eth.type, target: "0x0800", cda: not-sent}
`)
	_, ok = Select(strict, parsed, core.DirectionUp)
	assert.False(t, ok)
}

func TestSelectDirectionFiltering(t *testing.T) {
	set := mustRules(t, `
rules:
  - id: 1
    fields:
      - {field: udp.src_port, direction: up, target: 5000, cda: not-sent}
      - {field: udp.src_port, direction: down, target: 8080, cda: not-sent}
      - {field: udp.dst_port, mo: ignore, cda: value-sent}
      - {field: udp.length, mo: ignore, cda: value-sent}
      - {field: udp.checksum, mo: ignore, cda: value-sent}
`)
	udpOnly := ethIPv4UDPPacket()[34:]
	parsed := mustParse(t, udpOnly, []core.Layer{core.LayerUDP})

	m, ok := Select(set, parsed, core.DirectionUp)
	require.True(t, ok)
	require.Len(t, m.Fields, 4)

	_, ok = Select(set, parsed, core.DirectionDown)
	assert.False(t, ok)
}

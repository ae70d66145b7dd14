package rules

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/schc/internal/core"
)

const validRules = `
rule_id_bits: 8
rules:
  - id: 2
    comment: "send-all fallback"
    fields:
      - field: udp.src_port
        mo: ignore
        cda: value-sent
      - field: udp.dst_port
        mo: ignore
        cda: value-sent
      - field: udp.length
        mo: ignore
        cda: value-sent
      - field: udp.checksum
        mo: ignore
        cda: value-sent
  - id: 1
    fields:
      - field: udp.src_port
        mo: match-mapping
        target: [5000, 5001, 5002]
        cda: mapping-sent
      - field: udp.dst_port
        mo: equal
        target: 8080
        cda: not-sent
      - field: udp.length
        mo: ignore
        cda: compute-length
      - field: udp.checksum
        mo: ignore
        cda: compute-checksum
`

func TestParseValidRuleSet(t *testing.T) {
	set, err := Parse([]byte(validRules), DefaultFieldContext())
	require.NoError(t, err)
	require.Equal(t, 2, set.Len())
	assert.Equal(t, uint8(8), set.RuleIDBits())

	// Matching order is ascending rule id regardless of file order.
	assert.Equal(t, uint32(1), set.Rules()[0].ID)
	assert.Equal(t, uint32(2), set.Rules()[1].ID)

	r1, ok := set.ByID(1)
	require.True(t, ok)
	require.Len(t, r1.Fields, 4)

	ports := r1.Fields[0]
	assert.Equal(t, MOMatchMapping, ports.MO)
	assert.Equal(t, ActionMappingSent, ports.CDA)
	assert.Len(t, ports.Mapping, 3)
	assert.Equal(t, uint16(2), ports.MappingIndexBits())
	assert.Equal(t, []byte{0x13, 0x88}, ports.Mapping[0]) // 5000

	dst := r1.Fields[1]
	assert.Equal(t, []byte{0x1F, 0x90}, dst.Target) // 8080
	assert.Equal(t, uint16(16), dst.TargetBits)
}

func TestParseTargetForms(t *testing.T) {
	doc := `
rules:
  - id: 1
    fields:
      - field: eth.dst_mac
        target: "02:00:00:00:00:02"
        cda: not-sent
      - field: eth.src_mac
        target: "02:00:00:00:00:01"
        cda: not-sent
      - field: eth.type
        target: "0x0800"
        cda: not-sent
      - field: ipv4.version
        target: 4
        cda: not-sent
      - field: ipv4.src_addr
        target: "10.0.0.1"
        cda: not-sent
      - field: ipv6.src_addr
        target: "fe80::1"
        cda: not-sent
`
	set, err := Parse([]byte(doc), DefaultFieldContext())
	require.NoError(t, err)

	r, _ := set.ByID(1)
	assert.Equal(t, []byte{0x02, 0, 0, 0, 0, 0x02}, r.Fields[0].Target)
	assert.Equal(t, []byte{0x08, 0x00}, r.Fields[2].Target)
	assert.Equal(t, []byte{0x04}, r.Fields[3].Target)
	assert.Equal(t, []byte{10, 0, 0, 1}, r.Fields[4].Target)
	require.Len(t, r.Fields[5].Target, 16)
	assert.Equal(t, byte(0xFE), r.Fields[5].Target[0])
}

func TestParseMSBFullWidth(t *testing.T) {
	// MSB over the whole field degenerates to an equality match with a
	// zero-bit residue.
	doc := `
rules:
  - id: 1
    fields:
      - {field: ipv4.version, mo: msb, msb: 4, target: 4, cda: lsb}
`
	set, err := Parse([]byte(doc), DefaultFieldContext())
	require.NoError(t, err)

	r, _ := set.ByID(1)
	n, fixed := r.Fields[0].ResidueBits()
	assert.True(t, fixed)
	assert.Equal(t, uint16(0), n)
}

func TestParseRejectsInvalidDocuments(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want error
	}{
		{
			name: "unknown field id",
			doc: `
rules:
  - id: 1
    fields:
      - {field: tcp.src_port, mo: ignore, cda: value-sent}
`,
			want: core.ErrUnknownField,
		},
		{
			name: "length disagreement",
			doc: `
rules:
  - id: 1
    fields:
      - {field: udp.src_port, length: 8, mo: ignore, cda: value-sent}
`,
			want: core.ErrConfigInvalid,
		},
		{
			name: "bad direction",
			doc: `
rules:
  - id: 1
    fields:
      - {field: udp.src_port, direction: sideways, mo: ignore, cda: value-sent}
`,
			want: core.ErrConfigInvalid,
		},
		{
			name: "unknown operator",
			doc: `
rules:
  - id: 1
    fields:
      - {field: udp.src_port, mo: fuzzy, cda: value-sent}
`,
			want: core.ErrConfigInvalid,
		},
		{
			name: "unknown action",
			doc: `
rules:
  - id: 1
    fields:
      - {field: udp.src_port, mo: ignore, cda: send-twice}
`,
			want: core.ErrConfigInvalid,
		},
		{
			name: "not-sent without equal",
			doc: `
rules:
  - id: 1
    fields:
      - {field: udp.src_port, mo: ignore, cda: not-sent}
`,
			want: core.ErrConfigInvalid,
		},
		{
			name: "lsb without msb",
			doc: `
rules:
  - id: 1
    fields:
      - {field: udp.src_port, mo: equal, target: 9, cda: lsb}
`,
			want: core.ErrConfigInvalid,
		},
		{
			name: "msb length out of range",
			doc: `
rules:
  - id: 1
    fields:
      - {field: udp.src_port, mo: msb, msb: 17, target: 9, cda: lsb}
`,
			want: core.ErrConfigInvalid,
		},
		{
			name: "equal without target",
			doc: `
rules:
  - id: 1
    fields:
      - {field: udp.src_port, mo: equal, cda: value-sent}
`,
			want: core.ErrConfigInvalid,
		},
		{
			name: "target too wide",
			doc: `
rules:
  - id: 1
    fields:
      - {field: ipv4.version, target: 20, cda: not-sent}
`,
			want: core.ErrConfigInvalid,
		},
		{
			name: "compute-length on a port",
			doc: `
rules:
  - id: 1
    fields:
      - {field: udp.src_port, mo: ignore, cda: compute-length}
`,
			want: core.ErrConfigInvalid,
		},
		{
			name: "compute-checksum on an address",
			doc: `
rules:
  - id: 1
    fields:
      - {field: ipv4.src_addr, mo: ignore, cda: compute-checksum}
`,
			want: core.ErrConfigInvalid,
		},
		{
			name: "quic length compute without explicit width",
			doc: `
rules:
  - id: 1
    fields:
      - {field: quic.length, mo: ignore, cda: compute-length}
`,
			want: core.ErrConfigInvalid,
		},
		{
			name: "duplicate rule id",
			doc: `
rules:
  - id: 1
    fields:
      - {field: udp.src_port, mo: ignore, cda: value-sent}
  - id: 1
    fields:
      - {field: udp.dst_port, mo: ignore, cda: value-sent}
`,
			want: core.ErrConfigInvalid,
		},
		{
			name: "rule id exceeds id width",
			doc: `
rule_id_bits: 2
rules:
  - id: 4
    fields:
      - {field: udp.src_port, mo: ignore, cda: value-sent}
`,
			want: core.ErrConfigInvalid,
		},
		{
			name: "rule without fields",
			doc: `
rules:
  - id: 1
    fields: []
`,
			want: core.ErrConfigInvalid,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc), DefaultFieldContext())
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestFieldContextOverride(t *testing.T) {
	ctx, err := ParseFieldContext([]byte(`
fields:
  quic.dcid:
    length: 64
`))
	require.NoError(t, err)

	info, ok := ctx.Lookup(core.FieldQUICDCID)
	require.True(t, ok)
	assert.False(t, info.Variable)
	assert.Equal(t, uint16(64), info.Bits)

	// Untouched entries keep their built-in definition.
	info, ok = ctx.Lookup(core.FieldUDPSrcPort)
	require.True(t, ok)
	assert.Equal(t, uint16(16), info.Bits)
}

func TestFieldContextRejectsUnknownField(t *testing.T) {
	_, err := ParseFieldContext([]byte(`
fields:
  tcp.window:
    length: 16
`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUnknownField))
}

func TestFieldsForDirection(t *testing.T) {
	doc := `
rules:
  - id: 1
    fields:
      - {field: udp.src_port, direction: up, target: 5000, cda: not-sent}
      - {field: udp.src_port, direction: down, target: 8080, cda: not-sent}
      - {field: udp.dst_port, direction: bi, mo: ignore, cda: value-sent}
`
	set, err := Parse([]byte(doc), DefaultFieldContext())
	require.NoError(t, err)

	r, _ := set.ByID(1)
	up := r.FieldsFor(core.DirectionUp)
	require.Len(t, up, 2)
	if !bytes.Equal(up[0].Target, []byte{0x13, 0x88}) {
		t.Errorf("Expected up target 5000, got %x", up[0].Target)
	}
	down := r.FieldsFor(core.DirectionDown)
	require.Len(t, down, 2)
	if !bytes.Equal(down[0].Target, []byte{0x1F, 0x90}) {
		t.Errorf("Expected down target 8080, got %x", down[0].Target)
	}
}

package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDirection(t *testing.T) {
	for in, want := range map[string]Direction{
		"":              DirectionBi,
		"bi":            DirectionBi,
		"bidirectional": DirectionBi,
		"up":            DirectionUp,
		"down":          DirectionDown,
		"dw":            DirectionDown,
	} {
		d, err := ParseDirection(in)
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, want, d, "input %q", in)
	}

	_, err := ParseDirection("sideways")
	assert.ErrorIs(t, err, ErrConfigInvalid)
}

func TestDirectionCovers(t *testing.T) {
	assert.True(t, DirectionBi.Covers(DirectionUp))
	assert.True(t, DirectionBi.Covers(DirectionDown))
	assert.True(t, DirectionUp.Covers(DirectionUp))
	assert.False(t, DirectionUp.Covers(DirectionDown))
	assert.False(t, DirectionDown.Covers(DirectionUp))
}

func TestParseStack(t *testing.T) {
	stack, err := ParseStack([]string{"eth", "ipv4", "udp", "quic"})
	require.NoError(t, err)
	assert.Equal(t, DefaultStack, stack)

	_, err = ParseStack([]string{"ethernet", "tcp"})
	assert.ErrorIs(t, err, ErrConfigInvalid)
}

func TestParsedFieldUint(t *testing.T) {
	f := ParsedField{Value: []byte{0x12, 0x34}, Bits: 16}
	assert.Equal(t, uint64(0x1234), f.Uint())
	assert.Equal(t, uint64(0), ParsedField{}.Uint())
}

func TestBuiltinFieldsIsACopy(t *testing.T) {
	m := BuiltinFields()
	m[FieldUDPSrcPort] = FieldInfo{Bits: 1}
	assert.Equal(t, uint16(16), builtinFields[FieldUDPSrcPort].Bits)
	assert.True(t, KnownField(FieldQUICDCID))
	assert.False(t, KnownField("tcp.src_port"))
}

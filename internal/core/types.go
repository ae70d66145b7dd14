// Package core defines core types with zero external dependencies.
package core

import "fmt"

// Direction tells the engine which link direction a packet travels.
// Field descriptors carry a direction indicator and only apply when it
// matches the packet direction (or is bidirectional).
type Direction uint8

const (
	DirectionBi Direction = iota // applies both ways
	DirectionUp
	DirectionDown
)

// ParseDirection converts a configuration string to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "", "bi", "bidirectional":
		return DirectionBi, nil
	case "up":
		return DirectionUp, nil
	case "down", "dw":
		return DirectionDown, nil
	default:
		return DirectionBi, fmt.Errorf("%w: direction %q", ErrConfigInvalid, s)
	}
}

// Covers reports whether a descriptor direction applies to a packet direction.
// Descriptor DirectionBi covers everything; otherwise the packet direction
// must match exactly. Packets are never DirectionBi; callers pass Up or Down.
func (d Direction) Covers(pkt Direction) bool {
	return d == DirectionBi || d == pkt
}

func (d Direction) String() string {
	switch d {
	case DirectionUp:
		return "up"
	case DirectionDown:
		return "down"
	default:
		return "bi"
	}
}

// Layer identifies one protocol layer of the declared header stack.
type Layer uint8

const (
	LayerEthernet Layer = iota
	LayerIPv4
	LayerIPv6
	LayerUDP
	LayerQUIC
)

// ParseLayer converts a configuration string to a Layer.
func ParseLayer(s string) (Layer, error) {
	switch s {
	case "ethernet", "eth":
		return LayerEthernet, nil
	case "ipv4":
		return LayerIPv4, nil
	case "ipv6":
		return LayerIPv6, nil
	case "udp":
		return LayerUDP, nil
	case "quic":
		return LayerQUIC, nil
	default:
		return 0, fmt.Errorf("%w: layer %q", ErrConfigInvalid, s)
	}
}

func (l Layer) String() string {
	switch l {
	case LayerEthernet:
		return "ethernet"
	case LayerIPv4:
		return "ipv4"
	case LayerIPv6:
		return "ipv6"
	case LayerUDP:
		return "udp"
	case LayerQUIC:
		return "quic"
	default:
		return fmt.Sprintf("layer(%d)", uint8(l))
	}
}

// ParseStack converts configuration layer names to a declared header stack.
func ParseStack(names []string) ([]Layer, error) {
	stack := make([]Layer, 0, len(names))
	for _, n := range names {
		l, err := ParseLayer(n)
		if err != nil {
			return nil, err
		}
		stack = append(stack, l)
	}
	return stack, nil
}

// DefaultStack is the header stack the simulated QUIC traffic uses.
var DefaultStack = []Layer{LayerEthernet, LayerIPv4, LayerUDP, LayerQUIC}

// ParsedField is one header field extracted from a raw packet.
// Ephemeral: produced by the parser, consumed by the matcher within a single
// engine call, never retained across packets.
type ParsedField struct {
	ID       FieldID
	Position uint8  // ordinal among repeated fields of the same id, 1-based
	Value    []byte // bit-exact value, right-aligned in the minimal byte count
	Bits     uint16 // actual bit width of Value
	Offset   uint32 // bit offset of the field from the start of the buffer
}

// Uint returns the field value as an unsigned integer.
// Only meaningful for fields up to 64 bits wide.
func (f ParsedField) Uint() uint64 {
	var v uint64
	for _, b := range f.Value {
		v = v<<8 | uint64(b)
	}
	return v
}

package core

// FieldID identifies one header field following the {protocol}.{field}
// naming convention.
type FieldID string

// Field identifier constants.
const (
	FieldEthDstMAC FieldID = "eth.dst_mac"
	FieldEthSrcMAC FieldID = "eth.src_mac"
	FieldEthType   FieldID = "eth.type"
	FieldEthVLAN   FieldID = "eth.vlan" // repeated for QinQ, position 1..2

	FieldIPv4Version    FieldID = "ipv4.version"
	FieldIPv4IHL        FieldID = "ipv4.ihl"
	FieldIPv4DSCP       FieldID = "ipv4.dscp"
	FieldIPv4ECN        FieldID = "ipv4.ecn"
	FieldIPv4TotalLen   FieldID = "ipv4.total_length"
	FieldIPv4Identifier FieldID = "ipv4.identification"
	FieldIPv4Flags      FieldID = "ipv4.flags"
	FieldIPv4FragOffset FieldID = "ipv4.fragment_offset"
	FieldIPv4TTL        FieldID = "ipv4.ttl"
	FieldIPv4Protocol   FieldID = "ipv4.protocol"
	FieldIPv4Checksum   FieldID = "ipv4.checksum"
	FieldIPv4SrcAddr    FieldID = "ipv4.src_addr"
	FieldIPv4DstAddr    FieldID = "ipv4.dst_addr"
	FieldIPv4Options    FieldID = "ipv4.options" // present only when IHL > 5

	FieldIPv6Version      FieldID = "ipv6.version"
	FieldIPv6TrafficClass FieldID = "ipv6.traffic_class"
	FieldIPv6FlowLabel    FieldID = "ipv6.flow_label"
	FieldIPv6PayloadLen   FieldID = "ipv6.payload_length"
	FieldIPv6NextHeader   FieldID = "ipv6.next_header"
	FieldIPv6HopLimit     FieldID = "ipv6.hop_limit"
	FieldIPv6SrcAddr      FieldID = "ipv6.src_addr"
	FieldIPv6DstAddr      FieldID = "ipv6.dst_addr"
	// Extension headers repeat per chain entry, position 1..n
	FieldIPv6ExtNextHeader FieldID = "ipv6.ext.next_header"
	FieldIPv6ExtLength     FieldID = "ipv6.ext.length"
	FieldIPv6ExtData       FieldID = "ipv6.ext.data"

	FieldUDPSrcPort  FieldID = "udp.src_port"
	FieldUDPDstPort  FieldID = "udp.dst_port"
	FieldUDPLength   FieldID = "udp.length"
	FieldUDPChecksum FieldID = "udp.checksum"

	FieldQUICFirstByte FieldID = "quic.first_byte"
	FieldQUICVersion   FieldID = "quic.version"
	FieldQUICDCIDLen   FieldID = "quic.dcid_length"
	FieldQUICDCID      FieldID = "quic.dcid"
	FieldQUICSCIDLen   FieldID = "quic.scid_length"
	FieldQUICSCID      FieldID = "quic.scid"
	FieldQUICTokenLen  FieldID = "quic.token_length" // varint, raw encoding preserved
	FieldQUICToken     FieldID = "quic.token"
	FieldQUICLength    FieldID = "quic.length" // varint, raw encoding preserved
	FieldQUICPktNumber FieldID = "quic.packet_number"
)

// FieldInfo is the static per-field metadata of the field context.
type FieldInfo struct {
	Bits     uint16 // fixed bit width; 0 when Variable
	Variable bool   // width known only at parse time
}

// builtinFields is the default field context. A field context file may
// override entries (e.g. pin quic.dcid to the session's CID length for
// short-header parsing) but never remove them.
var builtinFields = map[FieldID]FieldInfo{
	FieldEthDstMAC: {Bits: 48},
	FieldEthSrcMAC: {Bits: 48},
	FieldEthType:   {Bits: 16},
	FieldEthVLAN:   {Bits: 16},

	FieldIPv4Version:    {Bits: 4},
	FieldIPv4IHL:        {Bits: 4},
	FieldIPv4DSCP:       {Bits: 6},
	FieldIPv4ECN:        {Bits: 2},
	FieldIPv4TotalLen:   {Bits: 16},
	FieldIPv4Identifier: {Bits: 16},
	FieldIPv4Flags:      {Bits: 3},
	FieldIPv4FragOffset: {Bits: 13},
	FieldIPv4TTL:        {Bits: 8},
	FieldIPv4Protocol:   {Bits: 8},
	FieldIPv4Checksum:   {Bits: 16},
	FieldIPv4SrcAddr:    {Bits: 32},
	FieldIPv4DstAddr:    {Bits: 32},
	FieldIPv4Options:    {Variable: true},

	FieldIPv6Version:       {Bits: 4},
	FieldIPv6TrafficClass:  {Bits: 8},
	FieldIPv6FlowLabel:     {Bits: 20},
	FieldIPv6PayloadLen:    {Bits: 16},
	FieldIPv6NextHeader:    {Bits: 8},
	FieldIPv6HopLimit:      {Bits: 8},
	FieldIPv6SrcAddr:       {Bits: 128},
	FieldIPv6DstAddr:       {Bits: 128},
	FieldIPv6ExtNextHeader: {Bits: 8},
	FieldIPv6ExtLength:     {Bits: 8},
	FieldIPv6ExtData:       {Variable: true},

	FieldUDPSrcPort:  {Bits: 16},
	FieldUDPDstPort:  {Bits: 16},
	FieldUDPLength:   {Bits: 16},
	FieldUDPChecksum: {Bits: 16},

	FieldQUICFirstByte: {Bits: 8},
	FieldQUICVersion:   {Bits: 32},
	FieldQUICDCIDLen:   {Bits: 8},
	FieldQUICDCID:      {Variable: true},
	FieldQUICSCIDLen:   {Bits: 8},
	FieldQUICSCID:      {Variable: true},
	FieldQUICTokenLen:  {Variable: true},
	FieldQUICToken:     {Variable: true},
	FieldQUICLength:    {Variable: true},
	FieldQUICPktNumber: {Variable: true},
}

// BuiltinFields returns a copy of the default field context entries.
func BuiltinFields() map[FieldID]FieldInfo {
	m := make(map[FieldID]FieldInfo, len(builtinFields))
	for k, v := range builtinFields {
		m[k] = v
	}
	return m
}

// KnownField reports whether id belongs to a supported protocol layer.
func KnownField(id FieldID) bool {
	_, ok := builtinFields[id]
	return ok
}

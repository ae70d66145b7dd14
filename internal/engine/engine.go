// Package engine unifies parsing, rule matching and the compression actions
// behind three packet-path entry points: Compress, Decompress and Analyze.
//
// The rule set and field context are immutable after construction and safe
// for concurrent readers; the statistics accumulator is the only mutable
// shared state. Every call is synchronous, performs no I/O, and completes in
// time bounded by header size and rule count. Deciding whether a node should
// compress, decompress or merely observe a given packet is the caller's
// business; the engine only executes the operation it is asked for.
package engine

import (
	"fmt"
	"strconv"

	"firestige.xyz/schc/internal/compressor"
	"firestige.xyz/schc/internal/core"
	"firestige.xyz/schc/internal/matcher"
	"firestige.xyz/schc/internal/metrics"
	"firestige.xyz/schc/internal/parser"
	"firestige.xyz/schc/internal/rules"
)

// Engine is a header compression/decompression engine bound to one rule
// context.
type Engine struct {
	set   *rules.Set
	ctx   *rules.FieldContext
	stack []core.Layer
	stats Stats
}

// Option configures an Engine.
type Option func(*Engine)

// WithStack declares the protocol stack the parser walks.
// Defaults to Ethernet/IPv4/UDP/QUIC.
func WithStack(stack []core.Layer) Option {
	return func(e *Engine) { e.stack = stack }
}

// New creates an engine over an already validated rule context.
func New(set *rules.Set, ctx *rules.FieldContext, opts ...Option) *Engine {
	e := &Engine{
		set:   set,
		ctx:   ctx,
		stack: core.DefaultStack,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Stats returns a point-in-time copy of the engine counters.
func (e *Engine) Stats() Snapshot { return e.stats.Snapshot() }

// CompressResult is the outcome of one Compress call.
type CompressResult struct {
	// Packet is the compressed header followed by the untouched
	// application payload.
	Packet []byte
	RuleID uint32

	OriginalHeaderBits   uint32
	CompressedHeaderBits uint32
}

// Compress parses raw, selects a rule and emits the rule id + residue form.
//
// ErrNoMatchingRule and parse errors are per-packet: the caller transmits
// the original bytes instead.
func (e *Engine) Compress(raw []byte, dir core.Direction) (*CompressResult, error) {
	e.stats.processed.Add(1)

	parsed, err := parser.Parse(raw, e.stack, e.ctx)
	if err != nil {
		e.stats.parseFailures.Add(1)
		metrics.PacketsTotal.WithLabelValues("compress", dir.String(), metrics.OutcomeParseError).Inc()
		return nil, err
	}

	m, ok := matcher.Select(e.set, parsed, dir)
	if !ok {
		e.stats.compressFailures.Add(1)
		metrics.PacketsTotal.WithLabelValues("compress", dir.String(), metrics.OutcomeNoMatch).Inc()
		return nil, core.ErrNoMatchingRule
	}
	e.stats.matched.Add(1)
	metrics.RuleMatchesTotal.WithLabelValues(strconv.FormatUint(uint64(m.Rule.ID), 10)).Inc()

	comp, err := compressor.Compress(e.set, m)
	if err != nil {
		e.stats.compressFailures.Add(1)
		metrics.PacketsTotal.WithLabelValues("compress", dir.String(), metrics.OutcomeError).Inc()
		return nil, err
	}

	payload := raw[m.HeaderEndBits/8:]
	packet := make([]byte, 0, len(comp.Data)+len(payload))
	packet = append(packet, comp.Data...)
	packet = append(packet, payload...)

	e.stats.compressed.Add(1)
	e.stats.originalHeaderBits.Add(uint64(m.HeaderEndBits))
	e.stats.compressedHeaderBits.Add(uint64(comp.HeaderBits))
	metrics.PacketsTotal.WithLabelValues("compress", dir.String(), metrics.OutcomeOK).Inc()
	metrics.HeaderBitsTotal.WithLabelValues("original").Add(float64(m.HeaderEndBits))
	metrics.HeaderBitsTotal.WithLabelValues("compressed").Add(float64(comp.HeaderBits))

	return &CompressResult{
		Packet:               packet,
		RuleID:               comp.RuleID,
		OriginalHeaderBits:   m.HeaderEndBits,
		CompressedHeaderBits: comp.HeaderBits,
	}, nil
}

// DecompressResult is the outcome of one Decompress call.
type DecompressResult struct {
	Packet  []byte // reconstructed header + payload
	Header  []byte
	Payload []byte
	RuleID  uint32

	BitsConsumed uint32 // rule id + residue width read from the input
}

// Decompress reconstructs the original header from a previously produced
// compressed packet. Failures (unknown rule id, residue underflow, compute
// failure) are per-packet; the header cannot be recovered and the caller
// drops or flags the packet.
func (e *Engine) Decompress(data []byte, dir core.Direction) (*DecompressResult, error) {
	e.stats.processed.Add(1)

	dec, err := compressor.Decompress(e.set, data, dir)
	if err != nil {
		e.stats.decompressFailures.Add(1)
		metrics.PacketsTotal.WithLabelValues("decompress", dir.String(), metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("decompression failed: %w", err)
	}

	e.stats.decompressed.Add(1)
	metrics.PacketsTotal.WithLabelValues("decompress", dir.String(), metrics.OutcomeOK).Inc()

	return &DecompressResult{
		Packet:       dec.Packet(),
		Header:       dec.Header,
		Payload:      dec.Payload,
		RuleID:       dec.RuleID,
		BitsConsumed: dec.BitsConsumed,
	}, nil
}

// AnalyzeResult is the outcome of one Analyze call.
type AnalyzeResult struct {
	Matched bool
	RuleID  uint32

	OriginalHeaderBits   uint32
	CompressedHeaderBits uint32
}

// Analyze runs parse + match + sizing without producing a compressed
// buffer. Observer nodes use it to measure potential gains while packets
// pass through unmodified.
func (e *Engine) Analyze(raw []byte, dir core.Direction) (*AnalyzeResult, error) {
	e.stats.processed.Add(1)

	parsed, err := parser.Parse(raw, e.stack, e.ctx)
	if err != nil {
		e.stats.parseFailures.Add(1)
		metrics.PacketsTotal.WithLabelValues("analyze", dir.String(), metrics.OutcomeParseError).Inc()
		return nil, err
	}

	m, ok := matcher.Select(e.set, parsed, dir)
	if !ok {
		metrics.PacketsTotal.WithLabelValues("analyze", dir.String(), metrics.OutcomeNoMatch).Inc()
		return &AnalyzeResult{Matched: false, OriginalHeaderBits: parsed.HeaderBits}, nil
	}

	compressedBits := uint32(e.set.RuleIDBits()) + compressor.ResidueBits(m)

	e.stats.matched.Add(1)
	e.stats.originalHeaderBits.Add(uint64(m.HeaderEndBits))
	e.stats.compressedHeaderBits.Add(uint64(compressedBits))
	metrics.PacketsTotal.WithLabelValues("analyze", dir.String(), metrics.OutcomeOK).Inc()
	metrics.RuleMatchesTotal.WithLabelValues(strconv.FormatUint(uint64(m.Rule.ID), 10)).Inc()
	metrics.HeaderBitsTotal.WithLabelValues("original").Add(float64(m.HeaderEndBits))
	metrics.HeaderBitsTotal.WithLabelValues("compressed").Add(float64(compressedBits))

	return &AnalyzeResult{
		Matched:              true,
		RuleID:               m.Rule.ID,
		OriginalHeaderBits:   m.HeaderEndBits,
		CompressedHeaderBits: compressedBits,
	}, nil
}

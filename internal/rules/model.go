// Package rules implements the rule context: the rule set and field context
// shared verbatim by the compressing and decompressing ends.
package rules

import (
	mathbits "math/bits"

	"firestige.xyz/schc/internal/core"
)

// MatchOp is a matching operator variant. Operators are loaded from
// configuration as identifiers and validated into this closed set so that
// unknown operators are rejected at load time, not at packet time.
type MatchOp uint8

const (
	MOEqual MatchOp = iota
	MOIgnore
	MOMSB
	MOMatchMapping
)

func (m MatchOp) String() string {
	switch m {
	case MOEqual:
		return "equal"
	case MOIgnore:
		return "ignore"
	case MOMSB:
		return "msb"
	case MOMatchMapping:
		return "match-mapping"
	default:
		return "unknown"
	}
}

// Action is a compression/decompression action variant.
type Action uint8

const (
	ActionNotSent Action = iota
	ActionValueSent
	ActionLSB
	ActionMappingSent
	ActionComputeLength
	ActionComputeChecksum
)

func (a Action) String() string {
	switch a {
	case ActionNotSent:
		return "not-sent"
	case ActionValueSent:
		return "value-sent"
	case ActionLSB:
		return "lsb"
	case ActionMappingSent:
		return "mapping-sent"
	case ActionComputeLength:
		return "compute-length"
	case ActionComputeChecksum:
		return "compute-checksum"
	default:
		return "unknown"
	}
}

// Compute reports whether the action is recomputed on decompression rather
// than carried in the residue.
func (a Action) Compute() bool {
	return a == ActionComputeLength || a == ActionComputeChecksum
}

// FieldDescriptor is one entry of a rule: which field, how to match it,
// and how to transform it.
type FieldDescriptor struct {
	ID        core.FieldID
	Bits      uint16 // fixed bit width; 0 when Variable
	Variable  bool
	Position  uint8 // 1-based ordinal among repeated fields
	Direction core.Direction

	MO     MatchOp
	MSBLen uint16 // x of MSB(x), valid when MO == MOMSB

	CDA Action

	Target     []byte   // right-aligned target value (equal, MSB, not-sent)
	TargetBits uint16   // bit width of Target
	Mapping    [][]byte // enumerated targets (match-mapping), index order fixed
}

// MappingIndexBits returns the residue width of a mapping-sent contribution:
// the minimal number of bits that can address every mapping entry.
func (d *FieldDescriptor) MappingIndexBits() uint16 {
	n := len(d.Mapping)
	if n <= 1 {
		return 1
	}
	return uint16(mathbits.Len(uint(n - 1)))
}

// ResidueBits returns the fixed residue width this descriptor contributes,
// and false when the contribution is variable-length (length-prefixed in
// the residue itself).
func (d *FieldDescriptor) ResidueBits() (uint16, bool) {
	switch d.CDA {
	case ActionNotSent, ActionComputeLength, ActionComputeChecksum:
		return 0, true
	case ActionLSB:
		return d.Bits - d.MSBLen, true
	case ActionMappingSent:
		return d.MappingIndexBits(), true
	case ActionValueSent:
		if d.Variable {
			return 0, false
		}
		return d.Bits, true
	default:
		return 0, false
	}
}

// Rule is an ordered sequence of field descriptors under one rule id.
// Field order is a compression-format invariant: the compressor and
// decompressor walk it identically.
type Rule struct {
	ID     uint32
	Fields []FieldDescriptor

	// PermitTrailing lets the rule match even when parsed header fields
	// remain beyond the descriptors; the leftover bytes ride along as
	// payload. Without it, unaccounted fields reject the rule.
	PermitTrailing bool

	Comment string
}

// FieldsFor returns the descriptors that apply to a packet direction,
// in rule order.
func (r *Rule) FieldsFor(dir core.Direction) []FieldDescriptor {
	out := make([]FieldDescriptor, 0, len(r.Fields))
	for _, f := range r.Fields {
		if f.Direction.Covers(dir) {
			out = append(out, f)
		}
	}
	return out
}

// Set is an immutable rule set. Matching iterates rules in ascending rule
// id; the first full match wins, never the best-compressing one.
type Set struct {
	ruleIDBits uint8
	rules      []*Rule
	byID       map[uint32]*Rule
}

// RuleIDBits returns the fixed bit width of the rule id on the wire.
func (s *Set) RuleIDBits() uint8 { return s.ruleIDBits }

// Rules returns the rules in matching order. Callers must not mutate.
func (s *Set) Rules() []*Rule { return s.rules }

// ByID looks a rule up by id.
func (s *Set) ByID(id uint32) (*Rule, bool) {
	r, ok := s.byID[id]
	return r, ok
}

// Len returns the number of rules.
func (s *Set) Len() int { return len(s.rules) }

// Package matcher implements rule selection over a parsed field sequence.
//
// Rules are tried in ascending rule id; a rule matches only when every one
// of its descriptors succeeds against the parsed field at the corresponding
// position and nothing the rule does not account for remains. The first
// fully matching rule wins; compression efficiency is never a criterion.
package matcher

import (
	"firestige.xyz/schc/internal/bits"
	"firestige.xyz/schc/internal/core"
	"firestige.xyz/schc/internal/parser"
	"firestige.xyz/schc/internal/rules"
)

// FieldMatch is the outcome of one descriptor against one parsed field.
type FieldMatch struct {
	Desc  rules.FieldDescriptor
	Field core.ParsedField
	// MappingIndex is the matched enumeration entry for match-mapping
	// descriptors, -1 otherwise.
	MappingIndex int
}

// Match is a successful rule selection.
type Match struct {
	Rule   *rules.Rule
	Fields []FieldMatch // direction-filtered descriptors in rule order

	// HeaderEndBits is the bit offset where the matched header region ends.
	// Equal to the parser's header end unless the rule permits trailing
	// fields, in which case the leftover bytes ride along as payload.
	HeaderEndBits uint32
}

// Select returns the first rule of the set fully matching the parsed
// sequence, or false when no rule matches. No match is a result, not an
// error: the caller falls back to uncompressed handling.
func Select(set *rules.Set, parsed *parser.Result, dir core.Direction) (*Match, bool) {
	for _, rule := range set.Rules() {
		if m, ok := matchRule(rule, parsed, dir); ok {
			return m, true
		}
	}
	return nil, false
}

func matchRule(rule *rules.Rule, parsed *parser.Result, dir core.Direction) (*Match, bool) {
	descs := rule.FieldsFor(dir)
	if len(descs) > len(parsed.Fields) {
		return nil, false
	}

	m := &Match{
		Rule:          rule,
		Fields:        make([]FieldMatch, 0, len(descs)),
		HeaderEndBits: parsed.HeaderBits,
	}
	for i, desc := range descs {
		f := parsed.Fields[i]
		if f.ID != desc.ID || f.Position != desc.Position {
			return nil, false
		}
		if !desc.Variable && f.Bits != desc.Bits {
			return nil, false
		}

		idx := -1
		switch desc.MO {
		case rules.MOEqual:
			if f.Bits != desc.TargetBits || !bits.Equal(f.Value, desc.Target) {
				return nil, false
			}
		case rules.MOIgnore:
			// Always succeeds.
		case rules.MOMSB:
			lead := bits.Leading(f.Value, f.Bits, desc.MSBLen)
			want := bits.Leading(desc.Target, desc.TargetBits, desc.MSBLen)
			if !bits.Equal(lead, want) {
				return nil, false
			}
		case rules.MOMatchMapping:
			idx = mappingIndex(desc, f)
			if idx < 0 {
				return nil, false
			}
		}
		m.Fields = append(m.Fields, FieldMatch{Desc: desc, Field: f, MappingIndex: idx})
	}

	// Every parsed field beyond the rule's descriptors is unaccounted for.
	if len(descs) < len(parsed.Fields) {
		first := parsed.Fields[len(descs)]
		if !rule.PermitTrailing || first.Offset%8 != 0 {
			return nil, false
		}
		m.HeaderEndBits = first.Offset
	}
	return m, true
}

func mappingIndex(desc rules.FieldDescriptor, f core.ParsedField) int {
	for i, entry := range desc.Mapping {
		if desc.Variable && int(f.Bits) != len(entry)*8 {
			continue
		}
		if bits.Equal(f.Value, entry) {
			return i
		}
	}
	return -1
}

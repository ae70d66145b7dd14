package rules

import (
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"firestige.xyz/schc/internal/core"
)

const (
	defaultRuleIDBits = 8
	maxRuleIDBits     = 32
)

// ruleFile is the on-disk shape of a rule set document (YAML or JSON).
type ruleFile struct {
	RuleIDBits uint8       `yaml:"rule_id_bits"`
	Rules      []ruleEntry `yaml:"rules"`
}

type ruleEntry struct {
	ID             uint32       `yaml:"id"`
	Comment        string       `yaml:"comment"`
	PermitTrailing bool         `yaml:"permit_trailing"`
	Fields         []fieldEntry `yaml:"fields"`
}

type fieldEntry struct {
	Field     string `yaml:"field"`
	Length    uint16 `yaml:"length"`
	Position  uint8  `yaml:"position"`
	Direction string `yaml:"direction"`
	Target    any    `yaml:"target"`
	MO        string `yaml:"mo"`
	MSB       uint16 `yaml:"msb"`
	CDA       string `yaml:"cda"`
}

// Load reads and validates a rule set document against a field context.
// Any violation is fatal: a partial rule set is never returned.
func Load(path string, ctx *FieldContext) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file %s: %w", path, err)
	}
	return Parse(data, ctx)
}

// Parse parses and validates a rule set document.
func Parse(data []byte, ctx *FieldContext) (*Set, error) {
	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: rule file: %v", core.ErrConfigInvalid, err)
	}

	idBits := file.RuleIDBits
	if idBits == 0 {
		idBits = defaultRuleIDBits
	}
	if idBits > maxRuleIDBits {
		return nil, fmt.Errorf("%w: rule_id_bits %d exceeds %d",
			core.ErrConfigInvalid, idBits, maxRuleIDBits)
	}

	set := &Set{
		ruleIDBits: idBits,
		byID:       make(map[uint32]*Rule, len(file.Rules)),
	}
	for _, entry := range file.Rules {
		rule, err := buildRule(entry, idBits, ctx)
		if err != nil {
			return nil, err
		}
		if _, dup := set.byID[rule.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate rule id %d", core.ErrConfigInvalid, rule.ID)
		}
		set.byID[rule.ID] = rule
		set.rules = append(set.rules, rule)
	}

	// Matching order is ascending rule id.
	sort.SliceStable(set.rules, func(i, j int) bool {
		return set.rules[i].ID < set.rules[j].ID
	})
	return set, nil
}

func buildRule(entry ruleEntry, idBits uint8, ctx *FieldContext) (*Rule, error) {
	if idBits < 32 && entry.ID >= 1<<idBits {
		return nil, fmt.Errorf("%w: rule %d does not fit in %d rule id bits",
			core.ErrConfigInvalid, entry.ID, idBits)
	}
	if len(entry.Fields) == 0 {
		return nil, fmt.Errorf("%w: rule %d has no fields", core.ErrConfigInvalid, entry.ID)
	}

	rule := &Rule{
		ID:             entry.ID,
		PermitTrailing: entry.PermitTrailing,
		Comment:        entry.Comment,
		Fields:         make([]FieldDescriptor, 0, len(entry.Fields)),
	}
	for _, fe := range entry.Fields {
		fd, err := buildField(fe, ctx)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", entry.ID, err)
		}
		rule.Fields = append(rule.Fields, fd)
	}
	return rule, nil
}

func buildField(fe fieldEntry, ctx *FieldContext) (FieldDescriptor, error) {
	var fd FieldDescriptor

	fd.ID = core.FieldID(fe.Field)
	info, ok := ctx.Lookup(fd.ID)
	if !ok {
		return fd, fmt.Errorf("field %q: %w", fe.Field, core.ErrUnknownField)
	}

	// Bit width: rule entry wins, the field context fills the gap, and the
	// two must agree when both are fixed.
	switch {
	case fe.Length == 0:
		fd.Bits, fd.Variable = info.Bits, info.Variable
	case info.Variable:
		fd.Bits = fe.Length
	case fe.Length != info.Bits:
		return fd, fmt.Errorf("%w: field %q: length %d disagrees with field context %d",
			core.ErrConfigInvalid, fe.Field, fe.Length, info.Bits)
	default:
		fd.Bits = fe.Length
	}

	fd.Position = fe.Position
	if fd.Position == 0 {
		fd.Position = 1
	}

	dir, err := core.ParseDirection(fe.Direction)
	if err != nil {
		return fd, fmt.Errorf("field %q: %w", fe.Field, err)
	}
	fd.Direction = dir

	if err := parseMO(&fd, fe); err != nil {
		return fd, err
	}
	if err := parseCDA(&fd, fe); err != nil {
		return fd, err
	}
	return fd, nil
}

func parseMO(fd *FieldDescriptor, fe fieldEntry) error {
	switch fe.MO {
	case "equal", "":
		fd.MO = MOEqual
	case "ignore":
		fd.MO = MOIgnore
	case "msb":
		fd.MO = MOMSB
	case "match-mapping", "match_mapping":
		fd.MO = MOMatchMapping
	default:
		return fmt.Errorf("%w: field %q: unknown matching operator %q",
			core.ErrConfigInvalid, fd.ID, fe.MO)
	}

	switch fd.MO {
	case MOEqual:
		target, tbits, err := parseTarget(fe.Target, fd)
		if err != nil {
			return err
		}
		fd.Target, fd.TargetBits = target, tbits

	case MOMSB:
		if fd.Variable {
			return fmt.Errorf("%w: field %q: msb on a variable-length field",
				core.ErrConfigInvalid, fd.ID)
		}
		if fe.MSB == 0 || fe.MSB > fd.Bits {
			return fmt.Errorf("%w: field %q: msb length %d out of range (field is %d bits)",
				core.ErrConfigInvalid, fd.ID, fe.MSB, fd.Bits)
		}
		fd.MSBLen = fe.MSB
		target, tbits, err := parseTarget(fe.Target, fd)
		if err != nil {
			return err
		}
		if tbits < fd.MSBLen {
			return fmt.Errorf("%w: field %q: target narrower than msb length",
				core.ErrConfigInvalid, fd.ID)
		}
		fd.Target, fd.TargetBits = target, tbits

	case MOMatchMapping:
		list, ok := fe.Target.([]any)
		if !ok || len(list) == 0 {
			return fmt.Errorf("%w: field %q: match-mapping needs a non-empty target list",
				core.ErrConfigInvalid, fd.ID)
		}
		for _, item := range list {
			v, _, err := parseTarget(item, fd)
			if err != nil {
				return err
			}
			fd.Mapping = append(fd.Mapping, v)
		}

	case MOIgnore:
		// No parameters.
	}
	return nil
}

func parseCDA(fd *FieldDescriptor, fe fieldEntry) error {
	switch fe.CDA {
	case "not-sent", "not_sent":
		fd.CDA = ActionNotSent
	case "value-sent", "value_sent", "":
		fd.CDA = ActionValueSent
	case "lsb":
		fd.CDA = ActionLSB
	case "mapping-sent", "mapping_sent":
		fd.CDA = ActionMappingSent
	case "compute-length", "compute_length":
		fd.CDA = ActionComputeLength
	case "compute-checksum", "compute_checksum":
		fd.CDA = ActionComputeChecksum
	default:
		return fmt.Errorf("%w: field %q: unknown compression action %q",
			core.ErrConfigInvalid, fd.ID, fe.CDA)
	}

	// Operator/action pairings that cannot round-trip are configuration
	// errors, not packet errors.
	switch fd.CDA {
	case ActionNotSent:
		if fd.MO != MOEqual {
			return fmt.Errorf("%w: field %q: not-sent requires the equal operator",
				core.ErrConfigInvalid, fd.ID)
		}
	case ActionLSB:
		if fd.MO != MOMSB {
			return fmt.Errorf("%w: field %q: lsb requires the msb operator",
				core.ErrConfigInvalid, fd.ID)
		}
	case ActionMappingSent:
		if fd.MO != MOMatchMapping {
			return fmt.Errorf("%w: field %q: mapping-sent requires match-mapping",
				core.ErrConfigInvalid, fd.ID)
		}
	case ActionComputeLength:
		switch fd.ID {
		case core.FieldIPv4TotalLen, core.FieldIPv6PayloadLen, core.FieldUDPLength:
		case core.FieldQUICLength:
			// The placeholder is re-encoded as a varint of this exact size.
			switch fd.Bits {
			case 8, 16, 32, 64:
			default:
				return fmt.Errorf("%w: field %q: compute-length needs an explicit varint length (8, 16, 32 or 64 bits)",
					core.ErrConfigInvalid, fd.ID)
			}
		default:
			return fmt.Errorf("%w: field %q: compute-length is not defined for this field",
				core.ErrConfigInvalid, fd.ID)
		}
	case ActionComputeChecksum:
		switch fd.ID {
		case core.FieldIPv4Checksum, core.FieldUDPChecksum:
		default:
			return fmt.Errorf("%w: field %q: compute-checksum is not defined for this field",
				core.ErrConfigInvalid, fd.ID)
		}
	}
	return nil
}

// parseTarget converts a YAML target scalar to a right-aligned byte value.
// Accepted forms: integers, "0x" hex strings, dotted IPv4, colon IPv6,
// colon-separated MAC.
func parseTarget(v any, fd *FieldDescriptor) ([]byte, uint16, error) {
	switch t := v.(type) {
	case nil:
		return nil, 0, fmt.Errorf("%w: field %q: operator %s needs a target value",
			core.ErrConfigInvalid, fd.ID, fd.MO)
	case int:
		if t < 0 {
			return nil, 0, fmt.Errorf("%w: field %q: negative target", core.ErrConfigInvalid, fd.ID)
		}
		return uintTarget(uint64(t), fd)
	case int64:
		if t < 0 {
			return nil, 0, fmt.Errorf("%w: field %q: negative target", core.ErrConfigInvalid, fd.ID)
		}
		return uintTarget(uint64(t), fd)
	case uint64:
		return uintTarget(t, fd)
	case string:
		return stringTarget(t, fd)
	default:
		return nil, 0, fmt.Errorf("%w: field %q: unsupported target type %T",
			core.ErrConfigInvalid, fd.ID, v)
	}
}

func uintTarget(v uint64, fd *FieldDescriptor) ([]byte, uint16, error) {
	bits := fd.Bits
	if fd.Variable && bits == 0 {
		return nil, 0, fmt.Errorf("%w: field %q: integer target needs an explicit length",
			core.ErrConfigInvalid, fd.ID)
	}
	if bits < 64 && v >= 1<<bits {
		return nil, 0, fmt.Errorf("%w: field %q: target %d does not fit in %d bits",
			core.ErrConfigInvalid, fd.ID, v, bits)
	}
	out := make([]byte, (int(bits)+7)/8)
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return out, bits, nil
}

func stringTarget(s string, fd *FieldDescriptor) ([]byte, uint16, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		h := s[2:]
		if len(h)%2 == 1 {
			h = "0" + h
		}
		raw, err := hex.DecodeString(h)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: field %q: bad hex target %q",
				core.ErrConfigInvalid, fd.ID, s)
		}
		return sizedTarget(raw, fd)
	}
	if ip := net.ParseIP(s); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return sizedTarget(v4, fd)
		}
		return sizedTarget(ip.To16(), fd)
	}
	if mac, err := net.ParseMAC(s); err == nil {
		return sizedTarget(mac, fd)
	}
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return uintTarget(n, fd)
	}
	return nil, 0, fmt.Errorf("%w: field %q: cannot parse target %q",
		core.ErrConfigInvalid, fd.ID, s)
}

// sizedTarget right-aligns raw bytes to the field's declared width.
// Variable fields take the bytes as-is.
func sizedTarget(raw []byte, fd *FieldDescriptor) ([]byte, uint16, error) {
	if fd.Variable {
		return raw, uint16(len(raw)) * 8, nil
	}
	want := (int(fd.Bits) + 7) / 8
	switch {
	case len(raw) == want:
		return raw, fd.Bits, nil
	case len(raw) < want:
		out := make([]byte, want)
		copy(out[want-len(raw):], raw)
		return out, fd.Bits, nil
	default:
		// Wider than the field: leading bytes must be zero padding.
		for _, b := range raw[:len(raw)-want] {
			if b != 0 {
				return nil, 0, fmt.Errorf("%w: field %q: target wider than %d bits",
					core.ErrConfigInvalid, fd.ID, fd.Bits)
			}
		}
		return raw[len(raw)-want:], fd.Bits, nil
	}
}

package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"firestige.xyz/schc/internal/core"
)

// FieldContext maps field ids to their default bit widths. It starts from
// the built-in protocol definitions; a context file may override entries,
// typically to pin a variable-width field to a session constant (short-header
// QUIC carries no DCID length on the wire, both ends must agree on one).
type FieldContext struct {
	fields map[core.FieldID]core.FieldInfo
}

// DefaultFieldContext returns the built-in field context.
func DefaultFieldContext() *FieldContext {
	return &FieldContext{fields: core.BuiltinFields()}
}

// Lookup returns the metadata for a field id.
func (c *FieldContext) Lookup(id core.FieldID) (core.FieldInfo, bool) {
	info, ok := c.fields[id]
	return info, ok
}

// fieldContextFile is the on-disk shape of a field context document.
type fieldContextFile struct {
	Fields map[string]struct {
		Length uint16 `yaml:"length"`
	} `yaml:"fields"`
}

// LoadFieldContext reads a field context file and overlays it on the
// built-in definitions. Unknown field ids are fatal: a typo here would
// otherwise silently desynchronise the two ends.
func LoadFieldContext(path string) (*FieldContext, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read field context %s: %w", path, err)
	}
	return ParseFieldContext(data)
}

// ParseFieldContext parses a field context document (YAML or JSON).
func ParseFieldContext(data []byte) (*FieldContext, error) {
	var file fieldContextFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: field context: %v", core.ErrConfigInvalid, err)
	}

	ctx := DefaultFieldContext()
	for name, entry := range file.Fields {
		id := core.FieldID(name)
		if !core.KnownField(id) {
			return nil, fmt.Errorf("%w: field context entry %q", core.ErrUnknownField, name)
		}
		if entry.Length == 0 {
			return nil, fmt.Errorf("%w: field context entry %q: length must be positive",
				core.ErrConfigInvalid, name)
		}
		ctx.fields[id] = core.FieldInfo{Bits: entry.Length}
	}
	return ctx, nil
}

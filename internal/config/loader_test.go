package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
rules: /etc/schc/rules.yaml
field_context: /etc/schc/context.yaml
stack: [ipv6, udp]
metrics:
  enabled: true
  listen: "127.0.0.1:9190"
  path: /metrics
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/etc/schc/rules.yaml", cfg.Rules)
	assert.Equal(t, "/etc/schc/context.yaml", cfg.FieldContext)
	assert.Equal(t, []string{"ipv6", "udp"}, cfg.Stack)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "127.0.0.1:9190", cfg.Metrics.Listen)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, "rules: rules.yaml\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"ethernet", "ipv4", "udp", "quic"}, cfg.Stack)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Empty(t, cfg.Metrics.Listen)
}

func TestLoadConfigMetricsListenDefault(t *testing.T) {
	path := writeConfig(t, "rules: rules.yaml\nmetrics:\n  enabled: true\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9090", cfg.Metrics.Listen)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

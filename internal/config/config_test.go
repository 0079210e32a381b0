package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	path := writeConfig(t, "database:\n  path: /tmp/test.db\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	assert.Equal(t, 3, cfg.Workflow.ConflictRetries)
	assert.Equal(t, 100, cfg.Workflow.IDAllocationMaxAttempts)
	assert.False(t, cfg.Workflow.AllowRejectDuringQuery)
	assert.False(t, cfg.Workflow.AllowConcurrentQueries)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Empty(t, cfg.Email.SMTPHost)
}

func TestLoadOverrides(t *testing.T) {
	viper.Reset()
	path := writeConfig(t, `
server:
  port: 9090
workflow:
  allow_reject_during_query: true
  conflict_retries: 5
email:
  smtp_host: smtp.srm.edu
  from: approvals@srm.edu
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Workflow.AllowRejectDuringQuery)
	assert.Equal(t, 5, cfg.Workflow.ConflictRetries)
	assert.Equal(t, "smtp.srm.edu", cfg.Email.SMTPHost)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad port", "server:\n  port: -1\n"},
		{"smtp without from", "email:\n  smtp_host: smtp.srm.edu\n"},
		{"smtp with bad from", "email:\n  smtp_host: smtp.srm.edu\n  from: not-an-email\n"},
		{"zero id attempts", "workflow:\n  id_allocation_max_attempts: 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			path := writeConfig(t, tt.yaml)

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestEnvOverride(t *testing.T) {
	viper.Reset()
	t.Setenv("SMTP_HOST", "relay.srm.edu")
	t.Setenv("SMTP_FROM", "noreply@srm.edu")
	path := writeConfig(t, "database:\n  path: /tmp/test.db\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "relay.srm.edu", cfg.Email.SMTPHost)
	assert.Equal(t, "noreply@srm.edu", cfg.Email.From)
}

package polyderive_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vulpemventures/go-polyderive/factorsource"
	"github.com/vulpemventures/go-polyderive/polyderive"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := polyderive.DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 16, cfg.MaxRounds)
	assert.Equal(t, 30*time.Second, cfg.RoundTimeout)
	assert.Equal(t, polyderive.PolicyAbort, cfg.AnalyzerFailurePolicy)
	assert.Equal(t, 20, cfg.BatchSize(factorsource.Device))
	assert.Equal(t, 10, cfg.BatchSize(factorsource.Ledger))
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
max_rounds: 4
round_timeout: 5s
batch_sizes:
  ledger: 3
analyzer_failure_policy: assume_free
`)

	cfg, err := polyderive.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.MaxRounds)
	assert.Equal(t, 5*time.Second, cfg.RoundTimeout)
	assert.Equal(t, polyderive.PolicyAssumeFree, cfg.AnalyzerFailurePolicy)
	assert.Equal(t, 3, cfg.BatchSize(factorsource.Ledger))
	assert.Equal(t, 20, cfg.BatchSize(factorsource.Device))
}

func TestLoadConfigKeepsDefaults(t *testing.T) {
	cfg, err := polyderive.LoadConfig(writeConfig(t, "max_rounds: 2\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.MaxRounds)
	assert.Equal(t, 30*time.Second, cfg.RoundTimeout)
	assert.Equal(t, polyderive.PolicyAbort, cfg.AnalyzerFailurePolicy)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "negative rounds", content: "max_rounds: -1\n"},
		{name: "zero timeout", content: "round_timeout: 0s\n"},
		{name: "unknown kind", content: "batch_sizes:\n  yubikey: 4\n"},
		{name: "zero batch", content: "batch_sizes:\n  device: 0\n"},
		{name: "unknown policy", content: "analyzer_failure_policy: ignore\n"},
		{name: "malformed", content: "max_rounds: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := polyderive.LoadConfig(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}

	_, err := polyderive.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestErrorCodes(t *testing.T) {
	cause := errors.New("device unplugged")
	err := polyderive.WrapError(polyderive.ErrDerivationProviderFailure, "derive instances", cause).
		WithContext("round", 2)

	assert.Equal(t, "[derivation_provider_failure] derive instances: device unplugged", err.Error())
	assert.ErrorIs(t, err, polyderive.ErrDerivationProviderFailure)
	assert.ErrorIs(t, err, polyderive.NewError(polyderive.ErrDerivationProviderFailure, "other"))
	assert.NotErrorIs(t, err, polyderive.ErrRoundTimeout)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 2, err.Context["round"])

	wrapped := fmt.Errorf("oars: %w", err)
	assert.ErrorIs(t, wrapped, polyderive.ErrDerivationProviderFailure)
	assert.Equal(t, polyderive.ErrDerivationProviderFailure, polyderive.CodeOf(wrapped))
	assert.Equal(t, polyderive.ErrorCode(""), polyderive.CodeOf(cause))

	var typed *polyderive.Error
	require.ErrorAs(t, wrapped, &typed)
	assert.Equal(t, "derive instances", typed.Message)

	assert.Equal(t, "[cancelled] scan cancelled", polyderive.NewError(polyderive.ErrCancelled, "scan cancelled").Error())
}

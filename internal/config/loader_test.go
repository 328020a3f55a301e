package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettingsValidate(t *testing.T) {
	assert.NoError(t, DefaultSettings().Validate())
}

func TestLoaderPrecedence(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "deepscout.yml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
lm_api_key: file-key
session_deadline: 60s
max_loops_default: 3
listen_addr: ":9999"
`), 0o600))

	// Environment wins over the file
	t.Setenv("DEEPSCOUT_LM_API_KEY", "env-key")
	t.Setenv("DEEPSCOUT_MAX_LOOPS", "4")

	l := NewLoader()
	l.SetConfigPath(configPath)
	settings, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "env-key", settings.LMAPIKey)
	assert.Equal(t, 4, settings.MaxLoopsDefault)
	assert.Equal(t, 60*time.Second, settings.SessionDeadline, "file overrides the default")
	assert.Equal(t, ":9999", settings.ListenAddr)
	assert.True(t, settings.HasLM())
}

func TestLoaderDurationAcceptsBareSeconds(t *testing.T) {
	t.Setenv("DEEPSCOUT_SESSION_DEADLINE", "90")
	t.Setenv("DEEPSCOUT_PER_PROVIDER_TIMEOUT", "5s")

	settings, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, settings.SessionDeadline)
	assert.Equal(t, 5*time.Second, settings.PerProviderTimeout)
}

func TestLoaderIgnoresBadValues(t *testing.T) {
	t.Setenv("DEEPSCOUT_MAX_LOOPS", "lots")
	t.Setenv("DEEPSCOUT_QUALITY_THRESHOLD", "very high")
	t.Setenv("DEEPSCOUT_SESSION_DEADLINE", "soonish")

	settings, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxLoops, settings.MaxLoopsDefault)
	assert.Equal(t, DefaultQualityThreshold, settings.QualityThresholdDefault)
	assert.Equal(t, DefaultSessionDeadline, settings.SessionDeadline)
}

func TestLoaderRejectsInvalidConfig(t *testing.T) {
	t.Setenv("DEEPSCOUT_MAX_LOOPS", "99")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_loops_default")
}

func TestValidateRanges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"zero deadline", func(s *Settings) { s.SessionDeadline = 0 }},
		{"negative retries", func(s *Settings) { s.PerProviderRetries = -1 }},
		{"parallel searches too high", func(s *Settings) { s.ParallelSearches = 99 }},
		{"per query limit too high", func(s *Settings) { s.PerQueryLimit = 21 }},
		{"threshold above one", func(s *Settings) { s.QualityThresholdDefault = 1.1 }},
		{"zero source budget", func(s *Settings) { s.MaxSourcesTotal = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestHasLM(t *testing.T) {
	s := DefaultSettings()
	assert.False(t, s.HasLM())
	s.LMAPIKey = "k"
	assert.True(t, s.HasLM())
}

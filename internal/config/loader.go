package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const envPrefix = "DEEPSCOUT_"

// Loader handles loading configuration from multiple sources.
type Loader struct {
	settings    *Settings
	configPaths []string
}

// NewLoader creates a configuration loader with the default search paths.
func NewLoader() *Loader {
	return &Loader{
		settings: DefaultSettings(),
		configPaths: []string{
			"/etc/deepscout/deepscout.yml",
			"/etc/deepscout/deepscout.yaml",
			"./deepscout.yml",
			"./deepscout.yaml",
		},
	}
}

// SetConfigPath prepends a custom config path to the search list.
func (l *Loader) SetConfigPath(path string) {
	l.configPaths = append([]string{path}, l.configPaths...)
}

// Load loads configuration in order of precedence:
// defaults, config file, .env file, environment variables.
func (l *Loader) Load() (*Settings, error) {
	if err := l.loadFromFile(); err != nil {
		log.Debug().Err(err).Msg("No config file loaded, using defaults")
	}

	// .env is optional; real environment variables win over it
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("Loaded .env file")
	}

	l.loadFromEnv()

	if err := l.settings.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return l.settings, nil
}

func (l *Loader) loadFromFile() error {
	var configPath string
	for _, path := range l.configPaths {
		if _, err := os.Stat(path); err == nil {
			configPath = path
			break
		}
	}
	if configPath == "" {
		return fmt.Errorf("no config file found")
	}

	log.Info().Str("path", configPath).Msg("Loading configuration file")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(configPath))
	switch ext {
	case ".yml", ".yaml":
		if err := yaml.Unmarshal(data, l.settings); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file extension %q", ext)
	}
	return nil
}

func (l *Loader) loadFromEnv() {
	s := l.settings

	setString(&s.LMAPIKey, "LM_API_KEY")
	setString(&s.LMDefaultModel, "LM_DEFAULT_MODEL")
	setString(&s.LMBaseURL, "LM_BASE_URL")

	setString(&s.GoogleCSEID, "GOOGLE_CSE_ID")
	setString(&s.GoogleAPIKey, "GOOGLE_API_KEY")
	setString(&s.SearchAPIKey, "SEARCHAPI_KEY")

	setDuration(&s.SessionDeadline, "SESSION_DEADLINE")
	setDuration(&s.PerProviderTimeout, "PER_PROVIDER_TIMEOUT")
	setInt(&s.PerProviderRetries, "PER_PROVIDER_RETRIES")
	setInt(&s.ProviderConcurrency, "PROVIDER_CONCURRENCY")
	setInt(&s.ParallelSearches, "PARALLEL_SEARCHES")
	setInt(&s.PerQueryLimit, "PER_QUERY_LIMIT")

	setInt(&s.InitialQueryCountDefault, "INITIAL_QUERY_COUNT")
	setInt(&s.FollowupQueryCount, "FOLLOWUP_QUERY_COUNT")
	setInt(&s.MaxLoopsDefault, "MAX_LOOPS")
	setInt(&s.MaxSourcesTotal, "MAX_SOURCES_TOTAL")

	setFloat(&s.QualityThresholdDefault, "QUALITY_THRESHOLD")
	setInt(&s.HTTPMaxConnections, "HTTP_MAX_CONNECTIONS")

	setString(&s.ListenAddr, "LISTEN_ADDR")
	setString(&s.LogLevel, "LOG_LEVEL")
	setString(&s.LogFormat, "LOG_FORMAT")
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", envPrefix+key).Str("value", v).Msg("Ignoring non-integer environment value")
		return
	}
	*dst = n
}

func setFloat(dst *float64, key string) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Warn().Str("key", envPrefix+key).Str("value", v).Msg("Ignoring non-numeric environment value")
		return
	}
	*dst = f
}

func setDuration(dst *time.Duration, key string) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	// Accept bare seconds for convenience
	if n, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(n) * time.Second
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn().Str("key", envPrefix+key).Str("value", v).Msg("Ignoring unparseable duration value")
		return
	}
	*dst = d
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
camunda:
  broker_address: localhost:26500
database:
  postgres:
    host: localhost
    database: movienight
    user: movienight
  elasticsearch:
    addresses: ["http://localhost:9200"]
  redis:
    address: localhost:6379
workers:
  recommend-movies:
    enabled: true
apis:
  tmdb:
    api_key: ${TEST_TMDB_KEY}
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	t.Setenv("TEST_TMDB_KEY", "secret")

	cfg, err := LoadFromFile(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.APIs.TMDB.APIKey)
	assert.Equal(t, "https://api.themoviedb.org/3", cfg.APIs.TMDB.BaseURL)
	assert.Equal(t, "US", cfg.APIs.TMDB.Region)
	assert.Equal(t, "http://localhost:9200", cfg.Database.Elasticsearch.GetURL())
	assert.Equal(t, "content_advisories", cfg.Database.Elasticsearch.AdvisoryIndex)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)

	w := cfg.Workers["recommend-movies"]
	assert.True(t, w.Enabled)
	assert.Equal(t, 5, w.MaxJobsActive)
	assert.Equal(t, 30000, w.Timeout)
	assert.Equal(t, 3, w.MaxRetries)

	r := cfg.Recommendation
	assert.Equal(t, 5, r.ResultSize)
	assert.Equal(t, 30, r.GatePoolSize)
	assert.Equal(t, 15, r.EmergencyThreshold)
	assert.Equal(t, 5, r.EmergencyPages)
	assert.Equal(t, 8, r.MaxConcurrentFetches)
	assert.Equal(t, 4*time.Second, GetDuration(r.FetchTimeout))
	assert.Equal(t, 30, r.HistoryWindowDays)
	assert.Equal(t, 90, r.HistoryRetentionDays)
	assert.InDelta(t, 0.05, r.PurgeProbability, 1e-9)
	assert.Equal(t, 200, r.PowerUserSeenThreshold)
	assert.Equal(t, 2, r.PressureThreshold)
	assert.Equal(t, 30*24*3600, r.CreditsCacheTTL)
}

func TestLoadFromFile_KeyFromEnvFallback(t *testing.T) {
	t.Setenv("TMDB_API_KEY", "from-env")

	body := strings.Replace(minimalYAML, "    api_key: ${TEST_TMDB_KEY}\n", "    region: GB\n", 1)
	cfg, err := LoadFromFile(writeConfig(t, body))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.APIs.TMDB.APIKey)
	assert.Equal(t, "GB", cfg.APIs.TMDB.Region)
}

func TestLoadFromFile_Invalid(t *testing.T) {
	t.Setenv("TEST_TMDB_KEY", "secret")

	tests := []struct {
		name    string
		extra   string
		wantErr string
	}{
		{
			name:    "purge probability out of range",
			extra:   "recommendation:\n  purge_probability: 1.5\n",
			wantErr: "purge_probability",
		},
		{
			name:    "emergency threshold above gate pool",
			extra:   "recommendation:\n  gate_pool_size: 10\n  emergency_threshold: 20\n",
			wantErr: "emergency_threshold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, minimalYAML+tt.extra))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFile_MissingBroker(t *testing.T) {
	t.Setenv("TEST_TMDB_KEY", "secret")

	_, err := LoadFromFile(writeConfig(t, "database:\n  postgres:\n    host: x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "camunda.broker_address")
}

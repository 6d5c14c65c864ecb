package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadConfig_Defaults(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "http://origin:8081")

	cfg, err := readConfig(newEnv())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.listenAddr)
	assert.Equal(t, ":9090", cfg.metricsAddr)
	assert.Equal(t, "CF-Connecting-IP", cfg.clientIPHeader)
	assert.Equal(t, "CF-IPCountry", cfg.countryHeader)
	assert.Equal(t, 0.01, cfg.sweepProbability)
	assert.Equal(t, 2*time.Minute, cfg.janitorInterval)
	assert.Equal(t, 100, cfg.maxInFlight)
	assert.Equal(t, 200.0, cfg.logRate)
	assert.Equal(t, "edge:stats", cfg.rateStatsPrefix)
	assert.False(t, cfg.trustXFF)
}

func TestReadConfig_FromEnv(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "http://origin:8081")
	t.Setenv("TRUST_XFF", "true")
	t.Setenv("JANITOR_INTERVAL", "30s")
	t.Setenv("SWEEP_PROBABILITY", "-1")
	t.Setenv("RULES_FILE", " rules.yaml ")

	cfg, err := readConfig(newEnv())
	require.NoError(t, err)

	assert.True(t, cfg.trustXFF)
	assert.Equal(t, 30*time.Second, cfg.janitorInterval)
	assert.Equal(t, -1.0, cfg.sweepProbability)
	assert.Equal(t, "rules.yaml", cfg.rulesFile)
}

func TestReadConfig_Rejects(t *testing.T) {
	cases := map[string]map[string]string{
		"stats without redis": {
			"UPSTREAM_URL":       "http://origin",
			"RATE_STATS_ENABLED": "true",
		},
		"negative in flight": {
			"UPSTREAM_URL":  "http://origin",
			"MAX_IN_FLIGHT": "-1",
		},
		"sweep above one": {
			"UPSTREAM_URL":      "http://origin",
			"SWEEP_PROBABILITY": "1.5",
		},
		"missing upstream": {},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("UPSTREAM_URL", "")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := readConfig(newEnv())
			require.Error(t, err)
		})
	}
}

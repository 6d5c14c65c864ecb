package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"edge-gateway/middleware/edgefilter/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const strictRules = `
geo_mode: allowlist
allowed_countries: [us, CA, gb]
blocked_asns: [13220, 45090, 4134]
scraper_signatures: [GPTBot, PerplexityBot]
throttled_countries: [br]
strip_cookies: [tracking_id, _ga]
throttle_limit: 15
throttle_window: 60s
asset_suffixes: [".js", ".mjs"]
asset_limit: 30
asset_window: 1m
`

func writeRules(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadRules_DefaultsWithoutFile(t *testing.T) {
	w, err := LoadRules("")
	require.NoError(t, err)

	rs := w.Rules()
	require.NotNil(t, rs)
	assert.Equal(t, domain.GeoBlocklist, rs.GeoMode())
	assert.True(t, rs.CountryBlocked("CN"))
	assert.Equal(t, 100, rs.AssetLimit())
	assert.Equal(t, time.Minute, rs.AssetWindow())
}

func TestLoadRules_FromYAML(t *testing.T) {
	path := writeRules(t, t.TempDir(), strictRules)

	w, err := LoadRules(path)
	require.NoError(t, err)

	rs := w.Rules()
	assert.Equal(t, domain.GeoAllowlist, rs.GeoMode())
	assert.True(t, rs.CountryAllowed("US"))
	assert.True(t, rs.ASNBlocked(4134))
	assert.True(t, rs.CountryThrottled("BR"))
	assert.True(t, rs.StripsCookie("_ga"))
	assert.Equal(t, []string{".js", ".mjs"}, rs.AssetSuffixes())
	assert.Equal(t, 30, rs.AssetLimit())
	assert.Equal(t, time.Minute, rs.ThrottleWindow())
	assert.Equal(t, []string{"gptbot", "perplexitybot"}, rs.ScraperSignatures())
}

func TestLoadRules_InvalidFileFails(t *testing.T) {
	path := writeRules(t, t.TempDir(), "throttle_limit: 0\n")

	_, err := LoadRules(path)
	require.ErrorIs(t, err, domain.ErrInvalidRules)
}

func TestLoadRules_RejectsUnitlessWindows(t *testing.T) {
	cases := map[string]string{
		"integer":        "throttle_window: 60000\n",
		"float":          "asset_window: 1.5\n",
		"string no unit": "asset_window: \"60000\"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeRules(t, t.TempDir(), body)
			_, err := LoadRules(path)
			require.ErrorIs(t, err, domain.ErrInvalidRules)
		})
	}
}

func TestRuleWatcher_ReloadKeepsPreviousOnError(t *testing.T) {
	dir := t.TempDir()
	path := writeRules(t, dir, strictRules)

	var reloads int
	w, err := LoadRules(path, WithOnReload(func(*domain.RuleSet) { reloads++ }))
	require.NoError(t, err)
	before := w.Rules()

	writeRules(t, dir, "geo_mode: graylist\n")
	require.Error(t, w.Reload())
	assert.Same(t, before, w.Rules())

	writeRules(t, dir, "blocked_countries: [RU]\n")
	require.NoError(t, w.Reload())
	assert.NotSame(t, before, w.Rules())
	assert.True(t, w.Rules().CountryBlocked("RU"))
	assert.Equal(t, 2, reloads)
}

func TestMarshalRules_RoundTrip(t *testing.T) {
	cfg := domain.DefaultRuleConfig()
	cfg.StripCookies = []string{"tracking_id"}

	out, err := MarshalRules(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(out), "throttle_window: 1m0s")

	path := writeRules(t, t.TempDir(), string(out))
	w, err := LoadRules(path)
	require.NoError(t, err)
	assert.True(t, w.Rules().StripsCookie("tracking_id"))
	assert.Equal(t, time.Minute, w.Rules().AssetWindow())
}

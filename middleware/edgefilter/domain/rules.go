package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidRules é retornado (embrulhado) por NewRuleSet.
var ErrInvalidRules = errors.New("invalid rules")

// GeoMode escolhe entre lista de bloqueio e lista de permissão de países.
type GeoMode string

const (
	GeoBlocklist GeoMode = "blocklist"
	GeoAllowlist GeoMode = "allowlist"
)

// RuleConfig é a forma "crua" das regras, como vem de arquivo/env.
// Use NewRuleSet para validar e normalizar.
type RuleConfig struct {
	GeoMode            GeoMode  `mapstructure:"geo_mode" yaml:"geo_mode"`
	BlockedCountries   []string `mapstructure:"blocked_countries" yaml:"blocked_countries"`
	AllowedCountries   []string `mapstructure:"allowed_countries" yaml:"allowed_countries"`
	BlockedASNs        []uint32 `mapstructure:"blocked_asns" yaml:"blocked_asns"`
	ScraperSignatures  []string `mapstructure:"scraper_signatures" yaml:"scraper_signatures"`
	ThrottledCountries []string `mapstructure:"throttled_countries" yaml:"throttled_countries"`
	StripCookies       []string `mapstructure:"strip_cookies" yaml:"strip_cookies"`

	ThrottleLimit  int           `mapstructure:"throttle_limit" yaml:"throttle_limit"`
	ThrottleWindow time.Duration `mapstructure:"throttle_window" yaml:"throttle_window"`

	AssetSuffixes []string      `mapstructure:"asset_suffixes" yaml:"asset_suffixes"`
	AssetLimit    int           `mapstructure:"asset_limit" yaml:"asset_limit"`
	AssetWindow   time.Duration `mapstructure:"asset_window" yaml:"asset_window"`
}

// DefaultRuleConfig devolve as regras padrão do gateway.
func DefaultRuleConfig() RuleConfig {
	return RuleConfig{
		GeoMode:          GeoBlocklist,
		BlockedCountries: []string{"CN"},
		BlockedASNs:      []uint32{13220, 132203}, // Tencent
		ScraperSignatures: []string{
			"CCBot",
			"GPTBot",
			"ChatGPT-User",
			"anthropic-ai",
			"ClaudeBot",
			"Google-Extended",
			"FacebookBot",
			"Bytespider",
			"Amazonbot",
			"Omgilibot",
			"PetalBot",
			"Sogou",
			"Baiduspider",
			"YandexBot",
		},
		ThrottleLimit:  15,
		ThrottleWindow: time.Minute,
		AssetSuffixes:  []string{".js"},
		AssetLimit:     100,
		AssetWindow:    time.Minute,
	}
}

// RuleSet é um snapshot imutável e normalizado das regras.
//
// Países em maiúsculas, assinaturas de bot em minúsculas. Nenhum método altera
// o estado depois de NewRuleSet.
type RuleSet struct {
	geoMode            GeoMode
	blockedCountries   map[string]struct{}
	allowedCountries   map[string]struct{}
	blockedASNs        map[uint32]struct{}
	scraperSignatures  []string
	throttledCountries map[string]struct{}
	stripCookies       map[string]struct{}

	throttleLimit  int
	throttleWindow time.Duration

	assetSuffixes []string
	assetLimit    int
	assetWindow   time.Duration
}

// NewRuleSet valida e normaliza a configuração.
func NewRuleSet(cfg RuleConfig) (*RuleSet, error) {
	mode := GeoMode(strings.ToLower(strings.TrimSpace(string(cfg.GeoMode))))
	if mode == "" {
		mode = GeoBlocklist
	}
	if mode != GeoBlocklist && mode != GeoAllowlist {
		return nil, fmt.Errorf("%w: unknown geo_mode %q", ErrInvalidRules, cfg.GeoMode)
	}
	if cfg.ThrottleLimit <= 0 {
		return nil, fmt.Errorf("%w: throttle_limit must be > 0", ErrInvalidRules)
	}
	if cfg.ThrottleWindow <= 0 {
		return nil, fmt.Errorf("%w: throttle_window must be > 0", ErrInvalidRules)
	}
	if cfg.AssetLimit <= 0 {
		return nil, fmt.Errorf("%w: asset_limit must be > 0", ErrInvalidRules)
	}
	if cfg.AssetWindow <= 0 {
		return nil, fmt.Errorf("%w: asset_window must be > 0", ErrInvalidRules)
	}
	if mode == GeoAllowlist && len(cfg.AllowedCountries) == 0 {
		return nil, fmt.Errorf("%w: allowlist mode needs allowed_countries", ErrInvalidRules)
	}

	rs := &RuleSet{
		geoMode:            mode,
		blockedCountries:   countrySet(cfg.BlockedCountries),
		allowedCountries:   countrySet(cfg.AllowedCountries),
		blockedASNs:        make(map[uint32]struct{}, len(cfg.BlockedASNs)),
		scraperSignatures:  lowerList(cfg.ScraperSignatures),
		throttledCountries: countrySet(cfg.ThrottledCountries),
		stripCookies:       make(map[string]struct{}, len(cfg.StripCookies)),
		throttleLimit:      cfg.ThrottleLimit,
		throttleWindow:     cfg.ThrottleWindow,
		assetSuffixes:      trimList(cfg.AssetSuffixes),
		assetLimit:         cfg.AssetLimit,
		assetWindow:        cfg.AssetWindow,
	}
	for _, asn := range cfg.BlockedASNs {
		rs.blockedASNs[asn] = struct{}{}
	}
	// nomes de cookie são case-sensitive
	for _, name := range cfg.StripCookies {
		if name = strings.TrimSpace(name); name != "" {
			rs.stripCookies[name] = struct{}{}
		}
	}
	return rs, nil
}

// MustRuleSet é NewRuleSet para valores conhecidos (testes, defaults).
func MustRuleSet(cfg RuleConfig) *RuleSet {
	rs, err := NewRuleSet(cfg)
	if err != nil {
		panic(err)
	}
	return rs
}

func (r *RuleSet) GeoMode() GeoMode { return r.geoMode }

func (r *RuleSet) CountryBlocked(country string) bool {
	_, ok := r.blockedCountries[country]
	return ok
}

func (r *RuleSet) CountryAllowed(country string) bool {
	_, ok := r.allowedCountries[country]
	return ok
}

func (r *RuleSet) ASNBlocked(asn uint32) bool {
	_, ok := r.blockedASNs[asn]
	return ok
}

func (r *RuleSet) CountryThrottled(country string) bool {
	_, ok := r.throttledCountries[country]
	return ok
}

func (r *RuleSet) StripsCookie(name string) bool {
	_, ok := r.stripCookies[name]
	return ok
}

func (r *RuleSet) HasStripCookies() bool { return len(r.stripCookies) > 0 }

// ScraperSignatures devolve as assinaturas já em minúsculas.
// O slice retornado não deve ser alterado.
func (r *RuleSet) ScraperSignatures() []string { return r.scraperSignatures }

// AssetSuffixes devolve os sufixos de path sujeitos ao limite de assets.
// O slice retornado não deve ser alterado.
func (r *RuleSet) AssetSuffixes() []string { return r.assetSuffixes }

func (r *RuleSet) ThrottleLimit() int { return r.throttleLimit }
func (r *RuleSet) ThrottleWindow() time.Duration { return r.throttleWindow }
func (r *RuleSet) AssetLimit() int { return r.assetLimit }
func (r *RuleSet) AssetWindow() time.Duration { return r.assetWindow }

// LongestWindow é a maior janela configurada; base do critério de expiração.
func (r *RuleSet) LongestWindow() time.Duration {
	if r.assetWindow > r.throttleWindow {
		return r.assetWindow
	}
	return r.throttleWindow
}

// RuleProvider fornece o snapshot corrente. Cada request lê uma vez.
type RuleProvider interface {
	Rules() *RuleSet
}

// StaticRules é um RuleProvider que nunca muda.
type StaticRules struct{ Set *RuleSet }

func (s StaticRules) Rules() *RuleSet { return s.Set }

func countrySet(in []string) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for _, c := range in {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			out[c] = struct{}{}
		}
	}
	return out
}

func lowerList(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func trimList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

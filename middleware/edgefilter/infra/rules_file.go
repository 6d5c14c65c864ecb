package infra

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"edge-gateway/middleware/edgefilter/domain"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// RuleWatcher carrega as regras de um arquivo (YAML/JSON/TOML via viper) e
// mantém o snapshot corrente num atomic.Pointer. Implementa domain.RuleProvider.
//
// Sem arquivo, as regras padrão são usadas e Watch não faz nada.
type RuleWatcher struct {
	mu   sync.Mutex // viper não é seguro para uso concorrente
	v    *viper.Viper
	path string
	cur  atomic.Pointer[domain.RuleSet]
	log  *zap.Logger

	onReload func(*domain.RuleSet)
}

type RuleWatcherOption func(*RuleWatcher)

func WithRuleLogger(log *zap.Logger) RuleWatcherOption {
	return func(w *RuleWatcher) { w.log = log }
}

// WithOnReload registra um callback chamado após cada troca bem-sucedida.
func WithOnReload(fn func(*domain.RuleSet)) RuleWatcherOption {
	return func(w *RuleWatcher) { w.onReload = fn }
}

// LoadRules lê o arquivo (se path != "") e valida as regras.
func LoadRules(path string, opts ...RuleWatcherOption) (*RuleWatcher, error) {
	w := &RuleWatcher{
		v:    viper.New(),
		path: path,
		log:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	setRuleDefaults(w.v)

	if path != "" {
		w.v.SetConfigFile(path)
	}
	if err := w.Reload(); err != nil {
		return nil, err
	}
	return w, nil
}

// Rules implementa domain.RuleProvider.
func (w *RuleWatcher) Rules() *domain.RuleSet { return w.cur.Load() }

// Reload relê o arquivo e troca o snapshot. Em caso de erro o snapshot
// anterior é mantido.
func (w *RuleWatcher) Reload() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.path != "" {
		if err := w.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read rules file %s: %w", w.path, err)
		}
	}

	for _, key := range []string{"throttle_window", "asset_window"} {
		if err := checkDuration(key, w.v.Get(key)); err != nil {
			return err
		}
	}

	var cfg domain.RuleConfig
	if err := w.v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("decode rules: %w", err)
	}
	rs, err := domain.NewRuleSet(cfg)
	if err != nil {
		return err
	}

	w.cur.Store(rs)
	if w.onReload != nil {
		w.onReload(rs)
	}
	return nil
}

// Watch ativa a recarga a quente via fsnotify.
func (w *RuleWatcher) Watch() {
	if w.path == "" {
		return
	}
	w.v.OnConfigChange(func(e fsnotify.Event) {
		if err := w.Reload(); err != nil {
			w.log.Error("rules reload failed, keeping previous rules",
				zap.String("file", e.Name),
				zap.String("op", e.Op.String()),
				zap.Error(err),
			)
			return
		}
		w.log.Info("rules reloaded", zap.String("file", e.Name))
	})
	w.v.WatchConfig()
}

// checkDuration exige duração com unidade ("60s", "1m"): um inteiro puro
// viraria nanossegundos sem erro.
func checkDuration(key string, raw any) error {
	switch v := raw.(type) {
	case nil, time.Duration:
		return nil
	case string:
		if _, err := time.ParseDuration(strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrInvalidRules, key, err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s must be a duration with a unit such as \"60s\", got %v", domain.ErrInvalidRules, key, raw)
	}
}

func setRuleDefaults(v *viper.Viper) {
	def := domain.DefaultRuleConfig()
	v.SetDefault("geo_mode", string(def.GeoMode))
	v.SetDefault("blocked_countries", def.BlockedCountries)
	v.SetDefault("allowed_countries", []string{})
	v.SetDefault("blocked_asns", def.BlockedASNs)
	v.SetDefault("scraper_signatures", def.ScraperSignatures)
	v.SetDefault("throttled_countries", []string{})
	v.SetDefault("strip_cookies", []string{})
	v.SetDefault("throttle_limit", def.ThrottleLimit)
	v.SetDefault("throttle_window", def.ThrottleWindow)
	v.SetDefault("asset_suffixes", def.AssetSuffixes)
	v.SetDefault("asset_limit", def.AssetLimit)
	v.SetDefault("asset_window", def.AssetWindow)
}

// ruleFile é o formato de arquivo: durações como texto ("60s", "1m").
type ruleFile struct {
	GeoMode            string   `yaml:"geo_mode"`
	BlockedCountries   []string `yaml:"blocked_countries"`
	AllowedCountries   []string `yaml:"allowed_countries,omitempty"`
	BlockedASNs        []uint32 `yaml:"blocked_asns"`
	ScraperSignatures  []string `yaml:"scraper_signatures"`
	ThrottledCountries []string `yaml:"throttled_countries"`
	StripCookies       []string `yaml:"strip_cookies"`
	ThrottleLimit      int      `yaml:"throttle_limit"`
	ThrottleWindow     string   `yaml:"throttle_window"`
	AssetSuffixes      []string `yaml:"asset_suffixes"`
	AssetLimit         int      `yaml:"asset_limit"`
	AssetWindow        string   `yaml:"asset_window"`
}

// MarshalRules serializa a configuração no formato aceito por LoadRules.
func MarshalRules(cfg domain.RuleConfig) ([]byte, error) {
	return yaml.Marshal(ruleFile{
		GeoMode:            string(cfg.GeoMode),
		BlockedCountries:   nonNil(cfg.BlockedCountries),
		AllowedCountries:   cfg.AllowedCountries,
		BlockedASNs:        cfg.BlockedASNs,
		ScraperSignatures:  nonNil(cfg.ScraperSignatures),
		ThrottledCountries: nonNil(cfg.ThrottledCountries),
		StripCookies:       nonNil(cfg.StripCookies),
		ThrottleLimit:      cfg.ThrottleLimit,
		ThrottleWindow:     durationText(cfg.ThrottleWindow),
		AssetSuffixes:      nonNil(cfg.AssetSuffixes),
		AssetLimit:         cfg.AssetLimit,
		AssetWindow:        durationText(cfg.AssetWindow),
	})
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func durationText(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	return d.String()
}

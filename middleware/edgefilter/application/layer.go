package application

import (
	"net/http"
	"strings"

	"edge-gateway/middleware/edgefilter/domain"
)

// Layer é uma etapa do pipeline: encerra com uma decisão ou segue adiante,
// possivelmente com um descritor novo.
type Layer interface {
	Name() string
	Apply(d domain.RequestDescriptor, rules *domain.RuleSet, store domain.CounterStore) domain.LayerResult
}

// DefaultLayers devolve as camadas na ordem em que precisam rodar.
func DefaultLayers() []Layer {
	return []Layer{
		GeoASNLayer{},
		ScraperLayer{},
		SuspiciousCountryLayer{},
		AssetRateLayer{},
		CookieSanitizer{},
	}
}

// GeoASNLayer bloqueia por país (lista de bloqueio ou de permissão) e por ASN.
type GeoASNLayer struct{}

func (GeoASNLayer) Name() string { return "geo_asn" }

func (GeoASNLayer) Apply(d domain.RequestDescriptor, rules *domain.RuleSet, _ domain.CounterStore) domain.LayerResult {
	// a lista de bloqueio vale nos dois modos; no modo allowlist o país
	// também precisa estar liberado (ausente fica de fora)
	countryDenied := d.Country != "" && rules.CountryBlocked(d.Country)
	if rules.GeoMode() == domain.GeoAllowlist && !rules.CountryAllowed(d.Country) {
		countryDenied = true
	}
	if countryDenied {
		return domain.Terminate(domain.Deny(http.StatusForbidden, domain.ReasonBlockedCountry, domain.CategoryGeographic, nil))
	}

	if d.HasASN && rules.ASNBlocked(d.ASN) {
		return domain.Terminate(domain.Deny(http.StatusForbidden, domain.ReasonBlockedASN, domain.CategoryNetwork, nil))
	}
	return domain.Continue(d)
}

// ScraperLayer bloqueia user-agents que contenham alguma assinatura de bot.
//
// Busca linear por substring (não por token): O(assinaturas × tamanho do header).
type ScraperLayer struct{}

func (ScraperLayer) Name() string { return "ai_scraper" }

func (ScraperLayer) Apply(d domain.RequestDescriptor, rules *domain.RuleSet, _ domain.CounterStore) domain.LayerResult {
	if MatchScraper(d.UserAgent, rules.ScraperSignatures()) == "" {
		return domain.Continue(d)
	}
	return domain.Terminate(domain.Deny(http.StatusForbidden, domain.ReasonAIScraper, domain.CategoryBot, nil))
}

// MatchScraper devolve a primeira assinatura (minúscula) contida no user-agent, ou "".
func MatchScraper(userAgent string, signatures []string) string {
	if userAgent == "" {
		return ""
	}
	ua := strings.ToLower(userAgent)
	for _, sig := range signatures {
		if strings.Contains(ua, sig) {
			return sig
		}
	}
	return ""
}

// SuspiciousCountryLayer aplica limite por IP só para países em observação.
type SuspiciousCountryLayer struct{}

func (SuspiciousCountryLayer) Name() string { return "suspicious_country" }

func (SuspiciousCountryLayer) Apply(d domain.RequestDescriptor, rules *domain.RuleSet, store domain.CounterStore) domain.LayerResult {
	if d.Country == "" || !rules.CountryThrottled(d.Country) {
		return domain.Continue(d)
	}
	if store.CheckAndIncrement(ThrottleKey(d.ClientKey()), rules.ThrottleLimit(), rules.ThrottleWindow()) {
		return domain.Terminate(domain.DenyRetry(http.StatusTooManyRequests, domain.ReasonSuspiciousCountry, rules.ThrottleWindow()))
	}
	return domain.Continue(d)
}

// AssetRateLayer aplica limite por IP em paths de assets (ex.: *.js).
type AssetRateLayer struct{}

func (AssetRateLayer) Name() string { return "js_rate_limit" }

func (AssetRateLayer) Apply(d domain.RequestDescriptor, rules *domain.RuleSet, store domain.CounterStore) domain.LayerResult {
	if !hasAnySuffix(d.Path, rules.AssetSuffixes()) {
		return domain.Continue(d)
	}
	if store.CheckAndIncrement(AssetKey(d.ClientKey()), rules.AssetLimit(), rules.AssetWindow()) {
		return domain.Terminate(domain.DenyRetry(http.StatusTooManyRequests, domain.ReasonJSRateLimit, rules.AssetWindow()))
	}
	return domain.Continue(d)
}

func ThrottleKey(ip string) string { return "throttle:" + ip }
func AssetKey(ip string) string { return "js:" + ip }

func hasAnySuffix(path string, suffixes []string) bool {
	for _, s := range suffixes {
		if strings.HasSuffix(path, s) {
			return true
		}
	}
	return false
}

package edgefilter

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"edge-gateway/middleware/edgefilter/application"
	"edge-gateway/middleware/edgefilter/domain"
	"edge-gateway/middleware/edgefilter/infra"
)

type origin struct {
	calls  int
	cookie []string
}

func (o *origin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	o.calls++
	o.cookie = r.Header.Values("Cookie")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ok")
}

func newFilter(t *testing.T, mutate func(*domain.RuleConfig)) (http.Handler, *origin, *infra.MemoryStatsStore) {
	t.Helper()
	cfg := domain.DefaultRuleConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	rules, err := domain.NewRuleSet(cfg)
	if err != nil {
		t.Fatalf("rules: %v", err)
	}

	stats := infra.NewMemoryStatsStore()
	p := application.NewPipeline(domain.StaticRules{Set: rules}, infra.NewWindowStore(), stats)
	p.SweepProbability = -1

	next := &origin{}
	return Middleware(Options{Pipeline: p})(next), next, stats
}

func request(path, ip string, headers map[string]string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "http://example"+path, nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("CF-Connecting-IP", ip)
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	return r
}

func TestMiddleware_BlocksCountry(t *testing.T) {
	h, next, stats := newFilter(t, nil)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, request("/", "198.51.100.1", map[string]string{"CF-IPCountry": "CN"}))

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if got := w.Header().Get("X-Blocked-Reason"); got != "geographic" {
		t.Fatalf("expected geographic, got %q", got)
	}
	if got := w.Body.String(); got != "Access denied" {
		t.Fatalf("unexpected body %q", got)
	}
	if next.calls != 0 {
		t.Fatalf("origin must not be called")
	}
	if stats.Total().Blocked != 1 {
		t.Fatalf("expected one blocked event, got %+v", stats.Total())
	}
}

func TestMiddleware_BlocksASN(t *testing.T) {
	h, _, _ := newFilter(t, nil)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, request("/", "198.51.100.2", map[string]string{"CF-IPCountry": "US", "X-Client-ASN": "132203"}))

	if w.Code != http.StatusForbidden || w.Header().Get("X-Blocked-Reason") != "network" {
		t.Fatalf("expected 403 network, got %d %q", w.Code, w.Header().Get("X-Blocked-Reason"))
	}
}

func TestMiddleware_BlocksScraper(t *testing.T) {
	h, next, _ := newFilter(t, nil)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, request("/", "198.51.100.3", map[string]string{
		"CF-IPCountry": "US",
		"User-Agent":   "Mozilla/5.0 AppleWebKit/537.36 (KHTML, like Gecko; compatible; GPTBot/1.0)",
	}))

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if got := w.Header().Get("X-Blocked-Reason"); got != "bot" {
		t.Fatalf("expected bot, got %q", got)
	}
	if next.calls != 0 {
		t.Fatalf("origin must not be called")
	}
}

func TestMiddleware_ThrottlesSuspiciousCountry(t *testing.T) {
	h, next, _ := newFilter(t, func(c *domain.RuleConfig) { c.ThrottledCountries = []string{"BR"} })

	for i := 0; i < 15; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, request("/", "203.0.113.9", map[string]string{"CF-IPCountry": "BR"}))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, w.Code)
		}
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, request("/", "203.0.113.9", map[string]string{"CF-IPCountry": "BR"}))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "60" {
		t.Fatalf("expected Retry-After=60, got %q", got)
	}
	if got := w.Header().Get("X-Blocked-Reason"); got != "rate_limit" {
		t.Fatalf("expected rate_limit, got %q", got)
	}
	if got := w.Body.String(); got != "Rate limit exceeded" {
		t.Fatalf("unexpected body %q", got)
	}
	if next.calls != 15 {
		t.Fatalf("expected origin to see 15 requests, got %d", next.calls)
	}

	// outro IP do mesmo país tem contador próprio
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, request("/", "203.0.113.10", map[string]string{"CF-IPCountry": "BR"}))
	if w2.Code != http.StatusOK {
		t.Fatalf("expected 200 for other ip, got %d", w2.Code)
	}
}

func TestMiddleware_LimitsScriptAssets(t *testing.T) {
	h, _, _ := newFilter(t, nil)

	for i := 0; i < 100; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, request("/static/app.js", "192.0.2.1", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, w.Code)
		}
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, request("/static/app.js", "192.0.2.1", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}

	// html não entra na contagem de assets
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, request("/index.html", "192.0.2.1", nil))
	if w2.Code != http.StatusOK {
		t.Fatalf("expected 200 for html, got %d", w2.Code)
	}
}

func TestMiddleware_StripsConfiguredCookies(t *testing.T) {
	h, next, _ := newFilter(t, func(c *domain.RuleConfig) { c.StripCookies = []string{"tracking_id"} })

	w := httptest.NewRecorder()
	h.ServeHTTP(w, request("/", "192.0.2.2", map[string]string{"Cookie": "tracking_id=abc; session=xyz"}))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(next.cookie) != 1 || next.cookie[0] != "session=xyz" {
		t.Fatalf("expected session=xyz at origin, got %v", next.cookie)
	}
}

func TestMiddleware_RemovesEmptiedCookieHeader(t *testing.T) {
	h, next, _ := newFilter(t, func(c *domain.RuleConfig) { c.StripCookies = []string{"tracking_id"} })

	w := httptest.NewRecorder()
	h.ServeHTTP(w, request("/", "192.0.2.3", map[string]string{"Cookie": "tracking_id=abc"}))

	if len(next.cookie) != 0 {
		t.Fatalf("expected no Cookie header at origin, got %v", next.cookie)
	}
}

func TestMiddleware_PassesUntouchedCookieAsIs(t *testing.T) {
	h, next, _ := newFilter(t, func(c *domain.RuleConfig) { c.StripCookies = []string{"tracking_id"} })

	raw := "a=1;b=2;  odd"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, request("/", "192.0.2.4", map[string]string{"Cookie": raw}))

	if len(next.cookie) != 1 || next.cookie[0] != raw {
		t.Fatalf("expected byte-identical cookie, got %v", next.cookie)
	}
}

func TestMiddleware_NilPipelineAllows(t *testing.T) {
	next := &origin{}
	h := Middleware(Options{})(next)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, request("/", "192.0.2.5", map[string]string{"CF-IPCountry": "CN"}))
	if w.Code != http.StatusOK || next.calls != 1 {
		t.Fatalf("expected passthrough without rules, got %d", w.Code)
	}
}

func TestWriteDenial_DefaultsTo403(t *testing.T) {
	w := httptest.NewRecorder()
	WriteDenial(w, domain.Decision{})

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("unexpected content type %q", ct)
	}
}

type brokenSink struct{}

func (brokenSink) Record(context.Context, domain.DecisionEvent) error {
	return errors.New("redis down")
}

func TestMiddleware_SinkFailureDoesNotAffectResponse(t *testing.T) {
	p := application.NewPipeline(
		domain.StaticRules{Set: domain.MustRuleSet(domain.DefaultRuleConfig())},
		infra.NewWindowStore(),
		infra.Fanout{brokenSink{}},
	)
	p.SweepProbability = -1
	next := &origin{}
	h := Middleware(Options{Pipeline: p})(next)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, request("/", "198.51.100.20", map[string]string{"CF-IPCountry": "CN"}))
	if w.Code != http.StatusForbidden || w.Header().Get("X-Blocked-Reason") != "geographic" {
		t.Fatalf("expected 403 geographic, got %d %q", w.Code, w.Header().Get("X-Blocked-Reason"))
	}

	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, request("/", "198.51.100.20", map[string]string{"CF-IPCountry": "US"}))
	if w2.Code != http.StatusOK || next.calls != 1 {
		t.Fatalf("expected allowed request to reach origin, got %d calls=%d", w2.Code, next.calls)
	}
}

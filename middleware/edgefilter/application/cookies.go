package application

import (
	"strings"

	"edge-gateway/middleware/edgefilter/domain"
)

const cookieSep = "; "

// CookieSanitizer remove cookies da lista de strip antes de encaminhar.
// Nunca encerra o pipeline.
type CookieSanitizer struct{}

func (CookieSanitizer) Name() string { return "cookie_sanitizer" }

func (CookieSanitizer) Apply(d domain.RequestDescriptor, rules *domain.RuleSet, _ domain.CounterStore) domain.LayerResult {
	if !d.HasCookie || !rules.HasStripCookies() {
		return domain.Continue(d)
	}
	out, changed := StripCookies(d.Cookie, rules.StripsCookie)
	if !changed {
		return domain.Continue(d)
	}
	if out == "" {
		return domain.Continue(d.WithoutCookie())
	}
	return domain.Continue(d.WithCookie(out))
}

// StripCookies separa o header em pares "nome=valor" por "; ", descarta os
// pares cujo nome satisfaz strip e junta o resto com "; ".
//
// Se nada foi removido o header original é devolvido intacto e changed=false.
func StripCookies(header string, strip func(name string) bool) (out string, changed bool) {
	pairs := strings.Split(header, cookieSep)
	kept := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if strip(cookieName(p)) {
			changed = true
			continue
		}
		kept = append(kept, p)
	}
	if !changed {
		return header, false
	}
	return strings.Join(kept, cookieSep), true
}

func cookieName(pair string) string {
	name, _, _ := strings.Cut(pair, "=")
	return strings.TrimSpace(name)
}

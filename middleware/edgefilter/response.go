package edgefilter

import (
	"net/http"

	"edge-gateway/middleware/edgefilter/domain"
)

// DenialBody é o corpo texto puro da resposta de negação.
func DenialBody(status int) string {
	if status == http.StatusTooManyRequests {
		return "Rate limit exceeded"
	}
	return "Access denied"
}

// WriteDenial escreve a resposta de uma decisão Deny.
func WriteDenial(w http.ResponseWriter, dec domain.Decision) {
	h := w.Header()
	for k, v := range dec.Headers {
		h.Set(k, v)
	}
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("X-Content-Type-Options", "nosniff")
	if dec.Category != "" {
		h.Set(domain.HeaderBlockedReason, string(dec.Category))
	}
	status := dec.Status
	if status == 0 {
		status = http.StatusForbidden
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(DenialBody(status)))
}

// ForwardRequest devolve a requisição a ser encaminhada: a original se o
// Cookie não mudou, senão um clone com o Cookie reescrito ou removido.
func ForwardRequest(r *http.Request, orig, fwd domain.RequestDescriptor) *http.Request {
	if orig.HasCookie == fwd.HasCookie && orig.Cookie == fwd.Cookie {
		return r
	}
	r2 := r.Clone(r.Context())
	if fwd.HasCookie {
		r2.Header.Set("Cookie", fwd.Cookie)
	} else {
		r2.Header.Del("Cookie")
	}
	return r2
}

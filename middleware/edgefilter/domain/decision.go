package domain

import (
	"net/textproto"
	"strconv"
	"time"
)

// Reason identifica qual camada encerrou a requisição.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonBlockedCountry    Reason = "blocked_country"
	ReasonBlockedASN        Reason = "blocked_asn"
	ReasonAIScraper         Reason = "ai_scraper"
	ReasonSuspiciousCountry Reason = "suspicious_country"
	ReasonJSRateLimit       Reason = "js_rate_limit"
)

// Category é o valor enviado no header X-Blocked-Reason.
type Category string

const (
	CategoryGeographic Category = "geographic"
	CategoryNetwork    Category = "network"
	CategoryBot        Category = "bot"
	CategoryRateLimit  Category = "rate_limit"
)

const (
	HeaderBlockedReason = "X-Blocked-Reason"
	HeaderRetryAfter    = "Retry-After"
)

// Decision é o resultado terminal do pipeline: Allow ou Deny, nunca os dois.
type Decision struct {
	allowed bool

	// Forward é o descritor (possivelmente transformado) a ser encaminhado.
	// Só faz sentido quando Allowed() == true.
	Forward RequestDescriptor

	Status   int
	Reason   Reason
	Category Category
	// Headers extras da resposta de negação (ex.: Retry-After).
	Headers map[string]string
}

// Allow constrói uma decisão de encaminhamento.
func Allow(forward RequestDescriptor) Decision {
	return Decision{allowed: true, Forward: forward}
}

// Deny constrói uma decisão de bloqueio.
func Deny(status int, reason Reason, category Category, headers map[string]string) Decision {
	return Decision{
		Status:   status,
		Reason:   reason,
		Category: category,
		Headers:  headers,
	}
}

// DenyRetry constrói um 429 com Retry-After em segundos inteiros (arredondado para cima).
func DenyRetry(status int, reason Reason, retryAfter time.Duration) Decision {
	secs := int((retryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return Deny(status, reason, CategoryRateLimit, map[string]string{
		HeaderRetryAfter: strconv.Itoa(secs),
	})
}

func (d Decision) Allowed() bool { return d.allowed }

// Header devolve um header extra da negação, ignorando caixa.
func (d Decision) Header(name string) string {
	canon := textproto.CanonicalMIMEHeaderKey(name)
	for k, v := range d.Headers {
		if textproto.CanonicalMIMEHeaderKey(k) == canon {
			return v
		}
	}
	return ""
}

// Action é o rótulo usado em logs e estatísticas.
func (d Decision) Action() Action {
	switch {
	case d.allowed:
		return ActionAllowed
	case d.Category == CategoryRateLimit:
		return ActionRateLimited
	default:
		return ActionBlocked
	}
}

// LayerResult é Continue(descritor) ou Terminate(decisão).
type LayerResult struct {
	terminal   bool
	descriptor RequestDescriptor
	decision   Decision
}

func Continue(d RequestDescriptor) LayerResult {
	return LayerResult{descriptor: d}
}

func Terminate(dec Decision) LayerResult {
	return LayerResult{terminal: true, decision: dec}
}

func (r LayerResult) Terminal() bool { return r.terminal }
func (r LayerResult) Descriptor() RequestDescriptor { return r.descriptor }
func (r LayerResult) Decision() Decision { return r.decision }

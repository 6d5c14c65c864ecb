package domain

import (
	"context"
	"time"
	"unicode/utf8"
)

// Action é o rótulo de alto nível de uma decisão, como aparece nos logs.
type Action string

const (
	ActionAllowed     Action = "ALLOWED"
	ActionBlocked     Action = "BLOCKED"
	ActionRateLimited Action = "RATE_LIMITED"
)

// maxLoggedUserAgent limita o tamanho do user-agent copiado para eventos.
const maxLoggedUserAgent = 100

// DecisionEvent representa uma decisão do pipeline.
//
// Observação: cuidado com cardinalidade (ex.: usar IP/Path como label pode
// explodir o número de séries/chaves em Redis/Prometheus).
type DecisionEvent struct {
	Action   Action
	Reason   Reason
	Category Category

	Country   string
	ASN       uint32
	HasASN    bool
	IP        string
	Path      string
	UserAgent string

	At time.Time
}

// NewDecisionEvent monta o evento a partir do descritor original e da decisão.
func NewDecisionEvent(d RequestDescriptor, dec Decision, at time.Time) DecisionEvent {
	return DecisionEvent{
		Action:    dec.Action(),
		Reason:    dec.Reason,
		Category:  dec.Category,
		Country:   d.Country,
		ASN:       d.ASN,
		HasASN:    d.HasASN,
		IP:        d.ClientKey(),
		Path:      d.Path,
		UserAgent: truncateUTF8(d.UserAgent, maxLoggedUserAgent),
		At:        at,
	}
}

// EventSink recebe um evento por decisão.
//
// Implementações podem logar, contar em memória, Redis, Prometheus etc.
// O pipeline trata erro como best-effort (não derruba a request).
type EventSink interface {
	Record(ctx context.Context, ev DecisionEvent) error
}

// truncateUTF8 corta s em no máximo n bytes sem partir um rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

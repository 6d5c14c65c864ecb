package application

import (
	"context"
	"math/rand/v2"
	"time"

	"edge-gateway/middleware/edgefilter/domain"
)

// DefaultSweepProbability é a chance de cada request disparar EvictStale.
const DefaultSweepProbability = 0.01

// Pipeline concentra a decisão allow/deny de uma requisição.
//
// Ele não sabe nada sobre HTTP (headers/status de escrita), apenas executa as
// camadas em ordem e retorna uma decisão. Não faz I/O de rede.
type Pipeline struct {
	Rules  domain.RuleProvider
	Store  domain.CounterStore
	Layers []Layer
	Sink   domain.EventSink

	// SweepProbability: 0 usa DefaultSweepProbability, negativo desativa.
	SweepProbability float64
	// OnSweep (opcional) recebe o total removido em cada varredura.
	OnSweep func(evicted int)

	// Rand e Now existem para testes; nil usa math/rand/v2 e time.Now.
	Rand func() float64
	Now  func() time.Time
}

// NewPipeline monta um pipeline com as camadas padrão.
func NewPipeline(rules domain.RuleProvider, store domain.CounterStore, sink domain.EventSink) *Pipeline {
	return &Pipeline{
		Rules:  rules,
		Store:  store,
		Layers: DefaultLayers(),
		Sink:   sink,
	}
}

// Handle classifica um descritor. Sempre produz exatamente uma decisão.
func (p *Pipeline) Handle(ctx context.Context, d domain.RequestDescriptor) domain.Decision {
	if d.ClientIP == "" {
		d.ClientIP = domain.UnknownClientIP
	}

	store := p.Store
	if store == nil {
		store = noopCounter{}
	}
	p.maybeSweep(store)

	var dec domain.Decision
	rules := p.rules()
	if rules == nil {
		dec = domain.Allow(d)
	} else {
		dec = p.run(d, rules, store)
	}

	if p.Sink != nil {
		_ = p.Sink.Record(ctx, domain.NewDecisionEvent(d, dec, p.now()))
	}
	return dec
}

func (p *Pipeline) run(d domain.RequestDescriptor, rules *domain.RuleSet, store domain.CounterStore) domain.Decision {
	cur := d
	for _, layer := range p.Layers {
		res := layer.Apply(cur, rules, store)
		if res.Terminal() {
			return res.Decision()
		}
		cur = res.Descriptor()
	}
	return domain.Allow(cur)
}

func (p *Pipeline) rules() *domain.RuleSet {
	if p.Rules == nil {
		return nil
	}
	return p.Rules.Rules()
}

func (p *Pipeline) maybeSweep(store domain.CounterStore) {
	prob := p.SweepProbability
	if prob == 0 {
		prob = DefaultSweepProbability
	}
	if prob < 0 {
		return
	}
	rnd := p.Rand
	if rnd == nil {
		rnd = rand.Float64
	}
	if rnd() >= prob {
		return
	}
	n := store.EvictStale()
	if p.OnSweep != nil {
		p.OnSweep(n)
	}
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

type noopCounter struct{}

func (noopCounter) CheckAndIncrement(string, int, time.Duration) bool { return false }
func (noopCounter) EvictStale() int { return 0 }

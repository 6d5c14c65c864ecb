package infra

import (
	"context"
	"sync"

	"edge-gateway/middleware/edgefilter/domain"
)

type Counters struct {
	Allowed     int64
	Blocked     int64
	RateLimited int64
}

func (c *Counters) add(a domain.Action) {
	switch a {
	case domain.ActionAllowed:
		c.Allowed++
	case domain.ActionRateLimited:
		c.RateLimited++
	default:
		c.Blocked++
	}
}

// MemoryStatsStore é uma implementação simples em memória.
// Útil para testes e desenvolvimento.
//
// Não faz expiração e não é indicada para produção (byIP cresce sem limite).
type MemoryStatsStore struct {
	mu        sync.Mutex
	total     Counters
	byReason  map[domain.Reason]int64
	byCountry map[string]Counters
	byIP      map[string]Counters

	trackIPs bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackIPs(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackIPs = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byReason:  make(map[domain.Reason]int64),
		byCountry: make(map[string]Counters),
		byIP:      make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.DecisionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev.Action)
	if ev.Reason != domain.ReasonNone {
		s.byReason[ev.Reason]++
	}

	country := ev.Country
	if country == "" {
		country = "??"
	}
	c := s.byCountry[country]
	c.add(ev.Action)
	s.byCountry[country] = c

	if s.trackIPs {
		k := s.byIP[ev.IP]
		k.add(ev.Action)
		s.byIP[ev.IP] = k
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByReason() map[domain.Reason]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.Reason]int64, len(s.byReason))
	for k, v := range s.byReason {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) ByCountry() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byCountry))
	for k, v := range s.byCountry {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) ByIP() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byIP))
	for k, v := range s.byIP {
		out[k] = v
	}
	return out
}

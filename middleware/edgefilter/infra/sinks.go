package infra

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"edge-gateway/middleware/edgefilter/domain"
)

// Fanout entrega o evento para todos os sinks e junta os erros.
type Fanout []domain.EventSink

func (f Fanout) Record(ctx context.Context, ev domain.DecisionEvent) error {
	var errs []error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AsyncSink desacopla sinks lentos (ex.: Redis) do caminho da request.
//
// Record nunca bloqueia: com a fila cheia o evento é descartado e contado.
// O ctx da request não é propagado porque ela termina antes do envio; cada
// evento ganha seu próprio timeout.
type AsyncSink struct {
	next    domain.EventSink
	queue   chan domain.DecisionEvent
	dropped atomic.Int64
	onError func(error)
	timeout time.Duration

	// mu protege o close da fila contra Record concorrente
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewAsyncSink inicia `workers` goroutines consumindo uma fila de tamanho size.
func NewAsyncSink(next domain.EventSink, size, workers int, onError func(error)) *AsyncSink {
	if size <= 0 {
		size = 1024
	}
	if workers <= 0 {
		workers = 1
	}
	s := &AsyncSink{
		next:    next,
		queue:   make(chan domain.DecisionEvent, size),
		onError: onError,
		timeout: 2 * time.Second,
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.loop()
	}
	return s
}

func (s *AsyncSink) Record(_ context.Context, ev domain.DecisionEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.dropped.Add(1)
		return nil
	}
	select {
	case s.queue <- ev:
	default:
		s.dropped.Add(1)
	}
	return nil
}

func (s *AsyncSink) loop() {
	defer s.wg.Done()
	for ev := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		err := s.next.Record(ctx, ev)
		cancel()
		if err != nil && s.onError != nil {
			s.onError(err)
		}
	}
}

// Dropped devolve quantos eventos foram descartados por fila cheia.
func (s *AsyncSink) Dropped() int64 { return s.dropped.Load() }

// Close para de aceitar eventos e espera a fila esvaziar.
// Eventos recebidos depois de Close são contados como descartados.
func (s *AsyncSink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	s.wg.Wait()
}

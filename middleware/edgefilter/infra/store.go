package infra

import (
	"sync"
	"sync/atomic"
	"time"

	"edge-gateway/middleware/edgefilter/domain"

	"github.com/cespare/xxhash/v2"
)

const shardCount = 256

// WindowStore é o contador de janela fixa por chave, em memória.
//
// As chaves são distribuídas em shards (xxhash), cada um com seu mutex: a
// leitura-modificação-escrita de uma chave é serializada, chaves em shards
// diferentes não se bloqueiam. Registros expiram por EvictStale.
type WindowStore struct {
	shards [shardCount]*windowShard

	// maior janela já vista em CheckAndIncrement (nanossegundos)
	maxWindow atomic.Int64
	now       func() time.Time

	cleanupEvery time.Duration
}

type windowShard struct {
	mu      sync.Mutex
	records map[string]*windowRecord
}

type windowRecord struct {
	count       int
	windowStart time.Time
}

type WindowStoreOption func(*WindowStore)

// WithClock troca o relógio (testes).
func WithClock(now func() time.Time) WindowStoreOption {
	return func(s *WindowStore) { s.now = now }
}

// WithEvictWindow define um piso para a "maior janela" usada em EvictStale,
// útil quando as regras são conhecidas antes do primeiro request.
func WithEvictWindow(d time.Duration) WindowStoreOption {
	return func(s *WindowStore) { s.raiseMaxWindow(d) }
}

// WithCleanupEvery define o intervalo do janitor. 0 desativa.
func WithCleanupEvery(d time.Duration) WindowStoreOption {
	return func(s *WindowStore) { s.cleanupEvery = d }
}

func NewWindowStore(opts ...WindowStoreOption) *WindowStore {
	s := &WindowStore{
		now:          time.Now,
		cleanupEvery: 2 * time.Minute,
	}
	for i := range s.shards {
		s.shards[i] = &windowShard{records: make(map[string]*windowRecord)}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ domain.CounterStore = (*WindowStore)(nil)

func (s *WindowStore) shard(key string) *windowShard {
	return s.shards[xxhash.Sum64String(key)%shardCount]
}

// CheckAndIncrement implementa domain.CounterStore.
func (s *WindowStore) CheckAndIncrement(key string, limit int, window time.Duration) bool {
	s.raiseMaxWindow(window)
	now := s.now()

	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := sh.records[key]
	if !ok || now.Sub(rec.windowStart) > window {
		sh.records[key] = &windowRecord{count: 1, windowStart: now}
		return false
	}

	rec.count++
	return rec.count > limit
}

// EvictStale implementa domain.CounterStore.
//
// Trava um shard por vez; increments em outros shards seguem normalmente.
func (s *WindowStore) EvictStale() int {
	maxAge := 2 * time.Duration(s.maxWindow.Load())
	if maxAge <= 0 {
		return 0
	}
	now := s.now()

	evicted := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k, rec := range sh.records {
			if now.Sub(rec.windowStart) > maxAge {
				delete(sh.records, k)
				evicted++
			}
		}
		sh.mu.Unlock()
	}
	return evicted
}

// Len devolve o número de chaves rastreadas.
func (s *WindowStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.records)
		sh.mu.Unlock()
	}
	return n
}

func (s *WindowStore) CleanupEvery() time.Duration { return s.cleanupEvery }

// StartJanitor inicia uma goroutine que chama EvictStale periodicamente.
// Pare cancelando o contexto. onSweep (opcional) recebe o total removido.
func (s *WindowStore) StartJanitor(ctx DoneContext, onSweep func(evicted int)) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				n := s.EvictStale()
				if onSweep != nil {
					onSweep(n)
				}
			}
		}
	}()
}

func (s *WindowStore) raiseMaxWindow(d time.Duration) {
	for {
		cur := s.maxWindow.Load()
		if int64(d) <= cur {
			return
		}
		if s.maxWindow.CompareAndSwap(cur, int64(d)) {
			return
		}
	}
}

// DoneContext é o mínimo necessário para aceitar context.Context sem importar context aqui.
type DoneContext interface {
	Done() <-chan struct{}
}

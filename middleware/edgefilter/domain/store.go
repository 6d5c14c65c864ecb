package domain

import "time"

// CounterStore é o contador por chave compartilhado pelas camadas de limite.
//
// A semântica é de janela fixa: CheckAndIncrement sempre registra a ocorrência
// e retorna true quando a contagem da janela corrente passa de limit.
// Implementações precisam ser seguras para chamadas concorrentes de
// CheckAndIncrement e EvictStale.
type CounterStore interface {
	CheckAndIncrement(key string, limit int, window time.Duration) bool
	// EvictStale remove registros mais velhos que 2x a maior janela conhecida
	// e retorna quantos foram removidos.
	EvictStale() int
}

// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - WindowStore: contador de janela fixa por chave, em shards
//   - RuleWatcher: regras em arquivo YAML com recarga a quente
//   - sinks de decisão: log (zap), Prometheus, Redis, memória
package infra

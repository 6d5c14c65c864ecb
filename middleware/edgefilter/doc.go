// Package edgefilter fornece o adapter HTTP (net/http) do filtro de borda.
//
// Visão geral (camadas):
//
//   - domain: descritor, regras, decisão e contratos (sem dependência de net/http)
//   - application: camadas de classificação e pipeline, sem net/http
//   - infra: contador em shards, regras em arquivo, sinks de log/métricas/Redis
//   - forward: encaminhamento para a origem (reverse proxy)
//   - edgefilter (este pacote): middleware HTTP, extração do descritor e
//     tradução da decisão para status/headers
//
// Fluxo no gateway:
//
//  1. Extrai o descritor (IP, país, ASN, user-agent, path, cookie)
//  2. Chama o pipeline para obter a decisão
//  3. Se negado, responde 403/429 com X-Blocked-Reason
//  4. Se permitido, reescreve o Cookie e chama o próximo handler (ex: reverse proxy)
//
// Variáveis de ambiente do binário gateway (cmd/gateway) controlam o comportamento,
// como RULES_FILE, CLIENT_IP_HEADER, COUNTRY_HEADER e MAX_IN_FLIGHT.
package edgefilter

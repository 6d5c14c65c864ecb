// Package forward encaminha as requisições permitidas para a origem.
//
// Usa httputil.ReverseProxy com um limite de requisições simultâneas
// (semáforo em channel); sem vaga dentro do timeout, responde 503.
package forward

// Package application contém as camadas de classificação e o pipeline que as
// executa em ordem fixa.
//
// Ele depende do pacote domain; de net/http usa só as constantes de status.
// Ex.: Pipeline.Handle(ctx, descriptor) retorna uma Decision (allow/deny).
package application

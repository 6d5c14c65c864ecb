// Package domain define os tipos e contratos do filtro de borda: descritor da
// requisição, conjunto de regras, decisão e o contador por chave.
//
// Este pacote não depende de net/http nem de implementações concretas.
// A intenção é permitir testes de unidade puros e desacoplar as camadas de
// classificação dos detalhes de infraestrutura.
package domain

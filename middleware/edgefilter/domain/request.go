package domain

// UnknownClientIP é a chave usada quando não há IP de cliente disponível.
// Clientes não identificáveis passam a dividir o mesmo balde de contagem.
const UnknownClientIP = "unknown"

// RequestDescriptor é a visão imutável de uma requisição de entrada.
//
// Campos opcionais usam o valor zero como "ausente" (Country == "") ou uma flag
// explícita (HasASN, HasCookie). Transformações devolvem uma cópia nova.
type RequestDescriptor struct {
	Country   string
	ASN       uint32
	HasASN    bool
	ClientIP  string
	UserAgent string
	Path      string
	Cookie    string
	HasCookie bool
}

// WithCookie devolve uma cópia com o header Cookie substituído.
func (d RequestDescriptor) WithCookie(cookie string) RequestDescriptor {
	d.Cookie = cookie
	d.HasCookie = true
	return d
}

// WithoutCookie devolve uma cópia sem header Cookie.
func (d RequestDescriptor) WithoutCookie() RequestDescriptor {
	d.Cookie = ""
	d.HasCookie = false
	return d
}

// ClientKey é o IP usado nas chaves de contagem, com sentinela para ausente.
func (d RequestDescriptor) ClientKey() string {
	if d.ClientIP == "" {
		return UnknownClientIP
	}
	return d.ClientIP
}

package edgefilter

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"edge-gateway/middleware/edgefilter/domain"
)

const (
	DefaultClientIPHeader = "CF-Connecting-IP"
	DefaultCountryHeader  = "CF-IPCountry"
	DefaultASNHeader      = "X-Client-ASN"
)

// DescriptorSource monta o descritor de uma requisição.
type DescriptorSource interface {
	Describe(r *http.Request) domain.RequestDescriptor
}

// HeaderSource lê os metadados de conexão de headers confiáveis, preenchidos
// pela CDN/proxy à frente do gateway.
type HeaderSource struct {
	ClientIPHeader     string
	CountryHeader      string
	ASNHeader          string
	TrustXForwardedFor bool
}

func DefaultHeaderSource() HeaderSource {
	return HeaderSource{
		ClientIPHeader: DefaultClientIPHeader,
		CountryHeader:  DefaultCountryHeader,
		ASNHeader:      DefaultASNHeader,
	}
}

func (s HeaderSource) Describe(r *http.Request) domain.RequestDescriptor {
	d := domain.RequestDescriptor{
		Country:   s.country(r),
		ClientIP:  s.ClientIP(r),
		UserAgent: r.Header.Get("User-Agent"),
	}
	if r.URL != nil {
		d.Path = r.URL.Path
	}
	if asn, ok := s.asn(r); ok {
		d.ASN, d.HasASN = asn, true
	}
	if cookies := r.Header.Values("Cookie"); len(cookies) > 0 {
		// HTTP/2 pode dividir o Cookie em vários campos
		d.Cookie, d.HasCookie = strings.Join(cookies, "; "), true
	}
	return d
}

// ClientIP segue a ordem: header confiável, primeiro IP do X-Forwarded-For
// (se habilitado), host do RemoteAddr, "unknown".
func (s HeaderSource) ClientIP(r *http.Request) string {
	if s.ClientIPHeader != "" {
		if v := strings.TrimSpace(r.Header.Get(s.ClientIPHeader)); v != "" {
			return v
		}
	}

	if s.TrustXForwardedFor {
		// pega o primeiro IP do X-Forwarded-For (cliente original)
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}

	// fallback: RemoteAddr
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return domain.UnknownClientIP
}

func (s HeaderSource) country(r *http.Request) string {
	if s.CountryHeader == "" {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(r.Header.Get(s.CountryHeader)))
}

// asn aceita "13220" e "AS13220"; valor inválido conta como ausente.
func (s HeaderSource) asn(r *http.Request) (uint32, bool) {
	if s.ASNHeader == "" {
		return 0, false
	}
	v := strings.TrimSpace(r.Header.Get(s.ASNHeader))
	if len(v) > 2 && strings.EqualFold(v[:2], "AS") {
		v = v[2:]
	}
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}

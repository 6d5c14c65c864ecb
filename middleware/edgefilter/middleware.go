package edgefilter

import (
	"net/http"

	"edge-gateway/middleware/edgefilter/application"
	"edge-gateway/middleware/edgefilter/domain"
)

type Options struct {
	Pipeline *application.Pipeline
	Source   DescriptorSource
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.Source == nil {
		opts.Source = DefaultHeaderSource()
	}
	if opts.Pipeline == nil {
		opts.Pipeline = &application.Pipeline{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := opts.Source.Describe(r)

			dec := opts.Pipeline.Handle(r.Context(), d)
			if !dec.Allowed() {
				WriteDenial(w, dec)
				return
			}

			next.ServeHTTP(w, ForwardRequest(r, d, dec.Forward))
		})
	}
}

// Handle é um atalho para quem não usa o encadeamento de middlewares.
func Handle(p *application.Pipeline, src DescriptorSource, w http.ResponseWriter, r *http.Request) (*http.Request, domain.Decision) {
	d := src.Describe(r)
	dec := p.Handle(r.Context(), d)
	if !dec.Allowed() {
		WriteDenial(w, dec)
		return nil, dec
	}
	return ForwardRequest(r, d, dec.Forward), dec
}

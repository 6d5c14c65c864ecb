// Package ginfilter expõe o filtro de borda como middleware do gin.
package ginfilter

import (
	"edge-gateway/middleware/edgefilter"
	"edge-gateway/middleware/edgefilter/application"

	"github.com/gin-gonic/gin"
)

// New cria o middleware. src nil usa edgefilter.DefaultHeaderSource().
//
//	router := gin.New()
//	router.Use(ginfilter.New(pipeline, nil))
func New(p *application.Pipeline, src edgefilter.DescriptorSource) gin.HandlerFunc {
	if src == nil {
		src = edgefilter.DefaultHeaderSource()
	}
	if p == nil {
		p = &application.Pipeline{}
	}

	return func(c *gin.Context) {
		d := src.Describe(c.Request)

		dec := p.Handle(c.Request.Context(), d)
		if !dec.Allowed() {
			edgefilter.WriteDenial(c.Writer, dec)
			c.Abort()
			return
		}

		c.Request = edgefilter.ForwardRequest(c.Request, d, dec.Forward)
		c.Next()
	}
}

package infra

import (
	"context"
	"sync/atomic"
	"time"

	"edge-gateway/middleware/edgefilter/domain"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ZapEventLog escreve uma linha estruturada por decisão terminal.
//
// A vazão é limitada por um token bucket (x/time/rate): sob ataque o log não
// pode virar gargalo. Eventos descartados são somados e reportados no campo
// "suppressed" da próxima linha emitida.
type ZapEventLog struct {
	log        *zap.Logger
	lim        *rate.Limiter
	suppressed atomic.Int64
}

type EventLogOption func(*ZapEventLog)

// WithEventRate define eventos/s e burst. rps <= 0 desativa o limite.
func WithEventRate(rps float64, burst int) EventLogOption {
	return func(l *ZapEventLog) {
		if rps <= 0 {
			l.lim = nil
			return
		}
		l.lim = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func NewZapEventLog(log *zap.Logger, opts ...EventLogOption) *ZapEventLog {
	if log == nil {
		log = zap.NewNop()
	}
	l := &ZapEventLog{
		log: log,
		lim: rate.NewLimiter(200, 400),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *ZapEventLog) Record(_ context.Context, ev domain.DecisionEvent) error {
	if ev.Action == domain.ActionAllowed {
		if ce := l.log.Check(zap.DebugLevel, "request allowed"); ce != nil {
			ce.Write(zap.String("ip", ev.IP), zap.String("path", ev.Path))
		}
		return nil
	}

	if l.lim != nil && !l.lim.Allow() {
		l.suppressed.Add(1)
		return nil
	}

	fields := make([]zap.Field, 0, 10)
	fields = append(fields,
		zap.String("action", string(ev.Action)),
		zap.String("reason", string(ev.Reason)),
		zap.String("category", string(ev.Category)),
		zap.String("ip", ev.IP),
		zap.String("path", ev.Path),
		zap.String("timestamp", ev.At.UTC().Format(time.RFC3339Nano)),
	)
	if ev.Country != "" {
		fields = append(fields, zap.String("country", ev.Country))
	}
	if ev.HasASN {
		fields = append(fields, zap.Uint32("asn", ev.ASN))
	}
	if ev.Reason == domain.ReasonAIScraper {
		fields = append(fields, zap.String("userAgent", ev.UserAgent))
	}
	if n := l.suppressed.Swap(0); n > 0 {
		fields = append(fields, zap.Int64("suppressed", n))
	}

	l.log.Info("request denied", fields...)
	return nil
}

// Suppressed devolve quantos eventos aguardam reporte.
func (l *ZapEventLog) Suppressed() int64 { return l.suppressed.Load() }

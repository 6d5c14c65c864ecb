package forward

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type Options struct {
	// MaxInFlight <= 0 desativa o limite.
	MaxInFlight    int
	AcquireTimeout time.Duration
	RejectStatus   int

	Logger     *zap.Logger
	Transport  http.RoundTripper
	Registerer prometheus.Registerer
}

// Forwarder é o http.Handler final da cadeia: proxy reverso para a origem.
type Forwarder struct {
	proxy  *httputil.ReverseProxy
	pool   SlotPool
	opts   Options
	log    *zap.Logger
	reject prometheus.Counter
	upErr  prometheus.Counter
}

func New(target *url.URL, opts Options) *Forwarder {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	f := &Forwarder{
		opts: opts,
		log:  log.With(zap.String("upstream", target.String())),
		reject: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "edge_forward_rejected_total",
			Help: "Requests rejected because no upstream slot was available.",
		}),
		upErr: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "edge_forward_upstream_errors_total",
			Help: "Requests that failed while proxying to the upstream.",
		}),
	}
	if opts.MaxInFlight > 0 {
		f.pool = NewChanPool(opts.MaxInFlight)
	}

	f.proxy = httputil.NewSingleHostReverseProxy(target)
	if opts.Transport != nil {
		f.proxy.Transport = opts.Transport
	}
	f.proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		f.upErr.Inc()
		f.log.Warn("proxy error",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	if opts.Registerer != nil {
		inFlight := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "edge_forward_in_flight",
			Help: "Requests currently being proxied to the upstream.",
		}, func() float64 { return float64(f.InFlight()) })
		opts.Registerer.MustRegister(f.reject, f.upErr, inFlight)
	}
	return f
}

func (f *Forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	release, ok := acquire(r.Context(), f.pool, f.opts.AcquireTimeout)
	if !ok {
		f.reject.Inc()
		http.Error(w, http.StatusText(f.opts.RejectStatus), f.opts.RejectStatus)
		return
	}
	defer release()

	f.proxy.ServeHTTP(w, r)
}

// InFlight retorna quantas requisições ocupam vaga agora.
func (f *Forwarder) InFlight() int {
	if f.pool == nil {
		return 0
	}
	return f.pool.InUse()
}

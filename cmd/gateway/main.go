package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"edge-gateway/middleware/edgefilter"
	"edge-gateway/middleware/edgefilter/application"
	"edge-gateway/middleware/edgefilter/domain"
	"edge-gateway/middleware/edgefilter/forward"
	"edge-gateway/middleware/edgefilter/infra"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	dumpRules := flag.Bool("dump-rules", false, "print the default rules file (YAML) and exit")
	flag.Parse()

	if *dumpRules {
		out, err := infra.MarshalRules(domain.DefaultRuleConfig())
		if err != nil {
			fmt.Fprintf(os.Stderr, "dump rules: %v\n", err)
			os.Exit(1)
		}
		_, _ = os.Stdout.Write(out)
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log := infra.NewLogger(cfg.logLevel)
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("gateway stopped", zap.Error(err))
	}
}

func run(cfg config, log *zap.Logger) error {
	target, err := url.Parse(cfg.upstreamURL)
	if err != nil {
		return fmt.Errorf("invalid UPSTREAM_URL: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store := infra.NewWindowStore(infra.WithCleanupEvery(cfg.janitorInterval))

	rules, err := infra.LoadRules(cfg.rulesFile,
		infra.WithRuleLogger(log),
		infra.WithOnReload(func(rs *domain.RuleSet) {
			log.Info("rules active",
				zap.String("geoMode", string(rs.GeoMode())),
				zap.Int("scraperSignatures", len(rs.ScraperSignatures())),
				zap.Duration("longestWindow", rs.LongestWindow()),
			)
		}),
	)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	rules.Watch()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := infra.NewPrometheusStats(reg, store.Len)

	sinks := infra.Fanout{
		infra.NewZapEventLog(log, infra.WithEventRate(cfg.logRate, cfg.logBurst)),
		metrics,
	}

	if cfg.rateStatsEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.rateStatsRedisAddr,
			Password: cfg.rateStatsRedisPassword,
			DB:       cfg.rateStatsRedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancelPing := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancelPing()
		if err != nil {
			return fmt.Errorf("redis stats ping: %w", err)
		}

		redisStats := infra.NewAsyncSink(
			infra.NewRedisStatsStore(
				rdb,
				infra.WithStatsPrefix(cfg.rateStatsPrefix),
				infra.WithStatsTTL(cfg.rateStatsTTL),
				infra.WithStatsBucket(cfg.rateStatsBucket),
				infra.WithStatsTrackIPs(cfg.rateStatsTrackIPs),
			),
			cfg.rateStatsQueue, 2,
			func(err error) { log.Warn("redis stats write failed", zap.Error(err)) },
		)
		// fecha antes do rdb (defers em ordem inversa)
		defer redisStats.Close()
		sinks = append(sinks, redisStats)
	}

	pipeline := application.NewPipeline(rules, store, sinks)
	pipeline.SweepProbability = cfg.sweepProbability
	pipeline.OnSweep = metrics.ObserveSweep
	store.StartJanitor(ctx, func(evicted int) {
		metrics.ObserveSweep(evicted)
		log.Debug("janitor sweep", zap.Int("evicted", evicted), zap.Int("tracked", store.Len()))
	})

	fwd := forward.New(target, forward.Options{
		MaxInFlight:    cfg.maxInFlight,
		AcquireTimeout: cfg.inFlightTimeout,
		Logger:         log,
		Registerer:     reg,
	})

	h := edgefilter.Middleware(edgefilter.Options{
		Pipeline: pipeline,
		Source: edgefilter.HeaderSource{
			ClientIPHeader:     cfg.clientIPHeader,
			CountryHeader:      cfg.countryHeader,
			ASNHeader:          cfg.asnHeader,
			TrustXForwardedFor: cfg.trustXFF,
		},
	})(fwd)

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}
	servers := []*http.Server{srv}

	if cfg.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		msrv := &http.Server{
			Addr:              cfg.metricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		servers = append(servers, msrv)

		go func() {
			if err := msrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server error", zap.Error(err))
			}
		}()
	}

	log.Info("gateway listening",
		zap.String("addr", cfg.listenAddr),
		zap.String("upstream", target.String()),
		zap.String("metricsAddr", cfg.metricsAddr),
	)
	log.Info("filter",
		zap.String("rulesFile", cfg.rulesFile),
		zap.String("clientIPHeader", cfg.clientIPHeader),
		zap.String("countryHeader", cfg.countryHeader),
		zap.String("asnHeader", cfg.asnHeader),
		zap.Bool("trustXFF", cfg.trustXFF),
		zap.Float64("sweepProbability", cfg.sweepProbability),
		zap.Duration("janitorInterval", cfg.janitorInterval),
	)
	log.Info("rate-stats",
		zap.Bool("enabled", cfg.rateStatsEnabled),
		zap.String("redisAddr", cfg.rateStatsRedisAddr),
		zap.String("bucket", cfg.rateStatsBucket),
		zap.Duration("ttl", cfg.rateStatsTTL),
		zap.Bool("trackIPs", cfg.rateStatsTrackIPs),
	)
	log.Info("forward", zap.Int("maxInFlight", cfg.maxInFlight), zap.Duration("acquireTimeout", cfg.inFlightTimeout))

	ln, err := net.Listen("tcp", cfg.listenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.listenAddr, err)
	}
	// serve só retorna depois do Shutdown drenar os handlers; os defers
	// (AsyncSink, redis) rodam com nenhuma request em andamento.
	return serve(ctx, cancel, ln, srv, servers, 10*time.Second)
}

// serve atende em ln até ctx encerrar (ou o servidor falhar) e então desliga
// todos os servidores, esperando as requests em andamento terminarem.
func serve(ctx context.Context, cancel context.CancelFunc, ln net.Listener, srv *http.Server, all []*http.Server, drain time.Duration) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), drain)
		defer cancelShutdown()
		for _, s := range all {
			_ = s.Shutdown(shutdownCtx)
		}
	}()

	serveErr := srv.Serve(ln)
	cancel()
	<-done

	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", serveErr)
	}
	return nil
}

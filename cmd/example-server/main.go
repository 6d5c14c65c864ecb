package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"edge-gateway/middleware/edgefilter"
	"edge-gateway/middleware/edgefilter/application"
	"edge-gateway/middleware/edgefilter/domain"
	"edge-gateway/middleware/edgefilter/ginfilter"
	"edge-gateway/middleware/edgefilter/infra"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Exemplo: injetando o filtro diretamente no seu webserver gin (sem proxy)
	log := infra.NewLogger(os.Getenv("LOG_LEVEL"))
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store := infra.NewWindowStore()
	store.StartJanitor(ctx, nil)

	cfg := domain.DefaultRuleConfig()
	cfg.StripCookies = []string{"tracking_id", "_ga"}
	stats := infra.NewMemoryStatsStore()

	p := application.NewPipeline(
		domain.StaticRules{Set: domain.MustRuleSet(cfg)},
		store,
		infra.Fanout{infra.NewZapEventLog(log), stats},
	)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginfilter.New(p, edgefilter.HeaderSource{
		ClientIPHeader:     edgefilter.DefaultClientIPHeader,
		CountryHeader:      edgefilter.DefaultCountryHeader,
		ASNHeader:          edgefilter.DefaultASNHeader,
		TrustXForwardedFor: true,
	}))
	router.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"total":     stats.Total(),
			"byReason":  stats.ByReason(),
			"byCountry": stats.ByCountry(),
		})
	})
	router.NoRoute(func(c *gin.Context) {
		c.String(http.StatusOK, "ok\n")
	})

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("example server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server error", zap.Error(err))
	}
}

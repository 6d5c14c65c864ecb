package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type config struct {
	listenAddr  string
	metricsAddr string
	upstreamURL string
	logLevel    string
	rulesFile   string

	clientIPHeader string
	countryHeader  string
	asnHeader      string
	trustXFF       bool

	sweepProbability float64
	janitorInterval  time.Duration

	maxInFlight     int
	inFlightTimeout time.Duration

	logRate  float64
	logBurst int

	rateStatsEnabled       bool
	rateStatsRedisAddr     string
	rateStatsRedisPassword string
	rateStatsRedisDB       int
	rateStatsPrefix        string
	rateStatsTTL           time.Duration
	rateStatsBucket        string
	rateStatsTrackIPs      bool
	rateStatsQueue         int
}

// loadConfig carrega um .env opcional e lê as variáveis de ambiente.
func loadConfig() (config, error) {
	// .env é opcional; variáveis já exportadas têm precedência
	_ = godotenv.Load()
	return readConfig(newEnv())
}

func newEnv() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("LISTEN_ADDR", ":8080")
	v.SetDefault("METRICS_ADDR", ":9090")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CLIENT_IP_HEADER", "CF-Connecting-IP")
	v.SetDefault("COUNTRY_HEADER", "CF-IPCountry")
	v.SetDefault("ASN_HEADER", "X-Client-ASN")
	v.SetDefault("TRUST_XFF", false)
	v.SetDefault("SWEEP_PROBABILITY", 0.01)
	v.SetDefault("JANITOR_INTERVAL", 2*time.Minute)
	v.SetDefault("MAX_IN_FLIGHT", 100)
	v.SetDefault("IN_FLIGHT_TIMEOUT", time.Duration(0))
	v.SetDefault("LOG_RATE", 200.0)
	v.SetDefault("LOG_BURST", 400)

	v.SetDefault("RATE_STATS_ENABLED", false)
	v.SetDefault("RATE_STATS_REDIS_DB", 0)
	v.SetDefault("RATE_STATS_PREFIX", "edge:stats")
	v.SetDefault("RATE_STATS_TTL", 24*time.Hour)
	v.SetDefault("RATE_STATS_BUCKET", "minute")
	v.SetDefault("RATE_STATS_TRACK_IPS", false)
	v.SetDefault("RATE_STATS_QUEUE", 1024)
	return v
}

func readConfig(v *viper.Viper) (config, error) {
	cfg := config{
		listenAddr:  v.GetString("LISTEN_ADDR"),
		metricsAddr: v.GetString("METRICS_ADDR"),
		upstreamURL: strings.TrimSpace(v.GetString("UPSTREAM_URL")),
		logLevel:    v.GetString("LOG_LEVEL"),
		rulesFile:   strings.TrimSpace(v.GetString("RULES_FILE")),

		clientIPHeader: v.GetString("CLIENT_IP_HEADER"),
		countryHeader:  v.GetString("COUNTRY_HEADER"),
		asnHeader:      v.GetString("ASN_HEADER"),
		trustXFF:       v.GetBool("TRUST_XFF"),

		sweepProbability: v.GetFloat64("SWEEP_PROBABILITY"),
		janitorInterval:  v.GetDuration("JANITOR_INTERVAL"),

		maxInFlight:     v.GetInt("MAX_IN_FLIGHT"),
		inFlightTimeout: v.GetDuration("IN_FLIGHT_TIMEOUT"),

		logRate:  v.GetFloat64("LOG_RATE"),
		logBurst: v.GetInt("LOG_BURST"),

		rateStatsEnabled:       v.GetBool("RATE_STATS_ENABLED"),
		rateStatsRedisAddr:     strings.TrimSpace(v.GetString("RATE_STATS_REDIS_ADDR")),
		rateStatsRedisPassword: v.GetString("RATE_STATS_REDIS_PASSWORD"),
		rateStatsRedisDB:       v.GetInt("RATE_STATS_REDIS_DB"),
		rateStatsPrefix:        v.GetString("RATE_STATS_PREFIX"),
		rateStatsTTL:           v.GetDuration("RATE_STATS_TTL"),
		rateStatsBucket:        v.GetString("RATE_STATS_BUCKET"),
		rateStatsTrackIPs:      v.GetBool("RATE_STATS_TRACK_IPS"),
		rateStatsQueue:         v.GetInt("RATE_STATS_QUEUE"),
	}

	if cfg.upstreamURL == "" {
		return config{}, errors.New("UPSTREAM_URL is required")
	}
	if cfg.rateStatsEnabled && cfg.rateStatsRedisAddr == "" {
		return config{}, errors.New("RATE_STATS_REDIS_ADDR is required when RATE_STATS_ENABLED=true")
	}
	if cfg.sweepProbability > 1 {
		return config{}, fmt.Errorf("SWEEP_PROBABILITY must be <= 1, got %v", cfg.sweepProbability)
	}
	if cfg.maxInFlight < 0 {
		return config{}, errors.New("MAX_IN_FLIGHT must be >= 0")
	}
	if cfg.janitorInterval < 0 {
		return config{}, errors.New("JANITOR_INTERVAL must be >= 0")
	}
	return cfg, nil
}

package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SIRI-bit-tech/LeadFlow-AI-sub000/pkg/api"
	"github.com/SIRI-bit-tech/LeadFlow-AI-sub000/pkg/chat"
	"github.com/SIRI-bit-tech/LeadFlow-AI-sub000/pkg/config"
	"github.com/SIRI-bit-tech/LeadFlow-AI-sub000/pkg/llm"
	"github.com/SIRI-bit-tech/LeadFlow-AI-sub000/pkg/observability/logging"
	"github.com/SIRI-bit-tech/LeadFlow-AI-sub000/pkg/ratelimit"
	"github.com/SIRI-bit-tech/LeadFlow-AI-sub000/pkg/scoring"
	"github.com/SIRI-bit-tech/LeadFlow-AI-sub000/pkg/store"
)

func main() {
	var (
		configPath  = flag.String("config", "config/config.yaml", "Path to the configuration file")
		port        = flag.Int("port", 0, "HTTP port (overrides config)")
		metricsPort = flag.Int("metrics-port", 0, "Prometheus metrics port (overrides config)")
	)
	flag.Parse()

	if err := logging.InitFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
	}
	defer logging.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatalf("Config error: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *metricsPort != 0 {
		cfg.Server.MetricsPort = *metricsPort
	}

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		logging.Fatalf("Failed to open lead store at %s: %v", cfg.Database.Path, err)
	}
	defer st.Close()

	// Ticket store: Redis when configured, otherwise the in-process store
	// (single-node only; admission state is not shared across replicas).
	var tickets ratelimit.TicketStore
	if cfg.Redis.Address != "" {
		redisStore, err := ratelimit.NewRedisTicketStore(ratelimit.RedisStoreConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			Database: cfg.Redis.Database,
		})
		if err != nil {
			logging.Fatalf("Failed to connect rate limit store: %v", err)
		}
		defer redisStore.Close()
		tickets = redisStore
	} else {
		logging.Warnf("No Redis configured; using in-process rate limit store")
		tickets = ratelimit.NewMemoryTicketStore()
	}
	limiter := ratelimit.NewLimiter(tickets)

	providers := make([]llm.Provider, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		p := llm.NewOpenAIProvider(pc)
		logging.Infof("Provider %q configured (enabled=%v, model=%s)", p.Name(), p.Enabled(), pc.Model)
		providers = append(providers, p)
	}
	orch, err := llm.NewOrchestrator(providers...)
	if err != nil {
		logging.Fatalf("Orchestrator error: %v", err)
	}

	pipeline := scoring.NewPipeline(orch, st, cfg.Scoring)
	chatSvc := chat.NewService(orch, pipeline, st, cfg.Chat)
	server := api.NewServer(chatSvc, orch, st, limiter)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", cfg.Server.MetricsPort)
		logging.Infof("Starting metrics server on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logging.Errorf("Metrics server error: %v", err)
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logging.Infof("Starting lead qualification engine on %s", addr)
	if err := http.ListenAndServe(addr, server.Handler()); err != nil {
		logging.Fatalf("HTTP server error: %v", err)
	}
}

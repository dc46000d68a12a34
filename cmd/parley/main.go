// Command parley runs an interactive conversational agent on stdin and
// stdout, wiring the full runtime: memory, skill routing, resilience,
// the cached and rate-limited LLM adapter, and the SQLite session
// archive.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/parley-ai/parley/config"
	"github.com/parley-ai/parley/internal/metrics"
	"github.com/parley-ai/parley/llm"
	"github.com/parley-ai/parley/llm/requestcache"
	"github.com/parley-ai/parley/orchestrator"
	"github.com/parley-ai/parley/persistence"
	"github.com/parley-ai/parley/types"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to YAML config file")
		metricsAddr = flag.String("metrics", "", "address for the Prometheus /metrics endpoint (empty disables)")
		userID      = flag.String("user", "local", "user id for the session")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider := buildProvider(cfg, logger)

	archive, err := persistence.NewSQLiteStore(cfg.Persistence.Path, logger)
	if err != nil {
		logger.Fatal("open session archive", zap.Error(err))
	}

	runtime := orchestrator.New(cfg, provider, archive, logger)

	collector := metrics.NewCollector("parley", nil, logger)
	go collector.Consume(runtime.Events())
	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, logger)
	}

	if err := repl(ctx, runtime, *userID, logger); err != nil && ctx.Err() == nil {
		logger.Fatal("repl", zap.Error(err))
	}
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zc.Level = level
	return zc.Build()
}

// buildProvider assembles the adapter stack: demo backend, rate
// limiter, then request dedup cache.
func buildProvider(cfg *config.Config, logger *zap.Logger) llm.Provider {
	var base llm.Provider = llm.NewDemoProvider(logger)
	base = llm.NewRateLimitedProvider(base, cfg.LLM.RateLimitRPS, cfg.LLM.RateLimitBurst)

	var store requestcache.Store
	if cfg.Cache.Backend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisAddr,
			DB:   cfg.Cache.RedisDB,
		})
		store = requestcache.NewRedisStore(client, "reqcache:", logger)
	} else {
		store = requestcache.NewMemoryStore(cfg.Cache.TTL, logger)
	}
	cache := requestcache.New(store, cfg.Cache.TTL, logger)
	return llm.NewCachedProvider(base, cache, logger)
}

func serveMetrics(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("metrics endpoint", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server", zap.Error(err))
	}
}

func repl(ctx context.Context, runtime *orchestrator.Runtime, userID string, logger *zap.Logger) error {
	fmt.Println("parley agent. Type a message, or /quit to exit.")

	scanner := bufio.NewScanner(os.Stdin)
	sessionID := ""
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return nil
		case line == "/export":
			if sessionID == "" {
				fmt.Println("no session yet")
				continue
			}
			loc, err := runtime.ExportSession(ctx, sessionID)
			if err != nil {
				fmt.Println("export failed:", err)
				continue
			}
			fmt.Println("exported to", loc)
			continue
		case strings.HasPrefix(line, "/import "):
			session, err := runtime.ImportSession(ctx, strings.TrimSpace(strings.TrimPrefix(line, "/import ")))
			if err != nil {
				fmt.Println("import failed:", err)
				continue
			}
			sessionID = session.ID
			fmt.Printf("restored session %s (%d messages)\n", session.ID, len(session.Messages))
			continue
		}

		resp, err := runtime.ProcessMessage(ctx, &types.AgentRequest{
			UserMessage:   line,
			UserID:        userID,
			SessionID:     sessionID,
			AllowChaining: true,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("process message", zap.Error(err))
			fmt.Println("error:", err)
			continue
		}
		sessionID = resp.SessionID
		fmt.Println(resp.Content)
	}
}

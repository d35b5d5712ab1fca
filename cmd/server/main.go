package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/jaekyeom/clauselens"
	"github.com/jaekyeom/clauselens/blob"
	"github.com/jaekyeom/clauselens/sessions"
)

func main() {
	// Local deployments keep their keys in a .env file; absence is fine.
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to config file (YAML or JSON)")
	addr := flag.String("addr", ":8080", "Listen address")
	flag.Parse()

	// Structured JSON logging.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg := clauselens.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = clauselens.LoadConfig(*configPath); err != nil {
			slog.Error("loading config", "error", err)
			os.Exit(1)
		}
	}
	applyEnv(&cfg)

	corsOrigins := os.Getenv("CLAUSELENS_CORS_ORIGINS")

	if err := os.MkdirAll(cfg.UploadsDir, 0755); err != nil {
		slog.Error("creating uploads directory", "dir", cfg.UploadsDir, "error", err)
		os.Exit(1)
	}

	engine, err := clauselens.New(cfg)
	if err != nil {
		slog.Error("creating engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	store, err := newSessionStore(cfg.Sessions)
	if err != nil {
		slog.Error("creating session store", "error", err)
		os.Exit(1)
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	h := newHandler(engine, store, cfg.UploadsDir)
	if cfg.Blob.Bucket != "" {
		bucket, err := blob.New(context.Background(), blob.Options{
			Bucket:    cfg.Blob.Bucket,
			Region:    cfg.Blob.Region,
			KeyPrefix: cfg.Blob.KeyPrefix,
			AccessKey: cfg.Blob.AccessKey,
			SecretKey: cfg.Blob.SecretKey,
		})
		if err != nil {
			slog.Error("creating blob store", "error", err)
			os.Exit(1)
		}
		h.blob = bucket
	}

	// Middleware chain: recovery -> cors -> logging -> mux
	var handler http.Handler = newMux(h)
	handler = logMiddleware(handler)
	handler = corsMiddleware(corsOrigins, handler)
	handler = recoveryMiddleware(handler)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // upload analysis can be long
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}

// applyEnv layers environment overrides over the file config, then falls
// back to the well-known provider variables for anything still unset.
func applyEnv(cfg *clauselens.Config) {
	if v := os.Getenv("CLAUSELENS_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("CLAUSELENS_CASE_DB_PATH"); v != "" {
		cfg.CaseDBPath = v
	}
	if v := os.Getenv("CLAUSELENS_PROMPTS_DIR"); v != "" {
		cfg.PromptsDir = v
	}
	if v := os.Getenv("CLAUSELENS_UPLOADS_DIR"); v != "" {
		cfg.UploadsDir = v
	}
	if v := os.Getenv("CLAUSELENS_CHAT_BASE_URL"); v != "" {
		cfg.Chat.BaseURL = v
	}
	if v := os.Getenv("CLAUSELENS_EMBED_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("CLAUSELENS_CHAT_API_KEY"); v != "" {
		cfg.Chat.APIKey = v
	}
	if v := os.Getenv("CLAUSELENS_EMBED_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("CLAUSELENS_CHAT_MODEL"); v != "" {
		cfg.Chat.Model = v
	}
	if v := os.Getenv("CLAUSELENS_EMBED_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("CLAUSELENS_CHAT_PROVIDER"); v != "" {
		cfg.Chat.Provider = v
	}
	if v := os.Getenv("CLAUSELENS_EMBED_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}

	if cfg.Chat.APIKey == "" && cfg.Chat.Provider == "openai" {
		cfg.Chat.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Embedding.APIKey == "" && cfg.Embedding.Provider == "openai" {
		cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if v := os.Getenv("UPSTAGE_API_KEY"); v != "" {
		if cfg.Upstage == nil {
			cfg.Upstage = &clauselens.UpstageConfig{}
		}
		if cfg.Upstage.APIKey == "" {
			cfg.Upstage.APIKey = v
		}
	}
	if cfg.Search.APIKey == "" {
		cfg.Search.APIKey = os.Getenv("TAVILY_API_KEY")
	}
	if cfg.Blob.Bucket == "" {
		cfg.Blob.Bucket = os.Getenv("BUCKET_NAME")
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Blob.Region = v
	}
	if cfg.Blob.AccessKey == "" {
		cfg.Blob.AccessKey = os.Getenv("AWS_ACCESS_KEY_ID")
	}
	if cfg.Blob.SecretKey == "" {
		cfg.Blob.SecretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	if v := os.Getenv("CLAUSELENS_REDIS_ADDR"); v != "" {
		cfg.Sessions.Backend = "redis"
		cfg.Sessions.RedisAddr = v
	}
}

// newSessionStore builds the configured session backend.
func newSessionStore(cfg clauselens.SessionsConfig) (sessions.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return sessions.NewMemory(), nil
	case "redis":
		return sessions.NewRedis(context.Background(), cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	default:
		return nil, fmt.Errorf("unknown session backend: %s", cfg.Backend)
	}
}

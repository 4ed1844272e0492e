package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"supermart/internal/assistant"
	"supermart/internal/cache"
	"supermart/internal/config"
	"supermart/internal/httpapi"
	"supermart/internal/ledger"
	"supermart/internal/portal"
	"supermart/internal/service"
	"supermart/internal/sheetsync"
	"supermart/internal/store"
	filestore "supermart/internal/store/file"
	pgstore "supermart/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatalf("invalid STORE_TIMEZONE %q: %v", cfg.Timezone, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Store
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with file fallback", err)
		}
		repo = pg
		log.Println("store: postgres")
	} else {
		fs, err := filestore.New(cfg.DataDir)
		if err != nil {
			log.Fatalf("file store %s: %v", cfg.DataDir, err)
		}
		repo = fs
		log.Printf("store: files in %s", cfg.DataDir)
	}

	summaries := cache.SummaryCache(cache.NewMemorySummaryCache())
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisSummaryCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using in-process cache", err)
		} else {
			summaries = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("cache: redis")
		}
	} else {
		log.Println("cache: in-process")
	}

	var generator assistant.Generator = assistant.Unavailable{}
	if cfg.GeminiAPIKey != "" {
		gemini, err := assistant.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Printf("[assistant] WARN: %v; generative features disabled", err)
		} else {
			generator = gemini
			log.Printf("assistant: gemini model=%s", cfg.GeminiModel)
		}
	} else {
		log.Println("assistant: disabled (GEMINI_API_KEY not set)")
	}
	asst := assistant.New(generator, time.Duration(cfg.AssistantTimeoutSeconds)*time.Second, cfg.AssistantRatePerMinute)

	p, err := portal.Open(ctx, repo)
	if err != nil {
		log.Fatalf("open portal: %v", err)
	}
	notifier := sheetsync.New(time.Duration(cfg.SheetSyncTimeoutSeconds) * time.Second)
	engine, err := ledger.Open(ctx, repo, ledger.WithSaleHook(service.SheetSyncHook(p, notifier)))
	if err != nil {
		log.Fatalf("open ledger: %v", err)
	}

	svc := service.New(engine, p, asst,
		service.WithSummaryCache(summaries, time.Duration(cfg.SummaryTTLSeconds)*time.Second),
		service.WithLocation(location),
	)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, svc)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      time.Duration(cfg.AssistantTimeoutSeconds+10) * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("SuperMart console listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	notifier.Wait()

	closers = append(closers, repo.Close)
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if err := validateSecretStrength(cfg.AuthSecret); err != nil {
		return fmt.Errorf("AUTH_SECRET is too weak: %w", err)
	}
	return nil
}

// validateSecretStrength rejects secrets made of one repeated character or
// built from well-known placeholder words.
func validateSecretStrength(secret string) error {
	allSame := true
	for i := 1; i < len(secret); i++ {
		if secret[i] != secret[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("single repeated character not allowed")
	}

	lower := strings.ToLower(secret)
	for _, placeholder := range []string{"change-me", "changeme", "your-secret", "placeholder"} {
		if strings.Contains(lower, placeholder) {
			return fmt.Errorf("placeholder secret not allowed")
		}
	}
	return nil
}

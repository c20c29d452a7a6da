package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"redisquery-backend/internal/config"
	"redisquery-backend/internal/database"
	"redisquery-backend/internal/examples"
	"redisquery-backend/internal/handlers"
	"redisquery-backend/internal/middleware"
	"redisquery-backend/internal/router"
	"redisquery-backend/internal/services"
	"redisquery-backend/internal/session"
	"redisquery-backend/internal/view"
	"redisquery-backend/internal/websocket"
	"redisquery-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting Redis Query Assistant...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Connect Discovery Target (optional) ────
	var redisClient *redis.Client
	if cfg.DiscoveryEnabled() {
		client, err := database.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Printf("✗ Redis connection failed, schema discovery disabled: %v", err)
		} else {
			redisClient = client
			defer redisClient.Close()
			log.Println("✓ Redis connected (schema discovery enabled)")
		}
	} else {
		log.Println("  REDIS_URL not set, schema discovery disabled")
	}
	discoveryService := services.NewDiscoveryService(redisClient, cfg.DiscoveryScanLimit)

	// ──── Step 3: Initialize Gemini Client ────
	geminiService, err := services.NewGeminiService(services.GeminiOptions{
		APIKey:         cfg.GeminiAPIKey,
		Model:          cfg.GeminiModel,
		Temperature:    float32(cfg.GeminiTemperature),
		RequestsPerMin: cfg.GeminiRequestsPerMin,
		ConcurrentReqs: cfg.GeminiConcurrentReqs,
		Timeout:        time.Duration(cfg.GeminiTimeoutSeconds) * time.Second,
	})
	if err != nil {
		log.Fatalf("✗ Gemini client initialization failed: %v", err)
	}
	defer geminiService.Close()
	if geminiService.Configured() {
		log.Printf("✓ Gemini client initialized (%s)", cfg.GeminiModel)
	} else {
		log.Println("✗ GEMINI_API_KEY not set, every turn will fail until it is configured")
	}

	// ──── Step 4: Load Example Catalog ────
	catalog := examples.NewCatalog(cfg.ExamplesFile)
	if err := catalog.Load(); err != nil {
		log.Printf("✗ Examples file not loaded, using built-ins: %v", err)
	}
	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	if err := catalog.Watch(watchCtx); err != nil {
		log.Printf("✗ Examples watcher not started: %v", err)
	}
	log.Printf("✓ Example catalog loaded (%d examples)", catalog.Len())

	// ──── Step 5: Sessions and WebSocket Hub ────
	sessionTTL := time.Duration(cfg.SessionTTLMinutes) * time.Minute
	sessionAuth := middleware.NewSessionAuth(cfg.SessionSecret)
	wsHub := websocket.NewHub(sessionAuth)
	store := session.NewStore(sessionTTL, wsHub)
	store.SetMaxSessions(cfg.MaxSessions)
	wsHub.SetSessions(store)
	store.StartSweeper(time.Minute)
	log.Println("✓ Session store and WebSocket hub started")

	// ──── Step 6: Start Turn Dispatcher ────
	workerPool := worker.NewPool(
		geminiService,
		cfg.WorkerCount,
		cfg.WorkerQueueSize,
		2*time.Duration(cfg.GeminiTimeoutSeconds)*time.Second,
	)
	workerPool.Start()
	log.Printf("✓ Worker pool started (%d goroutines)", cfg.WorkerCount)

	// ──── Step 7: Start HTTP Server ────
	renderer, err := view.NewRenderer()
	if err != nil {
		log.Fatalf("✗ Template parsing failed: %v", err)
	}

	createLimiter := middleware.NewRateLimiter(cfg.SessionCreateRateLimit, time.Minute)
	sendLimiter := middleware.NewRateLimiter(cfg.SendRateLimit, time.Minute)
	sessionHandler := handlers.NewSessionHandler(store, catalog, sessionAuth, workerPool, discoveryService, renderer)
	r := router.New(sessionAuth, createLimiter, sendLimiter, sessionHandler, wsHub, cfg.FrontendURL)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		stopWatch()
		workerPool.Stop()
		store.Stop()
		createLimiter.Stop()
		sendLimiter.Stop()
		wsHub.CloseAll()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ Redis Query Assistant ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}

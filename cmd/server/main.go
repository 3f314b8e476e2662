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

	"docs-editor/internal/api"
	"docs-editor/internal/config"
	"docs-editor/internal/db"
	"docs-editor/internal/middleware"
	"docs-editor/internal/repository"
	"docs-editor/internal/services"
	"docs-editor/internal/services/collaboration"
	"docs-editor/internal/telemetry"
)

/*
LEARNING: GRACEFUL SHUTDOWN

Start order: config -> tracing -> database -> collaboration -> HTTP.
Stop order is the reverse: stop accepting HTTP, close live websocket
sessions, then flush traces and close the database via defers.
*/

func main() {
	log.Println("🚀 Starting collaborative document editor...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	// Initialize tracing first so every operation is traced
	tracingShutdown := func(ctx context.Context) error { return nil }
	if cfg.TracingEnabled {
		shutdown, err := telemetry.InitJaeger(telemetry.Options{
			ServiceName: "docs-editor",
			Endpoint:    cfg.JaegerEndpoint,
			SampleRatio: cfg.TraceSampleRatio,
		})
		if err != nil {
			log.Printf("⚠️  Failed to initialize Jaeger: %v (continuing without tracing)", err)
		} else {
			tracingShutdown = shutdown
		}
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracingShutdown(ctx); err != nil {
			log.Printf("⚠️  Failed to shutdown Jaeger: %v", err)
		}
	}()

	database, err := db.NewGorm(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer database.Close()

	// The registry lives for the whole process and is owned by the gateway
	registry := collaboration.NewRegistry()
	gateway := collaboration.NewGateway(registry)
	wsHandler := collaboration.NewWebSocketHandler(gateway, collaboration.HandlerOptions{
		AllowedOrigins:  cfg.AllowedOrigins,
		SendBuffer:      cfg.WSSendBuffer,
		MaxMessageBytes: cfg.WSMaxMessageBytes,
	})
	log.Println("✓ Collaboration gateway initialized")

	docRepo := repository.NewDocumentRepository(database.DB)
	docService := services.NewDocumentService(docRepo, gateway)

	handler := api.NewHandler(docService, wsHandler, gateway)
	router := api.SetupRoutes(handler, api.RouterOptions{
		Auth:           middleware.NewAuthenticator(cfg.JWTSecret),
		AllowedOrigins: cfg.AllowedOrigins,
	})

	addr := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	server := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
		// No WriteTimeout: it would also cut hijacked websocket connections.
		// The write pump sets per-frame deadlines instead.
	}

	go func() {
		log.Printf("🌐 Server listening on http://%s", addr)
		log.Printf("   WS     /ws                      - Collaboration (join via events)")
		log.Printf("   WS     /ws/document/:id         - Collaboration (auto-join)")
		log.Printf("   *      /api/documents[/...]     - Document store")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown,
	// so close them through the gateway as well.
	gateway.Shutdown()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️  Server forced to shutdown: %v", err)
	}

	log.Println("✓ Server shutdown complete")
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cuepoint/agent/internal/api"
	"cuepoint/agent/internal/config"
	"cuepoint/agent/internal/exchange"
	"cuepoint/agent/internal/sessions"
	"cuepoint/agent/internal/store"
	"cuepoint/agent/internal/workerws"
)

func main() {
	// Load .env file if present (ignored if missing)
	_ = godotenv.Load()

	cfg := config.Load()

	st := store.New()
	client := exchange.NewClient(cfg.Remote.BaseURL)
	reg := workerws.NewRegistry()
	mgr := sessions.NewManager(cfg, st, client, reg)

	h := api.NewHandlers(cfg, st, mgr)
	mux := http.NewServeMux()
	mux.Handle("/", api.NewRouter(h))
	// WS surface route
	wss := workerws.NewServer(cfg, reg)
	mux.HandleFunc("/ws/surface", wss.HandleSurfaceWS)

	// probes/metrics
	go func() {
		pm := http.NewServeMux()
		pm.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("ok\n")) })
		pm.Handle("/metrics", promhttp.Handler())
		log.Printf("probes/metrics on %s", cfg.Metrics.Addr)
		if err := http.ListenAndServe(cfg.Metrics.Addr, pm); err != nil {
			log.Printf("metrics server: %v", err)
		}
	}()

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           logMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		log.Printf("shutdown signal received; stopping server...")
		// Drop surfaces first; hijacked websocket connections are not drained by Shutdown
		mgr.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	log.Printf("server starting on %s (remote %s)", addr, cfg.Remote.BaseURL)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Println("server error:", err)
		os.Exit(1)
	}
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

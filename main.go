package main

import (
	"flag"
	"net/http"
	"strings"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"go.uber.org/zap"

	"github.com/voyago/trip-server/config"
	"github.com/voyago/trip-server/handler"
	"github.com/voyago/trip-server/itinerary"
	"github.com/voyago/trip-server/store"
)

// corsMiddleware wraps an http.Handler with CORS headers.
func corsMiddleware(next http.Handler, allowedOrigins []string) http.Handler {
	// Fast path: wildcard allows everything.
	allowAll := len(allowedOrigins) == 1 && allowedOrigins[0] == "*"

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowAll {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			for _, o := range allowedOrigins {
				if strings.TrimSpace(o) == origin {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Vary", "Origin")
					break
				}
			}
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	s, err := store.New(cfg.Backend, cfg.DataDir, log)
	if err != nil {
		log.Fatal("failed to create store",
			zap.String("backend", cfg.Backend), zap.Error(err))
	}
	if js, ok := s.(*store.JSONFileStore); ok && js.Degraded() {
		log.Warn("store started without prior state",
			zap.String("path", js.Path()))
	}

	gen := itinerary.New(cfg.ItineraryScript, cfg.ItineraryTimeout)
	h := handler.New(s, gen, handler.Options{
		SecretKey:     []byte(cfg.SecretKey),
		TokenValidity: cfg.TokenValidity,
		Log:           log,
	})
	wrapped := corsMiddleware(h, cfg.AllowedOrigins)

	log.Info("trip server starting",
		zap.String("addr", cfg.Addr()),
		zap.String("store", cfg.Backend),
		zap.String("data", cfg.DataDir))
	if err := http.ListenAndServe(cfg.Addr(), wrapped); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}

package main

import (
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

type app struct {
	cfg Config
	db  *gorm.DB
	ml  *http.Client // outbound calls carry per-request context timeouts
}

func newApp(cfg Config, db *gorm.DB) *app {
	return &app{cfg: cfg, db: db, ml: &http.Client{}}
}

func loadDotenv() {
	for _, p := range []string{".env", filepath.Join("..", ".env")} {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Overload(p)
			log.Println("[env] loaded", p)
			return
		}
	}
}

// routes builds the full router. Shared between main and the tests.
func (a *app) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.cfg.allowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	// Finish bare OPTIONS quickly
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, req)
		})
	})
	if a.cfg.isDev() {
		r.Use(requestLogger)
	}

	r.Get("/health", handleHealth)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", a.handleRegister)
		r.Post("/login", a.handleLogin)
		r.Group(func(r chi.Router) {
			r.Use(a.authenticate)
			r.Get("/me", a.handleMe)
			r.Post("/logout", a.handleLogout)
		})
	})

	r.Route("/api/categories", func(r chi.Router) {
		r.Use(a.authenticate)
		r.Get("/", a.handleListCategories)
		r.Get("/all", a.handleListCategories)
		r.Get("/{id}", a.handleGetCategory)
		r.Group(func(r chi.Router) {
			r.Use(a.requireAdmin)
			r.Post("/", a.handleCreateCategory)
			r.Put("/{id}", a.handleUpdateCategory)
			r.Delete("/{id}", a.handleDeleteCategory)
		})
	})

	r.Route("/api/transactions", func(r chi.Router) {
		r.Use(a.authenticate)
		r.Get("/", a.handleListTransactions)
		r.Get("/stats", a.handleTransactionStats)
		r.Get("/{id}", a.handleGetTransaction)
		r.Post("/", a.handleCreateTransaction)
		r.Put("/{id}", a.handleUpdateTransaction)
		r.Delete("/{id}", a.handleDeleteTransaction)
	})

	r.Route("/api/users", func(r chi.Router) {
		r.Use(a.authenticate)
		r.Use(a.requireAdmin)
		r.Get("/", a.handleListUsers)
		r.Get("/{id}", a.handleGetUser)
		r.Put("/{id}/block", a.handleBlockUser)
		r.Delete("/{id}", a.handleDeleteUser)
	})

	r.Route("/api/predict", func(r chi.Router) {
		r.Use(a.authenticate)
		r.Post("/", a.handlePredict)
		r.Get("/history", a.handlePredictHistory)
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		errorJSON(w, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		errorJSON(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "Finance Management API",
	})
}

func main() {
	loadDotenv()

	cfg := loadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[config] %v", err)
	}

	db, err := openDB(cfg)
	if err != nil {
		log.Fatalf("[DB] %v", err)
	}
	if err := autoMigrate(db); err != nil {
		log.Fatalf("[DB] migrate: %v", err)
	}
	if cfg.SeedDatabase {
		if err := seedDatabase(db, cfg); err != nil {
			log.Fatalf("[seed] %v", err)
		}
	}

	a := newApp(cfg, db)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Printf("[http] API listening on %s (env: %s, CORS: %s)", srv.Addr, cfg.Env, cfg.CORSOrigin)
	log.Fatal(srv.ListenAndServe())
}

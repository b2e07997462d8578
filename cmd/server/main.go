package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"isometric/internal/auth"
	"isometric/internal/authcache"
	"isometric/internal/binder"
	"isometric/internal/handlers"
	"isometric/internal/storage"
)

func main() {
	// Load .env if present; env vars already set win.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: could not load .env: %v", err)
	}

	port := envOr("PORT", "8080")
	dbPath := envOr("DB_PATH", "finances.db")

	db, err := storage.NewDB(dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := bootstrapAdmin(db); err != nil {
		log.Fatalf("Failed to bootstrap admin user: %v", err)
	}

	cache := authcache.NewDefault()
	h := handlers.NewHandlers(db, cache)
	mux := setupRouter(h, binder.New(cache))

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s (database: %s)", port, dbPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}

// setupRouter wires every API route onto a fresh mux.
func setupRouter(h *handlers.Handlers, b *binder.Binder) *http.ServeMux {
	mux := http.NewServeMux()
	h.Register(mux, b)
	return mux
}

// bootstrapAdmin creates the initial account from ADMIN_USER and
// ADMIN_PASSWORD when the database has no users yet, so a fresh deployment
// is usable without a separate adduser run.
func bootstrapAdmin(db *storage.DB) error {
	username := os.Getenv("ADMIN_USER")
	password := os.Getenv("ADMIN_PASSWORD")
	if username == "" || password == "" {
		return nil
	}

	count, err := db.UserCount()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, salt, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	user, err := db.CreateUser(username, hash, salt)
	if err != nil {
		return err
	}
	log.Printf("Created initial user %s (ID %d)", user.Username, user.ID)
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

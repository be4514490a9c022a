package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/cors"

	"github.com/shamrockbb/social-backoffice/internal/handlers"
	"github.com/shamrockbb/social-backoffice/internal/social"
	"github.com/shamrockbb/social-backoffice/internal/workers"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Root context for background workers and graceful shutdown
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	// Run migrations on startup
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		log.Fatalf("Failed to init migration driver: %v", err)
	}
	migrator, err := migrate.NewWithDatabaseInstance("file://db/migrations", "postgres", driver)
	if err != nil {
		log.Fatalf("Failed to create migrator: %v", err)
	}
	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		log.Fatalf("Database migration failed: %v", err)
	}
	log.Println("Database is up-to-date")

	origin := os.Getenv("PUBLIC_ORIGIN")
	if origin == "" {
		origin = "http://localhost:18912"
	}

	stateSecret := os.Getenv("OAUTH_STATE_SECRET")
	if stateSecret == "" {
		log.Fatal("OAUTH_STATE_SECRET environment variable is required")
	}

	creds := &social.PGCredentialStore{DB: db}
	audit := &social.PGAuditLog{DB: db}
	media := &social.DirMediaSource{
		Dir:    envOr("MEDIA_DIR", "./media"),
		Origin: origin,
	}
	tokens := &social.TokenManager{
		Creds:       creds,
		StateSecret: []byte(stateSecret),
		RedirectURI: origin + "/oauth/callback",
	}

	delay := social.DefaultInterCallDelay
	if v := os.Getenv("PUBLISH_DELAY_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			delay = time.Duration(ms) * time.Millisecond
		}
	}
	dispatch := social.NewDispatcher(creds, media, tokens, audit, envOr("PUBLISH_ACTOR", "api"), delay)

	drafter := social.NewOpenAIDrafter(os.Getenv("OPENAI_API_KEY"), os.Getenv("OPENAI_API_URL"), os.Getenv("OPENAI_MODEL"))

	h := handlers.New(db, dispatch, tokens, creds, audit, drafter)

	r := mux.NewRouter()
	handlers.RegisterRoutes(h, r)

	// Attachments have to be reachable by the providers that pull media by
	// URL (GBP, TikTok, Instagram, Threads).
	r.PathPrefix("/media/").Handler(http.StripPrefix("/media/", http.FileServer(http.Dir(media.Dir))))

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	handler := c.Handler(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = "18912"
	}

	srv := &http.Server{
		Handler:      handler,
		Addr:         ":" + port,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	// Handle graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Background: keep OAuth tokens fresh so publishes don't land on
	// expired credentials.
	{
		enabled := os.Getenv("TOKEN_REFRESH_ENABLED")
		if enabled == "" || enabled == "true" {
			w := &workers.TokenRefreshWorker{Tokens: tokens, Creds: creds}
			if v := os.Getenv("TOKEN_REFRESH_SHORT_MINUTES"); v != "" {
				if n, err := strconv.Atoi(v); err == nil && n > 0 {
					w.ShortCycleMinutes = n
				}
			}
			if v := os.Getenv("TOKEN_REFRESH_LONG_HOURS"); v != "" {
				if n, err := strconv.Atoi(v); err == nil && n > 0 {
					w.LongCycleHours = n
				}
			}
			go w.Start(rootCtx)
		} else {
			log.Printf("[TokenRefreshWorker] disabled via TOKEN_REFRESH_ENABLED=%q", enabled)
		}
	}

	go func() {
		<-stop
		log.Println("Shutting down server...")
		cancel()
		ctx, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("Server starting on port %s", port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
	log.Println("Server stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

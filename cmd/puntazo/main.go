package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/puntazo/puntazo/internal/catalog"
	"github.com/puntazo/puntazo/internal/database"
	"github.com/puntazo/puntazo/internal/gate"
	"github.com/puntazo/puntazo/internal/geoip"
	"github.com/puntazo/puntazo/internal/server"
	"github.com/puntazo/puntazo/internal/session"
	"github.com/puntazo/puntazo/internal/storage"
	"github.com/puntazo/puntazo/internal/transfer"
	"github.com/puntazo/puntazo/internal/webhook"
)

func main() {
	port := getEnv("PORT", "8080")
	baseURL := getEnv("BASE_URL", "http://localhost:"+port)

	gateSecret := os.Getenv("GATE_SECRET")
	if gateSecret == "" {
		log.Println("GATE_SECRET not set, gated sides cannot be unlocked")
	}

	tz, err := loadTimeZone(os.Getenv("TIMEZONE"))
	if err != nil {
		log.Fatalf("invalid TIMEZONE: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var db *database.DB
	var dbtx database.DBTX
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		db, err = database.Connect(ctx, databaseURL)
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		defer db.Close()

		if err := db.Migrate(databaseURL); err != nil {
			log.Fatalf("database migration failed: %v", err)
		}
		dbtx = db.Pool
		log.Println("database migrations applied")
	}

	var store *storage.Storage
	if bucket := os.Getenv("S3_BUCKET"); bucket != "" {
		store, err = storage.New(ctx, storage.Config{
			Endpoint:       getEnv("S3_ENDPOINT", "http://localhost:9000"),
			PublicEndpoint: os.Getenv("S3_PUBLIC_ENDPOINT"),
			Bucket:         bucket,
			AccessKey:      os.Getenv("S3_ACCESS_KEY"),
			SecretKey:      os.Getenv("S3_SECRET_KEY"),
			Region:         getEnv("S3_REGION", "us-east-1"),
			MaxUploadBytes: getEnvInt64("MAX_UPLOAD_BYTES", 500*1024*1024),
		})
		if err != nil {
			log.Fatalf("storage initialization failed: %v", err)
		}
		log.Println("storage client ready")
	}

	dataDir := os.Getenv("DATA_DIR")
	var dataFS fs.FS
	if dataDir != "" {
		dataFS = os.DirFS(dataDir)
		log.Printf("serving documents from %s under /data/", dataDir)
	}

	source, err := newSource(store, os.Getenv("DATA_BASE_URL"), os.Getenv("S3_DATA_PREFIX"), dataDir, baseURL)
	if err != nil {
		log.Fatalf("catalog source: %v", err)
	}
	loader := catalog.NewLoader(source, tz)

	var gateStore gate.Store
	if dbtx != nil {
		gateStore = gate.NewPGStore(dbtx)
	}

	geo, err := geoip.New(os.Getenv("GEOIP_DB_PATH"))
	if err != nil {
		log.Fatalf("geoip initialization failed: %v", err)
	}
	defer func() { _ = geo.Close() }()

	webhooks := webhook.New(dbtx, os.Getenv("WEBHOOK_URL"), os.Getenv("WEBHOOK_SECRET"))
	if webhooks.Enabled() {
		log.Println("webhook delivery enabled")
	}

	var linker transfer.Linker = transfer.URLLinker{}
	if store != nil {
		linker = transfer.StorageLinker{
			Store:   store,
			BaseURL: os.Getenv("CLIP_BASE_URL"),
			Expiry:  time.Duration(getEnvInt64("DOWNLOAD_LINK_TTL_SECONDS", 3600)) * time.Second,
		}
	}

	cfg := server.Config{
		Controller: session.New(session.Config{
			Loader: loader,
			Gate:   gate.New(gateStore, loader),
		}),
		GateSecret:  gateSecret,
		BaseURL:     baseURL,
		MediaOrigin: os.Getenv("MEDIA_ORIGIN"),
		DataFS:      dataFS,
		Linker:      linker,
		Webhooks:    webhooks,
		GeoIP:       geo,
		PassBurst:   int(getEnvInt64("PASS_ATTEMPT_BURST", 3)),
		EnableDocs:  getEnv("API_DOCS_ENABLED", "false") == "true",
	}
	if db != nil {
		cfg.Pinger = db
	}
	srv := server.New(cfg)

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	go srv.PassLimiter().Run(bgCtx, time.Minute, 10*time.Minute)
	if store != nil {
		storage.StartRetentionLoop(bgCtx, store, transfer.SharedPrefix, storage.SharedRetention, 30*time.Minute)
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("puntazo listening on :%s", port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-shutdownCh
	log.Println("shutting down...")
	bgCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown failed: %v", err)
	}
	webhooks.Wait()
	log.Println("shutdown complete")
}

// newSource picks where catalog documents come from: the bucket when one is
// configured, otherwise DATA_BASE_URL, otherwise this server's own /data/.
func newSource(store *storage.Storage, dataBaseURL, prefix, dataDir, baseURL string) (catalog.Source, error) {
	if store != nil {
		return catalog.NewStorageSource(store, prefix, storage.ErrObjectNotFound), nil
	}
	if dataBaseURL == "" {
		if dataDir == "" {
			return nil, errors.New("one of S3_BUCKET, DATA_BASE_URL or DATA_DIR is required")
		}
		u, err := url.JoinPath(baseURL, "data")
		if err != nil {
			return nil, fmt.Errorf("derive data url: %w", err)
		}
		dataBaseURL = u
	}
	return catalog.NewHTTPSource(dataBaseURL, nil)
}

func loadTimeZone(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

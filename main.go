package main

import (
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"hydrolog/internal/audit"
	"hydrolog/internal/auth"
	checklistapp "hydrolog/internal/checklist/application"
	checklistrepo "hydrolog/internal/checklist/infrastructure/postgres"
	checklisthttp "hydrolog/internal/checklist/interfaces/http"
	"hydrolog/internal/eventing"
	logapp "hydrolog/internal/hourlylog/application"
	hourlylog "hydrolog/internal/hourlylog/domain"
	logrepo "hydrolog/internal/hourlylog/infrastructure/postgres"
	loghttp "hydrolog/internal/hourlylog/interfaces/http"
	issueapp "hydrolog/internal/issues/application"
	issuerepo "hydrolog/internal/issues/infrastructure/postgres"
	issuehttp "hydrolog/internal/issues/interfaces/http"
	"hydrolog/internal/issues/notify"
	"hydrolog/internal/observability/metrics"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)

	location, err := time.LoadLocation(cfg.PlantTimezone)
	if err != nil {
		logger.Fatalf("plant timezone error: %v", err)
	}
	policy := hourlylog.NewEditPolicy(location)

	ranges, err := logapp.LoadRangeConfig(cfg.RangeConfigPath)
	if err != nil {
		logger.Fatalf("range config error: %v", err)
	}

	bus := eventing.NewInMemoryBus()

	recordRepo := logrepo.NewRecordRepository(db)
	finalRepo := logrepo.NewFinalizationRepository(db)

	saveService, err := logapp.NewSaveService(recordRepo, finalRepo, ranges, policy, bus, logger)
	if err != nil {
		logger.Fatalf("save service error: %v", err)
	}
	finalizeService, err := logapp.NewFinalizeService(recordRepo, finalRepo, bus, logapp.SystemClock{}, logger)
	if err != nil {
		logger.Fatalf("finalize service error: %v", err)
	}

	checklistService, err := checklistapp.NewService(checklistrepo.NewChecklistRepository(db), bus, logger)
	if err != nil {
		logger.Fatalf("checklist service error: %v", err)
	}

	issueOpts := []issueapp.ServiceOption{}
	if cfg.IssueWebhookURL != "" {
		notifier, err := notify.NewWebhookNotifier(
			cfg.IssueWebhookURL,
			notify.WithMaxRetries(uint64(cfg.IssueWebhookRetries)),
			notify.WithRetryInterval(cfg.IssueWebhookInterval),
		)
		if err != nil {
			logger.Fatalf("issue webhook error: %v", err)
		}
		issueOpts = append(issueOpts, issueapp.WithNotifier(notifier))
	}
	issueService, err := issueapp.NewService(issuerepo.NewIssueRepository(db), logger, issueOpts...)
	if err != nil {
		logger.Fatalf("issue service error: %v", err)
	}
	issueService.Register(bus)

	logHandler, err := loghttp.NewHandler(saveService, finalizeService, auditRepo, logger)
	if err != nil {
		logger.Fatalf("log handler error: %v", err)
	}
	checklistHandler, err := checklisthttp.NewHandler(checklistService, auditRepo, logger)
	if err != nil {
		logger.Fatalf("checklist handler error: %v", err)
	}
	issueHandler, err := issuehttp.NewHandler(issueService, auditRepo, logger)
	if err != nil {
		logger.Fatalf("issue handler error: %v", err)
	}

	authPolicy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), authPolicy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/logs", logHandler)
	mux.Handle("/api/v1/logs/hour", logHandler)
	mux.Handle("/api/v1/logs/finalize", logHandler)
	mux.Handle("/api/v1/logs/export.pdf", logHandler)
	mux.Handle("/api/v1/logs/export.xlsx", logHandler)
	mux.Handle("/api/v1/checklists", checklistHandler)
	mux.Handle("/api/v1/issues", issueHandler)
	mux.Handle("/api/v1/issues/", issueHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL          string
	HTTPAddr             string
	PlantTimezone        string
	RangeConfigPath      string
	JWTSecret            string
	IssueWebhookURL      string
	IssueWebhookRetries  int
	IssueWebhookInterval time.Duration
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:          getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:             getenvDefault("HTTP_ADDR", ":8080"),
		PlantTimezone:        getenvDefault("PLANT_TZ", "UTC"),
		RangeConfigPath:      getenvDefault("RANGE_CONFIG_PATH", ""),
		JWTSecret:            getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		IssueWebhookURL:      getenvDefault("ISSUE_WEBHOOK_URL", ""),
		IssueWebhookRetries:  getenvIntDefault("ISSUE_WEBHOOK_RETRIES", 5),
		IssueWebhookInterval: getenvDuration("ISSUE_WEBHOOK_INTERVAL", 500*time.Millisecond),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	if cfg.IssueWebhookRetries < 0 {
		cfg.IssueWebhookRetries = 0
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/passage-quiz/backend/internal/auth"
	"github.com/passage-quiz/backend/internal/config"
	"github.com/passage-quiz/backend/internal/database"
	"github.com/passage-quiz/backend/internal/export"
	"github.com/passage-quiz/backend/internal/generator"
	"github.com/passage-quiz/backend/internal/layout"
	"github.com/passage-quiz/backend/internal/logger"
	"github.com/passage-quiz/backend/internal/middleware"
	"github.com/passage-quiz/backend/internal/points"
	"github.com/passage-quiz/backend/internal/quiz"
)

func main() {
	cfg := config.Load()

	appLog, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer appLog.Sync()

	if cfg.UsesDefaultJWTSecret() {
		appLog.Warn("JWT_SECRET not set, using the development signing key")
	}

	// Initialize database
	db, err := database.Connect(cfg.DB)
	if err != nil {
		appLog.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		appLog.Fatal("Failed to run migrations", "error", err)
	}

	// Page layout and PDF export
	layoutModel := layout.DefaultModel()
	if cfg.LayoutModelPath != "" {
		layoutModel, err = layout.LoadModel(cfg.LayoutModelPath)
		if err != nil {
			appLog.Fatal("Failed to load layout model", "path", cfg.LayoutModelPath, "error", err)
		}
	}
	renderer, err := export.NewRenderer(export.Config{FontPath: cfg.PDFFontPath})
	if err != nil {
		appLog.Fatal("Failed to create PDF renderer", "error", err)
	}
	if cfg.PDFFontPath == "" {
		appLog.Warn("PDF_FONT_PATH not set, exported PDFs will drop non-Latin text")
	}

	// Generator
	llm, modelName, err := generator.NewLLMClient(cfg, appLog)
	if err != nil {
		appLog.Fatal("Failed to create LLM client", "error", err)
	}
	gen := generator.NewGenerator(llm, modelName)

	// Initialize services and handlers
	pointsService := points.NewService(points.NewStore(db), points.NewCosts(cfg.Costs), appLog)
	pointsHandler := points.NewHandler(pointsService)

	authHandler := auth.NewHandler(db, []byte(cfg.JWTSecret), pointsService, cfg.SignupBonusPoints, appLog)

	quizService := quiz.NewService(pointsService, gen, quiz.NewStore(db), layoutModel, renderer, appLog)
	quizHandler := quiz.NewHandler(quizService, appLog)

	// Setup router
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()

	// Public routes
	api.HandleFunc("/auth/register", authHandler.Register).Methods("POST")
	api.HandleFunc("/auth/login", authHandler.Login).Methods("POST")
	api.HandleFunc("/points/costs", pointsHandler.GetCosts).Methods("GET")

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.Auth([]byte(cfg.JWTSecret)))
	protected.HandleFunc("/auth/me", authHandler.GetCurrentUser).Methods("GET")
	protected.HandleFunc("/points", pointsHandler.GetBalance).Methods("GET")
	protected.HandleFunc("/points/events", pointsHandler.ListEvents).Methods("GET")
	quizHandler.RegisterRoutes(protected)

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"db_unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	r.Use(middleware.RequestID, middleware.AccessLog(appLog), middleware.Recover(appLog))

	// CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "Content-Disposition"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: c.Handler(r),
	}

	go func() {
		appLog.Info("Server starting", "port", cfg.Port, "provider", cfg.LLMProvider, "model", modelName)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal("Server failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	appLog.Info("Shutting down", "timeout", cfg.ShutdownTimeout.String())
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLog.Error("Graceful shutdown failed", "error", err)
	}
}

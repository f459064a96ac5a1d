package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/slack-go/slack"

	"meetsync/config"
	"meetsync/cron"
	"meetsync/database"
	archiveRepo "meetsync/database/repository/archive"
	constraintRepo "meetsync/database/repository/constraint"
	sessionRepo "meetsync/database/repository/session"
	"meetsync/handlers"
	"meetsync/middleware"
	"meetsync/routes"
	calendarSvc "meetsync/services/calendar"
	"meetsync/services/constraints"
	ai "meetsync/services/intelligence"
	"meetsync/services/messaging"
	"meetsync/services/negotiation"
	"meetsync/services/scheduling"
	"meetsync/utils"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	database.InitDB()
	utils.InitSessionCache()
	utils.InitDedupCache()
	utils.InitContextCache()

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())
	router.Use(middleware.RateLimitMiddleware())
	router.Use(cors.Default())

	// repositories.
	consRepo := constraintRepo.NewMongoConstraintRepo()
	sessions := sessionRepo.NewRedisSessionRepo(utils.GetSessionCacheClient())
	archive := archiveRepo.NewMongoArchiveRepo()

	// services.
	constraintEngine := &constraints.DefaultConstraintEngine{
		Repo: consRepo,
	}

	generator := &scheduling.Generator{
		GridMinutes:   config.AppConfig.SlotGridMinutes,
		MaxCandidates: config.AppConfig.MaxCandidates,
	}

	slackAPI := slack.New(config.AppConfig.SlackBotToken)
	authCtx, cancelAuth := context.WithTimeout(context.Background(), 10*time.Second)
	auth, err := slackAPI.AuthTestContext(authCtx)
	cancelAuth()
	if err != nil {
		logger.Sugar().Fatalf("main: slack auth test failed: %v", err)
	}
	messenger := messaging.NewSlackMessengerWithClient(slackAPI)

	calendarBackend, err := calendarSvc.NewGoogleCalendarService(
		context.Background(),
		config.AppConfig.GoogleCredentials,
		config.AppConfig.CalendarTimeZone,
	)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to initialize calendar backend: %v", err)
	}

	tz, err := time.LoadLocation(config.AppConfig.CalendarTimeZone)
	if err != nil {
		logger.Sugar().Fatalf("main: bad CALENDAR_TIMEZONE %q: %v", config.AppConfig.CalendarTimeZone, err)
	}

	ctxStore := ai.NewRedisContextStore(utils.GetContextCacheClient(), 30*time.Minute)
	extractor := ai.NewExtractorService(
		ai.NewGeminiClient(config.AppConfig.GeminiAPIKey),
		ctxStore,
		tz,
	)

	engine := &negotiation.DefaultNegotiationEngine{
		Sessions:    sessions,
		Archive:     archive,
		Constraints: constraintEngine,
		Generator:   generator,
		Messenger:   messenger,
		Directory:   messenger,
		Calendar:    calendarBackend,
		Extractor:   extractor,
		MaxRounds:   config.AppConfig.MaxRounds,
	}

	dispatcher := negotiation.NewDispatcher(engine, negotiation.NewRedisDeduper())

	eventsHandler := handlers.NewEventsHandler(dispatcher, auth.UserID)
	sessionHandler := handlers.NewSessionHandler(sessions, archive)
	constraintHandler := handlers.NewConstraintHandler(constraintEngine)

	// Assemble the handler bundle.
	handlerBundle := &handlers.HandlerBundle{
		SlackEventsHandler: eventsHandler.SlackEventsHandler,

		GetSessionHandler:   sessionHandler.GetSessionHandler,
		ListSessionsHandler: sessionHandler.ListSessionsHandler,

		AddConstraintHandler:    constraintHandler.AddConstraintHandler,
		ListConstraintsHandler:  constraintHandler.ListConstraintsHandler,
		DeleteConstraintHandler: constraintHandler.DeleteConstraintHandler,
	}

	// Register routes with the assembled handler bundle.
	routes.RegisterRoutes(router, handlerBundle)

	// Background stale-session sweep.
	cron.InitSweepWorker(sessions, archive)

	// Start the HTTP server.
	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Fatalf("main: server forced to shutdown: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}

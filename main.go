package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"trivia-match-system/handlers"
	"trivia-match-system/middleware"
	"trivia-match-system/models"
	"trivia-match-system/services"
	"trivia-match-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{})

	// 🔐 GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	// Load allowed origins from environment variable
	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.MatchSession{},
		&models.AnswerRecord{},
		&models.PlayerStats{},
		&models.MatchNotification{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	matchService := services.NewMatchService(db)
	answerService := services.NewAnswerService(db)
	forfeitService := services.NewForfeitService(db)
	statsService := services.NewStatsService(db)

	// --- Notification service details (external collaborator) ---
	notifyServiceURL := os.Getenv("NOTIFY_SERVICE_URL")
	if notifyServiceURL == "" {
		log.Fatal("NOTIFY_SERVICE_URL environment variable not set")
	}
	matchServiceToken := os.Getenv("MATCH_SERVICE_TOKEN")
	if matchServiceToken == "" {
		log.Fatal("MATCH_SERVICE_TOKEN environment variable not set")
	}

	notificationWorker := workers.NewNotificationWorker(db, notifyServiceURL, "/api/v1/notifications", matchServiceToken)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	notificationWorker.Start(ctx)

	matchService.StartDeadlineScheduler()

	handlers.SetupMatchRoutes(app, matchService, answerService, forfeitService, statsService)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5300"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Println("✅ Notification Worker running")
	log.Println("✅ Question deadline sweep running (every 2s)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}

package main

import (
	"log"

	"bestsellers-etl/config"
	"bestsellers-etl/controllers"
	"bestsellers-etl/middleware"
	"bestsellers-etl/monitor"
	"bestsellers-etl/routes"
	"bestsellers-etl/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	settings, err := config.LoadSettings()
	if err != nil {
		log.Fatalf("configuration: %v", err)
	}

	logger, logFile := config.InitLogging(settings, "api")
	if logFile != nil {
		defer logFile.Close()
	}
	defer logger.Sync() //nolint:errcheck

	db, err := config.InitDB(settings)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}

	if settings.Server.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.LoggerWithWriter(config.LogWriter))
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())

	monitor.RegisterMetricsRoute(router, monitor.NewRegistry())

	status := controllers.NewStatusController(
		services.NewLoadStatusService(db, logger),
		services.NewEtlRunService(db),
		logger,
	)
	routes.SetupRoutes(router, status, settings.Server.JWTSecret)

	logger.Info("server starting",
		zap.String("port", settings.Server.Port),
		zap.Bool("auth_required", settings.Server.JWTSecret != ""))

	if err := router.Run(":" + settings.Server.Port); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}

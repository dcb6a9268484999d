package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "taskmarket/docs" // swagger docs

	"github.com/labstack/echo/v4"

	"taskmarket/internal/auth"
	"taskmarket/internal/cache"
	"taskmarket/internal/config"
	"taskmarket/internal/db"
	"taskmarket/internal/handler"
	"taskmarket/internal/logging"
	"taskmarket/internal/repository"
	"taskmarket/internal/router"
	"taskmarket/internal/service"
	"taskmarket/internal/storage"
)

// @title Taskmarket API
// @version 1.0
// @description Marketplace where buyers post tasks, developers deliver them and buyers pay per hour.
// @host localhost:8080
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	gormDB, err := db.Open(cfg.DBDriver, cfg.DBDSN, db.Options{
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
	})
	if err != nil {
		log.Fatalf("database init: %v", err)
	}

	if cfg.ResetDB {
		log.Warn("RESET_DB=true detected, dropping all tables")
		if err := db.DropAll(gormDB); err != nil {
			log.WithError(err).Warn("failed to drop tables")
		}
	}

	if err := db.Migrate(gormDB); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, log)
	defer cacheClient.Close()
	if err := cacheClient.Ping(context.Background()); err != nil {
		log.WithError(err).Warn("redis unavailable, running without cache and token revocation")
	}

	files, err := storage.New(context.Background(), storage.Config{
		Driver:     cfg.StorageDriver,
		LocalRoot:  cfg.StorageLocalRoot,
		S3Bucket:   cfg.S3Bucket,
		S3Region:   cfg.S3Region,
		S3Key:      cfg.S3Key,
		S3Secret:   cfg.S3Secret,
		S3Endpoint: cfg.S3Endpoint,
	})
	if err != nil {
		log.Fatalf("storage init: %v", err)
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(gormDB)
	projectRepo := repository.NewProjectRepository(gormDB)
	taskRepo := repository.NewTaskRepository(gormDB)
	paymentRepo := repository.NewPaymentRepository(gormDB)

	// Initialize auth components
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	tokenStore := auth.NewTokenStore(cacheClient)

	// Initialize services
	userService := service.NewUserService(userRepo, cacheClient)
	authService := service.NewAuthService(userRepo, jwtService, tokenStore, log)
	projectService := service.NewProjectService(projectRepo, log)
	taskService := service.NewTaskService(taskRepo, projectRepo, userRepo, files, log)
	paymentService := service.NewPaymentService(taskRepo, projectRepo, paymentRepo, log)
	adminService := service.NewAdminService(userRepo, projectRepo, taskRepo, paymentRepo)

	e := echo.New()
	e.HideBanner = true

	// Register routes
	router.Register(e, cfg, log, auth.NewGate(userService, tokenStore), router.Handlers{
		Auth:    handler.NewAuthHandler(authService),
		User:    handler.NewUserHandler(userService),
		Project: handler.NewProjectHandler(projectService),
		Task:    handler.NewTaskHandler(taskService),
		Payment: handler.NewPaymentHandler(paymentService),
		Admin:   handler.NewAdminHandler(adminService),
	})

	log.Infof("Swagger documentation available at: %s", swaggerURL(cfg))

	go func() {
		addr := ":" + cfg.ServerPort
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.WithError(err).Error("server shutdown")
	}
}

func swaggerURL(cfg *config.Config) string {
	host := cfg.SwaggerHost
	if host == "" {
		host = "localhost:" + cfg.ServerPort
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return host + "/swagger/index.html"
}

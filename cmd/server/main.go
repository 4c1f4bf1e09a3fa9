package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/kishan611/backend-project/internal/config"
	"github.com/kishan611/backend-project/internal/database"
	"github.com/kishan611/backend-project/internal/handler"
	appmw "github.com/kishan611/backend-project/internal/middleware"
	"github.com/kishan611/backend-project/internal/queue"
	"github.com/kishan611/backend-project/internal/repository"
	"github.com/kishan611/backend-project/internal/router"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis backs the rate limiter and the response cache.  Both degrade
	// to pass-through when the client is nil, so a missing Redis never
	// blocks startup.
	rdb := config.NewRedisClient()

	userRepo := repository.NewUserRepo(db)
	tokenRepo := repository.NewTokenRepo(db)
	slotRepo := repository.NewSlotRepo(db)
	bookingRepo := repository.NewBookingRepo(db)

	authHandler := handler.NewAuthHandler(cfg, userRepo, tokenRepo)
	slotHandler := handler.NewSlotHandler(slotRepo)
	bookingHandler := handler.NewBookingHandler(slotRepo, bookingRepo)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(appmw.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	e.Use(appmw.NewRedisCache(config.LoadCacheConfig(), rdb))

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authHandler, cfg.JWTSecret)
	router.RegisterSlotBrowse(e, slotHandler, cfg.JWTSecret)
	router.RegisterOwner(e, slotHandler, cfg.JWTSecret)
	router.RegisterCustomer(e, bookingHandler, cfg.JWTSecret)

	// The consumer reconnects on its own; a broker outage only pauses
	// event logging.
	go func() {
		if err := queue.StartBookingConsumer(); err != nil {
			log.Printf("booking consumer stopped: %v", err)
		}
	}()

	if err := e.Start(":" + cfg.Port); err != nil {
		log.Fatalf("server: %v", err)
	}
}

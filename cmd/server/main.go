package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/eventix/event-ticketing/internal/config"
	"github.com/eventix/event-ticketing/internal/database"
	"github.com/eventix/event-ticketing/internal/gateway"
	"github.com/eventix/event-ticketing/internal/handler"
	"github.com/eventix/event-ticketing/internal/middleware"
	"github.com/eventix/event-ticketing/internal/queue"
	"github.com/eventix/event-ticketing/internal/repository"
	"github.com/eventix/event-ticketing/internal/router"
	queue_publisher "github.com/eventix/event-ticketing/internal/service"
)

func main() {
	// Load a local .env when present; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	eventRepo := repository.NewEventRepo(db)
	ticketRepo := repository.NewTicketRepo(db)
	paymentRepo := repository.NewPaymentRepo(db)

	signer := gateway.NewSigner(cfg.Gateway)
	builder := gateway.NewBuilder(cfg.Gateway, signer)

	ticketHandler := handler.NewTicketHandler(eventRepo, ticketRepo, cfg.TicketHold)
	paymentHandler := handler.NewPaymentHandler(ticketRepo, paymentRepo, builder)
	reconcileHandler := handler.NewReconcileHandler(ticketRepo, paymentRepo, signer, queue_publisher.PublishTicketBooked)

	// Redis-backed rate limiting; nil client disables it.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable, rate limiting disabled")
	}
	apiLimit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cbLimit := middleware.NewTokenBucket(config.LoadCallbackRateLimit(), rdb)

	// Background expiry sweep.  Pending tickets whose hold window has
	// passed are settled even when nobody reads them; the CAS statement
	// makes overlapping runs harmless.
	go func() {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			n, err := ticketRepo.ExpireSweep(ctx, time.Now())
			cancel()
			if err != nil {
				log.Printf("expiry sweep: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("expiry sweep: expired %d tickets", n)
			}
		}
	}()

	// Consume booking events into the audit log.
	go func() {
		if err := queue.StartBookedConsumer(); err != nil {
			log.Printf("booked consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterTicketing(e, ticketHandler, paymentHandler, cfg.JWTSecret, apiLimit)
	router.RegisterCallbacks(e, reconcileHandler, cbLimit)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

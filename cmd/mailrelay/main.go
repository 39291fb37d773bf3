package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/kanucard/concierge/internal/config"
	"github.com/kanucard/concierge/internal/handlers"
	"github.com/kanucard/concierge/internal/mail"
	"github.com/kanucard/concierge/internal/middleware"
	"github.com/kanucard/concierge/pkg/logger"
)

// The mail relay runs on a host with working outbound SMTP and accepts
// forwarded messages from app servers whose own SMTP egress is blocked.
func main() {
	logger.Init()

	cfg := config.Load()
	if cfg.Relay.APIKey == "" {
		log.Fatal("RELAY_API_KEY is required")
	}

	relayHandler := handlers.NewRelayHandler(mail.NewSMTPChannel(cfg.SMTP), cfg.Relay.APIKey)

	app := fiber.New(fiber.Config{BodyLimit: 1 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.RequestLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	app.Post("/api/send-email", relayHandler.SendEmail)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("relay_starting", map[string]interface{}{
		"address":   listenAddr,
		"smtp_host": cfg.SMTP.Host,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down relay due to signal: %s", sig)
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
	case err := <-errCh:
		if err != nil {
			log.Fatalf("relay error: %v", err)
		}
	}
}

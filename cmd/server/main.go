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
	"github.com/redis/go-redis/v9"

	"github.com/kanucard/concierge/internal/config"
	"github.com/kanucard/concierge/internal/database"
	"github.com/kanucard/concierge/internal/handlers"
	"github.com/kanucard/concierge/internal/mail"
	"github.com/kanucard/concierge/internal/middleware"
	"github.com/kanucard/concierge/internal/otp"
	"github.com/kanucard/concierge/internal/services"
	"github.com/kanucard/concierge/internal/shopify"
	"github.com/kanucard/concierge/internal/sms"
	"github.com/kanucard/concierge/pkg/logger"
	"github.com/kanucard/concierge/pkg/utils"
)

func main() {
	logger.Init()

	cfg := config.Load()
	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.SessionExpiry, cfg.JWT.ApprovalExpiry)

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	shopifyClient := shopify.NewClient(cfg.Shopify)
	if !shopifyClient.Configured() {
		log.Fatal("shopify credentials missing: set SHOPIFY_SHOP_NAME and SHOPIFY_ADMIN_ACCESS_TOKEN")
	}

	mailer := buildMailer(cfg)

	var smsSender sms.Sender
	if twilioSender := sms.NewTwilioSender(cfg.Twilio); twilioSender != nil {
		smsSender = twilioSender
	}

	store := buildStore(cfg.Redis)
	approvalService := services.NewApprovalService(db)
	otpService := otp.NewService(shopifyClient, store, mailer, smsSender, approvalService, cfg.OTP)
	otpService.StartSweep(cfg.OTP.SweepInterval)

	authHandler := handlers.NewAuthHandler(db, otpService)
	approvalHandler := handlers.NewApprovalHandler(db, mailer, cfg.Server.FrontendURL)
	ssoHandler := handlers.NewSSOHandler(db, cfg.Google, shopifyClient, cfg.Server.FrontendURL)

	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: 1 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS(cfg.Server.FrontendURL))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/request-code", authHandler.RequestCode)
	authRoutes.Post("/verify", authHandler.VerifyCode)
	authRoutes.Post("/refresh", authMiddleware.RequireAuth, authHandler.Refresh)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)
	authRoutes.Post("/logout", authMiddleware.RequireAuth, authHandler.Logout)
	authRoutes.Get("/google", ssoHandler.GetLoginRedirect)
	authRoutes.Get("/google/callback", ssoHandler.HandleCallback)

	approvalRoutes := api.Group("/approvals")
	approvalRoutes.Post("/", middleware.AdminBasicAuth(cfg.Admin), approvalHandler.Create)
	approvalRoutes.Get("/:key", middleware.RequireApproval, approvalHandler.Get)
	approvalRoutes.Post("/:key/respond", middleware.RequireApproval, approvalHandler.Respond)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":           cfg.Server.Port,
		"address":        listenAddr,
		"relay_fallback": cfg.Relay.Enabled,
		"sms_enabled":    smsSender != nil,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
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
			log.Fatalf("server error: %v", err)
		}
	}
}

// buildMailer wires the SMTP channel with the optional relay fallback. The
// relay is attached only when it is both enabled and fully configured.
func buildMailer(cfg *config.Config) mail.Sender {
	primary := mail.NewSMTPChannel(cfg.SMTP)

	var secondary mail.Channel
	if cfg.Relay.Enabled && cfg.Relay.URL != "" && cfg.Relay.APIKey != "" {
		secondary = mail.NewRelayChannel(cfg.Relay)
	}

	return mail.NewFallbackSender(primary, secondary)
}

// buildStore picks Redis when an address is configured, otherwise the
// process-local map.
func buildStore(cfg config.RedisConfig) otp.Store {
	if cfg.Addr == "" {
		return otp.NewMemoryStore()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	logger.Info("challenge_store_redis", map[string]interface{}{
		"addr": cfg.Addr,
	})

	return otp.NewRedisStore(client)
}

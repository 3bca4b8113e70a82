package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/parallax/parallax-api/internal/config"
	"github.com/parallax/parallax-api/internal/domain/ledger"
	"github.com/parallax/parallax-api/internal/domain/purchase"
	"github.com/parallax/parallax-api/internal/domain/realtime"
	"github.com/parallax/parallax-api/internal/domain/topup"
	"github.com/parallax/parallax-api/internal/domain/webhook"
	"github.com/parallax/parallax-api/internal/middleware"
	"github.com/parallax/parallax-api/internal/pkg/database"
	"github.com/parallax/parallax-api/internal/pkg/gateway"
	"github.com/parallax/parallax-api/internal/pkg/jwt"
	"github.com/parallax/parallax-api/internal/pkg/logger"
	"github.com/parallax/parallax-api/internal/pkg/migrate"
	"github.com/parallax/parallax-api/internal/pkg/moneymotion"
	"github.com/parallax/parallax-api/internal/pkg/ratelimit"
	pkgresponse "github.com/parallax/parallax-api/internal/pkg/response"
	"github.com/parallax/parallax-api/internal/pkg/robokassa"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting Parallax API")

	ctx := context.Background()

	db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	if cfg.AutoMigrate {
		if err := migrate.Up(ctx, db.DB); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
	}

	redisClient, err := database.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redisClient)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)
	store := ledger.NewStore(db)

	// ---------- Gateways ----------
	hashAlgo, err := robokassa.NormalizeHashAlgorithm(cfg.RoboKassaHashAlgo)
	if err != nil {
		log.Fatal().Err(err).Str("algo", cfg.RoboKassaHashAlgo).Msg("Invalid RoboKassa hash algorithm")
	}
	roboClient := robokassa.NewClient(robokassa.Config{
		MerchantLogin: cfg.RoboKassaMerchantLogin,
		Password1:     cfg.RoboKassaPassword1,
		Password2:     cfg.RoboKassaPassword2,
		TestMode:      cfg.RoboKassaTestMode,
		HashAlgo:      hashAlgo,
	})
	registry := gateway.NewRegistry(
		moneymotion.NewClient(moneymotion.Config{
			BaseURL: cfg.MoneyMotionBaseURL,
			APIKey:  cfg.MoneyMotionAPIKey,
			Timeout: cfg.GatewayTimeout,
		}),
		roboClient,
		gateway.ManualAdapter{},
	)

	pricing, err := loadPricing(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid top-up bonus tiers")
	}

	checkPaymentMethods(ctx, store, registry)

	// ---------- Realtime ----------
	hub := realtime.NewHub(redisClient)
	go hub.Run()
	defer hub.Shutdown()

	// ---------- Services ----------
	purchaseService := purchase.NewService(store, hub)
	topupService := topup.NewService(store, registry, topup.Config{
		Pricing:        pricing,
		GatewayTimeout: cfg.GatewayTimeout,
		FrontendURL:    cfg.FrontendURL,
	})
	webhookConfig := webhook.Config{MoneyMotionSecret: cfg.MoneyMotionWebhookSecret}
	if cfg.RoboKassaPassword2 != "" {
		webhookConfig.RoboKassa = roboClient
	}
	webhookService := webhook.NewService(store, hub, webhookConfig)

	topupLimit := ratelimit.Limit{
		Store:  newRateStore(redisClient),
		Window: cfg.TopUpRateWindow,
		Max:    cfg.TopUpRateMax,
	}

	r := newRouter(routerDeps{
		AllowedOrigins: cfg.AllowedOrigins,
		Auth:           middleware.Auth(jwtService),
		TopUpRateLimit: middleware.RateLimit(topupLimit),
		Purchase:       purchase.NewHandler(purchaseService),
		TopUp:          topup.NewHandler(topupService),
		Webhooks:       webhook.NewHandler(webhookService),
		Realtime:       realtime.NewHandler(hub, cfg.AllowedOrigins),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

type routerDeps struct {
	AllowedOrigins []string
	Auth           func(http.Handler) http.Handler
	TopUpRateLimit func(http.Handler) http.Handler
	Purchase       *purchase.Handler
	TopUp          *topup.Handler
	Webhooks       *webhook.Handler
	Realtime       *realtime.Handler
}

func newRouter(d routerDeps) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(d.AllowedOrigins))

	// WebSocket endpoint; the only route that takes ?token=
	r.Mount("/ws", d.Realtime.Routes(d.Auth))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	// Providers call these directly: no user auth, signature checked inside.
	r.Mount("/webhooks", d.Webhooks.Routes())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
			pkgresponse.OK(w, map[string]string{"message": "pong"})
		})

		r.Mount("/topup", d.TopUp.Routes(d.Auth, d.TopUpRateLimit))
		r.Mount("/transactions", d.TopUp.TransactionRoutes(d.Auth))
		r.Mount("/payment-methods", d.TopUp.MethodRoutes())
		r.Mount("/", d.Purchase.Routes(d.Auth))
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Mount("/payment-methods", d.TopUp.AdminRoutes(d.Auth, middleware.RequireAdmin()))
	})

	return r
}

func loadPricing(cfg *config.Config) (topup.Pricing, error) {
	tiers := topup.DefaultTiers
	if cfg.TopUpBonusTiers != "" {
		parsed, err := topup.ParseTiers(cfg.TopUpBonusTiers)
		if err != nil {
			return topup.Pricing{}, err
		}
		tiers = parsed
	}
	if err := topup.ValidateTiers(tiers); err != nil {
		return topup.Pricing{}, err
	}
	return topup.Pricing{
		Tiers:     tiers,
		PRXPerUSD: cfg.PRXPerUSD,
		Min:       cfg.TopUpMin,
		Max:       cfg.TopUpMax,
	}, nil
}

// checkPaymentMethods reports enabled methods that no adapter can serve.
// Starting a top-up with such a method fails, so it should be visible at boot.
func checkPaymentMethods(ctx context.Context, store *ledger.Store, registry *gateway.Registry) {
	methods, err := store.ListPaymentMethods(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Could not list payment methods")
		return
	}
	for _, m := range methods {
		if !m.Enabled {
			continue
		}
		if _, err := registry.Get(m.Code); err != nil {
			log.Error().Str("method", m.Code).Msg("Payment method is enabled but has no gateway adapter")
		}
	}
	log.Info().Strs("adapters", registry.Codes()).Msg("Gateway adapters registered")
}

func newRateStore(client *redis.Client) ratelimit.Store {
	if client == nil {
		log.Warn().Msg("Top-up rate guard uses process memory; limits are per instance")
		return ratelimit.NewMemoryStore()
	}
	return ratelimit.NewRedisStore(client, "ratelimit:topup")
}

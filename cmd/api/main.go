// Command api is the tariff engine's composition root, wiring config,
// logging, persistence, caching, the rate providers, the TARIC resolver,
// and the calculator behind a gin HTTP server. Grounded on
// services/order_service/main.go's init*/startServer sequence.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"veritariff/tariffengine/internal/api"
	"veritariff/tariffengine/internal/calculator"
	"veritariff/tariffengine/internal/cache"
	"veritariff/tariffengine/internal/config"
	"veritariff/tariffengine/internal/httpfetch"
	"veritariff/tariffengine/internal/logging"
	"veritariff/tariffengine/internal/metrics"
	"veritariff/tariffengine/internal/providers"
	"veritariff/tariffengine/internal/secrets"
	"veritariff/tariffengine/internal/store"
	"veritariff/tariffengine/internal/taric"

	"gorm.io/gorm"
)

func main() {
	cfg := config.Load()

	log := logging.New("tariffengine", logging.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Environment,
	})
	logging.InitGlobal("tariffengine", logging.Config{Level: cfg.LogLevel, Environment: cfg.Environment})
	defer log.Sync()

	overlaySecrets(cfg, log)

	db, err := store.Connect(cfg)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := store.AutoMigrate(db); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}
	if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
		log.Fatal("failed to apply versioned migrations", zap.Error(err))
	}
	log.Info("database initialized")

	seedStaticOverrides(cfg, db, log)

	redisClient := initRedis(cfg, log)
	defer redisClient.Close()

	engineMetrics := metrics.New()

	fast := cache.NewFastCache(redisClient, log, engineMetrics)
	snapshots := cache.NewSnapshotStore(db)
	fetcher := httpfetch.New(log, engineMetrics)
	overrides := providers.NewOverrideRepository(db)

	ukProvider := providers.NewUkTariffProvider(fast, snapshots, fetcher, overrides, cfg.UKTariffAPIBase, log)
	euProvider := providers.NewEuTaricProvider(fast, fetcher, overrides, cfg.EUTaricAPIBase, cfg.EUTaricAPIKey, log)
	vatProvider := providers.NewVatRateProvider(fast, snapshots, fetcher, overrides, cfg.VATAPIBase, cfg.VATAPIKey, log)
	fxProvider := providers.NewFxProvider(fast, snapshots, fetcher, overrides, cfg.ECBAPIBase, log)

	taricRepo := taric.NewRepository(db)
	taricResolver := taric.NewResolver(taricRepo)

	shipmentRepo := store.NewShipmentRepository(db)
	calcService := calculator.NewService(shipmentRepo, ukProvider, euProvider, vatProvider, fxProvider, taricResolver, log, engineMetrics)

	shipmentController := api.NewShipmentController(shipmentRepo, calcService, log.Logger)
	taricController := api.NewTaricController(taricResolver, log.Logger)

	router := api.NewRouter(cfg.Environment, log, shipmentController, taricController)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	startServer(server, log)
}

// overlaySecrets refreshes cfg's database URL and provider API keys from
// Vault when VAULT_ADDR is set, leaving the environment-variable values in
// place otherwise.
func overlaySecrets(cfg *config.Config, log *logging.Logger) {
	if cfg.VaultAddr == "" {
		return
	}
	client, err := secrets.New(cfg.VaultAddr, "secret", "tariffengine", log.Logger)
	if err != nil {
		log.Error("failed to init vault client", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	bundle, err := client.Fetch(ctx)
	if err != nil {
		log.Error("failed to fetch vault secrets, falling back to environment", zap.Error(err))
		return
	}
	if bundle.DatabaseURL != "" {
		cfg.DatabaseURL = bundle.DatabaseURL
	}
	if bundle.EUTaricAPIKey != "" {
		cfg.EUTaricAPIKey = bundle.EUTaricAPIKey
	}
	if bundle.VATAPIKey != "" {
		cfg.VATAPIKey = bundle.VATAPIKey
	}
	if bundle.JWTSecret != "" {
		cfg.JWTSecret = bundle.JWTSecret
	}
}

// seedStaticOverrides loads STATIC_SEED_PATH, if set, and upserts its
// fallback rates into the override tables plus the TARIC resolver's
// preferential/anti-dumping measure-type code tables. A no-op when unset,
// for environments that rely solely on live provider/TARIC snapshot data.
func seedStaticOverrides(cfg *config.Config, db *gorm.DB, log *logging.Logger) {
	if cfg.StaticSeedPath == "" {
		return
	}
	seed, err := providers.LoadStaticSeed(cfg.StaticSeedPath)
	if err != nil {
		log.Error("failed to load static seed", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := seed.Apply(ctx, db); err != nil {
		log.Error("failed to apply static seed", zap.Error(err))
		return
	}
	if len(seed.PreferentialMeasureCodes) > 0 {
		codes := make(map[string]bool, len(seed.PreferentialMeasureCodes))
		for _, c := range seed.PreferentialMeasureCodes {
			codes[c] = true
		}
		taric.PreferentialCodes = codes
	}
	if len(seed.AntiDumpingMeasureCodes) > 0 {
		codes := make(map[string]bool, len(seed.AntiDumpingMeasureCodes))
		for _, c := range seed.AntiDumpingMeasureCodes {
			codes[c] = true
		}
		taric.AntiDumpingCodes = codes
	}
	log.Info("static overrides seeded", zap.String("path", cfg.StaticSeedPath))
}

func initRedis(cfg *config.Config, log *logging.Logger) *redis.Client {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Error("failed to parse redis url, using default", zap.Error(err))
		opt = &redis.Options{Addr: "localhost:6379"}
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to redis", zap.Error(err))
	}
	return client
}

func startServer(server *http.Server, log *logging.Logger) {
	go func() {
		log.Info("starting http server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start http server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}
	log.Info("server shutdown complete")
}

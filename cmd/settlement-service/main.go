package main

import (
	"context"
	"fmt"
	"os"

	"github.com/nurpe/marketplace-settlement/internal/auth"
	"github.com/nurpe/marketplace-settlement/internal/config"
	"github.com/nurpe/marketplace-settlement/internal/db"
	"github.com/nurpe/marketplace-settlement/internal/excel"
	httphandler "github.com/nurpe/marketplace-settlement/internal/http"
	"github.com/nurpe/marketplace-settlement/internal/http/middleware"
	"github.com/nurpe/marketplace-settlement/internal/idempotency"
	"github.com/nurpe/marketplace-settlement/internal/logger"
	"github.com/nurpe/marketplace-settlement/internal/pdf"
	"github.com/nurpe/marketplace-settlement/internal/repository"
	"github.com/nurpe/marketplace-settlement/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment, cfg.LogLevel)

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}
	sqlDB, err := database.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to access database pool")
	}

	checks := map[string]httphandler.CheckFunc{
		"postgres": sqlDB.PingContext,
	}

	var idem service.DepositIdempotency
	if cfg.Redis.Addr != "" {
		rdb, err := idempotency.Connect(context.Background(), cfg.Redis.Addr, cfg.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("failed to connect redis")
		}
		idem = idempotency.NewStore(rdb, cfg.Redis.IdempotencyTTL)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		log.Info().Str("addr", cfg.Redis.Addr).Msg("deposit idempotency keys enabled")
	}

	ledgerRepo := repository.NewLedgerRepository(database, cfg.Ledger.LockTimeout)
	reportRepo := repository.NewReportRepository(database)

	settlementService := service.NewSettlementService(ledgerRepo, idem, cfg.Ledger, log)
	reportService := service.NewReportService(reportRepo, excel.NewGenerator(), pdf.NewGenerator())

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	if !tokenParser.Enabled() {
		log.Warn().Msg("JWT_ACCESS_SECRET is not set, trusting the profile_id header")
	}

	handler := httphandler.NewHandler(settlementService, reportService, log)
	router := httphandler.NewRouter(handler, httphandler.RouterOptions{
		Environment:       cfg.Environment,
		AllowedOrigins:    cfg.HTTP.CORSAllowedOrigins,
		ProfileMiddleware: middleware.Profile(tokenParser, reportService),
		RateLimit:         middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst).Middleware(),
		Checks:            checks,
		Log:               log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().Str("addr", addr).Msg("starting settlement service")

	if err := router.Run(addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}

package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/facesheet360/carecoins/docs"
	"github.com/facesheet360/carecoins/internal/blockchain"
	"github.com/facesheet360/carecoins/internal/config"
	"github.com/facesheet360/carecoins/internal/database"
	"github.com/facesheet360/carecoins/internal/handlers"
	"github.com/facesheet360/carecoins/internal/hsm"
	"github.com/facesheet360/carecoins/internal/jobs"
	"github.com/facesheet360/carecoins/internal/services"
	"github.com/facesheet360/carecoins/internal/worker"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	docs.SwaggerInfo.Host = ""
	if cfg.IsDev() {
		docs.SwaggerInfo.Host = "localhost:" + cfg.Port
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := database.OpenRedis(ctx, cfg.Redis)
	if redisClient != nil {
		defer redisClient.Close()
	}

	audit := hsm.NewAuditLogger()

	var ledger services.LedgerStore = services.NewPostgresLedgerStore(db)
	if cfg.LedgerBackend == "memory" {
		log.Warn().Msg("using in-memory ledger; balances are lost on restart")
		ledger = services.NewMemoryLedgerStore()
	}

	rewards := services.NewRewardService(ledger, audit, cfg.Rewards.WelcomeBonus, cfg.Rewards.MaxAmount)
	transfers := services.NewTransferService(ledger, services.NewRedisEventPublisher(redisClient), audit)
	rates := services.NewExchangeRateService(db, redisClient, cfg.Rates.CacheTTL, cfg.Rates.ProviderURL)
	payouts := services.NewPayoutService(
		ledger,
		rates,
		services.NewPostgresPayoutStore(db),
		services.NewRedisPayoutQueue(redisClient),
		audit,
	)

	network, err := openTokenNetwork(ctx, cfg, audit)
	if err != nil {
		return err
	}
	bridge := services.NewBridgeService(services.NewPostgresBridgeStore(db), network, cfg.Bridge.SubmitTimeout, cfg.Bridge.ConfirmTimeout)
	pool := worker.NewPool(cfg.Bridge.QueueSize, bridge)
	pool.Start(cfg.Bridge.Workers)
	bridge.SetDispatcher(pool)

	scheduler := jobs.NewScheduler()
	if err := scheduler.RegisterBridgeSweep(cfg.Bridge.SweepSchedule, bridge); err != nil {
		return err
	}
	if cfg.Rates.ProviderURL != "" {
		if err := scheduler.RegisterRateRefresh(cfg.Rates.RefreshSchedule, rates); err != nil {
			return err
		}
	}
	scheduler.Start()

	router := handlers.NewRouter(handlers.Deps{
		Auth:        services.NewAuthService(db, redisClient, ledger, rewards),
		Ledger:      ledger,
		Transfers:   transfers,
		Rewards:     rewards,
		Bridge:      bridge,
		Payouts:     payouts,
		Rates:       rates,
		Banks:       services.NewBankService(),
		QR:          services.NewQRService(redisClient),
		Health:      healthChecks(db, redisClient),
		CORSOrigins: cfg.CORSOrigins,
		Logger:      log.Logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Str("ledger", cfg.LedgerBackend).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}
	scheduler.Stop(shutdownCtx)
	if err := pool.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("bridge jobs interrupted; the sweep resumes them on next start")
	}
	log.Info().Msg("server stopped")
	return nil
}

// openTokenNetwork connects the bridge to the chain. Without an RPC URL the
// bridge runs with no network and every request fails fast.
func openTokenNetwork(ctx context.Context, cfg *config.Config, audit *hsm.AuditLogger) (services.TokenNetwork, error) {
	if cfg.Bridge.RPCURL == "" {
		log.Warn().Msg("BRIDGE_RPC_URL not set; bridge transfers are disabled")
		return nil, nil
	}

	var salt []byte
	if cfg.HSM.Salt != "" {
		salt = []byte(cfg.HSM.Salt)
	}
	vault, err := hsm.Open(hsm.Config{
		MasterKey:    cfg.HSM.MasterKey,
		KeyStorePath: cfg.HSM.KeyStorePath,
		Salt:         salt,
		DefaultKeyID: cfg.Bridge.OperatorKeyID,
		AuditLogger:  audit,
	})
	if err != nil {
		return nil, err
	}
	operator, err := vault.Address(cfg.Bridge.OperatorKeyID)
	if err != nil {
		return nil, err
	}

	client, err := blockchain.Dial(ctx, cfg.Bridge.RPCURL, vault, cfg.Bridge.OperatorKeyID)
	if err != nil {
		return nil, err
	}
	log.Info().Str("operator", operator.Hex()).Msg("token network connected")
	return client, nil
}

func healthChecks(db *sql.DB, redisClient *redis.Client) map[string]handlers.HealthCheck {
	checks := map[string]handlers.HealthCheck{
		"database": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	return checks
}

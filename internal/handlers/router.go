package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/facesheet360/carecoins/internal/metrics"
	mw "github.com/facesheet360/carecoins/internal/middleware"
	"github.com/facesheet360/carecoins/internal/models"
	"github.com/facesheet360/carecoins/internal/services"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Deps is everything the HTTP surface needs.
type Deps struct {
	Auth      *services.AuthService
	Ledger    services.LedgerStore
	Transfers *services.TransferService
	Rewards   *services.RewardService
	Bridge    *services.BridgeService
	Payouts   *services.PayoutService
	Rates     services.RateSource
	Banks     *services.BankService
	QR        *services.QRService

	Health      map[string]HealthCheck
	CORSOrigins []string
	Logger      zerolog.Logger
}

func NewRouter(d Deps) http.Handler {
	auth := NewAuthHandler(d.Auth)
	wallet := NewWalletHandler(d.Ledger, d.Transfers)
	rewards := NewRewardHandler(d.Rewards)
	bridge := NewBridgeHandler(d.Bridge)
	payouts := NewPayoutHandler(d.Payouts)
	rates := NewRateHandler(d.Rates, d.Banks)
	qr := NewQRHandler(d.QR, d.Transfers)

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.Logger(d.Logger))
	r.Use(mw.Recoverer(d.Logger))
	r.Use(chimw.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", healthHandler(d.Health))
	r.Handle("/metrics", metrics.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.SecurityHeaders)

		// Public endpoints
		r.Post("/auth/register", auth.Register)
		r.Post("/auth/login", auth.Login)
		r.Get("/exchange-rate", rates.GetExchangeRate)
		r.Get("/banks", rates.GetBanks)

		r.Group(func(r chi.Router) {
			r.Use(mw.Auth(d.Auth))

			r.Post("/auth/logout", auth.Logout)

			r.Get("/wallet/balance", wallet.GetBalance)
			r.Get("/wallet/entries", wallet.ListEntries)
			r.Post("/transfers", wallet.Transfer)
			r.Post("/purchases", wallet.Purchase)

			r.Get("/payouts", payouts.List)
			r.Post("/payouts/cash-out", payouts.CashOut)
			r.Post("/payouts/bill-payment", payouts.PayBill)

			r.Post("/qr/generate", qr.GenerateQR)
			r.Post("/qr/process", qr.ProcessQR)

			r.Get("/rewards/categories", rewards.Categories)

			// Operator endpoints
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(models.RoleAdmin))

				r.Post("/rewards", rewards.Distribute)
				r.Post("/bridge/transfers", bridge.Request)
				r.Get("/bridge/transfers", bridge.List)
				r.Get("/bridge/transfers/{id}", bridge.Get)
				r.Post("/payouts/settlement", payouts.Settle)
			})
		})
	})

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := map[string]string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		overall := "healthy"
		if status != http.StatusOK {
			overall = "degraded"
		}
		writeJSON(w, status, map[string]any{"status": overall, "checks": results})
	}
}

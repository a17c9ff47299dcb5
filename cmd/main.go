package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	api "github.com/bulkverify/credits-portal/pkg/api_client"
	"github.com/bulkverify/credits-portal/pkg/api_client/database"
	"github.com/bulkverify/credits-portal/pkg/api_client/handler"
	"github.com/bulkverify/credits-portal/pkg/api_client/helpers/archive"
	"github.com/bulkverify/credits-portal/pkg/api_client/helpers/payments"
	"github.com/bulkverify/credits-portal/pkg/api_client/helpers/vendors"
	"github.com/bulkverify/credits-portal/pkg/api_client/models"
	"github.com/bulkverify/credits-portal/pkg/api_client/repositories"
	"github.com/bulkverify/credits-portal/pkg/api_client/services"
	"github.com/bulkverify/credits-portal/pkg/config"
	"github.com/bulkverify/credits-portal/pkg/jobs"
)

const apiVersion = "1.0.0"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("PORTAL_CONFIG"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DSN())
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	keyRepo := repositories.NewApiKeyRepository(db)
	batchRepo := repositories.NewBatchRepository(db)
	paymentRepo := repositories.NewPaymentRepository(db)

	registry := vendors.RegistryFromConfig(cfg.Deeep, cfg.InstantEmail)
	if len(registry) == 0 {
		log.Println("[WARN] no validation vendor configured")
	} else {
		log.Printf("[INFO] validation vendors: %s", strings.Join(registry.Names(), ", "))
	}

	results, err := archive.New(ctx, cfg.Archive)
	if err != nil {
		log.Fatalf("failed to set up result archive: %v", err)
	}

	var checkout services.CheckoutGateway
	if cfg.Stripe.SecretKey != "" {
		checkout = payments.NewStripeGateway(cfg.Stripe, nil)
	} else {
		log.Println("[INFO] stripe checkout disabled")
	}

	keySvc := services.NewApiKeyService(keyRepo, registry)
	batchSvc := services.NewBatchService(keyRepo, batchRepo, registry, results, services.BatchServiceConfig{
		PublicURL:      cfg.Server.PublicURL,
		PollAttempts:   cfg.Polling.Attempts,
		PollInterval:   cfg.Polling.Interval,
		ReconcileAfter: cfg.Polling.ReconcileAfter,
	})
	paymentSvc := services.NewPaymentService(paymentRepo, keyRepo, registry, checkout, cfg.Pricing,
		payments.NewCardGateway(models.GatewayNMI, cfg.NMI),
		payments.NewCardGateway(models.GatewayMerchantic, cfg.Merchantic),
	)

	if _, err := jobs.ScheduleReconcile(ctx, batchSvc, cfg.Polling.ReconcileSchedule); err != nil {
		log.Fatalf("failed to schedule reconciliation: %v", err)
	}

	router := api.NewRouter(api.RouterConfig{
		APIVersion:             apiVersion,
		PublicURL:              cfg.Server.PublicURL,
		JWTSecret:              cfg.Auth.JWTSecret,
		AdminRole:              cfg.Auth.AdminRole,
		AllowedOrigins:         cfg.Server.AllowedOrigins,
		DeeepWebhookKey:        cfg.Deeep.WebhookKey,
		InstantEmailWebhookKey: cfg.InstantEmail.WebhookKey,
	}, api.Controllers{
		Keys:     handler.NewKeysController(keySvc),
		Batches:  handler.NewBatchesController(batchSvc),
		Payments: handler.NewPaymentsController(paymentSvc),
		Webhooks: handler.NewWebhooksController(batchSvc, paymentSvc),
		Admin:    handler.NewAdminController(keySvc, batchSvc),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("Server is running on port %d", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}

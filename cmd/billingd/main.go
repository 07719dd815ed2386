package main

import (
	"context"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/physioflow/billing/internal/billing"
	"github.com/physioflow/billing/internal/notify"
	"github.com/physioflow/billing/internal/user"
	"github.com/physioflow/billing/pkg/config"
	"github.com/physioflow/billing/pkg/email"
	"github.com/physioflow/billing/pkg/httpserver"
	"github.com/physioflow/billing/pkg/logger"
	"github.com/physioflow/billing/pkg/pg"
)

type appConfig struct {
	Environment       string `env:"APP_ENV" envDefault:"development"`
	DevEmailDir       string `env:"DEV_EMAIL_DIR" envDefault:"./tmp/emails"`
	InternalAPISecret string `env:"INTERNAL_API_SECRET,required"`
}

func main() {
	ctx := context.Background()

	var (
		appCfg     appConfig
		pgCfg      pg.Config
		httpCfg    httpserver.Config
		stripeCfg  billing.StripeConfig
		catalogCfg billing.CatalogConfig
		emailCfg   email.Config
		notifyCfg  notify.Config
	)
	config.MustLoad(&appCfg)
	config.MustLoad(&pgCfg)
	config.MustLoad(&httpCfg)
	config.MustLoad(&stripeCfg)
	config.MustLoad(&catalogCfg)
	config.MustLoad(&emailCfg)
	config.MustLoad(&notifyCfg)

	log := logger.New(logger.WithEnvironment(appCfg.Environment, "billingd"))
	logger.SetAsDefault(log)

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		log.ErrorContext(ctx, "failed to connect to database", logger.Error(err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
		log.ErrorContext(ctx, "failed to apply migrations", logger.Error(err))
		os.Exit(1)
	}

	users := user.NewPGStore(pool)
	subs := billing.NewPGStore(pool)

	var sender email.EmailSender
	if emailCfg.PostmarkServerToken != "" {
		sender = email.MustNewPostmarkClient(emailCfg)
	} else {
		sender = email.NewDevSender(appCfg.DevEmailDir)
		log.InfoContext(ctx, "postmark not configured, writing emails to disk",
			logger.Component("email"))
	}
	dispatcher := notify.NewEmailDispatcher(sender, log)

	tracker := billing.NewLogTracker(log)
	fetcher := billing.NewSubscriptionFetcher(billing.NewStripeClient(stripeCfg))

	synchronizer := billing.NewSynchronizer(users, subs, fetcher,
		billing.WithTracker(tracker),
		billing.WithPaymentFailureNotifier(notify.NewPaymentFailureNotifier(dispatcher)),
		billing.WithSyncLogger(log),
	)

	catalog := billing.NewCatalog(catalogCfg)
	scanner := notify.NewScanner(subs, users, dispatcher, catalog,
		notify.WithScanLogger(log))

	evaluator := billing.NewEvaluator(users, subs)

	webhooks := billing.NewWebhookHandler(stripeCfg.WebhookSecret, synchronizer, tracker, log)
	scans := notify.NewScanHandler(scanner, notifyCfg.ScanSecret, log)
	entitlements := billing.NewEntitlementHandler(evaluator, appCfg.InternalAPISecret, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", httpserver.HealthCheckHandler(ctx, log, pg.Healthcheck(pool)))
	r.Method(http.MethodPost, "/webhooks/stripe", webhooks.Handler())
	r.Post("/internal/notifications/scan", scans.Handler())
	r.Get("/internal/entitlements/{user_id}", entitlements.Handler())

	srv := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log))
	if err := srv.Run(ctx, r); err != nil {
		log.ErrorContext(ctx, "server stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

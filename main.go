package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	appCatalog "github.com/mossvale/marketplace/internal/application/catalog"
	appCheckout "github.com/mossvale/marketplace/internal/application/checkout"
	appIdentity "github.com/mossvale/marketplace/internal/application/identity"
	appReset "github.com/mossvale/marketplace/internal/application/passwordreset"
	"github.com/mossvale/marketplace/internal/infrastructure/id"
	"github.com/mossvale/marketplace/internal/infrastructure/mail"
	"github.com/mossvale/marketplace/internal/infrastructure/memory"
	"github.com/mossvale/marketplace/internal/infrastructure/metrics"
	"github.com/mossvale/marketplace/internal/infrastructure/sqlite"
	"github.com/mossvale/marketplace/internal/pkg/config"
	"github.com/mossvale/marketplace/internal/pkg/logging"
	httppresentation "github.com/mossvale/marketplace/internal/presentation/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	baseLogger := logging.MustNewLogger("marketplace", cfg.Env)
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		baseLogger.Fatal("store_open_failed", zap.Error(err))
	}
	defer func() { _ = store.Close() }()

	met := metrics.New(prometheus.DefaultRegisterer)
	idGen := id.NewUUIDGenerator()
	sessions := memory.NewSessionRepository()
	mailer := mail.NewMailer(baseLogger)

	catalogRepo := sqlite.NewCatalogRepository(store)
	orderRepo := sqlite.NewOrderRepository(store)
	identityRepo := sqlite.NewIdentityRepository(store)

	identitySvc := appIdentity.NewService(identityRepo, idGen)
	catalogSvc := appCatalog.NewService(catalogRepo, orderRepo, idGen)
	checkoutSvc := appCheckout.NewService(orderRepo, sessions, mailer, idGen, met, cfg.MailTimeout)
	resetSvc := appReset.NewService(identityRepo, mailer, idGen, met, cfg.ResetTokenTTL, cfg.BaseURL, cfg.MailTimeout)

	handler := httppresentation.NewHandler(identitySvc, catalogSvc, checkoutSvc, resetSvc, sessions, idGen, baseLogger)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("http_server_start", zap.String("addr", server.Addr))
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Error("http_server_error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("http_server_shutdown_error", zap.Error(err))
	} else {
		baseLogger.Info("http_server_stopped")
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/milklog/internal/config"
	"github.com/mamadbah2/milklog/internal/repository/mongodb"
	"github.com/mamadbah2/milklog/internal/repository/sheets"
	"github.com/mamadbah2/milklog/internal/scheduler"
	"github.com/mamadbah2/milklog/internal/server/handlers"
	"github.com/mamadbah2/milklog/internal/server/router"
	exportsvc "github.com/mamadbah2/milklog/internal/service/export"
	"github.com/mamadbah2/milklog/internal/service/parsing"
	processingsvc "github.com/mamadbah2/milklog/internal/service/processing"
	whatsappsvc "github.com/mamadbah2/milklog/internal/service/whatsapp"
	"github.com/mamadbah2/milklog/pkg/clients/anthropic"
	"github.com/mamadbah2/milklog/pkg/clients/ocr"
	whatsappclient "github.com/mamadbah2/milklog/pkg/clients/whatsapp"
	"github.com/mamadbah2/milklog/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Log.Level))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	extractor, closeExtractor, err := newExtractor(ctx, cfg)
	if err != nil {
		baseLogger.Fatal("failed to init ocr backend", zap.String("provider", cfg.OCR.Provider), zap.Error(err))
	}
	defer func() {
		if err := closeExtractor(); err != nil {
			baseLogger.Error("failed to close ocr backend", zap.Error(err))
		}
	}()
	baseLogger.Info("ocr backend ready", zap.String("provider", cfg.OCR.Provider))

	dialects := parsing.NewRegistry()
	if cfg.Parsing.DialectsFile != "" {
		names, err := parsing.LoadDialects(cfg.Parsing.DialectsFile, dialects)
		if err != nil {
			baseLogger.Fatal("failed to load dialects", zap.String("file", cfg.Parsing.DialectsFile), zap.Error(err))
		}
		baseLogger.Info("custom dialects loaded", zap.Strings("dialects", names))
	}
	if _, err := dialects.Lookup(cfg.Parsing.Dialect); err != nil {
		baseLogger.Fatal("default dialect is not registered", zap.Error(err))
	}

	processingSvc := processingsvc.NewService(extractor, dialects, processingsvc.Options{
		Timeout:        cfg.OCR.Timeout,
		StrictFormat:   cfg.OCR.StrictFormat,
		DefaultDialect: cfg.Parsing.Dialect,
		DefaultRate:    cfg.Parsing.CowRate,
	}, baseLogger.Named("svc.processing"))

	var sinks []exportsvc.Sink
	if cfg.MongoDB.Enabled() {
		mongoRepo, err := mongodb.NewMongoDBRepository(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName)
		if err != nil {
			baseLogger.Fatal("failed to init mongodb repository", zap.Error(err))
		}
		defer func() {
			if err := mongoRepo.Close(context.Background()); err != nil {
				baseLogger.Error("failed to close mongodb connection", zap.Error(err))
			}
		}()
		sinks = append(sinks, mongoRepo)
	}
	if cfg.Sheets.Enabled() {
		sheetsRepo, err := sheets.NewGoogleSheetRepository(ctx, cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		sinks = append(sinks, sheets.NewSink(sheetsRepo, cfg.Sheets.SheetRange))
	}
	exportSvc := exportsvc.NewService(baseLogger.Named("svc.export"), sinks...)
	baseLogger.Info("export sinks configured", zap.Strings("sinks", exportSvc.Sinks()))

	var (
		webhookHandler *handlers.WebhookHandler
		notifier       scheduler.Notifier
	)
	if cfg.WhatsApp.Enabled() {
		whatsClient := whatsappclient.NewClient(cfg.WhatsApp)
		messagingSvc := whatsappsvc.NewMetaWhatsAppService(cfg.WhatsApp, whatsClient, processingSvc, baseLogger.Named("svc.whatsapp"))
		webhookHandler = handlers.NewWebhookHandler(messagingSvc, baseLogger.Named("handlers.whatsapp"))
		notifier = messagingSvc
		baseLogger.Info("whatsapp intake enabled")
	} else {
		baseLogger.Warn("whatsapp token missing, webhook intake disabled")
	}

	apiHandler := handlers.NewAPIHandler(processingSvc, exportSvc, baseLogger.Named("handlers.api"))
	engine := router.New(apiHandler, webhookHandler, baseLogger.Named("router"))

	if cfg.Inbox.Enabled() {
		sched := scheduler.NewScheduler(cfg.Inbox, processingSvc, exportSvc, notifier, baseLogger.Named("scheduler"))
		if err := sched.Start(); err != nil {
			baseLogger.Fatal("failed to start scheduler", zap.Error(err))
		}
		defer sched.Stop()
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.OCR.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// newExtractor builds the configured OCR backend and a matching close func.
func newExtractor(ctx context.Context, cfg *config.Config) (ocr.Extractor, func() error, error) {
	noop := func() error { return nil }

	switch cfg.OCR.Provider {
	case config.ProviderMock:
		mock, err := ocr.NewMockExtractor(cfg.OCR.MockSample, cfg.OCR.MockDelay)
		return mock, noop, err
	case config.ProviderHTTP:
		return ocr.NewHTTPExtractor(cfg.OCR.Endpoint, cfg.OCR.APIKey, cfg.OCR.Timeout), noop, nil
	case config.ProviderVision:
		vision, err := ocr.NewVisionExtractor(ctx)
		if err != nil {
			return nil, noop, err
		}
		return vision, vision.Close, nil
	case config.ProviderAnthropic:
		return anthropic.NewClient(cfg.AI.AnthropicKey, anthropic.WithModel(cfg.AI.AnthropicModel)), noop, nil
	case config.ProviderPDFText:
		return ocr.NewPDFTextExtractor(), noop, nil
	default:
		return nil, noop, fmt.Errorf("unsupported ocr provider %q", cfg.OCR.Provider)
	}
}

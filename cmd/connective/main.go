package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/daito-dot/AI-CONNECTIVE/pkg/admin"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/chat"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/config"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/files"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/httputil"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/identity"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/middleware"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/models"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/observability"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/provider"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/storage"

	"github.com/gorilla/mux"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info("Starting Connective backend")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize OpenTelemetry")
	}

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Storage.Region))
	if err != nil {
		log.Fatalf("Failed to load AWS configuration: %v", err)
	}

	kv := storage.NewDynamo(dynamodb.NewFromConfig(awsCfg), cfg.Storage.MainTable, metrics)
	blob := storage.NewS3Blob(s3.NewFromConfig(awsCfg), cfg.Storage.FilesBucket, metrics)
	idp := identity.NewCognito(cip.NewFromConfig(awsCfg), cfg.Identity.UserPoolID, cfg.Identity.UserPoolClientID)

	// The Bedrock client targets the region hosting the cross-region
	// inference profiles, independent of the storage region.
	bedrockCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Provider.BedrockRegion))
	if err != nil {
		log.Fatalf("Failed to load Bedrock AWS configuration: %v", err)
	}
	invokers := map[string]provider.Invoker{
		models.ProviderBedrock: provider.NewBedrock(bedrockruntime.NewFromConfig(bedrockCfg)),
	}
	if cfg.Provider.GeminiAPIKey != "" {
		gemini, err := provider.NewGemini(ctx, cfg.Provider.GeminiAPIKey)
		if err != nil {
			log.Fatalf("Failed to initialize Gemini provider: %v", err)
		}
		invokers[models.ProviderGemini] = gemini
	} else {
		logger.Warn("GEMINI_API_KEY not set; gemini models are unavailable")
	}

	fileService, err := files.NewService(kv, blob, metrics, logger)
	if err != nil {
		log.Fatalf("Failed to initialize file service: %v", err)
	}
	chatService := chat.NewService(kv, fileService, invokers, metrics, logger, cfg.Provider.InvokeTimeout)
	adminService := admin.NewService(kv, idp, logger)

	authenticator, err := middleware.NewAuthenticator(ctx, kv, cfg.Identity.Region, cfg.Identity.UserPoolID, cfg.Identity.UserPoolClientID)
	if err != nil {
		log.Fatalf("Failed to initialize authenticator: %v", err)
	}
	if cfg.Identity.UserPoolID == "" {
		logger.Warn("USER_POOL_ID not set; bearer values are trusted as user ids")
	}

	router := mux.NewRouter()
	files.NewHandlers(fileService).RegisterRoutes(router)
	chat.NewHandlers(chatService).RegisterRoutes(router)
	admin.NewHandlers(adminService, authenticator).RegisterRoutes(router)

	var handler http.Handler = router
	handler = middleware.NewRateLimiter(nil).Handler(handler)
	if metrics != nil {
		handler = metrics.HTTPMiddleware(handler)
	}
	handler = httputil.CORSMiddleware(handler)
	handler = httputil.RecoveryMiddleware(logger)(handler)
	handler = httputil.LoggingMiddleware(logger)(handler)
	handler = httputil.RequestIDMiddleware(logger)(handler)
	if cfg.Observability.OTelEnabled {
		handler = otelhttp.NewHandler(handler, "connective")
	}

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthChecker := observability.NewHealthChecker(map[string]observability.Pinger{
		"kv":   kv,
		"blob": blob,
	})
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", healthChecker.Liveness)
	healthMux.HandleFunc("/readyz", healthChecker.Readiness)
	if metrics != nil {
		healthMux.Handle("/metrics", metrics.Handler())
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	var sweeper *cron.Cron
	if cfg.Storage.ReconcileSchedule != "" {
		sweeper = cron.New()
		_, err := sweeper.AddFunc(cfg.Storage.ReconcileSchedule, func() {
			if _, err := fileService.ReconcileOrphans(context.Background()); err != nil {
				logger.WithError(err).Warn("orphan reconciliation sweep failed")
			}
		})
		if err != nil {
			log.Fatalf("Invalid RECONCILE_SCHEDULE: %v", err)
		}
		sweeper.Start()
		logger.Infof("Orphan reconciliation scheduled: %s", cfg.Storage.ReconcileSchedule)
	}

	go func() {
		logger.Infof("Health server listening on :%s", cfg.Server.HealthPort)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Health server failed")
		}
	}()
	go func() {
		logger.Infof("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if sweeper != nil {
		sweeper.Stop()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Health server shutdown failed")
	}
	if err := observability.ShutdownOTel(shutdownCtx, otelProviders, logger); err != nil {
		logger.WithError(err).Error("OpenTelemetry shutdown failed")
	}
	logger.Info("Shutdown complete")
}

package router

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"creatorstudio/internal/api/v1/handler"
	"creatorstudio/internal/config"
	"creatorstudio/internal/database"
	"creatorstudio/internal/keypool"
	"creatorstudio/internal/llm"
	"creatorstudio/internal/middleware"
	"creatorstudio/internal/pgmq"
	"creatorstudio/internal/pubsub"
	"creatorstudio/internal/repository"
	"creatorstudio/internal/service"
	"creatorstudio/internal/storage"
	"creatorstudio/internal/youtube"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

const channelCacheTTL = 6 * time.Hour

// New wires every dependency and returns the root handler together with a
// function releasing the connections it opened.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (http.Handler, func(), error) {
	logger.Info().Str("environment", cfg.Environment).Msg("App environment loaded")

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// 1. Postgres
	pool, err := database.Open(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, pool.Close)

	// 2. Redis, used for rate limiting and the channel cache
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("parsing REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	closers = append(closers, func() { _ = rdb.Close() })
	if err := rdb.Ping(ctx).Err(); err != nil {
		// Rate limiting and caching degrade gracefully.
		logger.Warn().Err(err).Msg("Redis unavailable")
	}

	// 3. Object storage
	s3Client, err := storage.NewS3Client(ctx, cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	store := storage.NewS3Store(s3Client, cfg.S3Bucket)

	// 4. Google Cloud: Pub/Sub for alert events, Secret Manager for user keys
	var publisher pubsub.Publisher
	var secrets service.SecretStore
	if cfg.GCPProjectID != "" {
		pub, err := pubsub.NewPublisher(ctx, cfg)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = pub.Close() })
		publisher = pub

		if secrets, err = service.NewSecretManagerStore(ctx, cfg); err != nil {
			logger.Warn().Err(err).Msg("Secret Manager unavailable, user API keys disabled")
			secrets = nil
		}
	} else {
		logger.Warn().Msg("GCP_PROJECT_ID not set, alert events and user API keys disabled")
	}

	// 5. Providers
	openAIKeys := keypool.New(config.SplitKeys(cfg.OpenAIAPIKeys))
	anthropicKeys := keypool.New(config.SplitKeys(cfg.AnthropicAPIKeys))
	var openAIClient, anthropicClient llm.Client
	if openAIKeys.Len() > 0 {
		openAIClient = llm.NewOpenAIClient(openAIKeys, cfg.OpenAIBaseURL)
	}
	if anthropicKeys.Len() > 0 {
		anthropicClient = llm.NewAnthropicClient(anthropicKeys, cfg.AnthropicBaseURL)
	}
	llmRouter := llm.NewRouter(openAIClient, anthropicClient, cfg.DefaultModel)
	images := llm.NewImageClient(openAIKeys, cfg.OpenAIBaseURL, cfg.ImageModel)
	clients := service.NewModelClients(llmRouter, secrets, cfg.OpenAIBaseURL, cfg.AnthropicBaseURL, logger)

	videos, err := youtube.NewClient(ctx, config.SplitKeys(cfg.YouTubeAPIKeys), "", youtube.NewRedisChannelCache(rdb, channelCacheTTL))
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("creating YouTube client: %w", err)
	}

	// 6. Validator
	validate := validator.New(validator.WithRequiredStructEnabled())

	// 7. Repositories & services & handlers
	userRepo := repository.NewUserRepo(pool)
	subRepo := repository.NewSubscriptionRepo(pool)
	usageRepo := repository.NewUsageRepo(pool)
	generationRepo := repository.NewGenerationRepo(pool)
	monitorRepo := repository.NewMonitorRepo(pool)
	paymentRepo := repository.NewPaymentRepo(pool)
	dlqRepo := repository.NewDLQRepository(pool)

	usageSvc := service.NewUsageService(usageRepo, subRepo, cfg.StripePriceFree, logger)
	subSvc := service.NewSubscriptionService(subRepo, cfg.StripePriceFree, logger)
	stripeSvc := service.NewStripeService(cfg, userRepo, paymentRepo, subSvc, logger)
	var customers service.CustomerCreator
	if cfg.StripeSecretKey != "" {
		customers = stripeSvc
	}
	userSvc := service.NewUserService(userRepo, subRepo, usageSvc, customers, cfg.StripePriceFree, logger)
	apiKeySvc := service.NewAPIKeyService(secrets, map[string]service.KeyValidator{
		service.ProviderOpenAI:    service.NewOpenAIValidator(cfg.OpenAIBaseURL),
		service.ProviderAnthropic: service.NewAnthropicValidator(cfg.AnthropicBaseURL),
	}, logger)
	contentSvc := service.NewContentService(usageSvc, generationRepo, clients, logger)
	mediaSvc := service.NewMediaService(usageSvc, generationRepo, clients, images, cfg.ImageModel, store, logger)
	nicheSvc := service.NewNicheService(usageSvc, generationRepo, clients, videos, logger)
	guideSvc := service.NewEditingGuideService(usageSvc, generationRepo, clients, logger)
	generationSvc := service.NewGenerationService(generationRepo, store, logger)
	monitorSvc := service.NewMonitorService(monitorRepo, videos, pgmq.New(pool), publisher, service.MonitorConfig{
		QueueName:     cfg.MonitorQueueName,
		AlertTopic:    cfg.PubSubAlertTopic,
		VideosPerScan: cfg.MonitorVideosPerScan,
	}, logger)
	paymentSvc := service.NewPaymentService(paymentRepo, subRepo, logger)
	dlqSvc := service.NewDLQService(dlqRepo, logger)

	userHandler := handler.NewUserHandler(userSvc, apiKeySvc, validate, logger)
	generationHandler := handler.NewGenerationHandler(contentSvc, mediaSvc, nicheSvc, guideSvc, generationSvc, validate, logger)
	monitorHandler := handler.NewMonitorHandler(monitorSvc, validate, logger)
	subscriptionHandler := handler.NewSubscriptionHandler(stripeSvc, subSvc, validate, logger)
	paymentHandler := handler.NewPaymentHandler(paymentSvc, validate, logger)
	dlqHandler := handler.NewDLQHandler(dlqSvc, validate, logger)

	// 8. Middleware
	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret, logger)
	rateLimit := middleware.RateLimitMiddleware(middleware.NewRedisCounter(rdb), cfg.RateLimitPerMinute, time.Minute, logger)
	// Generation endpoints are rate limited per user after authentication.
	generationMiddleware := func(next http.Handler) http.Handler {
		return authMiddleware(rateLimit(next))
	}
	pubsubAuthMiddleware := middleware.PubSubAuthMiddleware(cfg.IsLocalPubSub(), cfg.DLQEndpointURL, cfg.PubSubPushServiceAccountEmail, logger)

	// 9. ServeMux
	mux := http.NewServeMux()
	apiV1Mux := http.NewServeMux()
	userHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	generationHandler.RegisterRoutes(apiV1Mux, generationMiddleware)
	monitorHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	subscriptionHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	paymentHandler.RegisterRoutes(apiV1Mux, authMiddleware, middleware.AdminMiddleware)
	dlqHandler.RegisterRoutes(apiV1Mux, pubsubAuthMiddleware)

	// Mount the API v1 routes under /v1
	mux.Handle("/v1/", http.StripPrefix("/v1", apiV1Mux))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})

	// Swagger documentation
	mux.HandleFunc("/swagger/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./docs/swagger/swagger.json")
	})
	mux.Handle("/swagger/", http.StripPrefix("/swagger/", http.FileServer(http.Dir("./docs/swagger/swagger-ui"))))

	// Redirect /api/* to /v1/* for backward compatibility
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/")
		http.Redirect(w, r, "/v1/"+rest, http.StatusMovedPermanently)
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	logger.Info().Msg("Router initialized")
	return middleware.LoggerMiddleware(logger)(c.Handler(mux)), cleanup, nil
}

package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"ideamint/internal/app"
	"ideamint/internal/config"
	"ideamint/internal/ratelimit"
	"ideamint/internal/server"
	"ideamint/internal/usertoken"
	"ideamint/internal/util"
	"ideamint/pkg/ai"
	"ideamint/pkg/analyze"
	"ideamint/pkg/asset"
	"ideamint/pkg/nft"
	"ideamint/pkg/notify"
	"ideamint/pkg/payment"
	"ideamint/pkg/storage"
	"ideamint/pkg/store"
	"ideamint/pkg/title"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	st, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}

	objects, err := storage.NewMinioStore(
		cfg.MinioEndpoint,
		cfg.MinioAccessKey,
		cfg.MinioSecretKey,
		cfg.MinioPublicURL,
		cfg.MinioUseSSL,
		[]string{asset.BucketAssets, asset.BucketAvatars, asset.BucketMetadata},
	)
	if err != nil {
		log.Fatalf("failed to init object storage: %v", err)
	}

	var generator ai.TextGenerator
	if cfg.AIBaseURL != "" {
		generator = ai.NewOpenAICompatGenerator(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel, cfg.AITimeout())
	}
	analyzer := analyze.New(generator, cfg.AITimeout())
	titles := title.New(st, generator, cfg.AITimeout())

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
	}

	events, closeEvents, err := buildNotifier(cfg, redisClient)
	if err != nil {
		log.Fatalf("failed to init change notifier: %v", err)
	}
	defer closeEvents()

	tokenVerifier, err := usertoken.NewVerifier(usertoken.Config{
		Secret:   cfg.TokenSecret,
		Issuer:   cfg.TokenIssuer,
		Audience: cfg.TokenAudience,
	})
	if err != nil {
		log.Fatalf("failed to init token verifier: %v", err)
	}

	var limiter *ratelimit.FixedWindowLimiter
	if redisClient != nil && cfg.RateLimitPerMinute > 0 {
		limiter, err = ratelimit.NewFixedWindowLimiter(redisClient, "ideamint:ratelimit", cfg.RateLimitPerMinute, time.Minute)
		if err != nil {
			log.Fatalf("failed to init rate limiter: %v", err)
		}
	}

	gateway := payment.NewHTTPGateway(cfg.PaymentBaseURL, cfg.PaymentAPIKey, 15*time.Second)

	var chain nft.ChainGateway
	if cfg.ChainRPCURL != "" && cfg.NFTContract != "" {
		chain = nft.NewRPCGateway(cfg.ChainRPCURL, cfg.NFTContract, 15*time.Second)
	}

	appCore := app.New(st, objects, analyzer, titles, events)
	mintSvc := nft.NewService(st, events)
	payments := payment.NewOrchestrator(st, gateway, events)

	httpServer, err := server.New(server.Config{
		App:           appCore,
		Mint:          mintSvc,
		Payments:      payments,
		Chain:         chain,
		IPFSGateway:   cfg.IPFSGatewayURL,
		TokenVerifier: tokenVerifier,
		Limiter:       limiter,
		InternalToken: cfg.InternalToken,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("ideamint server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "err", err)
	}
}

func buildNotifier(cfg config.FileConfig, redisClient *redis.Client) (notify.Publisher, func(), error) {
	switch cfg.NotifyBackend {
	case "redis":
		if redisClient == nil {
			return nil, nil, errors.New("redis notifier requires redisAddr")
		}
		n, err := notify.NewRedisNotifier(redisClient)
		if err != nil {
			return nil, nil, err
		}
		return n, func() {}, nil
	case "amqp":
		n, err := notify.NewAMQPNotifier(cfg.AMQPURL)
		if err != nil {
			return nil, nil, err
		}
		return n, func() { _ = n.Close() }, nil
	default:
		return notify.NopPublisher{}, func() {}, nil
	}
}

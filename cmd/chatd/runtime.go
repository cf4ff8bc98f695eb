package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/storefront-chat/internal/api/http"
	"github.com/spec-kit/storefront-chat/internal/api/http/handlers"
	"github.com/spec-kit/storefront-chat/internal/auth"
	"github.com/spec-kit/storefront-chat/internal/client"
	"github.com/spec-kit/storefront-chat/internal/config"
	"github.com/spec-kit/storefront-chat/internal/domain"
	"github.com/spec-kit/storefront-chat/internal/media"
	"github.com/spec-kit/storefront-chat/internal/observability"
	"github.com/spec-kit/storefront-chat/internal/persistence"
	"github.com/spec-kit/storefront-chat/internal/repository"
	"github.com/spec-kit/storefront-chat/internal/service"
	"github.com/spec-kit/storefront-chat/internal/transport"
	"github.com/spec-kit/storefront-chat/internal/worker"
)

// runtime holds the process-wide dependencies shared by every session.
type runtime struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *observability.Metrics
	pg      *persistence.Postgres
	redis   *persistence.Redis
	api     *client.Client
	archive service.Archive
	s3      media.Uploader
	tokens  *auth.TokenManager
}

func newRuntime(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*runtime, error) {
	rt := &runtime{
		cfg:     cfg,
		logger:  logger,
		metrics: observability.NewMetrics(),
		archive: service.NoopArchive{},
		tokens:  auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		api: client.NewClient(client.Options{
			BaseURL: cfg.Chat.APIURL,
			Timeout: cfg.Chat.APITimeout(),
			Logger:  logger,
		}),
	}

	if cfg.Postgres.DSN != "" {
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		rt.pg = pg
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				rt.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		pool := pg.PoolHandle()
		rt.archive = service.NewArchiveService(service.ArchiveDependencies{
			MessageRepo:    repository.NewMessageRepository(pool),
			AttachmentRepo: repository.NewAttachmentRepository(pool),
			TicketRepo:     repository.NewTicketRepository(pool),
			Logger:         logger,
		})
	} else {
		logger.Info("POSTGRES_DSN not set, message archive disabled")
	}

	if cfg.Redis.Addr != "" {
		rt.redis = persistence.NewRedis(cfg.Redis, logger)
	}

	if cfg.Media.Backend == config.MediaBackendS3 {
		s3, err := media.NewS3Uploader(ctx, cfg.Media.S3Region, cfg.Media.S3Bucket, cfg.Media.S3Prefix)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("init s3 uploader: %w", err)
		}
		rt.s3 = s3
	}
	return rt, nil
}

// Close releases database connections.
func (rt *runtime) Close() {
	rt.redis.Close()
	rt.pg.Close()
}

func (rt *runtime) redisClient() *redis.Client {
	if rt.redis == nil {
		return nil
	}
	return rt.redis.Client
}

func (rt *runtime) uploader(token string) media.Uploader {
	if rt.s3 != nil {
		return rt.s3
	}
	return &media.HTTPUploader{
		URL:    rt.cfg.Media.UploadURL,
		Token:  token,
		Client: &http.Client{Timeout: rt.cfg.Media.UploadTimeout()},
	}
}

// SessionFactory builds one socket, one registry and one reconciliation
// state per mounted chat screen.
func (rt *runtime) SessionFactory() service.SessionFactory {
	chat := rt.cfg.Chat
	return func(id string, principal domain.Principal) (*service.ChatSession, error) {
		logger := rt.logger.With(zap.String("session_id", id))
		notifications := service.NewNotificationService(logger, 0)

		header := http.Header{}
		header.Set("Authorization", "Bearer "+principal.Token)

		var manager *transport.Manager
		var session *service.ChatSession
		manager = transport.NewManager(transport.Options{
			URL:            chat.WSURL,
			Header:         header,
			Logger:         logger,
			Metrics:        rt.metrics,
			MaxAttempts:    chat.ReconnectMaxAttempts,
			BaseDelay:      chat.ReconnectBaseDelay(),
			MaxDelay:       chat.ReconnectMaxDelay(),
			ConnectTimeout: chat.ConnectTimeout(),
			SendRate:       float64(chat.SendRatePerSecond),
			OnStateChange: func(state transport.State) {
				notifications.ObserveConnection(manager.Status())
				if session != nil {
					session.ConnectionChanged(state)
				}
			},
		})
		worker.StartNotificationWorker(notifications, manager.Registry())

		api := client.NewTicketCache(rt.api.WithToken(principal.Token), rt.redisClient(), chat.TicketCacheTTL(), logger)
		pipeline := media.NewPipeline(media.PipelineOptions{
			Uploader:  rt.uploader(principal.Token),
			Timeout:   rt.cfg.Media.UploadTimeout(),
			LocalRoot: rt.cfg.Media.LocalRoot,
			Logger:    logger,
			Metrics:   rt.metrics,
		})

		session = service.NewChatSession(service.ChatSessionDependencies{
			ID:                id,
			Principal:         principal,
			Transport:         manager,
			API:               api,
			Media:             pipeline,
			Archive:           rt.archive,
			Notifications:     notifications,
			Logger:            logger,
			CorrelationWindow: chat.CorrelationWindow(),
		})
		return session, nil
	}
}

func newApp(rt *runtime, registry *service.SessionRegistry) *fiber.App {
	app := fiber.New(fiber.Config{AppName: rt.cfg.App.Name})
	httptransport.RegisterMiddlewares(app, rt.logger, rt.metrics, rt.cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(rt.cfg.App.Name, rt.cfg.App.Version, rt.pg, rt.redis, rt.metrics, registry.Len),
		Sessions:       handlers.NewSessionsHandler(registry),
		Messages:       handlers.NewMessagesHandler(registry),
		Tickets:        handlers.NewTicketsHandler(registry),
		Conversations:  handlers.NewConversationsHandler(registry),
		AuthMiddleware: auth.NewAuthMiddleware(rt.tokens),
	})
	return app
}

package app

import (
	"context"
	"fmt"

	"github.com/kapu/pizzabot-go/internal/adapter"
	"github.com/kapu/pizzabot-go/internal/bot"
	"github.com/kapu/pizzabot-go/internal/config"
	"github.com/kapu/pizzabot-go/internal/constants"
	"github.com/kapu/pizzabot-go/internal/dialog"
	"github.com/kapu/pizzabot-go/internal/gateway"
	"github.com/kapu/pizzabot-go/internal/nlp"
	"github.com/kapu/pizzabot-go/internal/service/cache"
	"github.com/kapu/pizzabot-go/internal/service/database"
	"github.com/kapu/pizzabot-go/internal/service/intent"
	"github.com/kapu/pizzabot-go/internal/service/knowledge"
	"github.com/kapu/pizzabot-go/internal/service/matcher"
	"github.com/kapu/pizzabot-go/internal/service/menu"
	"github.com/kapu/pizzabot-go/internal/service/orders"
	"github.com/kapu/pizzabot-go/internal/service/phrase"
	"github.com/kapu/pizzabot-go/internal/service/vision"
	"go.uber.org/zap"
)

// Container bundles assembled services for constructing runtime components like Bot.
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	botDeps *bot.Dependencies
}

// NewBot instantiates a bot using the pre-built dependency graph.
func (c *Container) NewBot() (*bot.Bot, error) {
	if c == nil || c.botDeps == nil {
		return nil, fmt.Errorf("bot dependencies not initialized")
	}
	return bot.NewBot(c.botDeps)
}

// Build assembles all infrastructure services and returns a container capable
// of creating fully-wired bots. All heavy-weight initialization (DB/cache/
// vision) is performed here so that bot.NewBot stays focused on orchestration.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (container *Container, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var closers []func()
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		}
	}()

	// Messaging primitives
	gatewayClient := gateway.NewClient(cfg.Gateway.BaseURL, logger)
	gatewayWS := gateway.NewWebSocket(
		cfg.Gateway.WSURL,
		constants.WebSocketConfig.MaxReconnectAttempts,
		constants.WebSocketConfig.ReconnectDelay,
		logger,
	)

	// Cache and database
	cacheSvc, err := cache.NewCacheService(cache.CacheConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache service: %w", err)
	}
	closers = append(closers, func() {
		_ = cacheSvc.Close()
	})

	postgresSvc, err := database.NewPostgresService(database.PostgresConfig{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		Database: cfg.Postgres.Database,
		SSLMode:  cfg.Postgres.SSLMode,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres service: %w", err)
	}
	closers = append(closers, func() {
		_ = postgresSvc.Close()
	})

	// Catalog and order persistence
	menuRepo := menu.NewRepository(postgresSvc.GetDB(), logger)
	if err := menuRepo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare menu schema: %w", err)
	}
	catalog := menuRepo.LoadCatalog(ctx)

	orderRepo := orders.NewRepository(postgresSvc.GetDB(), logger)
	if err := orderRepo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare orders schema: %w", err)
	}

	// Language analysis stack
	nlpClient := nlp.NewClient(cfg.NLP.BaseURL, logger)
	intentParser := intent.NewParser(nlpClient, cfg.Order, catalog.Words(), logger)
	catalogMatcher := matcher.NewCatalogMatcher(catalog, nlpClient, cfg.Order.MatchThreshold, logger)
	phraseExtractor := phrase.NewExtractor(nlpClient, logger)

	// Knowledge lookup
	knowledgeSvc := knowledge.NewService(cfg.Knowledge.BaseURL, cacheSvc, logger)

	// Vision is optional; the bot degrades to a polite failure reply for
	// photos when no provider is configured.
	var tagger dialog.ImageTagger
	if cfg.Gemini.APIKey != "" || cfg.OpenAI.APIKey != "" {
		visionTagger, vErr := vision.NewTagger(ctx, cfg.Gemini.APIKey, cfg.OpenAI.APIKey, cfg.OpenAI.EnableFallback, logger)
		if vErr != nil {
			logger.Warn("Vision tagger unavailable", zap.Error(vErr))
		} else {
			tagger = visionTagger
		}
	}

	formatter := adapter.NewFormatter(cfg.Order.ProductNoun)

	engine := dialog.NewEngine(
		intentParser,
		catalogMatcher,
		phraseExtractor,
		knowledgeSvc,
		orderRepo,
		tagger,
		catalog,
		formatter,
		cfg.Order,
		logger,
	)

	deps := &bot.Dependencies{
		Config:    cfg,
		Logger:    logger,
		Gateway:   gatewayClient,
		WebSocket: gatewayWS,
		Engine:    engine,
	}

	logger.Info("Application services assembled",
		zap.Int("catalog_items", catalog.Len()),
		zap.Bool("vision_enabled", tagger != nil),
	)

	return &Container{
		Config:  cfg,
		Logger:  logger,
		botDeps: deps,
	}, nil
}

package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/kapu/pizzabot-go/internal/adapter"
	"github.com/kapu/pizzabot-go/internal/config"
	"github.com/kapu/pizzabot-go/internal/dialog"
	"github.com/kapu/pizzabot-go/internal/gateway"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

const replyTimeout = 10 * time.Second

// Dependencies carries everything a running bot needs. Assembly happens in
// the app container; the bot itself only orchestrates.
type Dependencies struct {
	Config    *config.Config
	Logger    *zap.Logger
	Gateway   *gateway.Client
	WebSocket *gateway.WebSocket
	Engine    *dialog.Engine
}

// Bot consumes inbound gateway messages, advances the dialogue engine, and
// sends replies. Messages across conversations are handled concurrently; the
// engine serializes turns within each conversation itself.
type Bot struct {
	cfg         *config.Config
	logger      *zap.Logger
	client      *gateway.Client
	ws          *gateway.WebSocket
	engine      *dialog.Engine
	workers     *pool.Pool
	unsubscribe func()
}

func NewBot(deps *Dependencies) (*Bot, error) {
	if deps == nil {
		return nil, fmt.Errorf("dependencies must not be nil")
	}
	if deps.Config == nil || deps.Logger == nil {
		return nil, fmt.Errorf("config and logger are required")
	}
	if deps.Gateway == nil || deps.WebSocket == nil || deps.Engine == nil {
		return nil, fmt.Errorf("gateway, websocket and engine are required")
	}

	workers := deps.Config.Bot.Workers
	if workers < 1 {
		workers = 1
	}

	return &Bot{
		cfg:     deps.Config,
		logger:  deps.Logger,
		client:  deps.Gateway,
		ws:      deps.WebSocket,
		engine:  deps.Engine,
		workers: pool.New().WithMaxGoroutines(workers),
	}, nil
}

// Start connects the inbound stream and blocks until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	b.unsubscribe = b.ws.OnMessage(func(msg *gateway.Message) {
		b.workers.Go(func() {
			b.handle(ctx, msg)
		})
	})

	if err := b.ws.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect gateway stream: %w", err)
	}

	b.logger.Info("Bot running",
		zap.String("prefix", b.cfg.Bot.Prefix),
		zap.Int("workers", b.cfg.Bot.Workers),
	)

	<-ctx.Done()
	return nil
}

func (b *Bot) handle(ctx context.Context, msg *gateway.Message) {
	inbound := adapter.ParseInbound(msg, b.cfg.Bot.Prefix)

	var reply string
	switch inbound.Kind {
	case adapter.KindCommand:
		reply = b.engine.HandleCommand(ctx, inbound.Context, inbound.Command)
	case adapter.KindPhoto:
		reply = b.engine.HandlePhoto(ctx, inbound.Context, inbound.ImageURL)
	default:
		reply = b.engine.HandleMessage(ctx, inbound.Context)
	}

	if reply == "" {
		return
	}

	sendCtx, cancel := context.WithTimeout(context.Background(), replyTimeout)
	defer cancel()

	if err := b.client.SendMessage(sendCtx, inbound.Context.Conversation, reply); err != nil {
		b.logger.Error("Failed to send reply",
			zap.String("conversation", inbound.Context.Conversation),
			zap.Error(err),
		)
	}
}

// Shutdown stops the inbound stream and waits for in-flight turns.
func (b *Bot) Shutdown(ctx context.Context) error {
	if b.unsubscribe != nil {
		b.unsubscribe()
	}

	if err := b.ws.Disconnect(); err != nil {
		b.logger.Warn("Gateway stream close failed", zap.Error(err))
	}

	done := make(chan struct{})
	go func() {
		b.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("All in-flight turns finished")
	case <-ctx.Done():
		b.logger.Warn("Shutdown timed out waiting for in-flight turns")
	}

	return nil
}

package dialog

import (
	"context"
	"strings"
	"sync"

	"github.com/kapu/pizzabot-go/internal/adapter"
	"github.com/kapu/pizzabot-go/internal/config"
	"github.com/kapu/pizzabot-go/internal/constants"
	"github.com/kapu/pizzabot-go/internal/domain"
	"github.com/kapu/pizzabot-go/internal/util"
	"github.com/kapu/pizzabot-go/pkg/errors"
	"go.uber.org/zap"
)

// orderHistoryLimit caps how many past orders the history command shows.
const orderHistoryLimit = 5

// IntentParser classifies free text and extracts order fields from it.
type IntentParser interface {
	DetectIntent(ctx context.Context, text string) (bool, error)
	ExtractOrderFields(ctx context.Context, text string) (*domain.OrderFields, error)
	ExtractQuantity(ctx context.Context, text string) (int, error)
}

// CatalogMatcher resolves a free-text candidate to a catalog entry, or nil
// when nothing clears the confidence threshold.
type CatalogMatcher interface {
	Match(ctx context.Context, candidate string) (*domain.Match, error)
}

// PhraseExtractor produces the lookup phrase for the knowledge path.
type PhraseExtractor interface {
	QueryPhrase(ctx context.Context, text string) (string, error)
}

// KnowledgeLookup resolves a phrase to a short summary.
type KnowledgeLookup interface {
	Lookup(ctx context.Context, phrase string) (string, error)
}

// OrderSink durably records completed orders. Until Persist returns nil the
// order does not exist.
type OrderSink interface {
	Persist(ctx context.Context, msgCtx *domain.MessageContext, order *domain.Order) error
	RecentOrders(ctx context.Context, conversation string, limit int) ([]domain.Order, error)
}

// ImageTagger labels a photo; the first label is fed to the knowledge path.
type ImageTagger interface {
	Labels(ctx context.Context, imageURL string) ([]string, error)
}

// conversation is the per-key state cell. turnMu serializes whole turns so a
// conversation never has two in-flight messages; stateMu guards only the
// immediate state reads and writes, and is never held across an external call.
type conversation struct {
	turnMu  sync.Mutex
	stateMu sync.Mutex
	state   domain.ConversationState
}

func (c *conversation) snapshot() domain.ConversationState {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

func (c *conversation) set(phase domain.Phase, pending domain.PendingOrder) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.state.Phase = phase
	c.state.Pending = pending
}

func (c *conversation) reset() {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.state.Reset()
}

// Engine is the dialogue state machine. It owns all conversation state and
// is the only component that mutates it; every turn produces a reply string
// and a state transition, never a fault.
type Engine struct {
	intents   IntentParser
	matcher   CatalogMatcher
	phrases   PhraseExtractor
	knowledge KnowledgeLookup
	sink      OrderSink
	tagger    ImageTagger
	catalog   *domain.Catalog
	formatter *adapter.Formatter
	cfg       config.OrderConfig
	logger    *zap.Logger

	mu            sync.Mutex
	conversations map[string]*conversation
}

func NewEngine(
	intents IntentParser,
	matcher CatalogMatcher,
	phrases PhraseExtractor,
	knowledge KnowledgeLookup,
	sink OrderSink,
	tagger ImageTagger,
	catalog *domain.Catalog,
	formatter *adapter.Formatter,
	cfg config.OrderConfig,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		intents:       intents,
		matcher:       matcher,
		phrases:       phrases,
		knowledge:     knowledge,
		sink:          sink,
		tagger:        tagger,
		catalog:       catalog,
		formatter:     formatter,
		cfg:           cfg,
		logger:        logger,
		conversations: make(map[string]*conversation),
	}
}

func (e *Engine) conversation(key string) *conversation {
	e.mu.Lock()
	defer e.mu.Unlock()
	conv, ok := e.conversations[key]
	if !ok {
		conv = &conversation{}
		conv.state.Reset()
		e.conversations[key] = conv
	}
	return conv
}

// acquire returns the live state cell for key with its turn lock held. A cell
// can be evicted between lookup and lock, so liveness is re-checked after
// locking and the lookup retried.
func (e *Engine) acquire(key string) *conversation {
	for {
		conv := e.conversation(key)
		conv.turnMu.Lock()
		e.mu.Lock()
		live := e.conversations[key] == conv
		e.mu.Unlock()
		if live {
			return conv
		}
		conv.turnMu.Unlock()
	}
}

// release drops the turn lock, evicting the cell when the conversation ended
// the turn idle. The store then only ever holds in-progress orders, bounding
// it by active flows instead of process lifetime.
func (e *Engine) release(key string, conv *conversation) {
	if conv.snapshot().Phase == domain.PhaseIdle {
		e.mu.Lock()
		if e.conversations[key] == conv {
			delete(e.conversations, key)
		}
		e.mu.Unlock()
	}
	conv.turnMu.Unlock()
}

// Phase returns the current phase of one conversation. Unknown conversations
// are idle by definition.
func (e *Engine) Phase(key string) domain.Phase {
	e.mu.Lock()
	conv, ok := e.conversations[key]
	e.mu.Unlock()
	if !ok {
		return domain.PhaseIdle
	}
	return conv.snapshot().Phase
}

// HandleMessage advances one conversation by one free-text message and
// returns the reply. An empty reply means nothing should be sent.
func (e *Engine) HandleMessage(ctx context.Context, msgCtx *domain.MessageContext) string {
	text := strings.TrimSpace(msgCtx.Message)
	if text == "" {
		return ""
	}
	if len([]rune(text)) > e.maxMessageRunes() {
		text = util.TruncateString(text, e.maxMessageRunes())
	}

	conv := e.acquire(msgCtx.Conversation)
	defer e.release(msgCtx.Conversation, conv)

	state := conv.snapshot()
	e.logger.Debug("Handling message",
		zap.String("conversation", msgCtx.Conversation),
		zap.String("phase", string(state.Phase)),
	)

	switch state.Phase {
	case domain.PhaseAwaitingItemType:
		return e.resolveItemType(ctx, conv, text)
	case domain.PhaseAwaitingQuantity:
		return e.resolveQuantity(ctx, conv, msgCtx, text, state.Pending)
	default:
		return e.handleIdle(ctx, conv, msgCtx, text)
	}
}

// HandleCommand processes an explicit command for one conversation.
func (e *Engine) HandleCommand(ctx context.Context, msgCtx *domain.MessageContext, command string) string {
	conv := e.acquire(msgCtx.Conversation)
	defer e.release(msgCtx.Conversation, conv)

	switch command {
	case "start":
		return e.formatter.Greeting()
	case e.cfg.ProductNoun, "order", "menu":
		conv.set(domain.PhaseAwaitingItemType, domain.PendingOrder{})
		return e.formatter.Menu(e.catalog.Names())
	case "orders":
		history, err := e.sink.RecentOrders(ctx, msgCtx.Conversation, orderHistoryLimit)
		if err != nil {
			e.logger.Warn("Order history query failed",
				zap.String("conversation", msgCtx.Conversation),
				zap.Error(err),
			)
			return e.formatter.OrderHistory(nil)
		}
		return e.formatter.OrderHistory(history)
	case "cancel":
		if !conv.snapshot().InOrder() {
			// Nothing in progress; stay silent.
			return ""
		}
		conv.reset()
		return e.formatter.Cancelled()
	default:
		return e.formatter.UnknownCommand(command)
	}
}

// HandlePhoto labels a photo and answers with the label plus a short
// knowledge summary of the most salient one. Photos sent mid-order are
// deferred so they cannot derail the guided flow.
func (e *Engine) HandlePhoto(ctx context.Context, msgCtx *domain.MessageContext, imageURL string) string {
	conv := e.acquire(msgCtx.Conversation)
	defer e.release(msgCtx.Conversation, conv)

	if conv.snapshot().InOrder() {
		return e.formatter.PhotoDuringOrder()
	}
	if e.tagger == nil {
		return e.formatter.PhotoFailure()
	}

	labels, err := e.tagger.Labels(ctx, imageURL)
	if err != nil {
		e.logger.Warn("Photo labeling failed",
			zap.String("conversation", msgCtx.Conversation),
			zap.Error(err),
		)
		return e.formatter.PhotoFailure()
	}
	if len(labels) == 0 {
		return e.formatter.PhotoReply(nil, "")
	}

	summary, err := e.knowledge.Lookup(ctx, labels[0])
	if err != nil {
		summary = ""
	}
	return e.formatter.PhotoReply(labels, summary)
}

// handleIdle routes a free-text message with no order in progress: order
// intent starts or completes an order; anything else goes to the knowledge
// path, except messages that mention the product without a recognizable
// intent, which get pointed at the order command instead.
func (e *Engine) handleIdle(ctx context.Context, conv *conversation, msgCtx *domain.MessageContext, text string) string {
	isOrder, err := e.intents.DetectIntent(ctx, text)
	if err != nil {
		return e.parseFault(msgCtx, err)
	}

	if !isOrder {
		if strings.Contains(util.Normalize(text), e.cfg.ProductNoun) {
			return e.formatter.SuggestOrderCommand()
		}
		return e.lookup(ctx, msgCtx, text)
	}

	fields, err := e.intents.ExtractOrderFields(ctx, text)
	if err != nil {
		return e.parseFault(msgCtx, err)
	}

	if fields.ItemType != "" {
		match, err := e.matcher.Match(ctx, fields.ItemType)
		if err != nil {
			return e.parseFault(msgCtx, err)
		}
		if match != nil {
			// Single-turn fast path: type and quantity arrived together.
			return e.finalize(ctx, conv, msgCtx, match.Name, fields.Quantity)
		}
	}

	// Type missing or unresolved: restart the guided flow from the menu.
	// The free-text attempt, including its quantity, is discarded.
	conv.set(domain.PhaseAwaitingItemType, domain.PendingOrder{})
	return e.formatter.Menu(e.catalog.Names())
}

func (e *Engine) resolveItemType(ctx context.Context, conv *conversation, text string) string {
	match, err := e.matcher.Match(ctx, text)
	if err != nil {
		return e.formatter.Rephrase()
	}
	if match == nil {
		return e.formatter.MenuRetry(e.catalog.Names())
	}

	conv.set(domain.PhaseAwaitingQuantity, domain.PendingOrder{ItemType: match.Name})
	return e.formatter.AskQuantity(match.Name)
}

func (e *Engine) resolveQuantity(ctx context.Context, conv *conversation, msgCtx *domain.MessageContext, text string, pending domain.PendingOrder) string {
	quantity, err := e.intents.ExtractQuantity(ctx, text)
	if err != nil {
		return e.parseFault(msgCtx, err)
	}

	// Re-verify the stored type against the catalog before committing.
	match, err := e.matcher.Match(ctx, pending.ItemType)
	if err != nil {
		return e.parseFault(msgCtx, err)
	}
	if match == nil {
		itemType := pending.ItemType
		conv.reset()
		return e.formatter.NotInMenu(itemType)
	}

	return e.finalize(ctx, conv, msgCtx, match.Name, quantity)
}

// finalize commits an order. The conversation goes idle before the sink call
// so a slow or failed persist can never leave a half-applied order flow.
func (e *Engine) finalize(ctx context.Context, conv *conversation, msgCtx *domain.MessageContext, itemType string, quantity int) string {
	order := &domain.Order{
		Product:  e.cfg.ProductNoun,
		ItemType: itemType,
		Quantity: domain.ClampQuantity(quantity, e.cfg.MinQuantity, e.cfg.MaxQuantity),
	}

	conv.reset()

	if err := e.sink.Persist(ctx, msgCtx, order); err != nil {
		e.logger.Error("Order sink failed",
			zap.String("conversation", msgCtx.Conversation),
			zap.Error(err),
		)
		return e.formatter.SinkFailure()
	}

	return e.formatter.Confirmation(order)
}

func (e *Engine) lookup(ctx context.Context, msgCtx *domain.MessageContext, text string) string {
	phrase, err := e.phrases.QueryPhrase(ctx, text)
	if err != nil {
		return e.parseFault(msgCtx, err)
	}
	if phrase == "" {
		return e.formatter.LookupFailure("")
	}
	if len([]rune(phrase)) > e.maxPhraseRunes() {
		phrase = util.TruncateString(phrase, e.maxPhraseRunes())
	}

	summary, err := e.knowledge.Lookup(ctx, phrase)
	if err != nil {
		// A miss gets a reply naming the phrase; anything else is the
		// knowledge service misbehaving, which is not the user's fault.
		if errors.AsNotFound(err) {
			return e.formatter.LookupFailure(phrase)
		}
		e.logger.Warn("Knowledge lookup failed",
			zap.String("phrase", phrase),
			zap.Error(err),
		)
		return e.formatter.LookupUnavailable()
	}
	return e.formatter.LookupAnswer(summary)
}

// parseFault converts any analysis failure into a rephrase prompt without
// touching conversation state, so one malformed message never corrupts an
// in-progress order.
func (e *Engine) parseFault(msgCtx *domain.MessageContext, err error) string {
	e.logger.Warn("Turn failed, asking to rephrase",
		zap.String("conversation", msgCtx.Conversation),
		zap.Error(err),
	)
	return e.formatter.Rephrase()
}

func (e *Engine) maxMessageRunes() int {
	return constants.InputLimits.MaxMessageLength
}

func (e *Engine) maxPhraseRunes() int {
	return constants.InputLimits.MaxPhraseLength
}

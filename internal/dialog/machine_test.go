package dialog

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kapu/pizzabot-go/internal/adapter"
	"github.com/kapu/pizzabot-go/internal/config"
	"github.com/kapu/pizzabot-go/internal/domain"
	boterrors "github.com/kapu/pizzabot-go/pkg/errors"
	"go.uber.org/zap"
)

type fakeIntents struct {
	intent     bool
	intentErr  error
	fields     *domain.OrderFields
	fieldsErr  error
	quantities map[string]int
	qtyErr     error
}

func (f *fakeIntents) DetectIntent(_ context.Context, _ string) (bool, error) {
	return f.intent, f.intentErr
}

func (f *fakeIntents) ExtractOrderFields(_ context.Context, _ string) (*domain.OrderFields, error) {
	if f.fieldsErr != nil {
		return nil, f.fieldsErr
	}
	return f.fields, nil
}

func (f *fakeIntents) ExtractQuantity(_ context.Context, text string) (int, error) {
	if f.qtyErr != nil {
		return 0, f.qtyErr
	}
	if q, ok := f.quantities[strings.ToLower(strings.TrimSpace(text))]; ok {
		return q, nil
	}
	return 1, nil
}

type fakeMatcher struct {
	matches map[string]string
	err     error
}

func (f *fakeMatcher) Match(_ context.Context, candidate string) (*domain.Match, error) {
	if f.err != nil {
		return nil, f.err
	}
	if name, ok := f.matches[strings.ToLower(strings.TrimSpace(candidate))]; ok {
		return &domain.Match{Name: name, Score: 1.0}, nil
	}
	return nil, nil
}

type fakePhrases struct {
	phrase string
	err    error
	calls  []string
}

func (f *fakePhrases) QueryPhrase(_ context.Context, text string) (string, error) {
	f.calls = append(f.calls, text)
	return f.phrase, f.err
}

type fakeKnowledge struct {
	summary string
	err     error
	calls   []string
}

func (f *fakeKnowledge) Lookup(_ context.Context, phrase string) (string, error) {
	f.calls = append(f.calls, phrase)
	if f.err != nil {
		return "", f.err
	}
	return f.summary, nil
}

type fakeSink struct {
	orders []*domain.Order
	err    error
}

func (f *fakeSink) RecentOrders(_ context.Context, _ string, limit int) ([]domain.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.Order
	for i := len(f.orders) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *f.orders[i])
	}
	return out, nil
}

func (f *fakeSink) Persist(_ context.Context, _ *domain.MessageContext, order *domain.Order) error {
	if f.err != nil {
		return f.err
	}
	f.orders = append(f.orders, order)
	return nil
}

type fakeTagger struct {
	labels []string
	err    error
}

func (f *fakeTagger) Labels(_ context.Context, _ string) ([]string, error) {
	return f.labels, f.err
}

type engineFixture struct {
	engine    *Engine
	intents   *fakeIntents
	matcher   *fakeMatcher
	phrases   *fakePhrases
	knowledge *fakeKnowledge
	sink      *fakeSink
}

func newFixture() *engineFixture {
	catalog := domain.NewCatalog([]string{"Pepperoni", "Margherita", "Vegetarian"})
	cfg := config.OrderConfig{
		ProductNoun:    "pizza",
		ProductLemmas:  []string{"pizza", "pizzas"},
		IntentVerbs:    []string{"want", "order"},
		MatchThreshold: 0.88,
		ModifierWindow: 2,
		MinQuantity:    1,
		MaxQuantity:    10,
	}

	f := &engineFixture{
		intents: &fakeIntents{},
		matcher: &fakeMatcher{matches: map[string]string{
			"pepperoni":  "Pepperoni",
			"margherita": "Margherita",
			"vegetarian": "Vegetarian",
		}},
		phrases:   &fakePhrases{},
		knowledge: &fakeKnowledge{},
		sink:      &fakeSink{},
	}

	f.engine = NewEngine(
		f.intents,
		f.matcher,
		f.phrases,
		f.knowledge,
		f.sink,
		nil,
		catalog,
		adapter.NewFormatter("pizza"),
		cfg,
		zap.NewNop(),
	)
	return f
}

func msg(text string) *domain.MessageContext {
	return domain.NewMessageContext("room-1", "alice", text)
}

func TestFastPathFinalizesOrder(t *testing.T) {
	f := newFixture()
	f.intents.intent = true
	f.intents.fields = &domain.OrderFields{Quantity: 2, ItemType: "Pepperoni"}

	reply := f.engine.HandleMessage(context.Background(), msg("I'd like two pepperoni pizzas"))

	if len(f.sink.orders) != 1 {
		t.Fatalf("expected 1 persisted order, got %d", len(f.sink.orders))
	}
	order := f.sink.orders[0]
	if order.ItemType != "Pepperoni" || order.Quantity != 2 || order.Product != "pizza" {
		t.Errorf("unexpected order %+v", order)
	}
	if !strings.Contains(reply, "Pepperoni") {
		t.Errorf("confirmation should name the item, got %q", reply)
	}
	if got := f.engine.Phase("room-1"); got != domain.PhaseIdle {
		t.Errorf("expected idle after finalization, got %s", got)
	}
}

func TestFastPathUnresolvedTypeRestartsGuidedFlow(t *testing.T) {
	f := newFixture()
	f.intents.intent = true
	f.intents.fields = &domain.OrderFields{Quantity: 3, ItemType: "Mystery Pie"}

	reply := f.engine.HandleMessage(context.Background(), msg("I want three mystery pies of pizza"))

	if len(f.sink.orders) != 0 {
		t.Fatal("unresolved type must never finalize")
	}
	if got := f.engine.Phase("room-1"); got != domain.PhaseAwaitingItemType {
		t.Errorf("expected guided flow restart, got %s", got)
	}
	if !strings.Contains(reply, "Pepperoni") || !strings.Contains(reply, "Margherita") {
		t.Errorf("expected menu listing, got %q", reply)
	}

	// The discarded quantity from the failed attempt must not leak into the
	// restarted flow.
	f.engine.HandleMessage(context.Background(), msg("Margherita"))
	f.intents.quantities = map[string]int{"one": 1}
	f.engine.HandleMessage(context.Background(), msg("one"))

	if len(f.sink.orders) != 1 || f.sink.orders[0].Quantity != 1 {
		t.Fatalf("expected fresh quantity 1, got %+v", f.sink.orders)
	}
}

func TestOrderCommandStartsFlow(t *testing.T) {
	f := newFixture()

	reply := f.engine.HandleCommand(context.Background(), msg(""), "pizza")

	if got := f.engine.Phase("room-1"); got != domain.PhaseAwaitingItemType {
		t.Errorf("expected awaiting item type, got %s", got)
	}
	for _, name := range []string{"Pepperoni", "Margherita", "Vegetarian"} {
		if !strings.Contains(reply, name) {
			t.Errorf("menu should list %s, got %q", name, reply)
		}
	}
}

func TestAwaitingItemTypeSelection(t *testing.T) {
	f := newFixture()
	f.engine.HandleCommand(context.Background(), msg(""), "pizza")

	reply := f.engine.HandleMessage(context.Background(), msg("Margherita"))

	if got := f.engine.Phase("room-1"); got != domain.PhaseAwaitingQuantity {
		t.Errorf("expected awaiting quantity, got %s", got)
	}
	if !strings.Contains(reply, "Margherita") || !strings.Contains(reply, "How many") {
		t.Errorf("expected quantity prompt for Margherita, got %q", reply)
	}
}

func TestAwaitingItemTypeRejectionRedisplaysMenu(t *testing.T) {
	f := newFixture()
	f.engine.HandleCommand(context.Background(), msg(""), "pizza")

	reply := f.engine.HandleMessage(context.Background(), msg("sushi"))

	if got := f.engine.Phase("room-1"); got != domain.PhaseAwaitingItemType {
		t.Errorf("should remain awaiting item type, got %s", got)
	}
	if !strings.Contains(reply, "Pepperoni") {
		t.Errorf("expected menu re-display, got %q", reply)
	}
}

func TestAwaitingQuantityFinalizes(t *testing.T) {
	f := newFixture()
	f.intents.quantities = map[string]int{"seven": 7}
	f.engine.HandleCommand(context.Background(), msg(""), "pizza")
	f.engine.HandleMessage(context.Background(), msg("Margherita"))

	reply := f.engine.HandleMessage(context.Background(), msg("seven"))

	if len(f.sink.orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(f.sink.orders))
	}
	order := f.sink.orders[0]
	if order.Product != "pizza" || order.ItemType != "Margherita" || order.Quantity != 7 {
		t.Errorf("unexpected order %+v", order)
	}
	if got := f.engine.Phase("room-1"); got != domain.PhaseIdle {
		t.Errorf("expected idle, got %s", got)
	}
	if !strings.Contains(reply, "confirmed") {
		t.Errorf("expected confirmation, got %q", reply)
	}
}

func TestQuantityClampedAtFinalization(t *testing.T) {
	cases := []struct {
		input string
		raw   int
		want  int
	}{
		{"0", 0, 1},
		{"11", 11, 10},
		{"-3", -3, 1},
		{"zero", 0, 1},
	}

	for _, tc := range cases {
		f := newFixture()
		f.intents.quantities = map[string]int{tc.input: tc.raw}
		f.engine.HandleCommand(context.Background(), msg(""), "pizza")
		f.engine.HandleMessage(context.Background(), msg("Pepperoni"))

		f.engine.HandleMessage(context.Background(), msg(tc.input))

		if len(f.sink.orders) != 1 {
			t.Fatalf("input %q: expected 1 order, got %d", tc.input, len(f.sink.orders))
		}
		if got := f.sink.orders[0].Quantity; got != tc.want {
			t.Errorf("input %q: expected quantity %d, got %d", tc.input, tc.want, got)
		}
	}
}

func TestCancelWhileIdleIsNoOp(t *testing.T) {
	f := newFixture()

	reply := f.engine.HandleCommand(context.Background(), msg(""), "cancel")

	if reply != "" {
		t.Errorf("cancel in idle should stay silent, got %q", reply)
	}
	if got := f.engine.Phase("room-1"); got != domain.PhaseIdle {
		t.Errorf("expected idle, got %s", got)
	}
}

func TestCancelAbandonsOrder(t *testing.T) {
	f := newFixture()
	f.engine.HandleCommand(context.Background(), msg(""), "pizza")
	f.engine.HandleMessage(context.Background(), msg("Pepperoni"))

	reply := f.engine.HandleCommand(context.Background(), msg(""), "cancel")

	if !strings.Contains(reply, "cancelled") {
		t.Errorf("expected cancellation acknowledgment, got %q", reply)
	}
	if got := f.engine.Phase("room-1"); got != domain.PhaseIdle {
		t.Errorf("expected idle after cancel, got %s", got)
	}
}

func TestSinkFailureResetsToIdle(t *testing.T) {
	f := newFixture()
	f.sink.err = errors.New("db down")
	f.intents.quantities = map[string]int{"two": 2}
	f.engine.HandleCommand(context.Background(), msg(""), "pizza")
	f.engine.HandleMessage(context.Background(), msg("Pepperoni"))

	reply := f.engine.HandleMessage(context.Background(), msg("two"))

	if got := f.engine.Phase("room-1"); got != domain.PhaseIdle {
		t.Errorf("sink failure must leave conversation idle, got %s", got)
	}
	if !strings.Contains(reply, "try again") {
		t.Errorf("expected retry instruction, got %q", reply)
	}
}

func TestCatalogRecheckFailureResetsToIdle(t *testing.T) {
	f := newFixture()
	f.engine.HandleCommand(context.Background(), msg(""), "pizza")
	f.engine.HandleMessage(context.Background(), msg("Pepperoni"))

	// Catalog drifts between turns: the stored type no longer resolves.
	f.matcher.matches = map[string]string{}

	reply := f.engine.HandleMessage(context.Background(), msg("2"))

	if len(f.sink.orders) != 0 {
		t.Fatal("order must not be persisted when the re-check fails")
	}
	if got := f.engine.Phase("room-1"); got != domain.PhaseIdle {
		t.Errorf("expected idle, got %s", got)
	}
	if !strings.Contains(reply, "not on our menu") {
		t.Errorf("expected not-in-menu message, got %q", reply)
	}
}

func TestParseFaultLeavesStateUntouched(t *testing.T) {
	f := newFixture()
	f.engine.HandleCommand(context.Background(), msg(""), "pizza")
	f.engine.HandleMessage(context.Background(), msg("Pepperoni"))

	f.intents.qtyErr = errors.New("parser exploded")
	reply := f.engine.HandleMessage(context.Background(), msg("@@@@"))

	if got := f.engine.Phase("room-1"); got != domain.PhaseAwaitingQuantity {
		t.Errorf("parse fault must not mutate state, got %s", got)
	}
	if !strings.Contains(reply, "rephrase") {
		t.Errorf("expected rephrase prompt, got %q", reply)
	}

	// The flow continues normally once input parses again.
	f.intents.qtyErr = nil
	f.intents.quantities = map[string]int{"3": 3}
	f.engine.HandleMessage(context.Background(), msg("3"))
	if len(f.sink.orders) != 1 || f.sink.orders[0].Quantity != 3 {
		t.Fatalf("expected order to complete after recovery, got %+v", f.sink.orders)
	}
}

func TestNonIntentRoutesToKnowledgeLookup(t *testing.T) {
	f := newFixture()
	f.phrases.phrase = "capital of France"
	f.knowledge.summary = "Paris is the capital of France."

	reply := f.engine.HandleMessage(context.Background(), msg("What is the capital of France?"))

	if len(f.knowledge.calls) != 1 || f.knowledge.calls[0] != "capital of France" {
		t.Fatalf("expected lookup of extracted phrase, got %v", f.knowledge.calls)
	}
	if reply != "Paris is the capital of France." {
		t.Errorf("expected summary reply, got %q", reply)
	}
}

func TestProductMentionWithoutIntentSuggestsCommand(t *testing.T) {
	f := newFixture()

	reply := f.engine.HandleMessage(context.Background(), msg("my friend hates pizza crust"))

	if len(f.phrases.calls) != 0 {
		t.Error("product mention should short-circuit before phrase extraction")
	}
	if !strings.Contains(reply, "/pizza") {
		t.Errorf("expected order-command suggestion, got %q", reply)
	}
}

func TestLookupMissNamesPhrase(t *testing.T) {
	f := newFixture()
	f.phrases.phrase = "xyzzy"
	f.knowledge.err = boterrors.NewNotFoundError("article", "xyzzy")

	reply := f.engine.HandleMessage(context.Background(), msg("Tell me about xyzzy"))

	if !strings.Contains(reply, "xyzzy") {
		t.Errorf("miss reply should name the phrase, got %q", reply)
	}
}

func TestLookupTransportFailureBecomesDisplayString(t *testing.T) {
	f := newFixture()
	f.phrases.phrase = "xyzzy"
	f.knowledge.err = errors.New("connection refused")

	reply := f.engine.HandleMessage(context.Background(), msg("Tell me about xyzzy"))

	if strings.Contains(reply, "xyzzy") {
		t.Errorf("transport failure must not read like a miss, got %q", reply)
	}
	if !strings.Contains(reply, "try again") {
		t.Errorf("expected a try-again reply, got %q", reply)
	}
}

func (f *engineFixture) trackedConversations() int {
	f.engine.mu.Lock()
	defer f.engine.mu.Unlock()
	return len(f.engine.conversations)
}

func TestIdleConversationsAreEvicted(t *testing.T) {
	f := newFixture()
	f.phrases.phrase = "golang"
	f.knowledge.summary = "Go is a programming language."

	f.engine.HandleMessage(context.Background(), msg("what is golang"))
	if n := f.trackedConversations(); n != 0 {
		t.Errorf("idle conversation should be evicted after the turn, %d tracked", n)
	}

	f.engine.HandleCommand(context.Background(), msg(""), "pizza")
	if n := f.trackedConversations(); n != 1 {
		t.Errorf("in-progress order must stay tracked, %d tracked", n)
	}
	if got := f.engine.Phase("room-1"); got != domain.PhaseAwaitingItemType {
		t.Errorf("expected awaiting item type, got %s", got)
	}

	f.engine.HandleCommand(context.Background(), msg(""), "cancel")
	if n := f.trackedConversations(); n != 0 {
		t.Errorf("cancelled conversation should be evicted, %d tracked", n)
	}
}

func TestConversationsAreIndependent(t *testing.T) {
	f := newFixture()
	f.engine.HandleCommand(context.Background(), domain.NewMessageContext("room-1", "alice", ""), "pizza")

	if got := f.engine.Phase("room-2"); got != domain.PhaseIdle {
		t.Errorf("room-2 should be unaffected, got %s", got)
	}
	if got := f.engine.Phase("room-1"); got != domain.PhaseAwaitingItemType {
		t.Errorf("room-1 should be awaiting item type, got %s", got)
	}
}

func TestPhotoTagsAndLooksUp(t *testing.T) {
	f := newFixture()
	f.engine.tagger = &fakeTagger{labels: []string{"golden retriever", "dog"}}
	f.knowledge.summary = "The Golden Retriever is a British breed of retriever dog."

	reply := f.engine.HandlePhoto(context.Background(), msg(""), "http://img/1.jpg")

	if !strings.Contains(reply, "golden retriever") {
		t.Errorf("reply should name the top label, got %q", reply)
	}
	if !strings.Contains(reply, "British breed") {
		t.Errorf("reply should include the summary, got %q", reply)
	}
	if len(f.knowledge.calls) != 1 || f.knowledge.calls[0] != "golden retriever" {
		t.Errorf("expected lookup of the top label, got %v", f.knowledge.calls)
	}
}

func TestPhotoDeferredDuringOrder(t *testing.T) {
	f := newFixture()
	f.engine.tagger = &fakeTagger{labels: []string{"dog"}}
	f.engine.HandleCommand(context.Background(), msg(""), "pizza")

	reply := f.engine.HandlePhoto(context.Background(), msg(""), "http://img/1.jpg")

	if !strings.Contains(reply, "finish your pizza order") {
		t.Errorf("photo mid-order should be deferred, got %q", reply)
	}
	if got := f.engine.Phase("room-1"); got != domain.PhaseAwaitingItemType {
		t.Errorf("photo must not disturb the order flow, got %s", got)
	}
}

func TestOrdersCommandShowsHistory(t *testing.T) {
	f := newFixture()

	reply := f.engine.HandleCommand(context.Background(), msg(""), "orders")
	if !strings.Contains(reply, "No orders yet") {
		t.Errorf("expected empty history message, got %q", reply)
	}

	f.intents.quantities = map[string]int{"two": 2}
	f.engine.HandleCommand(context.Background(), msg(""), "pizza")
	f.engine.HandleMessage(context.Background(), msg("Pepperoni"))
	f.engine.HandleMessage(context.Background(), msg("two"))

	reply = f.engine.HandleCommand(context.Background(), msg(""), "orders")
	if !strings.Contains(reply, "Pepperoni x2") {
		t.Errorf("history should list the persisted order, got %q", reply)
	}
}

func TestStartCommandGreets(t *testing.T) {
	f := newFixture()

	reply := f.engine.HandleCommand(context.Background(), msg(""), "start")

	if reply == "" || !strings.Contains(reply, "/pizza") {
		t.Errorf("greeting should mention the order command, got %q", reply)
	}
	if got := f.engine.Phase("room-1"); got != domain.PhaseIdle {
		t.Errorf("greeting must not change state, got %s", got)
	}
}

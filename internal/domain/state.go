package domain

// Phase represents a conversation's position in the guided order flow.
type Phase string

const (
	// PhaseIdle indicates no order in progress; free text is routed through
	// intent detection and the knowledge-lookup fallback.
	PhaseIdle Phase = "idle"
	// PhaseAwaitingItemType indicates the bot asked which catalog item the
	// user wants.
	PhaseAwaitingItemType Phase = "awaiting_item_type"
	// PhaseAwaitingQuantity indicates the item type is fixed and the bot
	// asked how many.
	PhaseAwaitingQuantity Phase = "awaiting_quantity"
)

// ConversationState is the per-conversation dialogue state. It is created on
// the first message from a conversation, mutated only by the dialogue engine,
// and reset to idle on completion, cancellation, or unrecoverable failure.
type ConversationState struct {
	Phase   Phase
	Pending PendingOrder
}

// Reset returns the conversation to idle and discards any pending order.
func (s *ConversationState) Reset() {
	s.Phase = PhaseIdle
	s.Pending = PendingOrder{}
}

// InOrder reports whether a multi-turn order is in progress.
func (s ConversationState) InOrder() bool {
	return s.Phase == PhaseAwaitingItemType || s.Phase == PhaseAwaitingQuantity
}

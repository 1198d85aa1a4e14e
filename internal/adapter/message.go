package adapter

import (
	"strings"

	"github.com/kapu/pizzabot-go/internal/domain"
	"github.com/kapu/pizzabot-go/internal/gateway"
)

// InboundKind classifies a gateway message for routing.
type InboundKind int

const (
	KindText InboundKind = iota
	KindCommand
	KindPhoto
)

// Inbound is a gateway message normalized for the dialogue engine.
type Inbound struct {
	Kind     InboundKind
	Context  *domain.MessageContext
	Command  string
	ImageURL string
}

// ParseInbound normalizes a raw gateway message. Commands are lines starting
// with the configured prefix; the command name is lower-cased, arguments are
// kept in Context.Message.
func ParseInbound(msg *gateway.Message, prefix string) *Inbound {
	msgCtx := domain.NewMessageContext(msg.Conversation, msg.Sender, strings.TrimSpace(msg.Text))

	if msg.ImageURL != "" {
		return &Inbound{
			Kind:     KindPhoto,
			Context:  msgCtx,
			ImageURL: msg.ImageURL,
		}
	}

	if prefix != "" && strings.HasPrefix(msgCtx.Message, prefix) {
		rest := strings.TrimPrefix(msgCtx.Message, prefix)
		parts := strings.Fields(rest)
		if len(parts) > 0 {
			msgCtx.Message = strings.TrimSpace(strings.TrimPrefix(rest, parts[0]))
			return &Inbound{
				Kind:    KindCommand,
				Context: msgCtx,
				Command: strings.ToLower(parts[0]),
			}
		}
	}

	return &Inbound{
		Kind:    KindText,
		Context: msgCtx,
	}
}

package domain

import "time"

// MessageContext carries the transport-level envelope of one inbound message.
type MessageContext struct {
	Conversation string
	Sender       string
	Message      string
	Timestamp    time.Time
}

func NewMessageContext(conversation, sender, message string) *MessageContext {
	return &MessageContext{
		Conversation: conversation,
		Sender:       sender,
		Message:      message,
		Timestamp:    time.Now(),
	}
}

package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds. Subscribers filter on the namespace prefix ("rt.", "conversation.", "archive.", "notify.").
const (
	// Realtime channel lifecycle and inbound socket events.
	KindChannelStatus    = "rt.status_changed"
	KindChannelConnected = "rt.connected"
	KindChannelDown      = "rt.disconnected"
	KindChannelError     = "rt.connect_error"
	KindNewMessage       = "rt.new_message"
	KindUserTyping       = "rt.user_typing"
	KindUserStopTyping   = "rt.user_stop_typing"

	// Conversation view state, consumed by the TUI and the archive engine.
	KindConversationUpdated = "conversation.updated"
	KindHistoryLoaded       = "conversation.history_loaded"
	KindMessageAppended     = "conversation.message_appended"
	KindMessageSent         = "conversation.message_sent"
	KindMessageSendFailed   = "conversation.message_send_failed"

	// Local archive writes.
	KindArchived = "archive.stored"

	// User-facing transient notifications.
	KindNotify = "notify.flash"
)

// NewEvent returns an event of the given kind stamped with the current time.
func NewEvent(kind string, payload any) Event {
	return Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}

package realtime

// Outbound event names.
const (
	EventJoinDeal    = "joinDeal"
	EventLeaveDeal   = "leaveDeal"
	EventSendMessage = "sendMessage"
	EventTyping      = "typing"
	EventStopTyping  = "stopTyping"
)

// Inbound event names.
const (
	EventNewMessage     = "newMessage"
	EventUserTyping     = "userTyping"
	EventUserStopTyping = "userStopTyping"
)

// OutboundMessage is the fire-and-forget broadcast of a sent message.
type OutboundMessage struct {
	DealID      string    `json:"dealId"`
	Content     string    `json:"content"`
	SenderName  string    `json:"senderName"`
	SenderEmail string    `json:"senderEmail"`
	CreatedAt   Timestamp `json:"createdAt"`
	ClientID    string    `json:"clientId,omitempty"`
}

// TypingSignal is the payload of typing and stopTyping.
type TypingSignal struct {
	DealID   string `json:"dealId"`
	UserName string `json:"userName"`
	IsTyping bool   `json:"isTyping"`
}

// InboundMessage is a newMessage relayed by the server.
type InboundMessage struct {
	// ID is set when the server relays a persisted message.
	ID          string    `json:"_id,omitempty"`
	DealID      string    `json:"dealId"`
	SenderID    string    `json:"sender"`
	SenderName  string    `json:"senderName"`
	SenderEmail string    `json:"senderEmail"`
	Content     string    `json:"content"`
	Timestamp   Timestamp `json:"timestamp"`
	ClientID    string    `json:"clientId,omitempty"`
}

// TypingEvent is userTyping / userStopTyping. The server does not name the
// deal, so DealID is the room joined when the event arrived.
type TypingEvent struct {
	DealID   string `json:"-"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// Disconnect is the payload of rt.disconnected.
type Disconnect struct {
	Err error
}

// ConnectError is the payload of rt.connect_error.
type ConnectError struct {
	Message string
}

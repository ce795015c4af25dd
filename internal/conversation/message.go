package conversation

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/dealroom/internal/api"
	"github.com/matheus3301/dealroom/internal/realtime"
)

// State is the delivery state of a message in the view.
type State string

const (
	// StateReceived is any message not sent from this process.
	StateReceived State = "received"
	StateSending  State = "sending"
	StateSent     State = "sent"
	StateFailed   State = "failed"
)

// Message is one entry of the conversation view.
type Message struct {
	// ID is the server id, the correlation id of an unconfirmed own send,
	// or a local "rt-" id for socket-only messages.
	ID          string
	ClientID    string
	DealID      string
	SenderID    string
	SenderName  string
	SenderEmail string
	Content     string
	CreatedAt   time.Time
	ReadBy      []string
	Own         bool
	State       State
}

// Snapshot is a copy of the view state.
type Snapshot struct {
	DealID    string
	Loading   bool
	Messages  []Message
	Typing    []string
	Connected bool
}

// HistoryLoaded is the payload of conversation.history_loaded.
type HistoryLoaded struct {
	DealID   string
	Messages []Message
}

const localPrefix = "rt-"

// Identity is the signed-in user.
type Identity interface {
	UserID() string
	DisplayName() string
	Email() string
}

// Persisted reports whether the entry carries a server id. Socket-only
// messages get a local id until the history is fetched again.
func (m Message) Persisted() bool {
	if m.State == StateSending || m.State == StateFailed {
		return false
	}
	return m.ID != "" && !strings.HasPrefix(m.ID, localPrefix)
}

func isOwn(id Identity, senderID, senderEmail string) bool {
	if senderID != "" && senderID == id.UserID() {
		return true
	}
	return senderEmail != "" && strings.EqualFold(senderEmail, id.Email())
}

func fromAPI(m api.Message, id Identity) Message {
	own := isOwn(id, m.Sender.ID, m.Sender.Email)
	state := StateReceived
	if own {
		state = StateSent
	}
	return Message{
		ID:          m.ID,
		ClientID:    m.ClientID,
		DealID:      string(m.Deal),
		SenderID:    m.Sender.ID,
		SenderName:  m.Sender.Name,
		SenderEmail: m.Sender.Email,
		Content:     m.Content,
		CreatedAt:   m.CreatedAt,
		ReadBy:      m.ReadBy,
		Own:         own,
		State:       state,
	}
}

func fromInbound(m realtime.InboundMessage, id Identity) Message {
	msgID := m.ID
	if msgID == "" {
		msgID = localPrefix + uuid.NewString()
	}
	return Message{
		ID:          msgID,
		ClientID:    m.ClientID,
		DealID:      m.DealID,
		SenderID:    m.SenderID,
		SenderName:  m.SenderName,
		SenderEmail: m.SenderEmail,
		Content:     m.Content,
		CreatedAt:   m.Timestamp.Time(),
		Own:         isOwn(id, m.SenderID, m.SenderEmail),
		State:       StateReceived,
	}
}

func cloneMessages(in []Message) []Message {
	if in == nil {
		return nil
	}
	out := make([]Message, len(in))
	copy(out, in)
	return out
}

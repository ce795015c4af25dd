package outbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/matheus3301/dealroom/internal/api"
	"github.com/matheus3301/dealroom/internal/bus"
	"go.uber.org/zap"
)

// Status of a pending send.
type Status string

const (
	StatusSending Status = "sending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// ErrUnknownEntry is returned by Deliver for a client id that was never queued.
var ErrUnknownEntry = errors.New("unknown outbox entry")

// Poster persists a message through the Message API.
type Poster interface {
	CreateMessage(ctx context.Context, dealID, content, clientID string) (api.Message, error)
}

// Entry is one optimistic send, keyed by its client-generated correlation id.
type Entry struct {
	ClientID  string
	DealID    string
	Body      string
	Status    Status
	ServerID  string
	Error     string
	CreatedAt time.Time
	// Echoed is set once a realtime echo of this send has been absorbed.
	Echoed bool
}

// Ack is the payload of conversation.message_sent.
type Ack struct {
	ClientID string
	Message  api.Message
}

// Failure is the payload of conversation.message_send_failed.
type Failure struct {
	ClientID string
	DealID   string
	Err      error
}

// Sender performs the durable half of a send and remembers every send's
// correlation id so duplicate copies can be recognised. Failed sends are
// never retried.
type Sender struct {
	poster Poster
	bus    *bus.Bus
	clock  clockwork.Clock
	logger *zap.Logger

	mu      sync.Mutex
	entries map[string]*Entry
	order   []string
}

// NewSender creates a new outbox sender.
func NewSender(poster Poster, b *bus.Bus, clock clockwork.Clock, logger *zap.Logger) *Sender {
	return &Sender{
		poster:  poster,
		bus:     b,
		clock:   clock,
		logger:  logger,
		entries: make(map[string]*Entry),
	}
}

// Queue records a new optimistic send with a fresh correlation id.
func (s *Sender) Queue(dealID, body string) Entry {
	e := &Entry{
		ClientID:  uuid.NewString(),
		DealID:    dealID,
		Body:      body,
		Status:    StatusSending,
		CreatedAt: s.clock.Now(),
	}
	s.mu.Lock()
	s.entries[e.ClientID] = e
	s.order = append(s.order, e.ClientID)
	s.mu.Unlock()
	return *e
}

// Deliver persists a queued entry. On success the server's copy is returned
// and conversation.message_sent published; on failure the entry is marked
// failed and conversation.message_send_failed published.
func (s *Sender) Deliver(ctx context.Context, clientID string) (api.Message, error) {
	s.mu.Lock()
	e, ok := s.entries[clientID]
	var dealID, body string
	if ok {
		dealID, body = e.DealID, e.Body
	}
	s.mu.Unlock()
	if !ok {
		return api.Message{}, ErrUnknownEntry
	}

	msg, err := s.poster.CreateMessage(ctx, dealID, body, clientID)
	if err != nil {
		s.logger.Error("failed to send message", zap.Error(err), zap.String("client_id", clientID), zap.String("deal_id", dealID))
		s.mu.Lock()
		e.Status = StatusFailed
		e.Error = err.Error()
		s.mu.Unlock()
		s.bus.Publish(bus.NewEvent(bus.KindMessageSendFailed, Failure{ClientID: clientID, DealID: dealID, Err: err}))
		return api.Message{}, err
	}

	if msg.ClientID == "" {
		msg.ClientID = clientID
	}
	s.mu.Lock()
	e.Status = StatusSent
	e.ServerID = msg.ID
	s.mu.Unlock()

	s.logger.Info("message sent", zap.String("client_id", clientID), zap.String("server_id", msg.ID))
	s.bus.Publish(bus.NewEvent(bus.KindMessageSent, Ack{ClientID: clientID, Message: msg}))
	return msg, nil
}

// Get returns a copy of an entry.
func (s *Sender) Get(clientID string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[clientID]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Owns reports whether clientID or serverID belongs to a send of this
// process, marking the entry echoed. Either id may be empty.
func (s *Sender) Owns(clientID, serverID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[clientID]; ok && clientID != "" {
		e.Echoed = true
		return true
	}
	if serverID == "" {
		return false
	}
	for _, id := range s.order {
		if e := s.entries[id]; e.ServerID == serverID {
			e.Echoed = true
			return true
		}
	}
	return false
}

// ClaimEcho matches a realtime echo that carries no correlation id against
// the oldest not-yet-echoed send with the same deal and body. A failed send
// still claims its echo: the broadcast may have gone out before the durable
// write failed. It returns the claimed entry.
func (s *Sender) ClaimEcho(dealID, body string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.order {
		e := s.entries[id]
		if e.Echoed || e.DealID != dealID || e.Body != body {
			continue
		}
		e.Echoed = true
		return *e, true
	}
	return Entry{}, false
}

// Forget drops all entries of a deal, e.g. when its conversation is closed.
func (s *Sender) Forget(dealID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.order[:0]
	for _, id := range s.order {
		if s.entries[id].DealID == dealID {
			delete(s.entries, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
}

// Pending returns entries still awaiting the durable write, oldest first.
func (s *Sender) Pending() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Entry
	for _, id := range s.order {
		if e := s.entries[id]; e.Status == StatusSending {
			out = append(out, *e)
		}
	}
	return out
}

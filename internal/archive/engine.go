// Package archive mirrors conversation traffic into the local SQLite
// archive so deals can be searched and listed by activity offline.
package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/matheus3301/dealroom/internal/api"
	"github.com/matheus3301/dealroom/internal/bus"
	"github.com/matheus3301/dealroom/internal/conversation"
	"github.com/matheus3301/dealroom/internal/outbox"
	"github.com/matheus3301/dealroom/internal/store"
	"go.uber.org/zap"
)

// Store is the part of the local database the engine writes to.
type Store interface {
	UpsertMessage(ctx context.Context, m *store.Message) error
	UpsertMessages(ctx context.Context, msgs []store.Message) error
	TouchDeal(ctx context.Context, dealID string, at int64, preview string, unread int) error
}

// Engine handles idempotent ingestion of conversation messages.
// It subscribes to "conversation." events on the bus and processes them.
type Engine struct {
	db     Store
	bus    *bus.Bus
	self   string
	logger *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine creates an archive engine for the signed-in user selfID.
func NewEngine(db Store, b *bus.Bus, selfID string, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{db: db, bus: b, self: selfID, logger: logger}
}

// Start subscribes to conversation events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	ch, unsub := e.bus.Subscribe("conversation.", 256)

	go func() {
		defer close(e.done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				e.handleEvent(ctx, evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine and waits for the event loop to exit.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
		<-e.done
	}
}

func (e *Engine) handleEvent(ctx context.Context, evt bus.Event) {
	switch evt.Kind {
	case bus.KindHistoryLoaded:
		h, ok := evt.Payload.(conversation.HistoryLoaded)
		if !ok {
			return
		}
		if err := e.IngestHistory(ctx, h.Messages); err != nil {
			e.logger.Error("failed to archive history", zap.Error(err), zap.String("deal_id", h.DealID))
		}
	case bus.KindMessageAppended:
		m, ok := evt.Payload.(conversation.Message)
		if !ok || !m.Persisted() {
			return
		}
		if err := e.IngestMessage(ctx, e.fromView(m)); err != nil {
			e.logger.Error("failed to archive message", zap.Error(err), zap.String("msg_id", m.ID))
		}
	case bus.KindMessageSent:
		ack, ok := evt.Payload.(outbox.Ack)
		if !ok {
			return
		}
		sm := e.fromAPI(ack.Message)
		sm.ClientID = ack.ClientID
		sm.FromMe = true
		if err := e.IngestMessage(ctx, sm); err != nil {
			e.logger.Error("failed to archive sent message", zap.Error(err), zap.String("client_id", ack.ClientID))
		}
	}
}

// IngestMessage stores a single message and bumps its deal's activity (idempotent).
func (e *Engine) IngestMessage(ctx context.Context, m store.Message) error {
	if m.DealID == "" || m.MsgID == "" {
		return nil
	}
	if err := e.db.UpsertMessage(ctx, &m); err != nil {
		return fmt.Errorf("upsert message: %w", err)
	}
	if err := e.db.TouchDeal(ctx, m.DealID, m.Timestamp, store.Preview(m.Body), 0); err != nil {
		return fmt.Errorf("touch deal: %w", err)
	}

	e.bus.Publish(bus.NewEvent(bus.KindArchived, Stored{DealID: m.DealID, Count: 1}))
	return nil
}

// IngestHistory stores a fetched history in one transaction.
func (e *Engine) IngestHistory(ctx context.Context, msgs []conversation.Message) error {
	batch := make([]store.Message, 0, len(msgs))
	dealID := ""
	for _, m := range msgs {
		if !m.Persisted() {
			continue
		}
		sm := e.fromView(m)
		if sm.DealID == "" || sm.MsgID == "" {
			continue
		}
		dealID = sm.DealID
		batch = append(batch, sm)
	}
	if len(batch) == 0 {
		return nil
	}
	if err := e.db.UpsertMessages(ctx, batch); err != nil {
		return fmt.Errorf("upsert history: %w", err)
	}
	e.logger.Info("history archived", zap.String("deal_id", dealID), zap.Int("messages", len(batch)))
	e.bus.Publish(bus.NewEvent(bus.KindArchived, Stored{DealID: dealID, Count: len(batch)}))
	return nil
}

// IngestFetched stores messages fetched from the API outside a
// conversation view, e.g. by the command line client.
func (e *Engine) IngestFetched(ctx context.Context, msgs []api.Message) error {
	batch := make([]store.Message, 0, len(msgs))
	for _, m := range msgs {
		if sm := e.fromAPI(m); sm.DealID != "" && sm.MsgID != "" {
			batch = append(batch, sm)
		}
	}
	if len(batch) == 0 {
		return nil
	}
	if err := e.db.UpsertMessages(ctx, batch); err != nil {
		return fmt.Errorf("upsert messages: %w", err)
	}
	e.bus.Publish(bus.NewEvent(bus.KindArchived, Stored{DealID: batch[0].DealID, Count: len(batch)}))
	return nil
}

// Stored is the payload of archive.stored.
type Stored struct {
	DealID string
	Count  int
}

func (e *Engine) fromAPI(m api.Message) store.Message {
	return store.Message{
		DealID:      string(m.Deal),
		MsgID:       m.ID,
		ClientID:    m.ClientID,
		SenderID:    m.Sender.ID,
		SenderName:  m.Sender.Name,
		SenderEmail: m.Sender.Email,
		Body:        m.Content,
		FromMe:      e.self != "" && m.Sender.ID == e.self,
		Timestamp:   m.CreatedAt.UnixMilli(),
	}
}

// fromView converts a view entry that has a server id.
func (e *Engine) fromView(m conversation.Message) store.Message {
	ts := m.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return store.Message{
		DealID:      m.DealID,
		MsgID:       m.ID,
		ClientID:    m.ClientID,
		SenderID:    m.SenderID,
		SenderName:  m.SenderName,
		SenderEmail: m.SenderEmail,
		Body:        m.Content,
		FromMe:      m.Own || (e.self != "" && m.SenderID == e.self),
		Timestamp:   ts.UnixMilli(),
	}
}

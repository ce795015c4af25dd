package conversation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/matheus3301/dealroom/internal/api"
	"github.com/matheus3301/dealroom/internal/bus"
	"github.com/matheus3301/dealroom/internal/outbox"
	"github.com/matheus3301/dealroom/internal/realtime"
	"go.uber.org/zap"
)

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrNoConversation = errors.New("no conversation open")
)

// MessageAPI is the durable side of a conversation.
type MessageAPI interface {
	ListMessages(ctx context.Context, dealID string) ([]api.Message, error)
	CreateMessage(ctx context.Context, dealID, content, clientID string) (api.Message, error)
}

// echoWindow bounds how much older than a pending send a history copy with
// the same text may be and still be taken for it.
const echoWindow = time.Minute

// Channel is the realtime side of a conversation.
type Channel interface {
	Connected() bool
	Join(dealID string) error
	Leave(dealID string) error
	SendMessage(m realtime.OutboundMessage) error
	Typing(dealID, userName string) error
	StopTyping(dealID, userName string) error
}

// Metrics receives synchronizer observations. Nil is allowed.
type Metrics interface {
	HistoryFetched(elapsed time.Duration, err error)
	MessageSent(err error)
	DuplicateDropped()
}

// Options holds the collaborators of a Synchronizer.
type Options struct {
	Identity Identity
	API      MessageAPI
	Channel  Channel
	Bus      *bus.Bus
	Notifier Notifier
	Clock    clockwork.Clock
	Logger   *zap.Logger
	Metrics  Metrics

	// TypingDebounce is the quiet period after the last keystroke before stop is sent.
	TypingDebounce time.Duration
	// PresenceTTL expires peers' typing entries that are not refreshed.
	PresenceTTL time.Duration
	// TypingRefresh is the minimum interval between repeated start signals
	// within one burst. Zero derives PresenceTTL - TypingDebounce.
	TypingRefresh time.Duration
}

// Synchronizer keeps one deal conversation view: the REST history merged
// with the realtime stream, the typing presence of peers, and optimistic
// sends reconciled by correlation id.
type Synchronizer struct {
	self     Identity
	api      MessageAPI
	channel  Channel
	bus      *bus.Bus
	notifier Notifier
	clock    clockwork.Clock
	logger   *zap.Logger
	metrics  Metrics
	outbox   *outbox.Sender
	typist   *Typist
	ttl      time.Duration

	// openMu serializes room membership changes.
	openMu sync.Mutex

	mu          sync.Mutex
	dealID      string
	gen         uint64
	loading     bool
	messages    []Message
	presence    *Presence
	cancelFetch context.CancelFunc

	cancel  context.CancelFunc
	loops   sync.WaitGroup
	fetches sync.WaitGroup
}

// New creates a Synchronizer. No conversation is open until Open.
func New(opts Options) *Synchronizer {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	if opts.TypingDebounce <= 0 {
		opts.TypingDebounce = 2 * time.Second
	}
	if opts.TypingRefresh == 0 && opts.PresenceTTL > opts.TypingDebounce {
		opts.TypingRefresh = opts.PresenceTTL - opts.TypingDebounce
	}

	s := &Synchronizer{
		self:     opts.Identity,
		api:      opts.API,
		channel:  opts.Channel,
		bus:      opts.Bus,
		notifier: opts.Notifier,
		clock:    opts.Clock,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		ttl:      opts.PresenceTTL,
		presence: NewPresence(opts.Clock, opts.PresenceTTL),
	}
	s.outbox = outbox.NewSender(opts.API, opts.Bus, opts.Clock, opts.Logger)
	s.typist = NewTypist(opts.Clock, opts.TypingDebounce, opts.TypingRefresh,
		func() { s.emitTyping(true) },
		func() { s.emitTyping(false) },
	)
	return s
}

// Start subscribes to realtime events. Stop must be called to release it.
func (s *Synchronizer) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	events, unsub := s.bus.Subscribe("rt.", 256)

	var sweep <-chan time.Time
	var ticker clockwork.Ticker
	if s.ttl > 0 {
		ticker = s.clock.NewTicker(s.ttl / 2)
		sweep = ticker.Chan()
	}

	s.loops.Add(1)
	go func() {
		defer s.loops.Done()
		defer unsub()
		if ticker != nil {
			defer ticker.Stop()
		}
		for {
			select {
			case evt := <-events:
				s.handle(evt)
			case <-sweep:
				s.mu.Lock()
				changed := s.presence.Sweep()
				s.mu.Unlock()
				if changed {
					s.publishUpdate()
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop closes the open conversation and waits for background work.
func (s *Synchronizer) Stop() {
	s.Close()
	if s.cancel != nil {
		s.cancel()
	}
	s.loops.Wait()
	s.fetches.Wait()
}

// Open enters the conversation of dealID: the previous deal's room is left,
// the view resets to loading, the new room is joined when connected and the
// history is fetched once. A fetch answered after a later Open or Close is
// discarded.
func (s *Synchronizer) Open(ctx context.Context, dealID string) error {
	if dealID == "" {
		return errors.New("open conversation: empty deal id")
	}
	s.openMu.Lock()
	defer s.openMu.Unlock()

	fetchCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	prev := s.dealID
	if s.cancelFetch != nil {
		s.cancelFetch()
	}
	s.gen++
	gen := s.gen
	s.dealID = dealID
	s.loading = true
	s.messages = nil
	s.presence.Clear()
	s.cancelFetch = cancel
	s.mu.Unlock()

	s.leave(prev)
	if s.channel.Connected() {
		if err := s.channel.Join(dealID); err != nil {
			s.logger.Warn("join deal room failed", zap.String("deal_id", dealID), zap.Error(err))
		}
	}
	s.logger.Info("conversation opened", zap.String("deal_id", dealID))
	s.publishUpdate()

	s.fetches.Add(1)
	go s.fetch(fetchCtx, gen, dealID)
	return nil
}

// Close leaves the open conversation, if any.
func (s *Synchronizer) Close() {
	s.openMu.Lock()
	defer s.openMu.Unlock()

	s.mu.Lock()
	prev := s.dealID
	if s.cancelFetch != nil {
		s.cancelFetch()
		s.cancelFetch = nil
	}
	s.gen++
	s.dealID = ""
	s.loading = false
	s.messages = nil
	s.presence.Clear()
	s.mu.Unlock()

	if prev == "" {
		return
	}
	s.leave(prev)
	s.publishUpdate()
}

// leave ends typing and room membership for dealID. Must hold openMu.
func (s *Synchronizer) leave(dealID string) {
	if dealID == "" {
		return
	}
	if s.typist.Reset() && s.channel.Connected() {
		if err := s.channel.StopTyping(dealID, s.self.DisplayName()); err != nil {
			s.logger.Debug("stop typing failed", zap.Error(err))
		}
	}
	if err := s.channel.Leave(dealID); err != nil {
		s.logger.Warn("leave deal room failed", zap.String("deal_id", dealID), zap.Error(err))
	}
	s.outbox.Forget(dealID)
}

func (s *Synchronizer) fetch(ctx context.Context, gen uint64, dealID string) {
	defer s.fetches.Done()

	start := s.clock.Now()
	history, err := s.api.ListMessages(ctx, dealID)
	s.metrics.HistoryFetched(s.clock.Since(start), err)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		s.logger.Debug("discarding stale history", zap.String("deal_id", dealID))
		return
	}
	s.loading = false

	if err != nil {
		s.mu.Unlock()
		s.publishUpdate()
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("failed to load messages", zap.String("deal_id", dealID), zap.Error(err))
		s.notify(LevelError, TextLoadFailed, err)
		return
	}

	merged := make([]Message, 0, len(history)+len(s.messages))
	ids := make(map[string]int, len(history))
	clientIDs := make(map[string]bool)
	for i, h := range history {
		m := fromAPI(h, s.self)
		merged = append(merged, m)
		ids[m.ID] = i
		if m.ClientID != "" {
			clientIDs[m.ClientID] = true
		}
	}
	// Live arrivals during the fetch follow the history unless it already has them.
	// An own send without a server id yet is matched by text to an own copy in
	// the history, which then takes its correlation id.
	claimed := make(map[int]bool)
	for _, m := range s.messages {
		if j, ok := ids[m.ID]; ok {
			if merged[j].ClientID == "" {
				merged[j].ClientID = m.ClientID
			}
			continue
		}
		if m.ClientID != "" && clientIDs[m.ClientID] {
			continue
		}
		if m.Own && (m.State == StateSending || m.State == StateFailed) {
			if j := ownCopy(merged[:len(history)], m, claimed); j >= 0 {
				claimed[j] = true
				merged[j].ClientID = m.ClientID
				continue
			}
		}
		merged = append(merged, m)
	}
	s.messages = merged
	loaded := HistoryLoaded{DealID: dealID, Messages: cloneMessages(merged[:len(history)])}
	s.mu.Unlock()

	s.logger.Info("history loaded", zap.String("deal_id", dealID), zap.Int("count", len(history)))
	s.bus.Publish(bus.NewEvent(bus.KindHistoryLoaded, loaded))
	s.publishUpdate()
}

// Send posts content to the open conversation. An optimistic entry is shown
// at once; the message is broadcast when the channel is connected and always
// written through the Message API. The entry is reconciled with the server's
// copy by correlation id. Failures are surfaced and never retried.
func (s *Synchronizer) Send(ctx context.Context, content string) (Message, error) {
	text := strings.TrimSpace(content)
	if text == "" {
		return Message{}, ErrEmptyMessage
	}

	s.mu.Lock()
	dealID := s.dealID
	gen := s.gen
	if dealID == "" {
		s.mu.Unlock()
		return Message{}, ErrNoConversation
	}
	entry := s.outbox.Queue(dealID, text)
	optimistic := Message{
		ID:          entry.ClientID,
		ClientID:    entry.ClientID,
		DealID:      dealID,
		SenderID:    s.self.UserID(),
		SenderName:  s.self.DisplayName(),
		SenderEmail: s.self.Email(),
		Content:     text,
		CreatedAt:   entry.CreatedAt,
		Own:         true,
		State:       StateSending,
	}
	s.messages = append(s.messages, optimistic)
	s.mu.Unlock()
	s.publishUpdate()

	if s.channel.Connected() {
		err := s.channel.SendMessage(realtime.OutboundMessage{
			DealID:      dealID,
			Content:     text,
			SenderName:  s.self.DisplayName(),
			SenderEmail: s.self.Email(),
			CreatedAt:   realtime.Timestamp(entry.CreatedAt),
			ClientID:    entry.ClientID,
		})
		if err != nil {
			s.logger.Warn("realtime broadcast failed", zap.String("client_id", entry.ClientID), zap.Error(err))
		}
	}

	persisted, err := s.outbox.Deliver(ctx, entry.ClientID)
	s.metrics.MessageSent(err)
	s.endTyping(dealID)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		if err != nil {
			return optimistic, fmt.Errorf("send message: %w", err)
		}
		return fromAPI(persisted, s.self), nil
	}
	idx := s.indexOf(entry.ClientID, "")
	if err != nil {
		var result Message
		switch {
		case idx >= 0 && s.messages[idx].ID == entry.ClientID:
			s.messages[idx].State = StateFailed
			result = s.messages[idx]
		case idx >= 0:
			// The history already holds a copy; the write landed but its
			// response was lost.
			result = s.messages[idx]
		}
		s.mu.Unlock()
		s.publishUpdate()
		s.notify(LevelError, TextSendFailed, err)
		return result, fmt.Errorf("send message: %w", err)
	}

	confirmed := fromAPI(persisted, s.self)
	confirmed.ClientID = entry.ClientID
	confirmed.Own = true
	confirmed.State = StateSent
	if confirmed.DealID == "" {
		confirmed.DealID = dealID
	}
	if idx >= 0 && s.messages[idx].ID != entry.ClientID && s.messages[idx].ID != confirmed.ID {
		s.messages[idx].ClientID = ""
		idx = -1
	}
	// The server copy may already be listed, from the history or an echo.
	if dup := s.indexOf("", confirmed.ID); dup >= 0 && dup != idx {
		if idx >= 0 {
			s.messages = slices.Delete(s.messages, idx, idx+1)
			if dup > idx {
				dup--
			}
		}
		idx = dup
	}
	if idx >= 0 {
		s.messages[idx] = confirmed
	} else {
		s.messages = append(s.messages, confirmed)
	}
	s.mu.Unlock()
	s.publishUpdate()
	return confirmed, nil
}

// endTyping clears the local typing burst and tells peers, whatever the send outcome.
func (s *Synchronizer) endTyping(dealID string) {
	s.typist.Reset()
	if !s.channel.Connected() {
		return
	}
	if err := s.channel.StopTyping(dealID, s.self.DisplayName()); err != nil {
		s.logger.Debug("stop typing failed", zap.Error(err))
	}
}

// Keystroke reports compose activity for the typing indicator.
func (s *Synchronizer) Keystroke() {
	s.mu.Lock()
	open := s.dealID != ""
	s.mu.Unlock()
	if !open || !s.channel.Connected() {
		return
	}
	s.typist.Keystroke()
}

func (s *Synchronizer) emitTyping(start bool) {
	s.mu.Lock()
	dealID := s.dealID
	s.mu.Unlock()
	if dealID == "" || !s.channel.Connected() {
		return
	}
	var err error
	if start {
		err = s.channel.Typing(dealID, s.self.DisplayName())
	} else {
		err = s.channel.StopTyping(dealID, s.self.DisplayName())
	}
	if err != nil {
		s.logger.Debug("typing signal failed", zap.Bool("start", start), zap.Error(err))
	}
}

// Snapshot returns a copy of the view state.
func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		DealID:    s.dealID,
		Loading:   s.loading,
		Messages:  cloneMessages(s.messages),
		Typing:    s.presence.Names(),
		Connected: s.channel.Connected(),
	}
}

func (s *Synchronizer) handle(evt bus.Event) {
	switch evt.Kind {
	case bus.KindNewMessage:
		if m, ok := evt.Payload.(realtime.InboundMessage); ok {
			s.onMessage(m)
		}
	case bus.KindUserTyping, bus.KindUserStopTyping:
		if t, ok := evt.Payload.(realtime.TypingEvent); ok {
			s.onTyping(t, evt.Kind == bus.KindUserTyping)
		}
	case bus.KindChannelConnected:
		s.rejoin()
	case bus.KindChannelDown:
		s.mu.Lock()
		s.presence.Clear()
		s.mu.Unlock()
		s.publishUpdate()
	case bus.KindChannelStatus:
		s.publishUpdate()
	}
}

func (s *Synchronizer) onMessage(in realtime.InboundMessage) {
	s.mu.Lock()
	if s.dealID == "" || in.DealID != s.dealID {
		s.mu.Unlock()
		return
	}
	if s.isDuplicate(in) {
		s.mu.Unlock()
		s.metrics.DuplicateDropped()
		s.logger.Debug("dropped duplicate message", zap.String("client_id", in.ClientID), zap.String("id", in.ID))
		return
	}
	m := fromInbound(in, s.self)
	s.messages = append(s.messages, m)
	s.mu.Unlock()

	s.bus.Publish(bus.NewEvent(bus.KindMessageAppended, m))
	s.publishUpdate()
}

// isDuplicate reports whether an inbound message is another copy of one
// already shown or sent from here. Must hold mu.
func (s *Synchronizer) isDuplicate(in realtime.InboundMessage) bool {
	if in.ClientID != "" || in.ID != "" {
		if s.indexOf(in.ClientID, in.ID) >= 0 {
			return true
		}
		if s.outbox.Owns(in.ClientID, in.ID) {
			return true
		}
	}
	if in.ClientID == "" && isOwn(s.self, in.SenderID, in.SenderEmail) {
		if _, ok := s.outbox.ClaimEcho(in.DealID, strings.TrimSpace(in.Content)); ok {
			return true
		}
	}
	return false
}

// ownCopy returns the newest own history entry with m's text that no
// pending send has claimed, or -1. Copies older than m by more than
// echoWindow belong to earlier sends.
func ownCopy(history []Message, m Message, claimed map[int]bool) int {
	for j := len(history) - 1; j >= 0; j-- {
		h := history[j]
		if !h.Own || h.ClientID != "" || claimed[j] || h.Content != m.Content {
			continue
		}
		if !h.CreatedAt.IsZero() && h.CreatedAt.Before(m.CreatedAt.Add(-echoWindow)) {
			continue
		}
		return j
	}
	return -1
}

// indexOf finds a message by client id or id. Empty keys never match. Must hold mu.
func (s *Synchronizer) indexOf(clientID, id string) int {
	for i, m := range s.messages {
		if clientID != "" && m.ClientID == clientID {
			return i
		}
		if id != "" && m.ID == id {
			return i
		}
	}
	return -1
}

func (s *Synchronizer) onTyping(t realtime.TypingEvent, start bool) {
	if t.UserID != "" && t.UserID == s.self.UserID() {
		return
	}
	s.mu.Lock()
	if s.dealID == "" || t.DealID != s.dealID {
		s.mu.Unlock()
		return
	}
	var changed bool
	if start {
		changed = s.presence.Start(t.UserName)
	} else {
		changed = s.presence.Stop(t.UserName)
	}
	s.mu.Unlock()
	if changed {
		s.publishUpdate()
	}
}

// rejoin re-enters the open deal's room after a (re)connect.
func (s *Synchronizer) rejoin() {
	s.openMu.Lock()
	defer s.openMu.Unlock()
	s.mu.Lock()
	dealID := s.dealID
	s.mu.Unlock()
	if dealID == "" {
		return
	}
	if err := s.channel.Join(dealID); err != nil {
		s.logger.Warn("rejoin deal room failed", zap.String("deal_id", dealID), zap.Error(err))
		return
	}
	s.logger.Info("rejoined deal room", zap.String("deal_id", dealID))
}

func (s *Synchronizer) notify(level Level, text string, err error) {
	if s.notifier == nil {
		return
	}
	note := Notification{Level: level, Text: text}
	if err != nil {
		note.Detail = err.Error()
	}
	s.notifier.Notify(note)
}

func (s *Synchronizer) publishUpdate() {
	s.bus.Publish(bus.NewEvent(bus.KindConversationUpdated, s.Snapshot()))
}

type nopMetrics struct{}

func (nopMetrics) HistoryFetched(time.Duration, error) {}
func (nopMetrics) MessageSent(error)                   {}
func (nopMetrics) DuplicateDropped()                   {}

package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/matheus3301/dealroom/internal/api"
	"github.com/matheus3301/dealroom/internal/bus"
	"github.com/matheus3301/dealroom/internal/realtime"
	"github.com/matheus3301/dealroom/internal/status"
	"go.uber.org/zap"
)

type fakeIdentity struct{}

func (fakeIdentity) UserID() string      { return "u1" }
func (fakeIdentity) DisplayName() string { return "Ann" }
func (fakeIdentity) Email() string       { return "ann@x.io" }

type createCall struct {
	DealID, Content, ClientID string
}

type fakeAPI struct {
	mu        sync.Mutex
	history   map[string][]api.Message
	listErr   error
	gates     map[string]chan struct{}
	listCalls []string
	createErr error
	created   []createCall
	// onCreate runs inside CreateMessage before it answers.
	onCreate func(createCall)
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{history: map[string][]api.Message{}, gates: map[string]chan struct{}{}}
}

func (f *fakeAPI) ListMessages(ctx context.Context, dealID string) ([]api.Message, error) {
	f.mu.Lock()
	f.listCalls = append(f.listCalls, dealID)
	gate := f.gates[dealID]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.history[dealID], nil
}

func (f *fakeAPI) CreateMessage(ctx context.Context, dealID, content, clientID string) (api.Message, error) {
	call := createCall{dealID, content, clientID}
	f.mu.Lock()
	f.created = append(f.created, call)
	hook := f.onCreate
	n := len(f.created)
	err := f.createErr
	f.mu.Unlock()
	if hook != nil {
		hook(call)
	}
	if err != nil {
		return api.Message{}, err
	}
	return api.Message{
		ID:        fmt.Sprintf("srv-%d", n),
		Deal:      api.Ref(dealID),
		Sender:    api.Person{ID: "u1", Name: "Ann", Email: "ann@x.io"},
		Content:   content,
		CreatedAt: time.Date(2024, 5, 1, 10, 0, n, 0, time.UTC),
	}, nil
}

func (f *fakeAPI) lists() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.listCalls...)
}

// fakeChannel mimics the room rules of the realtime channel.
type fakeChannel struct {
	mu        sync.Mutex
	connected bool
	room      string
	log       []string
	sendErr   error
}

func (c *fakeChannel) setConnected(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = v
	if !v {
		c.room = ""
	}
}

func (c *fakeChannel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeChannel) Join(dealID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return status.ErrNotConnected
	}
	if c.room == dealID {
		return nil
	}
	if c.room != "" {
		return status.ErrRoomBusy
	}
	c.room = dealID
	c.log = append(c.log, "join:"+dealID)
	return nil
}

func (c *fakeChannel) Leave(dealID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.room != dealID {
		return nil
	}
	c.room = ""
	c.log = append(c.log, "leave:"+dealID)
	return nil
}

func (c *fakeChannel) SendMessage(m realtime.OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.log = append(c.log, "send:"+m.Content)
	return nil
}

func (c *fakeChannel) Typing(dealID, userName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = append(c.log, "typing:"+dealID)
	return nil
}

func (c *fakeChannel) StopTyping(dealID, userName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = append(c.log, "stop:"+dealID)
	return nil
}

func (c *fakeChannel) events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.log...)
}

func (c *fakeChannel) count(prefix string) int {
	n := 0
	for _, e := range c.events() {
		if strings.HasPrefix(e, prefix) {
			n++
		}
	}
	return n
}

type fakeNotifier struct {
	mu    sync.Mutex
	notes []Notification
}

func (n *fakeNotifier) Notify(note Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note)
}

func (n *fakeNotifier) all() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.notes...)
}

type harness struct {
	sync    *Synchronizer
	api     *fakeAPI
	channel *fakeChannel
	notes   *fakeNotifier
	clock   *clockwork.FakeClock
	bus     *bus.Bus
}

func newHarness(t *testing.T, connected bool) *harness {
	t.Helper()
	h := &harness{
		api:     newFakeAPI(),
		channel: &fakeChannel{connected: connected},
		notes:   &fakeNotifier{},
		clock:   clockwork.NewFakeClock(),
		bus:     bus.New(),
	}
	h.sync = New(Options{
		Identity:       fakeIdentity{},
		API:            h.api,
		Channel:        h.channel,
		Bus:            h.bus,
		Notifier:       h.notes,
		Clock:          h.clock,
		Logger:         zap.NewNop(),
		TypingDebounce: 2 * time.Second,
		PresenceTTL:    6 * time.Second,
	})
	return h
}

// open enters dealID and waits for its history fetch.
func (h *harness) open(t *testing.T, dealID string) {
	t.Helper()
	if err := h.sync.Open(context.Background(), dealID); err != nil {
		t.Fatal(err)
	}
	h.sync.fetches.Wait()
}

func (h *harness) inbound(m realtime.InboundMessage) {
	h.sync.handle(bus.NewEvent(bus.KindNewMessage, m))
}

func contents(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

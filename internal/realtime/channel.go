package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/matheus3301/dealroom/internal/bus"
	"github.com/matheus3301/dealroom/internal/status"
	"go.uber.org/zap"
)

const (
	writeWait = 10 * time.Second
	// pongWait is used until the server announces its heartbeat.
	pongWait       = 60 * time.Second
	maxMessageSize = 1 << 20
	sendBuffer     = 256
)

var (
	// ErrNotConnected is returned by emits while no connection is up.
	ErrNotConnected = status.ErrNotConnected
	// ErrRoomBusy is returned by Join while another deal room is joined.
	ErrRoomBusy = status.ErrRoomBusy
	// ErrSendBufferFull is returned when the write pump is not keeping up.
	ErrSendBufferFull = errors.New("realtime send buffer full")
)

// Observer receives connection-level observations.
type Observer interface {
	ObserveReconnect()
	ObserveInbound(event string)
	ObserveOutbound(event string)
}

// Options configures a Channel.
type Options struct {
	// URL is the server root, e.g. "https://deals.example.com". http(s) and ws(s) schemes are accepted.
	URL string
	// Path is the Socket.IO endpoint, "/socket.io/" when empty.
	Path       string
	Token      string
	MinBackoff time.Duration
	MaxBackoff time.Duration
	Dialer     *websocket.Dialer
	Observer   Observer
	// TypingGrace drops userTyping events this soon after the joined room
	// changes; they carry no deal id and may belong to the room just left.
	// Zero keeps them all.
	TypingGrace time.Duration
}

// Channel is the process-wide realtime connection. Run keeps it connected;
// conversation views join and leave deal rooms through it and consume
// inbound events from the bus.
type Channel struct {
	opts   Options
	bus    *bus.Bus
	state  *status.Machine
	clock  clockwork.Clock
	logger *zap.Logger

	mu          sync.Mutex
	conn        *connection
	roomChanged time.Time
}

type connection struct {
	ws        *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (c *connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// New creates a channel. State transitions are published through machine.
func New(opts Options, b *bus.Bus, machine *status.Machine, clock clockwork.Clock, logger *zap.Logger) *Channel {
	if opts.Path == "" {
		opts.Path = "/socket.io/"
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = time.Second
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = opts.MinBackoff
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	return &Channel{
		opts:   opts,
		bus:    b,
		state:  machine,
		clock:  clock,
		logger: logger,
	}
}

// State returns the current channel state.
func (c *Channel) State() status.State { return c.state.Current() }

// Room returns the joined deal room, if any.
func (c *Channel) Room() string { return c.state.Room() }

// Connected reports whether emits can currently be delivered.
func (c *Channel) Connected() bool { return c.state.IsConnected() }

// Run connects and reconnects with exponential backoff until ctx is done.
// Messages sent by others while disconnected are not backfilled.
func (c *Channel) Run(ctx context.Context) error {
	backoff := c.opts.MinBackoff
	for {
		if err := c.state.Transition(status.Connecting); err != nil {
			c.logger.Error("unexpected channel state", zap.Error(err))
		}

		established, err := c.session(ctx)
		if ctx.Err() != nil {
			c.toState(status.Disconnected)
			return ctx.Err()
		}
		if established {
			backoff = c.opts.MinBackoff
		}
		c.logger.Warn("realtime connection lost", zap.Error(err), zap.Duration("retry_in", backoff))
		if c.opts.Observer != nil {
			c.opts.Observer.ObserveReconnect()
		}

		select {
		case <-ctx.Done():
			c.toState(status.Disconnected)
			return ctx.Err()
		case <-c.clock.After(backoff):
		}
		backoff *= 2
		if backoff > c.opts.MaxBackoff {
			backoff = c.opts.MaxBackoff
		}
	}
}

// toState moves to s, tolerating a machine already there.
func (c *Channel) toState(s status.State) {
	if c.state.Current() == s {
		return
	}
	if err := c.state.Transition(s); err != nil {
		c.logger.Debug("channel state", zap.Error(err))
	}
}

// session runs one connection from dial to drop. established reports whether
// the namespace handshake completed.
func (c *Channel) session(ctx context.Context) (established bool, err error) {
	endpoint, err := c.endpoint()
	if err != nil {
		c.toState(status.Error)
		return false, err
	}

	header := http.Header{}
	if c.opts.Token != "" {
		header.Set("Authorization", "Bearer "+c.opts.Token)
	}
	ws, resp, err := c.opts.Dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("dial %s: %w (HTTP %d)", endpoint, err, resp.StatusCode)
		} else {
			err = fmt.Errorf("dial %s: %w", endpoint, err)
		}
		c.toState(status.Error)
		return false, err
	}
	conn := &connection{ws: ws, send: make(chan []byte, sendBuffer), done: make(chan struct{})}
	defer conn.close()

	stop := context.AfterFunc(ctx, conn.close)
	defer stop()

	hs, err := c.handshake(ws)
	if err != nil {
		c.toState(status.Error)
		return false, err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
	}()

	c.toState(status.Connected)
	c.logger.Info("realtime connected", zap.String("sid", hs.SID))
	c.bus.Publish(bus.NewEvent(bus.KindChannelConnected, nil))

	go c.writePump(conn)
	err = c.readPump(conn, hs.heartbeat())

	c.toState(status.Disconnected)
	c.bus.Publish(bus.NewEvent(bus.KindChannelDown, Disconnect{Err: err}))
	return true, err
}

func (c *Channel) endpoint() (string, error) {
	u, err := url.Parse(c.opts.URL)
	if err != nil {
		return "", fmt.Errorf("realtime url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("realtime url: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + c.opts.Path
	u.RawQuery = url.Values{"EIO": {"4"}, "transport": {"websocket"}}.Encode()
	return u.String(), nil
}

// handshake reads the Engine.IO open packet and connects the default
// namespace with the bearer token as auth payload.
func (c *Channel) handshake(ws *websocket.Conn) (handshake, error) {
	var hs handshake
	_ = ws.SetReadDeadline(time.Now().Add(writeWait))

	f, err := readFrame(ws)
	if err != nil {
		return hs, fmt.Errorf("read open: %w", err)
	}
	if f.engine != eioOpen {
		return hs, fmt.Errorf("expected open packet, got %q", f.engine)
	}
	if err := json.Unmarshal(f.data, &hs); err != nil {
		return hs, fmt.Errorf("decode open: %w", err)
	}

	connect, err := encodeConnect(map[string]string{"token": c.opts.Token})
	if err != nil {
		return hs, err
	}
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.WriteMessage(websocket.TextMessage, connect); err != nil {
		return hs, fmt.Errorf("write connect: %w", err)
	}

	for {
		f, err := readFrame(ws)
		if err != nil {
			return hs, fmt.Errorf("read connect ack: %w", err)
		}
		switch {
		case f.engine == eioPing:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, []byte{eioPong}); err != nil {
				return hs, err
			}
		case f.engine == eioMessage && f.socket == sioConnect:
			return hs, nil
		case f.engine == eioMessage && f.socket == sioConnectError:
			msg := connectError(f.data)
			c.bus.Publish(bus.NewEvent(bus.KindChannelError, ConnectError{Message: msg}))
			return hs, fmt.Errorf("connect rejected: %s", msg)
		case f.engine == eioClose:
			return hs, errors.New("server closed during handshake")
		}
	}
}

func readFrame(ws *websocket.Conn) (frame, error) {
	_, raw, err := ws.ReadMessage()
	if err != nil {
		return frame{}, err
	}
	return decodeFrame(raw)
}

// readPump dispatches inbound packets until the connection fails.
// The server pings every pingInterval; missing it for heartbeat drops the link.
func (c *Channel) readPump(conn *connection, heartbeat time.Duration) error {
	defer conn.close()
	conn.ws.SetReadLimit(maxMessageSize)
	_ = conn.ws.SetReadDeadline(time.Now().Add(heartbeat))

	for {
		_, raw, err := conn.ws.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.ws.SetReadDeadline(time.Now().Add(heartbeat))

		f, err := decodeFrame(raw)
		if err != nil {
			c.logger.Debug("skip malformed packet", zap.Error(err))
			continue
		}
		switch f.engine {
		case eioPing:
			c.enqueue(conn, []byte{eioPong})
		case eioClose:
			return errors.New("server closed the connection")
		case eioMessage:
			switch f.socket {
			case sioEvent:
				c.dispatch(f.data)
			case sioDisconnect:
				return errors.New("server disconnected the namespace")
			}
		}
	}
}

func (c *Channel) writePump(conn *connection) {
	for {
		select {
		case msg := <-conn.send:
			_ = conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.Debug("realtime write failed", zap.Error(err))
				conn.close()
				return
			}
		case <-conn.done:
			_ = conn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Channel) dispatch(data []byte) {
	name, args, err := decodeEvent(data)
	if err != nil {
		c.logger.Debug("skip malformed event", zap.Error(err))
		return
	}
	if c.opts.Observer != nil {
		c.opts.Observer.ObserveInbound(name)
	}
	if len(args) == 0 {
		return
	}

	switch name {
	case EventNewMessage:
		var msg InboundMessage
		if err := json.Unmarshal(args[0], &msg); err != nil {
			c.logger.Warn("bad newMessage payload", zap.Error(err))
			return
		}
		c.bus.Publish(bus.NewEvent(bus.KindNewMessage, msg))
	case EventUserTyping, EventUserStopTyping:
		var evt TypingEvent
		if err := json.Unmarshal(args[0], &evt); err != nil {
			c.logger.Warn("bad typing payload", zap.String("event", name), zap.Error(err))
			return
		}
		kind := bus.KindUserTyping
		if name == EventUserStopTyping {
			kind = bus.KindUserStopTyping
		} else if c.settling() {
			c.logger.Debug("dropped typing event after room change", zap.String("user", evt.UserName))
			return
		}
		evt.DealID = c.state.Room()
		c.bus.Publish(bus.NewEvent(kind, evt))
	default:
		c.logger.Debug("ignored event", zap.String("event", name))
	}
}

func (c *Channel) enqueue(conn *connection, data []byte) bool {
	select {
	case conn.send <- data:
		return true
	case <-conn.done:
		return false
	default:
		return false
	}
}

func (c *Channel) emit(name string, arg any) error {
	data, err := encodeEvent(name, arg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	select {
	case <-conn.done:
		return ErrNotConnected
	default:
	}
	if !c.enqueue(conn, data) {
		return ErrSendBufferFull
	}
	if c.opts.Observer != nil {
		c.opts.Observer.ObserveOutbound(name)
	}
	return nil
}

func (c *Channel) markRoomChange() {
	c.mu.Lock()
	c.roomChanged = c.clock.Now()
	c.mu.Unlock()
}

// settling reports whether the joined room changed within the typing grace.
func (c *Channel) settling() bool {
	if c.opts.TypingGrace <= 0 {
		return false
	}
	c.mu.Lock()
	changed := c.roomChanged
	c.mu.Unlock()
	return !changed.IsZero() && c.clock.Since(changed) < c.opts.TypingGrace
}

// Join enters a deal room. Joining the room already joined is a no-op;
// joining while another room is joined fails with ErrRoomBusy.
func (c *Channel) Join(dealID string) error {
	changed, err := c.state.Join(dealID)
	if err != nil || !changed {
		return err
	}
	c.markRoomChange()
	if err := c.emit(EventJoinDeal, dealID); err != nil {
		c.state.Leave(dealID)
		return err
	}
	return nil
}

// Leave exits a deal room. Leaving a room that is not joined is a no-op.
func (c *Channel) Leave(dealID string) error {
	if !c.state.Leave(dealID) {
		return nil
	}
	c.markRoomChange()
	return c.emit(EventLeaveDeal, dealID)
}

func (c *Channel) SendMessage(m OutboundMessage) error {
	return c.emit(EventSendMessage, m)
}

func (c *Channel) Typing(dealID, userName string) error {
	return c.emit(EventTyping, TypingSignal{DealID: dealID, UserName: userName, IsTyping: true})
}

func (c *Channel) StopTyping(dealID, userName string) error {
	return c.emit(EventStopTyping, TypingSignal{DealID: dealID, UserName: userName, IsTyping: false})
}

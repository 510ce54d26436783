// Package wsclient is a reconnecting client for the relay's WebSocket API.
package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	junows "github.com/SwiftAkira/JunoKit-sub000/juno-ws"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateClosing      State = "closing"
	StateReconnecting State = "reconnecting"
)

// Events emitted in addition to the type of each inbound frame.
const (
	EventConnected       = junows.TypeConnected
	EventDisconnected    = junows.TypeDisconnected
	EventError           = junows.TypeError
	EventReconnectFailed = junows.TypeReconnectFailed
	EventMessage         = "message"
)

var ErrNotConnected = errors.New("websocket is not connected")

// Dialer is satisfied by *websocket.Dialer.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

type Options struct {
	URL   string
	Token string

	PingInterval         time.Duration // default 30s
	ReconnectInterval    time.Duration // initial backoff, default 1s
	MaxReconnectInterval time.Duration // backoff cap, default 30s
	MaxReconnectAttempts int           // default 5
	DisableReconnect     bool

	Dialer Dialer
	Logger zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.ReconnectInterval <= 0 {
		o.ReconnectInterval = time.Second
	}
	if o.MaxReconnectInterval <= 0 {
		o.MaxReconnectInterval = 30 * time.Second
	}
	if o.MaxReconnectAttempts <= 0 {
		o.MaxReconnectAttempts = 5
	}
	if o.Dialer == nil {
		o.Dialer = websocket.DefaultDialer
	}
	return o
}

// Event is an inbound frame, or a synthetic lifecycle event.
type Event struct {
	Type string
	Raw  json.RawMessage
}

// Decode unmarshals the event's frame into v.
func (e Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Raw, v)
}

type Handler func(Event)

type subscriber struct {
	id int
	fn Handler
}

// Client owns a single relay connection. It is safe for concurrent use.
type Client struct {
	opts Options

	mu        sync.Mutex
	state     State
	conn      *websocket.Conn
	stop      chan struct{}
	reconnect bool
	attempts  int
	backoff   time.Duration
	failed    bool
	timer     *time.Timer

	writeMu sync.Mutex

	handlersMu sync.Mutex
	handlers   map[string][]subscriber
	nextID     int
}

func New(opts Options) *Client {
	opts = opts.withDefaults()
	return &Client{
		opts:     opts,
		state:    StateDisconnected,
		backoff:  opts.ReconnectInterval,
		handlers: map[string][]subscriber{},
	}
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// On registers fn for events of the given type and returns a function that
// removes it.
func (c *Client) On(eventType string, fn Handler) func() {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.nextID++
	id := c.nextID
	c.handlers[eventType] = append(c.handlers[eventType], subscriber{id: id, fn: fn})
	return func() {
		c.handlersMu.Lock()
		defer c.handlersMu.Unlock()
		subs := c.handlers[eventType]
		for i, s := range subs {
			if s.id == id {
				c.handlers[eventType] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

func (c *Client) emit(eventType string, ev Event) {
	c.handlersMu.Lock()
	subs := append([]subscriber(nil), c.handlers[eventType]...)
	c.handlersMu.Unlock()

	for _, s := range subs {
		c.call(s.fn, ev)
	}
}

func (c *Client) call(fn Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			c.opts.Logger.Error().Interface("panic", r).Str("event", ev.Type).Msg("event handler panicked")
		}
	}()
	fn(ev)
}

func syntheticEvent(eventType string, fields map[string]interface{}) Event {
	frame := map[string]interface{}{"type": eventType}
	for k, v := range fields {
		frame[k] = v
	}
	raw, _ := json.Marshal(frame)
	return Event{Type: eventType, Raw: raw}
}

// Connect dials the relay and returns the handshake error, if any. Once
// connected, abnormal closes are followed by reconnect attempts unless
// reconnection is disabled.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnected || c.state == StateConnecting {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.reconnect = !c.opts.DisableReconnect
	c.failed = false
	c.mu.Unlock()

	if err := c.dial(ctx); err != nil {
		c.setState(StateDisconnected)
		return err
	}
	return nil
}

func (c *Client) dialURL() (string, error) {
	u, err := url.Parse(c.opts.URL)
	if err != nil {
		return "", fmt.Errorf("invalid relay url %v: %w", c.opts.URL, err)
	}
	if c.opts.Token != "" {
		q := u.Query()
		q.Set("token", c.opts.Token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (c *Client) dial(ctx context.Context) error {
	target, err := c.dialURL()
	if err != nil {
		return err
	}

	conn, _, err := c.opts.Dialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("dialing relay: %w", err)
	}

	c.mu.Lock()
	if c.state != StateConnecting {
		// disconnected while dialing
		c.mu.Unlock()
		conn.Close()
		return ErrNotConnected
	}
	stop := make(chan struct{})
	c.conn = conn
	c.stop = stop
	c.state = StateConnected
	c.attempts = 0
	c.backoff = c.opts.ReconnectInterval
	c.mu.Unlock()

	go c.readLoop(conn, stop)
	go c.keepAlive(stop)

	c.emit(EventConnected, syntheticEvent(EventConnected, nil))
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn, stop chan struct{}) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(conn, stop, err)
			return
		}
		c.dispatch(data)
	}
}

func (c *Client) dispatch(data []byte) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		c.opts.Logger.Warn().Err(err).Msg("ignoring undecodable frame")
		return
	}
	ev := Event{Type: head.Type, Raw: data}
	if ev.Type != "" {
		c.emit(ev.Type, ev)
	}
	c.emit(EventMessage, ev)
}

func (c *Client) handleClose(conn *websocket.Conn, stop chan struct{}, err error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	close(stop)
	c.conn = nil
	c.state = StateDisconnected
	normal := websocket.IsCloseError(err, websocket.CloseNormalClosure)
	retry := c.reconnect && !normal
	c.mu.Unlock()

	conn.Close()

	code := websocket.CloseAbnormalClosure
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		code = closeErr.Code
	}
	c.opts.Logger.Info().Int("code", code).Msg("relay connection closed")
	c.emit(EventDisconnected, syntheticEvent(EventDisconnected, map[string]interface{}{"code": code}))

	if retry {
		c.scheduleReconnect()
	}
}

func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	if !c.reconnect {
		c.mu.Unlock()
		return
	}
	if c.attempts >= c.opts.MaxReconnectAttempts {
		first := !c.failed
		c.failed = true
		c.state = StateDisconnected
		c.mu.Unlock()
		if first {
			c.opts.Logger.Warn().Int("attempts", c.opts.MaxReconnectAttempts).Msg("giving up reconnecting")
			c.emit(EventReconnectFailed, syntheticEvent(EventReconnectFailed, nil))
		}
		return
	}
	c.attempts++
	delay := c.backoff
	c.backoff *= 2
	if c.backoff > c.opts.MaxReconnectInterval {
		c.backoff = c.opts.MaxReconnectInterval
	}
	c.state = StateReconnecting
	c.timer = time.AfterFunc(delay, c.attemptReconnect)
	c.mu.Unlock()
}

func (c *Client) attemptReconnect() {
	c.mu.Lock()
	if !c.reconnect || c.state != StateReconnecting {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	attempt := c.attempts
	c.mu.Unlock()

	if err := c.dial(context.Background()); err != nil {
		if errors.Is(err, ErrNotConnected) {
			return
		}
		c.opts.Logger.Info().Err(err).Int("attempt", attempt).Msg("reconnect failed")
		c.setState(StateDisconnected)
		c.emit(EventError, syntheticEvent(EventError, map[string]interface{}{"message": err.Error()}))
		c.scheduleReconnect()
	}
}

func (c *Client) keepAlive(stop chan struct{}) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := c.Ping(); err != nil {
				c.opts.Logger.Debug().Err(err).Msg("keep-alive ping failed")
			}
		}
	}
}

// Disconnect stops reconnection and keep-alive and closes the connection
// with a normal closure. The client may be connected again afterwards.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	c.reconnect = false
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	conn, stop := c.conn, c.stop
	c.conn, c.stop = nil, nil
	if conn == nil {
		c.state = StateDisconnected
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosing
	c.mu.Unlock()

	// the read loop sees a foreign conn in handleClose and leaves state alone
	close(stop)

	c.writeMu.Lock()
	err := conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	conn.Close()

	c.mu.Lock()
	if c.state == StateClosing {
		c.state = StateDisconnected
	}
	c.mu.Unlock()

	c.opts.Logger.Info().Int("code", websocket.CloseNormalClosure).Msg("relay connection closed")
	c.emit(EventDisconnected, syntheticEvent(EventDisconnected, map[string]interface{}{"code": websocket.CloseNormalClosure}))
	return err
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

// Send writes v as a JSON text frame.
func (c *Client) Send(v interface{}) error {
	c.mu.Lock()
	conn, state := c.conn, c.state
	c.mu.Unlock()

	if conn == nil || state != StateConnected {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(v); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

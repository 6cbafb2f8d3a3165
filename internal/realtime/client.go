package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"myswing/internal/swing"
)

const (
	DefaultHeartbeat = 25 * time.Second
	eventBuffer      = 16
)

// Message is one frame of the channel protocol.
type Message struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref,omitempty"`
}

// Protocol events.
const (
	eventJoin      = "phx_join"
	eventLeave     = "phx_leave"
	eventReply     = "phx_reply"
	eventError     = "phx_error"
	eventClose     = "phx_close"
	eventHeartbeat = "heartbeat"
)

// TokenSource supplies the access token sent with a join.
type TokenSource interface {
	AccessToken() string
}

// Client opens realtime channels over a websocket. Each subscription owns
// its own connection.
type Client struct {
	url       string
	tokens    TokenSource
	dialer    *websocket.Dialer
	heartbeat time.Duration
	logger    swing.Logger
}

// NewClient creates a Client for the realtime endpoint wsURL.
func NewClient(wsURL string, tokens TokenSource, logger swing.Logger) *Client {
	if logger == nil {
		logger = swing.NewNopLogger()
	}
	return &Client{
		url:       wsURL,
		tokens:    tokens,
		dialer:    &websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment},
		heartbeat: DefaultHeartbeat,
		logger:    logger,
	}
}

// SetHeartbeat overrides DefaultHeartbeat.
func (c *Client) SetHeartbeat(d time.Duration) {
	if d > 0 {
		c.heartbeat = d
	}
}

// EndpointFromBackend derives the websocket endpoint from the backend URL.
func EndpointFromBackend(backendURL, apiKey string) (string, error) {
	u, err := url.Parse(strings.TrimRight(backendURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parsing backend url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported backend url scheme %q", u.Scheme)
	}
	u.Path += "/realtime/v1/websocket"
	q := url.Values{"vsn": {"1.0.0"}}
	if apiKey != "" {
		q.Set("apikey", apiKey)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// channelTopic maps an application topic to the channel joined on the
// server. Job topics watch row changes of their analysis_jobs row.
func channelTopic(topic string) (string, map[string]any) {
	cfg := map[string]any{}
	if id, ok := strings.CutPrefix(topic, "job:"); ok {
		cfg["postgres_changes"] = []map[string]string{{
			"event":  "*",
			"schema": "public",
			"table":  "analysis_jobs",
			"filter": "id=eq." + id,
		}}
	}
	return "realtime:" + topic, cfg
}

// Subscribe dials, joins topic and waits for the join to be acknowledged.
func (c *Client) Subscribe(ctx context.Context, topic string) (swing.Subscription, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("realtime connection failed: %w", err)
	}

	channel, cfg := channelTopic(topic)
	s := &subscription{
		topic:   topic,
		channel: channel,
		conn:    conn,
		events:  make(chan swing.Event, eventBuffer),
		done:    make(chan struct{}),
		logger:  c.logger,
	}

	payload := map[string]any{"config": cfg}
	if c.tokens != nil {
		payload["access_token"] = c.tokens.AccessToken()
	}
	joinRef, err := s.send(channel, eventJoin, payload)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("joining %s: %w", topic, err)
	}
	if err := s.awaitJoin(ctx, joinRef); err != nil {
		conn.Close()
		return nil, err
	}

	s.wg.Add(2)
	go s.readLoop()
	go s.heartbeatLoop(c.heartbeat)
	c.logger.Debug("realtime joined", "topic", topic)
	return s, nil
}

type subscription struct {
	topic   string
	channel string
	conn    *websocket.Conn
	events  chan swing.Event
	done    chan struct{}
	logger  swing.Logger
	wg      sync.WaitGroup

	writeMu sync.Mutex
	ref     atomic.Int64

	closeOnce sync.Once
	errMu     sync.Mutex
	err       error
}

func (s *subscription) Events() <-chan swing.Event { return s.events }

func (s *subscription) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// send writes one frame and returns its ref.
func (s *subscription) send(topic, event string, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding %s payload: %w", event, err)
	}
	ref := strconv.FormatInt(s.ref.Add(1), 10)
	data, err := json.Marshal(Message{Topic: topic, Event: event, Payload: raw, Ref: ref})
	if err != nil {
		return "", err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return "", fmt.Errorf("writing %s: %w", event, err)
	}
	return ref, nil
}

type replyPayload struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

// awaitJoin reads frames until the reply to the join arrives.
func (s *subscription) awaitJoin(ctx context.Context, ref string) error {
	if deadline, ok := ctx.Deadline(); ok {
		s.conn.SetReadDeadline(deadline)
		defer s.conn.SetReadDeadline(time.Time{})
	}
	stop := context.AfterFunc(ctx, func() { s.conn.SetReadDeadline(time.Now()) })
	defer stop()

	for {
		var msg Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("joining %s: %w", s.topic, ctx.Err())
			}
			return fmt.Errorf("joining %s: connection lost: %w", s.topic, err)
		}
		if msg.Event != eventReply || msg.Ref != ref {
			continue
		}
		var reply replyPayload
		if err := json.Unmarshal(msg.Payload, &reply); err != nil {
			return fmt.Errorf("joining %s: decoding reply: %w", s.topic, err)
		}
		if reply.Status != "ok" {
			return fmt.Errorf("joining %s: rejected: %s", s.topic, strings.TrimSpace(string(reply.Response)))
		}
		return nil
	}
}

func (s *subscription) readLoop() {
	defer s.wg.Done()
	defer close(s.events)

	for {
		var msg Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			select {
			case <-s.done:
			default:
				s.fail(fmt.Errorf("realtime connection lost: %w", err))
			}
			return
		}
		if msg.Topic != s.channel {
			continue
		}

		switch msg.Event {
		case eventReply, eventJoin, eventLeave:
			continue
		case eventError, eventClose:
			s.fail(fmt.Errorf("realtime channel %s closed by server (%s)", s.topic, msg.Event))
			return
		}

		ev := swing.Event{Topic: s.topic, Type: msg.Event, Payload: msg.Payload}
		select {
		case s.events <- ev:
		default:
			// A pending event already triggers a re-read.
			s.logger.Debug("realtime event coalesced", "topic", s.topic, "event", msg.Event)
		}
	}
}

func (s *subscription) heartbeatLoop(every time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if _, err := s.send("phoenix", eventHeartbeat, struct{}{}); err != nil {
				s.logger.Warn("realtime heartbeat failed", "topic", s.topic, "error", err)
				return
			}
		}
	}
}

func (s *subscription) fail(err error) {
	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errMu.Unlock()
	s.shutdown()
}

func (s *subscription) shutdown() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// Close leaves the channel and closes the connection.
func (s *subscription) Close() error {
	select {
	case <-s.done:
	default:
		if _, err := s.send(s.channel, eventLeave, struct{}{}); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			s.logger.Debug("realtime leave failed", "topic", s.topic, "error", err)
		}
		s.writeMu.Lock()
		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.writeMu.Unlock()
	}
	s.shutdown()
	s.wg.Wait()
	return nil
}

var _ swing.Realtime = (*Client)(nil)

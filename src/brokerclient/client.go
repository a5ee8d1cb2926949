package brokerclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kataras/go-events"
	log "github.com/sirupsen/logrus"

	"github.com/oakmont-systems/futures-engine/src/eventmodels"
)

type ConnState string

const (
	StateDisconnected  ConnState = "disconnected"
	StateConnecting    ConnState = "connecting"
	StateOpen          ConnState = "open"
	StateAuthenticated ConnState = "authenticated"
)

// Connection lifecycle notifications, emitted for interested workers (the
// reconciliation worker re-syncs on every authenticated transition).
const (
	ConnectionOpenedEvent        events.EventName = "broker:connection:opened"
	ConnectionAuthenticatedEvent events.EventName = "broker:connection:authenticated"
	ConnectionLostEvent          events.EventName = "broker:connection:lost"
)

var errServerClose = fmt.Errorf("server sent close frame")

// Client owns one logical websocket session against the broker plus its REST
// capability. Inbound frames are processed strictly in arrival order and
// normalized events are delivered on a single ordered channel. On connection
// loss the client reconnects with a fixed backoff, re-runs the full handshake
// and replays every previously active subscription exactly once.
type Client struct {
	restURL string
	wsURL   string
	creds   Credentials

	httpClient *http.Client

	mu     sync.Mutex
	token  AccessToken
	state  ConnState
	conn   *websocket.Conn
	active map[string]bool

	writeMu sync.Mutex

	requestID int64
	authReqID int64

	eventCh chan *eventmodels.BrokerEvent
	emitter events.EventEmmiter

	reconnectDelay time.Duration
	heartbeatEvery time.Duration
}

func NewClient(restURL, wsURL string, creds Credentials) *Client {
	return &Client{
		restURL:        restURL,
		wsURL:          wsURL,
		creds:          creds,
		httpClient:     &http.Client{Timeout: 10 * time.Second},
		state:          StateDisconnected,
		active:         make(map[string]bool),
		eventCh:        make(chan *eventmodels.BrokerEvent, 256),
		emitter:        events.New(),
		reconnectDelay: 5 * time.Second,
		heartbeatEvery: 2500 * time.Millisecond,
	}
}

// Events returns the ordered stream of normalized broker push events. The
// channel is closed on shutdown after in-flight events have been delivered.
func (c *Client) Events() <-chan *eventmodels.BrokerEvent {
	return c.eventCh
}

func (c *Client) Emitter() events.EventEmmiter {
	return c.emitter
}

func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

func (c *Client) setState(state ConnState) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

func (c *Client) nextRequestID() int64 {
	return atomic.AddInt64(&c.requestID, 1)
}

// Start runs the session loop until the context is cancelled. Reconnection
// retries indefinitely with a fixed backoff; an auth rejection is retried on
// the next attempt rather than aborting.
func (c *Client) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)

	go func() {
		defer wg.Done()
		defer close(c.eventCh)

		for {
			if err := c.session(ctx); err != nil {
				log.Errorf("Client.Start: session ended: %v", err)
			}

			c.setState(StateDisconnected)

			select {
			case <-ctx.Done():
				log.Info("stopping broker client")
				return
			case <-time.After(c.reconnectDelay):
			}
		}
	}()
}

// session runs one full websocket session: authenticate if needed, dial,
// wait for the server's ready frame, authorize, then pump frames until the
// connection drops. Sending the auth frame before the ready frame is a
// protocol violation, so authorization is driven entirely by frame receipt.
func (c *Client) session(ctx context.Context) error {
	c.setState(StateConnecting)

	if c.Token().Trading == "" {
		if _, err := c.Authenticate(ctx); err != nil {
			return fmt.Errorf("Client:session(): authenticate: %w", err)
		}
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return &eventmodels.TransportError{Op: "dial", Err: err}
	}

	defer conn.Close()

	c.mu.Lock()
	c.conn = conn
	c.state = StateOpen
	c.mu.Unlock()

	c.emitter.Emit(ConnectionOpenedEvent)

	// The broker rejects frames sent before its ready frame, heartbeats
	// included, so the loop starts on ready receipt.
	heartbeatDone := make(chan struct{})
	defer close(heartbeatDone)

	var heartbeatOnce sync.Once
	startHeartbeat := func() {
		heartbeatOnce.Do(func() {
			go c.heartbeatLoop(conn, heartbeatDone)
		})
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		_, message, err := conn.ReadMessage()
		if err != nil {
			c.emitter.Emit(ConnectionLostEvent)
			return &eventmodels.TransportError{Op: "read", Err: err}
		}

		if err := c.handleFrame(ctx, conn, message, startHeartbeat); err != nil {
			if err == errServerClose {
				c.emitter.Emit(ConnectionLostEvent)
				return nil
			}

			// Malformed frames must not tear down the connection.
			log.Errorf("Client.session: failed to handle frame: %v", err)
		}
	}
}

func (c *Client) handleFrame(ctx context.Context, conn *websocket.Conn, message []byte, onReady func()) error {
	if len(message) == 0 {
		return nil
	}

	tag, payload := message[0], message[1:]

	switch tag {
	case frameTagReady:
		if err := c.sendAuthFrame(conn); err != nil {
			return err
		}

		onReady()
		return nil
	case frameTagHeartbeat:
		return nil
	case frameTagArray:
		envelopes, err := decodeEnvelopes(payload)
		if err != nil {
			return err
		}

		for _, envelope := range envelopes {
			c.dispatchEnvelope(ctx, conn, envelope)
		}

		return nil
	case frameTagData:
		envelope, err := decodeEnvelope(payload)
		if err != nil {
			return err
		}

		c.dispatchEnvelope(ctx, conn, envelope)
		return nil
	case frameTagClose:
		return errServerClose
	default:
		log.Warnf("Client.handleFrame: ignoring unknown frame tag %q", string(tag))
		return nil
	}
}

func (c *Client) sendAuthFrame(conn *websocket.Conn) error {
	id := c.nextRequestID()
	atomic.StoreInt64(&c.authReqID, id)

	if err := c.writeFrame(conn, requestFrame("authorize", id, "", c.Token().Trading)); err != nil {
		return fmt.Errorf("Client:sendAuthFrame(): %w", err)
	}

	log.Debug("Client.sendAuthFrame: authorization sent")
	return nil
}

func (c *Client) dispatchEnvelope(ctx context.Context, conn *websocket.Conn, envelope envelopeDTO) {
	if authID := atomic.LoadInt64(&c.authReqID); authID != 0 && envelope.RequestID == authID {
		if envelope.Status == http.StatusOK {
			c.onAuthenticated(conn)
		} else {
			// Drop the stale token so the next session re-authenticates.
			c.mu.Lock()
			c.token = AccessToken{}
			c.mu.Unlock()
			log.Errorf("Client.dispatchEnvelope: authorization rejected with status %d", envelope.Status)
		}

		return
	}

	if envelope.Event != "props" || len(envelope.Data) == 0 {
		return
	}

	var payload pushPayloadDTO
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		log.Errorf("Client.dispatchEnvelope: failed to parse push payload: %v", err)
		return
	}

	event, err := toBrokerEvent(payload)
	if err != nil {
		log.Errorf("Client.dispatchEnvelope: %v", err)
		return
	}

	select {
	case c.eventCh <- event:
	case <-ctx.Done():
	}
}

// onAuthenticated flushes subscriptions queued before authentication and
// replays every previously active subscription, each exactly once.
func (c *Client) onAuthenticated(conn *websocket.Conn) {
	c.mu.Lock()
	c.state = StateAuthenticated
	symbols := make([]string, 0, len(c.active))
	for symbol := range c.active {
		symbols = append(symbols, symbol)
	}
	c.mu.Unlock()

	sort.Strings(symbols)
	for _, symbol := range symbols {
		if err := c.sendSubscribeFrame(conn, symbol); err != nil {
			log.Errorf("Client.onAuthenticated: failed to replay subscription %s: %v", symbol, err)
		}
	}

	log.Infof("Client.onAuthenticated: session authenticated, %d subscription(s) active", len(symbols))
	c.emitter.Emit(ConnectionAuthenticatedEvent)
}

// Subscribe registers interest in push updates for a symbol. Re-subscribing
// an already-active symbol is a no-op. Before authentication completes the
// subscription is queued and flushed on the authenticated transition.
func (c *Client) Subscribe(symbol string) error {
	c.mu.Lock()
	if c.active[symbol] {
		c.mu.Unlock()
		return nil
	}

	c.active[symbol] = true
	authenticated := c.state == StateAuthenticated
	conn := c.conn
	c.mu.Unlock()

	if !authenticated || conn == nil {
		log.Debugf("Client.Subscribe: queued subscription for %s until authenticated", symbol)
		return nil
	}

	return c.sendSubscribeFrame(conn, symbol)
}

func (c *Client) sendSubscribeFrame(conn *websocket.Conn, symbol string) error {
	id := c.nextRequestID()
	body := fmt.Sprintf(`{"symbol":%q}`, symbol)

	if err := c.writeFrame(conn, requestFrame("md/subscribequote", id, "", body)); err != nil {
		return fmt.Errorf("Client:sendSubscribeFrame(): %w", err)
	}

	return nil
}

func (c *Client) writeFrame(conn *websocket.Conn, frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return &eventmodels.TransportError{Op: "write", Err: err}
	}

	return nil
}

// heartbeatLoop keeps the session alive; the broker drops connections that
// stay silent.
func (c *Client) heartbeatLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.heartbeatEvery)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.writeFrame(conn, []byte("[]")); err != nil {
				log.Debugf("Client.heartbeatLoop: write failed: %v", err)
				return
			}
		}
	}
}

// Package feed owns the broker connection: dialing, the bootstrap and
// authorization handshake, heartbeat replies, liveness tracking and
// reconnect-with-backoff. Decoded events stream out through a Fanout.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"signals-systemv1/internal/model"
	"signals-systemv1/internal/protocol"
)

// DefaultBackoff is the fixed delay between reconnect attempts.
const DefaultBackoff = 5 * time.Second

// Defaults used for the client-side bootstrap handshake until the peer
// announces its own intervals.
const (
	defaultPingInterval = 25 * time.Second
	defaultPingTimeout  = 5 * time.Second
)

// ErrNotConnected is returned by EmitEvent while no socket is open.
var ErrNotConnected = errors.New("feed: not connected")

// Client manages one physical connection to the broker.
type Client struct {
	creds   CredentialProvider
	dialer  *websocket.Dialer
	backoff time.Duration

	state atomic.Int32

	writeMu sync.Mutex
	conn    *websocket.Conn // guarded by writeMu for writes

	fan *Fanout

	// Per-connection negotiated values, reset on every attempt.
	sessionID    string
	pingInterval time.Duration
	pingTimeout  time.Duration

	// Hooks for metrics; set before Run.
	OnStateChange func(model.ConnState)
	OnReconnect   func()
	OnFrame       func()
	OnPong        func()
	OnMalformed   func()
}

// New creates a client pulling credentials from provider.
// backoff <= 0 falls back to DefaultBackoff.
func New(provider CredentialProvider, backoff time.Duration) *Client {
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	return &Client{
		creds:   provider,
		dialer:  websocket.DefaultDialer,
		backoff: backoff,
		fan:     NewFanout(256),
	}
}

// Events returns a new subscriber channel for decoded events.
// Subscribe before calling Run.
func (c *Client) Events() <-chan protocol.Event { return c.fan.Subscribe() }

// Fanout exposes the event fanout for drop instrumentation.
func (c *Client) Fanout() *Fanout { return c.fan }

// State reports the current connection state.
func (c *Client) State() model.ConnState {
	return model.ConnState(c.state.Load())
}

// Run drives connect attempts until ctx is cancelled. Any failure
// (transport error, decode failure on a control frame, authentication
// rejection, liveness timeout) terminates only the current attempt;
// the next one starts after the fixed backoff with freshly read
// credentials.
func (c *Client) Run(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			c.setState(model.Disconnected)
			return
		}
		if attempt > 0 {
			if c.OnReconnect != nil {
				c.OnReconnect()
			}
			select {
			case <-ctx.Done():
				c.setState(model.Disconnected)
				return
			case <-time.After(c.backoff):
			}
		}
		attempt++

		if err := c.runOnce(ctx); err != nil {
			log.Printf("[feed] connection ended: %v (reconnecting in %s)", err, c.backoff)
		}
	}
}

// runOnce performs a single connect-handshake-read cycle.
func (c *Client) runOnce(ctx context.Context) error {
	// Credentials are re-read per attempt so rotated tokens apply.
	creds, err := c.creds.Current()
	if err != nil {
		c.setState(model.Disconnected)
		return fmt.Errorf("credentials: %w", err)
	}

	// All per-connection state is renegotiated from scratch.
	c.sessionID = ""
	c.pingInterval = defaultPingInterval
	c.pingTimeout = defaultPingTimeout

	c.setState(model.Connecting)

	header := http.Header{}
	if creds.UserAgent != "" {
		header.Set("User-Agent", creds.UserAgent)
	}
	if creds.Cookie != "" {
		header.Set("Cookie", creds.Cookie)
	}
	if creds.Origin != "" {
		header.Set("Origin", creds.Origin)
	}

	conn, resp, err := c.dialer.DialContext(ctx, creds.EndpointURL, header)
	if err != nil {
		c.setState(model.Disconnected)
		if resp != nil {
			return fmt.Errorf("dial %s: %w (status %s)", creds.EndpointURL, err, resp.Status)
		}
		return fmt.Errorf("dial %s: %w", creds.EndpointURL, err)
	}

	c.writeMu.Lock()
	c.conn = conn
	c.writeMu.Unlock()

	defer func() {
		c.writeMu.Lock()
		c.conn = nil
		c.writeMu.Unlock()
		conn.Close()
		c.setState(model.Disconnected)
	}()

	// Close the socket when the context ends so the blocked read returns.
	stop := context.AfterFunc(ctx, func() {
		c.setState(model.Closing)
		conn.Close()
	})
	defer stop()

	if err := c.sendBootstrap(); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	c.setState(model.HandshakeSent)

	return c.readLoop(ctx, conn, creds)
}

// sendBootstrap emits the handshake ack and the namespace join frame.
func (c *Client) sendBootstrap() error {
	hs, err := protocol.EncodeHandshake(protocol.Open{
		SID:          c.sessionID,
		PingInterval: int(c.pingInterval / time.Millisecond),
		PingTimeout:  int(c.pingTimeout / time.Millisecond),
	})
	if err != nil {
		return err
	}
	if err := c.writeFrame(hs); err != nil {
		return err
	}
	return c.writeFrame(protocol.NamespaceJoinFrame)
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, creds Credentials) error {
	for {
		// Liveness: any frame must arrive within pingInterval+pingTimeout.
		deadline := time.Now().Add(c.pingInterval + c.pingTimeout)
		if err := conn.SetReadDeadline(deadline); err != nil {
			return fmt.Errorf("set deadline: %w", err)
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}

		if c.OnFrame != nil {
			c.OnFrame()
		}
		if err := c.handleFrame(string(raw), creds); err != nil {
			return err
		}
	}
}

// handleFrame dispatches one decoded frame. A returned error kills the
// connection attempt; malformed frames are logged and skipped.
func (c *Client) handleFrame(raw string, creds Credentials) error {
	msg := protocol.Decode(raw)
	switch msg.Kind {
	case protocol.KindOpen:
		c.sessionID = msg.Open.SID
		if msg.Open.PingInterval > 0 {
			c.pingInterval = time.Duration(msg.Open.PingInterval) * time.Millisecond
		}
		if msg.Open.PingTimeout > 0 {
			c.pingTimeout = time.Duration(msg.Open.PingTimeout) * time.Millisecond
		}
		log.Printf("[feed] session open sid=%s pingInterval=%s pingTimeout=%s",
			c.sessionID, c.pingInterval, c.pingTimeout)
		return nil

	case protocol.KindPing:
		// Reply synchronously; the server originates all pings.
		if err := c.writeFrame(protocol.PongFrame); err != nil {
			return fmt.Errorf("pong: %w", err)
		}
		if c.OnPong != nil {
			c.OnPong()
		}
		return nil

	case protocol.KindPong:
		return nil

	case protocol.KindNamespaceConnected:
		c.setState(model.NamespaceJoining)
		return c.sendAuthorization(creds)

	case protocol.KindEvent:
		return c.handleEvent(msg.Event)

	case protocol.KindMalformed:
		// One bad frame never takes the connection down.
		log.Printf("[feed] dropping malformed frame (%v): %.120q", msg.Err, msg.Raw)
		if c.OnMalformed != nil {
			c.OnMalformed()
		}
		return nil

	default:
		return nil
	}
}

func (c *Client) sendAuthorization(creds Credentials) error {
	frame, err := protocol.EncodeEvent("authorization", authPayload{
		Session:      creds.SessionToken,
		IsDemo:       creds.IsDemo,
		TournamentID: creds.TournamentID,
	})
	if err != nil {
		return err
	}
	if err := c.writeFrame(frame); err != nil {
		return fmt.Errorf("authorization: %w", err)
	}
	c.setState(model.Authenticating)
	return nil
}

func (c *Client) handleEvent(ev protocol.Event) error {
	if ev.Name == "authorization" {
		return c.handleAuthResponse(ev)
	}
	c.fan.Publish(ev)
	return nil
}

func (c *Client) handleAuthResponse(ev protocol.Event) error {
	var resp struct {
		Success bool `json:"success"`
	}
	payload := string(ev.Payload)
	if err := json.Unmarshal(ev.Payload, &resp); err != nil {
		return fmt.Errorf("authorization response: %w", err)
	}

	lower := strings.ToLower(payload)
	if !resp.Success || strings.Contains(lower, "unauthorized") || strings.Contains(lower, "forbidden") {
		// Logged distinctly: this usually means an expired token.
		log.Printf("[feed] authentication rejected: %s", payload)
		return fmt.Errorf("authentication rejected")
	}

	c.setState(model.Authenticated)
	log.Printf("[feed] authenticated")
	return nil
}

// EmitEvent serializes and sends one event frame. Used by the
// subscription synchronizer for subscribe/unsubscribe requests.
func (c *Client) EmitEvent(name string, payload any) error {
	frame, err := protocol.EncodeEvent(name, payload)
	if err != nil {
		return err
	}
	return c.writeFrame(frame)
}

func (c *Client) writeFrame(frame string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

func (c *Client) setState(s model.ConnState) {
	old := model.ConnState(c.state.Swap(int32(s)))
	if old != s && c.OnStateChange != nil {
		c.OnStateChange(s)
	}
}

// Close releases fanout subscribers after Run has returned.
func (c *Client) Close() { c.fan.Close() }

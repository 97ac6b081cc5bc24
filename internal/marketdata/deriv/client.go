// Package deriv provides the live tick and order connector for the Deriv
// WebSocket API (v3). It authorizes with a bearer token, subscribes to the
// tick stream for one symbol, and exposes contract purchase.
//
// The expected wire format is JSON with a msg_type discriminator:
//
//	{"msg_type":"tick","tick":{"quote":6351.2,"epoch":1700000000}}
//
// Reconnection with exponential backoff is handled here; the engine only
// sees a tick channel that may pause while the link is down.
package deriv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nundapaulo885-rgb/Nund-Comercial/internal/model"
)

const defaultURL = "wss://ws.binaryws.com/websockets/v3?app_id=1089"

// pingInterval keeps the Deriv connection alive; the API drops idle
// connections after about two minutes.
const pingInterval = 30 * time.Second

// ErrNotConnected is returned by SubmitOrder while the link is down.
var ErrNotConnected = errors.New("deriv: not connected")

// Config holds configuration for the Deriv client.
type Config struct {
	// URL of the Deriv WebSocket endpoint. Defaults to the public app.
	URL string

	// Token is the API bearer token sent in the authorize request.
	Token string

	// Symbol to subscribe, e.g. "R_100".
	Symbol string

	// ReconnectDelay is the initial delay before reconnection attempts.
	// Defaults to 2 seconds if zero.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the exponential backoff. Defaults to 30s.
	MaxReconnectDelay time.Duration
}

func (c *Config) defaults() {
	if c.URL == "" {
		c.URL = defaultURL
	}
	if c.Symbol == "" {
		c.Symbol = "R_100"
	}
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
}

// Client connects to Deriv and pushes normalized ticks into a channel.
type Client struct {
	cfg Config

	mu   sync.Mutex
	conn *websocket.Conn

	// OnReconnect is called each time a reconnection happens.
	OnReconnect func()

	// OnTrade receives the raw buy confirmation payload. The shape is
	// broker-defined; the engine only logs it.
	OnTrade func(json.RawMessage)

	// OnDrop is called for each tick discarded because the channel was full.
	OnDrop func()
}

// New creates a Client.
func New(cfg Config) *Client {
	cfg.defaults()
	return &Client{cfg: cfg}
}

// serverMsg is the subset of the Deriv envelope the client reads.
type serverMsg struct {
	MsgType string `json:"msg_type"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Tick *struct {
		Quote float64 `json:"quote"`
		Epoch int64   `json:"epoch"`
	} `json:"tick"`
	Buy json.RawMessage `json:"buy"`
}

// Start connects and streams ticks into tickCh. Blocks until ctx is
// cancelled; reconnects automatically with exponential backoff.
func (c *Client) Start(ctx context.Context, tickCh chan<- model.Tick) error {
	delay := c.cfg.ReconnectDelay

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		err := c.runOnce(ctx, tickCh)
		if err == nil {
			return nil
		}

		log.Printf("[deriv] disconnected (%v), reconnecting in %s...", err, delay)
		if c.OnReconnect != nil {
			c.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > c.cfg.MaxReconnectDelay {
			delay = c.cfg.MaxReconnectDelay
		}
	}
}

// runOnce makes a single connection attempt and reads until disconnect or
// ctx cancel.
func (c *Client) runOnce(ctx context.Context, tickCh chan<- model.Tick) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
	}()

	log.Printf("[deriv] connected to %s", c.cfg.URL)

	if err := c.writeJSON(map[string]interface{}{"authorize": c.cfg.Token}); err != nil {
		return fmt.Errorf("authorize: %w", err)
	}

	// Application-level keepalive plus context watcher.
	pingCtx, stopPing := context.WithCancel(ctx)
	defer stopPing()
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
				conn.Close()
				return
			case <-ticker.C:
				if err := c.writeJSON(map[string]interface{}{"ping": 1}); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}

		var msg serverMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Printf("[deriv] parse error: %v (raw: %s)", err, raw)
			continue
		}
		c.handleMessage(msg, tickCh)
	}
}

func (c *Client) handleMessage(msg serverMsg, tickCh chan<- model.Tick) {
	if msg.Error != nil {
		log.Printf("[deriv] API error: code=%s msg=%s", msg.Error.Code, msg.Error.Message)
		return
	}

	switch msg.MsgType {
	case "authorize":
		log.Printf("[deriv] authorized, subscribing to %s ticks", c.cfg.Symbol)
		if err := c.writeJSON(map[string]interface{}{"ticks": c.cfg.Symbol, "subscribe": 1}); err != nil {
			log.Printf("[deriv] subscribe error: %v", err)
		}

	case "tick":
		if msg.Tick == nil {
			return
		}
		tick := model.Tick{
			Time:  msg.Tick.Epoch * 1000,
			Price: msg.Tick.Quote,
		}
		select {
		case tickCh <- tick:
		default:
			log.Println("[deriv] tickCh full, dropping tick")
			if c.OnDrop != nil {
				c.OnDrop()
			}
		}

	case "buy":
		log.Printf("[deriv] contract purchased: %s", msg.Buy)
		if c.OnTrade != nil {
			c.OnTrade(msg.Buy)
		}
	}
}

// SubmitOrder buys a binary contract for the configured symbol: a 5-tick
// CALL or PUT with the given stake, matching the holding-period settlement
// the engine performs locally.
func (c *Client) SubmitOrder(ctx context.Context, t model.TradeType, stake float64) error {
	req := map[string]interface{}{
		"buy":   1,
		"price": stake,
		"parameters": map[string]interface{}{
			"amount":        stake,
			"basis":         "stake",
			"contract_type": string(t),
			"currency":      "USD",
			"duration":      5,
			"duration_unit": "t",
			"symbol":        c.cfg.Symbol,
		},
	}
	return c.writeJSON(req)
}

// writeJSON serializes writes; gorilla connections allow one concurrent
// writer only.
func (c *Client) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.WriteJSON(v)
}

package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"lock-sync-backend/config"
	"lock-sync-backend/internal/lock"
)

const (
	readTimeout = 120 * time.Second
	maxBackoff  = time.Minute
)

// PayloadHandler consumes push events.
type PayloadHandler interface {
	HandlePayload(ctx context.Context, p lock.Payload) error
}

// Consumer reads push events from a websocket and hands them to a PayloadHandler,
// reconnecting with exponential backoff when the connection drops.
type Consumer struct {
	url       string
	headers   http.Header
	reconnect time.Duration
	handler   PayloadHandler
	dialer    *websocket.Dialer
}

// NewConsumer creates a consumer from the stream configuration.
func NewConsumer(cfg config.StreamConfig, handler PayloadHandler) (*Consumer, error) {
	wsURL, err := toWebsocketURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid stream url %q: %w", cfg.URL, err)
	}
	headers := make(http.Header, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers.Set(k, v)
	}
	reconnect := cfg.Reconnect
	if reconnect <= 0 {
		reconnect = time.Second
	}
	return &Consumer{
		url:       wsURL,
		headers:   headers,
		reconnect: reconnect,
		handler:   handler,
		dialer:    websocket.DefaultDialer,
	}, nil
}

// Run consumes the stream until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	log.Printf("Event stream consumer started (%s)", c.url)
	backoff := c.reconnect
	for {
		if ctx.Err() != nil {
			return
		}
		received, err := c.runSession(ctx)
		if err != nil && ctx.Err() == nil {
			log.Printf("Event stream disconnected: %v", err)
		}
		if received > 0 {
			backoff = c.reconnect
		}
		select {
		case <-ctx.Done():
			log.Println("Event stream consumer stopped")
			return
		case <-time.After(backoff):
		}
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}

// runSession holds one connection and returns the number of events it handled.
func (c *Consumer) runSession(ctx context.Context) (int, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, c.headers)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	// Unblock ReadMessage on shutdown.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	received := 0
	for {
		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return received, err
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return received, err
		}
		received++
		c.dispatch(ctx, msg)
	}
}

func (c *Consumer) dispatch(ctx context.Context, msg []byte) {
	var p lock.Payload
	if err := json.Unmarshal(msg, &p); err != nil {
		log.Printf("Event stream: dropping malformed message: %v", err)
		return
	}
	if p.DeviceID == "" {
		log.Printf("Event stream: dropping message without deviceId")
		return
	}
	if err := c.handler.HandlePayload(ctx, p); err != nil {
		log.Printf("Event stream: %s event for lock %s rejected: %v", p.EventType, p.DeviceID, err)
	}
}

func toWebsocketURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return u.String(), nil
}

package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oxgamehq/oxgame-backend/internal/crypto"
	"github.com/oxgamehq/oxgame-backend/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// StreamConfig describes the upstream Data Streams WebSocket endpoint and the
// feeds to subscribe to, keyed by channel.
type StreamConfig struct {
	WSURL     string
	APIKey    string
	APISecret string
	// Feeds maps a channel key (e.g. "ETH") to its feed ID.
	Feeds map[string]string
}

// Stream is a WebSocket client for a Data Streams style push feed. It
// subscribes to the configured feed IDs, decodes incoming reports, and emits
// price observations on an explicit channel consumed by the ingest loop.
// It reconnects with exponential backoff on disconnect.
type Stream struct {
	cfg  StreamConfig
	auth *crypto.HMACAuth

	// channelByFeed maps feed ID back to the channel key.
	channelByFeed map[string]string

	out    chan domain.PriceObservation
	logger *slog.Logger
}

// NewStream creates a Stream for the given endpoint and feed set. The returned
// observation channel is closed when Run exits.
func NewStream(cfg StreamConfig, logger *slog.Logger) *Stream {
	byFeed := make(map[string]string, len(cfg.Feeds))
	for channel, feedID := range cfg.Feeds {
		byFeed[feedID] = channel
	}
	return &Stream{
		cfg:           cfg,
		auth:          &crypto.HMACAuth{Key: cfg.APIKey, Secret: cfg.APISecret},
		channelByFeed: byFeed,
		out:           make(chan domain.PriceObservation, 64),
		logger:        logger.With(slog.String("component", "datastreams")),
	}
}

// Observations returns the channel on which decoded price observations are
// delivered.
func (s *Stream) Observations() <-chan domain.PriceObservation {
	return s.out
}

// Run connects and reads reports until ctx is cancelled, reconnecting with
// exponential backoff on disconnect. It closes the observation channel on
// return.
func (s *Stream) Run(ctx context.Context) error {
	defer close(s.out)

	if len(s.cfg.Feeds) == 0 {
		s.logger.Info("no feeds configured, stream exiting")
		return nil
	}

	delay := reconnectDelay
	for {
		connected, err := s.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			delay = reconnectDelay
		}

		s.logger.Warn("stream disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// runConnection dials, subscribes, and pumps reports until the connection
// drops or ctx is cancelled. The bool reports whether the dial succeeded so
// the caller can reset its backoff.
func (s *Stream) runConnection(ctx context.Context) (bool, error) {
	conn, err := s.dial(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	s.logger.Info("stream connected", slog.Int("feeds", len(s.cfg.Feeds)))

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Close the connection when ctx is cancelled so the blocked ReadMessage
	// returns.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			)
			conn.Close()
		case <-done:
		}
	}()

	go s.pingLoop(conn, done)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return true, ctx.Err()
			}
			return true, fmt.Errorf("pricefeed: read: %w", domain.ErrWSDisconnect)
		}
		s.handleMessage(ctx, raw)
	}
}

// dial opens the WebSocket with the feed IDs in the query string and HMAC
// auth headers, the way the Data Streams endpoint expects.
func (s *Stream) dial(ctx context.Context) (*websocket.Conn, error) {
	feedIDs := make([]string, 0, len(s.cfg.Feeds))
	for _, id := range s.cfg.Feeds {
		feedIDs = append(feedIDs, id)
	}

	u, err := url.Parse(s.cfg.WSURL)
	if err != nil {
		return nil, fmt.Errorf("pricefeed: parse ws url: %w", err)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/api/v1/ws"
	}
	q := u.Query()
	q.Set("feedIDs", strings.Join(feedIDs, ","))
	u.RawQuery = q.Encode()

	header := http.Header{}
	for k, v := range s.auth.StreamHeaders(http.MethodGet, u.Path, nil) {
		header.Set(k, v)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return nil, fmt.Errorf("pricefeed: connect %s: %w", s.cfg.WSURL, err)
	}
	return conn, nil
}

// pingLoop sends periodic ping messages to keep the WebSocket alive.
func (s *Stream) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage decodes one report frame and emits an observation. Frames for
// unknown feeds and undecodable frames are dropped with a log line; they must
// never stall the read loop.
func (s *Stream) handleMessage(ctx context.Context, raw []byte) {
	var env reportEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.logger.Debug("dropping unparseable frame", slog.String("error", err.Error()))
		return
	}

	report := env.Report
	channel, ok := s.channelByFeed[report.FeedID]
	if !ok {
		s.logger.Debug("dropping report for unknown feed", slog.String("feed_id", report.FeedID))
		return
	}

	value, err := report.priceValue()
	if err != nil {
		s.logger.Warn("dropping undecodable report",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return
	}

	obs := domain.PriceObservation{
		Channel:    channel,
		Value:      value,
		ObservedAt: report.observedAt(time.Now()),
	}

	select {
	case s.out <- obs:
	case <-ctx.Done():
	default:
		// Consumer is behind; only the latest observation matters downstream.
		s.logger.Warn("observation buffer full, dropping report",
			slog.String("channel", channel),
		)
	}
}

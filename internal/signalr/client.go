// Package signalr implements the upstream streaming client: negotiate a
// connection token over HTTP, upgrade to WebSocket, subscribe to the fixed
// feed list, and hand every frame to the pipeline. The connection loop
// never gives up; failures back off exponentially.
package signalr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/buger/jsonparser"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/pitwall/lt-relay/internal/clock"
	"github.com/pitwall/lt-relay/internal/metrics"
)

const (
	clientProtocol = "1.5"
	connectionData = `[{"name":"Streaming"}]`
	userAgent      = "Mozilla/5.0"
	wsOrigin       = "https://www.formula1.com"

	initialRetryDelay = 5 * time.Second
	maxRetryDelay     = 600 * time.Second
)

// Feeds is the fixed subscription list sent after every connect.
var Feeds = []string{
	"Heartbeat", "CarData.z", "Position.z", "ExtrapolatedClock",
	"TopThree", "RcmSeries", "TimingStats", "TimingAppData",
	"WeatherData", "TrackStatus", "SessionStatus", "DriverList",
	"RaceControlMessages", "SessionInfo", "SessionData", "LapCount",
	"TimingData", "TeamRadio",
}

// TextHandler receives each text frame with its arrival time.
type TextHandler func(frame string, at time.Time)

// BinaryHandler receives each binary frame with its arrival time.
type BinaryHandler func(data []byte, at time.Time)

type Options struct {
	// BaseURL is the scheme-qualified SignalR endpoint, e.g.
	// https://livetiming.formula1.com/signalr
	BaseURL string
	Log     zerolog.Logger
}

type Client struct {
	baseURL string
	httpc   *http.Client
	dialer  *websocket.Dialer
	log     zerolog.Logger

	onText   TextHandler
	onBinary BinaryHandler

	now   clock.Clock
	sleep func(ctx context.Context, d time.Duration) error

	connected  atomic.Bool
	reconnects atomic.Int64
}

func New(opts Options) *Client {
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		httpc:   &http.Client{Timeout: 15 * time.Second},
		dialer:  &websocket.Dialer{HandshakeTimeout: 15 * time.Second},
		log:     opts.Log.With().Str("component", "signalr").Logger(),
		now:     clock.System,
		sleep:   sleepCtx,
	}
}

// SetHandlers wires the frame sinks. Must be called before Run.
func (c *Client) SetHandlers(onText TextHandler, onBinary BinaryHandler) {
	c.onText = onText
	c.onBinary = onBinary
}

// IsConnected reports whether the upstream socket is currently up.
func (c *Client) IsConnected() bool { return c.connected.Load() }

// Reconnects returns the number of completed connection cycles beyond the
// first.
func (c *Client) Reconnects() int64 { return c.reconnects.Load() }

// Run connects and streams until ctx is canceled. Any failure or clean
// close starts a new cycle: wait the current delay, double it (capped),
// retry. The delay resets once a socket comes up.
func (c *Client) Run(ctx context.Context) error {
	delay := initialRetryDelay
	for {
		err := c.connectAndStream(ctx, &delay)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			c.log.Warn().Err(err).Dur("retry_in", delay).Msg("upstream connection failed")
		} else {
			c.log.Info().Dur("retry_in", delay).Msg("upstream connection closed, reconnecting")
		}

		metrics.ReconnectsTotal.Inc()
		c.reconnects.Add(1)

		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
		delay *= 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}

func (c *Client) connectAndStream(ctx context.Context, delay *time.Duration) error {
	token, err := c.negotiate(ctx)
	if err != nil {
		return fmt.Errorf("negotiate: %w", err)
	}

	conn, err := c.dial(ctx, token)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	// the socket is up, so the next failure starts over at the short delay
	*delay = initialRetryDelay
	c.connected.Store(true)
	defer c.connected.Store(false)
	c.log.Info().Msg("connected to upstream feed")

	if err := c.subscribe(conn); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return c.readLoop(ctx, conn)
}

func (c *Client) negotiate(ctx context.Context) (string, error) {
	q := url.Values{
		"clientProtocol": {clientProtocol},
		"connectionData": {connectionData},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/negotiate?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	setFeedHeaders(req.Header)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	token, err := jsonparser.GetString(body, "ConnectionToken")
	if err != nil || token == "" {
		return "", errors.New("negotiate response carries no connection token")
	}
	return token, nil
}

func (c *Client) dial(ctx context.Context, token string) (*websocket.Conn, error) {
	q := url.Values{
		"clientProtocol":  {clientProtocol},
		"transport":       {"webSockets"},
		"connectionToken": {token},
		"connectionData":  {connectionData},
	}
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) + "/connect?" + q.Encode()

	header := http.Header{}
	setFeedHeaders(header)
	conn, resp, err := c.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, err
	}
	// no read limit: snapshot frames can run to several megabytes
	return conn, nil
}

type subscribeMessage struct {
	H string     `json:"H"`
	M string     `json:"M"`
	A [][]string `json:"A"`
	I int        `json:"I"`
}

func (c *Client) subscribe(conn *websocket.Conn) error {
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(subscribeMessage{H: "Streaming", M: "Subscribe", A: [][]string{Feeds}, I: 1}); err != nil {
		return err
	}
	c.log.Info().Int("feeds", len(Feeds)).Msg("subscribed to data streams")
	return nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		at := c.now()
		switch kind {
		case websocket.TextMessage:
			metrics.FramesTotal.WithLabelValues("text").Inc()
			if c.onText != nil {
				c.onText(string(data), at)
			}
		case websocket.BinaryMessage:
			metrics.FramesTotal.WithLabelValues("binary").Inc()
			if c.onBinary != nil {
				c.onBinary(data, at)
			}
		}
	}
}

func setFeedHeaders(h http.Header) {
	h.Set("User-Agent", userAgent)
	h.Set("Origin", wsOrigin)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

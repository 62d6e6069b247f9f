// Package terminal implements the WebSocket bridge to the trading terminal.
// The bridge speaks a small JSON request/response protocol; every request
// carries an id and the terminal answers with the same id, so calls can be
// issued concurrently over a single connection.
package terminal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/selimyuksel/iofae/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message.
	pongWait = 30 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	handshakeTimeout = 15 * time.Second
)

// Config controls the bridge connection.
type Config struct {
	WsURL             string
	RequestTimeout    time.Duration
	ReconnectAttempts int
	ReconnectDelay    time.Duration
}

// Client is a WebSocket client for the terminal bridge. It implements both
// domain.MarketData and domain.Broker.
type Client struct {
	cfg    Config
	symbol string
	logger *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
	reqID  int64

	pendingMu sync.Mutex
	pending   map[int64]chan response

	// done is closed when the client shuts down.
	done chan struct{}
}

var (
	_ domain.MarketData = (*Client)(nil)
	_ domain.Broker     = (*Client)(nil)
)

// New creates a bridge client for the given primary symbol. Connect must be
// called before any request.
func New(cfg Config, symbol string, logger *slog.Logger) *Client {
	return &Client{
		cfg:     cfg,
		symbol:  symbol,
		logger:  logger.With(slog.String("component", "terminal")),
		pending: make(map[int64]chan response),
		done:    make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and starts the read and ping
// loops.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("terminal: client is closed")
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}

	conn, _, err := dialer.DialContext(ctx, c.cfg.WsURL, nil)
	if err != nil {
		return fmt.Errorf("terminal: connect %s: %w", c.cfg.WsURL, err)
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	c.conn = conn

	go c.readLoop(conn)
	go c.pingLoop(conn)

	c.logger.Info("terminal connected", slog.String("url", c.cfg.WsURL))
	return nil
}

// Close shuts down the connection. Pending calls fail with
// domain.ErrTerminalDisconnect.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)

	c.failPending()

	if c.conn != nil {
		_ = c.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return c.conn.Close()
	}
	return nil
}

// Snapshot implements domain.MarketData.
func (c *Client) Snapshot(ctx context.Context) (domain.MarketSnapshot, error) {
	var payload wireSnapshot
	err := c.call(ctx, actionSnapshot, map[string]any{"symbol": c.symbol}, &payload)
	if err != nil {
		return domain.MarketSnapshot{}, err
	}
	return payload.toDomain(), nil
}

// RecentBars implements domain.MarketData. Bars are returned oldest first.
func (c *Client) RecentBars(ctx context.Context, symbol string, count int) ([]domain.Bar, error) {
	var payload []wireBar
	err := c.call(ctx, actionBars, map[string]any{
		"symbol": symbol,
		"count":  count,
	}, &payload)
	if err != nil {
		return nil, err
	}

	bars := make([]domain.Bar, 0, len(payload))
	for _, b := range payload {
		bars = append(bars, b.toDomain())
	}
	return bars, nil
}

// DailyBar implements domain.MarketData.
func (c *Client) DailyBar(ctx context.Context, symbol string, daysBack int) (domain.Bar, error) {
	var payload wireBar
	err := c.call(ctx, actionDailyBar, map[string]any{
		"symbol":    symbol,
		"days_back": daysBack,
	}, &payload)
	if err != nil {
		return domain.Bar{}, err
	}
	return payload.toDomain(), nil
}

// AccountInfo implements domain.MarketData.
func (c *Client) AccountInfo(ctx context.Context) (domain.AccountInfo, error) {
	var payload wireAccount
	err := c.call(ctx, actionAccount, nil, &payload)
	if err != nil {
		return domain.AccountInfo{}, err
	}
	return domain.AccountInfo{
		Login:    payload.Login,
		Balance:  payload.Balance,
		Equity:   payload.Equity,
		Currency: payload.Currency,
	}, nil
}

// OpenPosition implements domain.Broker.
func (c *Client) OpenPosition(ctx context.Context, req domain.OpenRequest) (int64, error) {
	var payload wireOpenResult
	err := c.call(ctx, actionOrderOpen, map[string]any{
		"symbol":    req.Symbol,
		"direction": string(req.Direction),
		"volume":    req.Volume,
		"price":     req.Price,
		"stop_loss": req.StopLoss,
		"comment":   req.Comment,
	}, &payload)
	if err != nil {
		return 0, err
	}
	return payload.Ticket, nil
}

// ClosePosition implements domain.Broker. A failed or timed-out close leaves
// the position state unknown; callers must re-query before assuming anything.
func (c *Client) ClosePosition(ctx context.Context, ticket int64) error {
	return c.call(ctx, actionOrderClose, map[string]any{"ticket": ticket}, nil)
}

// ModifyStopLoss implements domain.Broker.
func (c *Client) ModifyStopLoss(ctx context.Context, ticket int64, stopLoss float64) error {
	return c.call(ctx, actionOrderModify, map[string]any{
		"ticket":    ticket,
		"stop_loss": stopLoss,
	}, nil)
}

// OpenPositions implements domain.Broker.
func (c *Client) OpenPositions(ctx context.Context, symbol string) ([]domain.Position, error) {
	var payload []wirePosition
	err := c.call(ctx, actionPositionsOpen, map[string]any{"symbol": symbol}, &payload)
	if err != nil {
		return nil, err
	}

	positions := make([]domain.Position, 0, len(payload))
	for _, p := range payload {
		positions = append(positions, p.toDomain())
	}
	return positions, nil
}

// call sends one request and waits for the matching response. When out is
// non-nil the response data is decoded into it.
func (c *Client) call(ctx context.Context, action string, params map[string]any, out any) error {
	if c.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}

	id, ch, err := c.send(action, params)
	if err != nil {
		return err
	}
	defer c.discard(id)

	select {
	case <-ctx.Done():
		return fmt.Errorf("terminal: %s: %w", action, ctx.Err())
	case <-c.done:
		return fmt.Errorf("terminal: %s: %w", action, domain.ErrTerminalDisconnect)
	case resp, ok := <-ch:
		if !ok {
			return fmt.Errorf("terminal: %s: %w", action, domain.ErrTerminalDisconnect)
		}
		if resp.Status != statusOK {
			return c.asError(action, resp)
		}
		if out != nil {
			if err := json.Unmarshal(resp.Data, out); err != nil {
				return fmt.Errorf("terminal: %s: decode response: %w", action, err)
			}
		}
		return nil
	}
}

// send writes the request frame and registers a response channel.
func (c *Client) send(action string, params map[string]any) (int64, chan response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.conn == nil {
		return 0, nil, fmt.Errorf("terminal: %s: %w", action, domain.ErrTerminalDisconnect)
	}

	c.reqID++
	id := c.reqID

	data, err := json.Marshal(request{ID: id, Action: action, Params: params})
	if err != nil {
		return 0, nil, fmt.Errorf("terminal: marshal %s request: %w", action, err)
	}

	ch := make(chan response, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.discard(id)
		return 0, nil, fmt.Errorf("terminal: write %s: %w", action, errors.Join(err, domain.ErrTerminalDisconnect))
	}

	return id, ch, nil
}

// asError maps a bridge error response to a domain error where a sentinel
// applies.
func (c *Client) asError(action string, resp response) error {
	switch resp.Code {
	case codeRejected:
		return fmt.Errorf("terminal: %s: %s: %w", action, resp.Error, domain.ErrOrderRejected)
	case codeNotFound:
		return fmt.Errorf("terminal: %s: %s: %w", action, resp.Error, domain.ErrNotFound)
	default:
		return fmt.Errorf("terminal: %s failed: %s", action, resp.Error)
	}
}

// discard removes a pending entry, if still registered.
func (c *Client) discard(id int64) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

// failPending closes every pending channel so in-flight calls return
// ErrTerminalDisconnect.
func (c *Client) failPending() {
	c.pendingMu.Lock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()
}

// readLoop reads frames from the connection and routes them to the waiting
// caller. On read error it fails in-flight calls and attempts reconnection.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}

			c.logger.Warn("terminal read failed", slog.String("error", err.Error()))
			c.failPending()
			c.reconnect(conn)
			return
		}

		var resp response
		if err := json.Unmarshal(message, &resp); err != nil {
			c.logger.Warn("terminal sent malformed frame", slog.String("error", err.Error()))
			continue
		}

		c.pendingMu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.pendingMu.Unlock()

		if !ok {
			// Late response for a call that already timed out.
			continue
		}
		ch <- resp
	}
}

// pingLoop keeps the connection alive. It stops when a write fails; the read
// loop owns reconnection.
func (c *Client) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reconnect retries the connection up to the configured number of attempts
// with exponential backoff. Exhausting the attempts leaves the client
// disconnected; subsequent calls fail with ErrTerminalDisconnect.
func (c *Client) reconnect(old *websocket.Conn) {
	_ = old.Close()

	c.mu.Lock()
	if c.conn == old {
		c.conn = nil
	}
	c.mu.Unlock()

	delay := c.cfg.ReconnectDelay
	if delay <= 0 {
		delay = 2 * time.Second
	}

	for attempt := 1; c.cfg.ReconnectAttempts <= 0 || attempt <= c.cfg.ReconnectAttempts; attempt++ {
		select {
		case <-c.done:
			return
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
		err := c.Connect(ctx)
		cancel()

		if err == nil {
			c.logger.Info("terminal reconnected", slog.Int("attempt", attempt))
			return
		}

		c.logger.Warn("terminal reconnect failed",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)

		delay *= 2
		if delay > time.Minute {
			delay = time.Minute
		}
	}

	c.logger.Error("terminal reconnect attempts exhausted")
}

package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"CrudeDesk/internal/domain/models"
	"CrudeDesk/pkg/logger"
)

// Benchmark symbols on the quote feed.
var symbols = map[string]models.Market{
	"OANDA:WTICO_USD": models.MarketWTI,
	"OANDA:BCO_USD":   models.MarketBrent,
}

// Stream keeps a WebSocket subscription to the crude quote feed and exposes
// the freshest price per market. It is a best-effort enrichment: when the
// feed is down, LastPrice reports no quote and snapshots fall back to the
// generated price.
type Stream struct {
	apiKey         string
	websocketURL   string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *logger.Logger

	mu     sync.RWMutex
	conn   *websocket.Conn
	prices map[models.Market]float64

	cancel context.CancelFunc
	done   chan struct{}
}

func New(apiKey, websocketURL string, reconnectDelay, pingInterval time.Duration, log *logger.Logger) *Stream {
	return &Stream{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		log:            log,
		prices:         make(map[models.Market]float64),
	}
}

// LastPrice returns the most recent streamed price for a market.
func (s *Stream) LastPrice(market models.Market) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prices[market]
	return p, ok
}

// Start connects and runs the read loop until Stop is called. Connection
// failures are retried with a fixed delay.
func (s *Stream) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		for {
			if ctx.Err() != nil {
				return
			}
			if err := s.connect(ctx); err != nil {
				s.log.Warn("quote feed connect failed", logger.Error(err))
			} else {
				s.readLoop(ctx)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.reconnectDelay):
			}
		}
	}()
}

// Stop tears the stream down.
func (s *Stream) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.closeConn()
	<-s.done
}

func (s *Stream) connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", s.websocketURL, s.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("quote feed connect: %w", err)
	}

	for sym := range symbols {
		msg := map[string]string{"type": "subscribe", "symbol": sym}
		if err := conn.WriteJSON(msg); err != nil {
			conn.Close()
			return fmt.Errorf("subscribe %s: %w", sym, err)
		}
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	s.log.Info("quote feed connected")
	return nil
}

type wsTrade struct {
	S string  `json:"s"`
	P float64 `json:"p"`
	T int64   `json:"t"` // ms
}

type wsMessage struct {
	Type string    `json:"type"`
	Data []wsTrade `json:"data"`
}

func (s *Stream) readLoop(ctx context.Context) {
	defer s.closeConn()

	pingCtx, stopPing := context.WithCancel(ctx)
	defer stopPing()
	go s.pingLoop(pingCtx)

	for {
		if ctx.Err() != nil {
			return
		}
		s.mu.RLock()
		conn := s.conn
		s.mu.RUnlock()
		if conn == nil {
			return
		}

		_, b, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.log.Warn("quote feed read failed", logger.Error(err))
			}
			return
		}

		var m wsMessage
		if err := json.Unmarshal(b, &m); err != nil || m.Type != "trade" {
			// ignore non-trade frames
			continue
		}
		s.mu.Lock()
		for _, tr := range m.Data {
			if market, ok := symbols[tr.S]; ok {
				s.prices[market] = tr.P
			}
		}
		s.mu.Unlock()
	}
}

func (s *Stream) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.RLock()
			conn := s.conn
			s.mu.RUnlock()
			if conn != nil {
				_ = conn.WriteMessage(websocket.PingMessage, nil)
			}
		}
	}
}

func (s *Stream) closeConn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

// Package feed consumes the live trade and book-top stream for one
// instrument over the Binance combined-stream WebSocket endpoint.
//
// The consumer is a boundary collaborator: it parses and validates
// payloads, discards anything malformed, and hands well-formed events
// to its handler. Reconnects are handled here and never reset any
// downstream state.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/quantdesk/sentinel-backend/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Handler receives validated feed events in receipt order.
type Handler interface {
	OnTrade(ev types.TradeEvent)
	OnBookTop(ev types.BookTopEvent)
}

// Consumer connects to the combined trade+bookTicker stream and pumps
// events into its handler until the context is canceled.
type Consumer struct {
	logger  *zap.Logger
	cfg     types.FeedConfig
	symbol  string
	handler Handler
}

// NewConsumer creates a consumer for the given symbol.
func NewConsumer(logger *zap.Logger, cfg types.FeedConfig, symbol string, handler Handler) *Consumer {
	return &Consumer{
		logger:  logger.Named("feed"),
		cfg:     cfg,
		symbol:  strings.ToLower(symbol),
		handler: handler,
	}
}

// StreamURL returns the combined-streams endpoint for the symbol.
func (c *Consumer) StreamURL() string {
	return fmt.Sprintf("%s?streams=%s@trade/%s@bookTicker", c.cfg.WSBase, c.symbol, c.symbol)
}

// Run connects and reads until ctx is done, reconnecting after
// ReconnectWait on any failure.
func (c *Consumer) Run(ctx context.Context) error {
	url := c.StreamURL()
	c.logger.Info("connecting", zap.String("url", url))

	for {
		if err := c.readOnce(ctx, url); err != nil {
			c.logger.Warn("stream closed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.ReconnectWait):
			c.logger.Info("reconnecting", zap.String("url", url))
		}
	}
}

func (c *Consumer) readOnce(ctx context.Context, url string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	// Close the connection when the context ends so ReadMessage
	// unblocks.
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
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}
		c.dispatch(raw, time.Now().UnixMilli())
	}
}

type combinedMessage struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type tradePayload struct {
	EventType    string `json:"e"`
	EventTime    int64  `json:"E"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	IsBuyerMaker bool   `json:"m"`
}

type bookTickerPayload struct {
	BidPrice string `json:"b"`
	BidSize  string `json:"B"`
	AskPrice string `json:"a"`
	AskSize  string `json:"A"`
}

// dispatch parses one combined-stream message. Malformed payloads are
// dropped here and never reach the core.
func (c *Consumer) dispatch(raw []byte, receiptTime int64) {
	var msg combinedMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.logger.Debug("discarding malformed message", zap.Error(err))
		return
	}

	switch {
	case strings.HasSuffix(msg.Stream, "@trade"):
		c.handleTrade(msg.Data, receiptTime)
	case strings.HasSuffix(msg.Stream, "@bookTicker"):
		c.handleBookTop(msg.Data, receiptTime)
	}
}

func (c *Consumer) handleTrade(data json.RawMessage, receiptTime int64) {
	var p tradePayload
	if err := json.Unmarshal(data, &p); err != nil || p.EventType != "trade" || p.EventTime == 0 {
		c.logger.Debug("discarding malformed trade payload")
		return
	}
	price, err := decimal.NewFromString(p.Price)
	if err != nil {
		c.logger.Debug("discarding trade with bad price", zap.String("price", p.Price))
		return
	}
	qty, err := decimal.NewFromString(p.Quantity)
	if err != nil {
		c.logger.Debug("discarding trade with bad quantity", zap.String("quantity", p.Quantity))
		return
	}

	c.handler.OnTrade(types.TradeEvent{
		ExchangeTime: p.EventTime,
		ReceiptTime:  receiptTime,
		LatencyMs:    receiptTime - p.EventTime,
		Price:        price,
		Quantity:     qty,
		IsBuyerMaker: p.IsBuyerMaker,
	})
}

func (c *Consumer) handleBookTop(data json.RawMessage, receiptTime int64) {
	var p bookTickerPayload
	if err := json.Unmarshal(data, &p); err != nil {
		c.logger.Debug("discarding malformed bookTicker payload")
		return
	}
	bidPx, err1 := decimal.NewFromString(p.BidPrice)
	bidSz, err2 := decimal.NewFromString(p.BidSize)
	askPx, err3 := decimal.NewFromString(p.AskPrice)
	askSz, err4 := decimal.NewFromString(p.AskSize)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		c.logger.Debug("discarding bookTicker with bad prices")
		return
	}

	c.handler.OnBookTop(types.BookTopEvent{
		ReceiptTime: receiptTime,
		BidPrice:    bidPx,
		BidSize:     bidSz,
		AskPrice:    askPx,
		AskSize:     askSz,
	})
}

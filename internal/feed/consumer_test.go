package feed

import (
	"testing"

	"github.com/quantdesk/sentinel-backend/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return v
}

type captureHandler struct {
	trades []types.TradeEvent
	books  []types.BookTopEvent
}

func (h *captureHandler) OnTrade(ev types.TradeEvent)     { h.trades = append(h.trades, ev) }
func (h *captureHandler) OnBookTop(ev types.BookTopEvent) { h.books = append(h.books, ev) }

func newTestConsumer() (*Consumer, *captureHandler) {
	h := &captureHandler{}
	cfg := types.FeedConfig{WSBase: "wss://stream.example.com/stream"}
	return NewConsumer(zap.NewNop(), cfg, "BTCUSDT", h), h
}

func TestStreamURL(t *testing.T) {
	c, _ := newTestConsumer()
	want := "wss://stream.example.com/stream?streams=btcusdt@trade/btcusdt@bookTicker"
	if got := c.StreamURL(); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestDispatchTrade(t *testing.T) {
	c, h := newTestConsumer()

	raw := []byte(`{"stream":"btcusdt@trade","data":{"e":"trade","E":1000,"p":"100.5","q":"0.25","m":true}}`)
	c.dispatch(raw, 1150)

	if len(h.trades) != 1 {
		t.Fatalf("expected one trade, got %d", len(h.trades))
	}
	ev := h.trades[0]
	if ev.ExchangeTime != 1000 || ev.ReceiptTime != 1150 || ev.LatencyMs != 150 {
		t.Fatalf("unexpected timestamps %+v", ev)
	}
	if !ev.Price.Equal(mustDecimal(t, "100.5")) || !ev.IsBuyerMaker {
		t.Fatalf("unexpected trade %+v", ev)
	}
}

func TestDispatchBookTop(t *testing.T) {
	c, h := newTestConsumer()

	raw := []byte(`{"stream":"btcusdt@bookTicker","data":{"b":"100","B":"1.5","a":"101","A":"2"}}`)
	c.dispatch(raw, 1000)

	if len(h.books) != 1 {
		t.Fatalf("expected one book top, got %d", len(h.books))
	}
	ev := h.books[0]
	if !ev.BidPrice.Equal(mustDecimal(t, "100")) || !ev.AskPrice.Equal(mustDecimal(t, "101")) {
		t.Fatalf("unexpected book top %+v", ev)
	}
}

func TestDispatchDiscardsMalformed(t *testing.T) {
	c, h := newTestConsumer()

	cases := [][]byte{
		[]byte(`not json`),
		[]byte(`{"stream":"btcusdt@trade","data":{"e":"trade","E":1000,"p":"oops","q":"1","m":false}}`),
		[]byte(`{"stream":"btcusdt@trade","data":{"e":"aggTrade","E":1000,"p":"100","q":"1","m":false}}`),
		[]byte(`{"stream":"btcusdt@trade","data":{"e":"trade","p":"100","q":"1","m":false}}`),
		[]byte(`{"stream":"btcusdt@bookTicker","data":{"b":"","B":"1","a":"101","A":"2"}}`),
		[]byte(`{"stream":"btcusdt@depth","data":{}}`),
	}
	for _, raw := range cases {
		c.dispatch(raw, 1000)
	}

	if len(h.trades) != 0 || len(h.books) != 0 {
		t.Fatalf("malformed payloads must be discarded, got %d trades %d books", len(h.trades), len(h.books))
	}
}

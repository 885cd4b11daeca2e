package finnhub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"MarketPulse/pkg/logger"

	"github.com/gorilla/websocket"
)

func TestDecode(t *testing.T) {
	trades := decode([]byte(`{"type":"trade","data":[{"s":"AAPL","p":190.5,"v":100,"t":1767225600000},{"s":"","p":1,"v":1,"t":1}]}`))
	if len(trades) != 1 {
		t.Fatalf("trades = %d", len(trades))
	}
	tr := trades[0]
	if tr.Symbol != "AAPL" || tr.Price != 190.5 || tr.Volume != 100 {
		t.Fatalf("unexpected %+v", tr)
	}
	if tr.Timestamp.Unix() != 1767225600 {
		t.Fatalf("ts = %v", tr.Timestamp)
	}
	if got := decode([]byte(`{"type":"ping"}`)); got != nil {
		t.Fatalf("ping decoded to %v", got)
	}
	if got := decode([]byte(`not json`)); got != nil {
		t.Fatalf("garbage decoded to %v", got)
	}
}

func TestClientSubscribeAndRead(t *testing.T) {
	subscribed := make(chan string, 2)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "k" {
			http.Error(w, "no token", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for i := 0; i < 2; i++ {
			var msg map[string]string
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			subscribed <- msg["symbol"]
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"trade","data":[{"s":"SPY","p":500,"v":10,"t":1767225600000}]}`))
		time.Sleep(100 * time.Millisecond)
	}))
	defer srv.Close()

	c := New(Config{
		APIKey:       "k",
		WebSocketURL: "ws" + strings.TrimPrefix(srv.URL, "http"),
		Symbols:      []string{"SPY", "QQQ"},
	}, logger.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()
	if !c.IsConnected() {
		t.Fatalf("not connected")
	}
	if err := c.Subscribe(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if a, b := <-subscribed, <-subscribed; a != "SPY" || b != "QQQ" {
		t.Fatalf("subscribed %s %s", a, b)
	}

	trades, _ := c.Read(ctx)
	select {
	case tr := <-trades:
		if tr == nil || tr.Symbol != "SPY" || tr.Price != 500 {
			t.Fatalf("trade = %+v", tr)
		}
	case <-ctx.Done():
		t.Fatalf("no trade received")
	}
}

func TestSubscribeWithoutConnection(t *testing.T) {
	c := New(Config{Symbols: []string{"SPY"}}, logger.NewNop())
	if err := c.Subscribe(context.Background()); err != ErrNotConnected {
		t.Fatalf("err = %v", err)
	}
}

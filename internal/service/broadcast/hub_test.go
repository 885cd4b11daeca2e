package broadcast

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/pkg/logger"

	"github.com/gorilla/websocket"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

func TestHubHelloAndBroadcast(t *testing.T) {
	f := NewFanout(nil)
	hub := NewHub(f, logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)
	waitFor(t, func() bool { return f.Len() == 1 })

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var hello map[string]any
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("read hello: %v", err)
	}
	if hello["type"] != "hello" || hello["ts"] == nil {
		t.Fatalf("unexpected hello %v", hello)
	}

	waitFor(t, func() bool { return hub.Clients() == 1 })
	f.Notify(NewEvent(models.EventInsightsUpdate, map[string]string{"k": "v"}, time.Now()))

	var evt models.InsightEvent
	if err := conn.ReadJSON(&evt); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if evt.Type != models.EventInsightsUpdate || evt.ID == "" {
		t.Fatalf("unexpected event %+v", evt)
	}
	payload, _ := json.Marshal(evt.Payload)
	if string(payload) != `{"k":"v"}` {
		t.Fatalf("unexpected payload %s", payload)
	}

	conn.Close()
	waitFor(t, func() bool { return hub.Clients() == 0 })
}

func TestHubStopsWithContext(t *testing.T) {
	f := NewFanout(nil)
	hub := NewHub(f, logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	waitFor(t, func() bool { return f.Len() == 1 })
	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatalf("hub did not stop")
	}
	if f.Len() != 0 {
		t.Fatalf("hub subscription not removed")
	}
}

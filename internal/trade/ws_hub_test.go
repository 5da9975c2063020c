package trade_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/afeef-allahbaksh/Stock-Market-Simulation/internal/model"
	"github.com/afeef-allahbaksh/Stock-Market-Simulation/internal/store"
	"github.com/afeef-allahbaksh/Stock-Market-Simulation/internal/trade"
)

func TestWSHub_BroadcastsExecutedTransactions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := trade.NewWSHub()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	ms := store.NewMemoryStore()
	seedUser(t, ms, "u1", "1000000")
	prices := newPriceBoard()
	prices.set("AAPL", "101.5")
	e := trade.NewEngine(ms, prices, trade.WithNotifier(hub))

	// Registration is asynchronous; retry until the client sees a message.
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	received := make(chan trade.WSMessage, 1)
	go func() {
		_, data, err := conn.ReadMessage()
		if err != nil {
			close(received)
			return
		}
		var msg trade.WSMessage
		json.Unmarshal(data, &msg)
		received <- msg
	}()

	deadline := time.After(5 * time.Second)
	for {
		mustExecute(t, e, "u1", "AAPL", 1, model.SideBuy)
		select {
		case msg, ok := <-received:
			if !ok {
				t.Fatal("connection closed before a message arrived")
			}
			if msg.Type != "transaction_executed" || msg.Symbol != "AAPL" || msg.Side != "BUY" ||
				msg.Quantity != 1 || msg.Price != "101.5" {
				t.Errorf("unexpected message: %+v", msg)
			}
			return
		case <-deadline:
			t.Fatal("timed out waiting for broadcast")
		case <-time.After(50 * time.Millisecond):
		}
	}
}

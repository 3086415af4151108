package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fraudsentry/fraudsentry/internal/fraud"
)

func testHub() *Hub {
	return NewHub(slog.New(slog.DiscardHandler))
}

// ---------------------------------------------------------------------------
// shouldSend tests
// ---------------------------------------------------------------------------

func TestShouldSend_AllEvents(t *testing.T) {
	h := testHub()
	client := &Client{sub: Subscription{AllEvents: true}}

	assert.True(t, h.shouldSend(client, &Event{Type: EventTransactionScored}))
	assert.True(t, h.shouldSend(client, &Event{Type: EventFraudAlert}))
}

func TestShouldSend_EventTypeFilter(t *testing.T) {
	h := testHub()
	client := &Client{sub: Subscription{
		EventTypes: []EventType{EventFraudAlert},
	}}

	assert.True(t, h.shouldSend(client, &Event{Type: EventFraudAlert}))
	assert.False(t, h.shouldSend(client, &Event{Type: EventTransactionScored}))
}

func TestShouldSend_UserFilter(t *testing.T) {
	h := testHub()
	client := &Client{sub: Subscription{
		UserIDs: []string{"u1", "u2"},
	}}

	watched := &Event{
		Type: EventTransactionScored,
		Data: map[string]interface{}{"user_id": "u1"},
	}
	other := &Event{
		Type: EventTransactionScored,
		Data: map[string]interface{}{"user_id": "u3"},
	}

	assert.True(t, h.shouldSend(client, watched))
	assert.False(t, h.shouldSend(client, other))
}

func TestShouldSend_MinScoreFilter(t *testing.T) {
	h := testHub()
	client := &Client{sub: Subscription{MinScore: 0.7}}

	high := &Event{
		Type: EventTransactionScored,
		Data: map[string]interface{}{"fraud_score": 0.85},
	}
	low := &Event{
		Type: EventTransactionScored,
		Data: map[string]interface{}{"fraud_score": 0.3},
	}
	noScore := &Event{
		Type: EventTransactionScored,
		Data: map[string]interface{}{"user_id": "u1"},
	}

	assert.True(t, h.shouldSend(client, high))
	assert.False(t, h.shouldSend(client, low))
	assert.True(t, h.shouldSend(client, noScore), "score filter only applies when a score is present")
}

func TestShouldSend_FraudOnly(t *testing.T) {
	h := testHub()
	client := &Client{sub: Subscription{FraudOnly: true}}

	fraudulent := &Event{
		Type: EventTransactionScored,
		Data: map[string]interface{}{"is_fraud": true},
	}
	legit := &Event{
		Type: EventTransactionScored,
		Data: map[string]interface{}{"is_fraud": false},
	}

	assert.True(t, h.shouldSend(client, fraudulent))
	assert.False(t, h.shouldSend(client, legit))
}

func TestShouldSend_FiltersCombine(t *testing.T) {
	h := testHub()

	// Dashboard watching one user's fraud verdicts above 0.9.
	client := &Client{sub: Subscription{
		EventTypes: []EventType{EventTransactionScored},
		UserIDs:    []string{"u1"},
		MinScore:   0.9,
		FraudOnly:  true,
	}}

	match := &Event{
		Type: EventTransactionScored,
		Data: map[string]interface{}{"user_id": "u1", "fraud_score": 0.95, "is_fraud": true},
	}
	wrongUser := &Event{
		Type: EventTransactionScored,
		Data: map[string]interface{}{"user_id": "u2", "fraud_score": 0.95, "is_fraud": true},
	}
	lowScore := &Event{
		Type: EventTransactionScored,
		Data: map[string]interface{}{"user_id": "u1", "fraud_score": 0.5, "is_fraud": true},
	}

	assert.True(t, h.shouldSend(client, match))
	assert.False(t, h.shouldSend(client, wrongUser))
	assert.False(t, h.shouldSend(client, lowScore))
}

func TestShouldSend_EmptySubscription(t *testing.T) {
	h := testHub()
	client := &Client{sub: Subscription{}}

	assert.True(t, h.shouldSend(client, &Event{Type: EventTransactionScored}),
		"no filters means everything passes")
}

func TestShouldSend_NonMapData(t *testing.T) {
	h := testHub()
	client := &Client{sub: Subscription{UserIDs: []string{"u1"}}}

	// Filters that inspect payload fields skip non-map data.
	event := &Event{Type: EventFraudAlert, Data: "not a map"}
	assert.True(t, h.shouldSend(client, event))
}

// ---------------------------------------------------------------------------
// Hub lifecycle tests
// ---------------------------------------------------------------------------

func TestHub_RegisterUnregister(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
		sub:  Subscription{AllEvents: true},
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	stats := h.Stats()
	assert.Equal(t, 1, stats["connectedClients"])
	assert.Equal(t, int64(1), stats["peakClients"])

	h.unregister <- client
	time.Sleep(50 * time.Millisecond)

	stats = h.Stats()
	assert.Equal(t, 0, stats["connectedClients"])
	assert.Equal(t, int64(1), stats["peakClients"], "peak survives disconnect")
}

func TestHub_BroadcastScoredReachesClient(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
		sub:  Subscription{AllEvents: true},
	}
	h.register <- client
	time.Sleep(50 * time.Millisecond)

	h.BroadcastScored(
		fraud.Transaction{TransactionID: "tx_1", UserID: "u1", Amount: 900},
		fraud.ScoringResult{TransactionID: "tx_1", IsFraud: true, FraudScore: 0.92},
	)

	select {
	case msg := <-client.send:
		var event Event
		require.NoError(t, json.Unmarshal(msg, &event))
		assert.Equal(t, EventTransactionScored, event.Type)

		data, ok := event.Data.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "tx_1", data["transaction_id"])
		assert.Equal(t, true, data["is_fraud"])
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for broadcast")
	}
}

func TestHub_FilteredClientSkipped(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
		sub:  Subscription{EventTypes: []EventType{EventFraudAlert}},
	}
	h.register <- client
	time.Sleep(50 * time.Millisecond)

	h.BroadcastScored(
		fraud.Transaction{TransactionID: "tx_1", UserID: "u1", Amount: 50},
		fraud.ScoringResult{TransactionID: "tx_1"},
	)
	time.Sleep(100 * time.Millisecond)

	select {
	case <-client.send:
		t.Fatal("client subscribed to alerts should not receive scored events")
	default:
	}

	h.BroadcastAlert(&fraud.FraudAlert{AlertID: "alert_1", UserID: "u1", Severity: fraud.SeverityHigh})

	select {
	case msg := <-client.send:
		assert.NotEmpty(t, msg)
	case <-time.After(time.Second):
		t.Fatal("client should receive the alert event")
	}
}

func TestHub_ContextCancellation(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop after context cancellation")
	}
}

package alertstream

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fraudsentry/fraudsentry/internal/fraud"
)

type stubFetcher struct {
	alerts []*fraud.FraudAlert
	err    error
}

func (s stubFetcher) ListAlerts(context.Context, string, time.Time, int) ([]*fraud.FraudAlert, error) {
	return s.alerts, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func makeAlerts(n int) []*fraud.FraudAlert {
	alerts := make([]*fraud.FraudAlert, n)
	for i := range alerts {
		alerts[i] = &fraud.FraudAlert{AlertID: string(rune('a' + i)), UserID: "u1"}
	}
	return alerts
}

func TestOpen_DeliversSnapshotInOrder(t *testing.T) {
	s := New(stubFetcher{alerts: makeAlerts(4)}, testLogger())

	ch, err := s.Open(context.Background(), Request{UserID: "u1", MaxAlerts: 10})
	require.NoError(t, err)

	var got []string
	for alert := range ch {
		got = append(got, alert.AlertID)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, got)
}

func TestOpen_EmptySnapshotClosesImmediately(t *testing.T) {
	s := New(stubFetcher{}, testLogger())

	ch, err := s.Open(context.Background(), Request{UserID: "u1"})
	require.NoError(t, err)

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should close without emitting")
	case <-time.After(time.Second):
		t.Fatal("stream did not close")
	}
}

func TestOpen_FetchFailure(t *testing.T) {
	s := New(stubFetcher{err: errors.New("store down")}, testLogger())

	ch, err := s.Open(context.Background(), Request{UserID: "u1"})
	assert.Error(t, err)
	assert.Nil(t, ch)
}

func TestOpen_CancelStopsMidStream(t *testing.T) {
	s := New(stubFetcher{alerts: makeAlerts(10)}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := s.Open(ctx, Request{UserID: "u1", MaxAlerts: 10})
	require.NoError(t, err)

	// Read two alerts, then walk away.
	<-ch
	<-ch
	cancel()

	// The channel must close without requiring further reads. Drain
	// whatever was already in flight.
	closed := make(chan struct{})
	go func() {
		for range ch {
		}
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("stream did not stop after cancellation")
	}
}

func TestOpen_PacedDelivery(t *testing.T) {
	s := New(stubFetcher{alerts: makeAlerts(3)}, testLogger()).WithPace(20 * time.Millisecond)

	start := time.Now()
	ch, err := s.Open(context.Background(), Request{UserID: "u1", MaxAlerts: 10})
	require.NoError(t, err)

	count := 0
	for range ch {
		count++
	}
	elapsed := time.Since(start)

	assert.Equal(t, 3, count)
	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond, "two inter-emission delays")
}

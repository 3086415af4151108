// Package alertstream delivers a user's fraud alerts as an ordered,
// cancellable sequence.
//
// A stream is a polling snapshot, not a live subscription: the full alert
// list is fetched once when the stream opens, then emitted one at a time in
// the ledger's return order (newest first). Delivery is consumer-paced —
// each emission is an unbuffered channel send, so the producer advances only
// as fast as the caller reads. An optional fixed inter-emission delay is
// available for consumers that relied on the legacy 100 ms pacing.
package alertstream

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fraudsentry/fraudsentry/internal/fraud"
	"github.com/fraudsentry/fraudsentry/internal/metrics"
)

// Fetcher reads a user's alerts, newest first.
type Fetcher interface {
	ListAlerts(ctx context.Context, userID string, since time.Time, maxAlerts int) ([]*fraud.FraudAlert, error)
}

// Request identifies the alert window to stream.
type Request struct {
	UserID    string
	Since     time.Time
	MaxAlerts int
}

// Streamer opens alert streams against a fetcher.
type Streamer struct {
	fetcher Fetcher
	pace    time.Duration
	logger  *slog.Logger
}

// New creates a streamer.
func New(fetcher Fetcher, logger *slog.Logger) *Streamer {
	return &Streamer{fetcher: fetcher, logger: logger}
}

// WithPace inserts a fixed delay between emissions. Zero (the default)
// means purely consumer-paced delivery.
func (s *Streamer) WithPace(d time.Duration) *Streamer {
	if d >= 0 {
		s.pace = d
	}
	return s
}

// Open fetches the alert snapshot and starts emitting it on the returned
// channel. The channel is unbuffered and closed when the snapshot is
// exhausted or ctx is cancelled; cancellation is not an error, the stream
// simply stops. A fetch failure is reported here and no channel is opened.
func (s *Streamer) Open(ctx context.Context, req Request) (<-chan *fraud.FraudAlert, error) {
	alerts, err := s.fetcher.ListAlerts(ctx, req.UserID, req.Since, req.MaxAlerts)
	if err != nil {
		return nil, fmt.Errorf("fetch alerts for %s: %w", req.UserID, err)
	}

	out := make(chan *fraud.FraudAlert)
	metrics.ActiveAlertStreams.Inc()

	go func() {
		defer close(out)
		defer metrics.ActiveAlertStreams.Dec()

		for i, alert := range alerts {
			if s.pace > 0 && i > 0 {
				select {
				case <-ctx.Done():
					s.logger.Debug("alert stream cancelled",
						"user_id", req.UserID, "delivered", i)
					return
				case <-time.After(s.pace):
				}
			}

			select {
			case <-ctx.Done():
				s.logger.Debug("alert stream cancelled",
					"user_id", req.UserID, "delivered", i)
				return
			case out <- alert:
				metrics.AlertsEmittedTotal.Inc()
			}
		}
	}()

	return out, nil
}

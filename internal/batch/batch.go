// Package batch scores groups of transactions concurrently with per-item
// failure isolation. One bad transaction never sinks its batch: the failed
// slot is filled with a degraded placeholder result and every other slot is
// scored normally, so the response always has exactly one result per input,
// in input order.
package batch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fraudsentry/fraudsentry/internal/fraud"
	"github.com/fraudsentry/fraudsentry/internal/metrics"
	"github.com/fraudsentry/fraudsentry/internal/traces"
)

// DefaultConcurrency bounds in-flight scoring when no limit is configured.
const DefaultConcurrency = 8

// ProcessingErrorFactor marks a degraded result slot.
const ProcessingErrorFactor = "processing_error"

// Scorer scores a single transaction end to end.
type Scorer interface {
	ScoreTransaction(ctx context.Context, tx fraud.Transaction) (fraud.ScoringResult, error)
}

// Result is a completed batch.
type Result struct {
	Results               []fraud.ScoringResult `json:"results"`
	TotalProcessingTimeMs int64                 `json:"total_processing_time_ms"`
}

// Coordinator fans a batch out over a bounded worker set.
type Coordinator struct {
	scorer      Scorer
	concurrency int
	logger      *slog.Logger
}

// New creates a coordinator with the default concurrency bound.
func New(scorer Scorer, logger *slog.Logger) *Coordinator {
	return &Coordinator{scorer: scorer, concurrency: DefaultConcurrency, logger: logger}
}

// WithConcurrency sets the in-flight scoring limit.
func (c *Coordinator) WithConcurrency(n int) *Coordinator {
	if n > 0 {
		c.concurrency = n
	}
	return c
}

// Process scores every transaction in the batch. The returned slice is
// position-aligned with the input; slots whose scoring failed or panicked
// hold a degraded result flagged with the processing_error risk factor.
// Total time is wall clock, not the sum of per-item times.
func (c *Coordinator) Process(ctx context.Context, txs []fraud.Transaction) Result {
	start := time.Now()

	ctx, span := traces.StartSpan(ctx, "batch.process", traces.BatchSize(len(txs)))
	defer span.End()

	results := make([]fraud.ScoringResult, len(txs))

	sem := make(chan struct{}, c.concurrency)
	var wg sync.WaitGroup
	for i := range txs {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[idx] = c.scoreOne(ctx, txs[idx])
		}(i)
	}
	wg.Wait()

	elapsed := time.Since(start)
	metrics.BatchDuration.Observe(elapsed.Seconds())
	return Result{
		Results:               results,
		TotalProcessingTimeMs: elapsed.Milliseconds(),
	}
}

func (c *Coordinator) scoreOne(ctx context.Context, tx fraud.Transaction) (res fraud.ScoringResult) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("batch item panicked",
				"transaction_id", tx.TransactionID, "panic", r)
			res = degraded(tx.TransactionID)
			metrics.BatchItemsTotal.WithLabelValues("panic").Inc()
		}
	}()

	result, err := c.scorer.ScoreTransaction(ctx, tx)
	if err != nil {
		c.logger.Warn("batch item failed",
			"transaction_id", tx.TransactionID, "error", err)
		metrics.BatchItemsTotal.WithLabelValues("error").Inc()
		return degraded(tx.TransactionID)
	}
	metrics.BatchItemsTotal.WithLabelValues("ok").Inc()
	return result
}

func degraded(txID string) fraud.ScoringResult {
	return fraud.ScoringResult{
		TransactionID: txID,
		IsFraud:       false,
		FraudScore:    0,
		Confidence:    0,
		RiskFactors:   []string{ProcessingErrorFactor},
	}
}

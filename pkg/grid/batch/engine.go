// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/united-manufacturing-hub/catalog-grid/pkg/catalog"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/catalogapi"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/constants"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/logger"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/metrics"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/standarderrors"
)

// SendFunc issues one remote batch call.
type SendFunc func(ctx context.Context, req catalogapi.BatchRequest) (*catalogapi.BatchResponse, error)

// Restorer puts a single row back to its pre-transaction snapshot.
type Restorer interface {
	Restore(id catalog.RowID)
}

// RestoreFunc adapts a function to Restorer.
type RestoreFunc func(id catalog.RowID)

func (f RestoreFunc) Restore(id catalog.RowID) { f(id) }

// Config bounds chunk size, concurrency and transport retries.
type Config struct {
	ChunkSize            int
	MaxConcurrentChunks  int
	MaxRetries           int
	RetryInitialInterval time.Duration
}

// DefaultConfig returns the default engine settings.
func DefaultConfig() Config {
	return Config{
		ChunkSize:            constants.DefaultChunkSize,
		MaxConcurrentChunks:  constants.DefaultMaxConcurrentChunks,
		MaxRetries:           constants.DefaultMaxRetries,
		RetryInitialInterval: constants.DefaultRetryInitialInterval,
	}
}

// ChunkResult is the outcome of one dispatched chunk. Err is set when the
// chunk failed at the transport level; Response is set otherwise.
type ChunkResult struct {
	Err      error
	Response *catalogapi.BatchResponse
	Chunk    Chunk
	Attempts int
}

// Outcome aggregates the reconciled results of one batch.
type Outcome struct {
	CorrelationID  string
	Succeeded      []catalogapi.ItemResult
	Failed         []standarderrors.ItemFailure
	TotalProcessed int
	TotalErrors    int
}

// Err returns a *standarderrors.PartialBatchError if any item failed.
func (o Outcome) Err() error {
	if len(o.Failed) == 0 {
		return nil
	}

	return &standarderrors.PartialBatchError{Failed: o.Failed, Total: o.TotalProcessed}
}

// FailedIDs returns the set of failed row ids. Create items without an id are not included.
func (o Outcome) FailedIDs() map[catalog.RowID]bool {
	ids := make(map[catalog.RowID]bool, len(o.Failed))

	for _, f := range o.Failed {
		if f.ID != 0 {
			ids[catalog.RowID(f.ID)] = true
		}
	}

	return ids
}

// Engine dispatches chunked batches. It keeps no state between calls; chunks
// do not outlive the Sync that created them.
type Engine struct {
	log *zap.SugaredLogger
	cfg Config
}

func NewEngine(cfg Config, log *zap.SugaredLogger) *Engine {
	log = logger.OrNop(log)

	def := DefaultConfig()
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}

	if cfg.MaxConcurrentChunks <= 0 {
		cfg.MaxConcurrentChunks = def.MaxConcurrentChunks
	}

	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	if cfg.RetryInitialInterval <= 0 {
		cfg.RetryInitialInterval = def.RetryInitialInterval
	}

	return &Engine{cfg: cfg, log: log}
}

func (e *Engine) Config() Config {
	return e.cfg
}

// Sync chunks items, dispatches every chunk and reconciles the results,
// restoring each failed item through restorer. restorer may be nil, e.g.
// for deletes. The returned error is nil or a *standarderrors.PartialBatchError;
// the Outcome is always valid.
func (e *Engine) Sync(ctx context.Context, kind catalogapi.Kind, items []catalogapi.BatchItem, send SendFunc, restorer Restorer) (Outcome, error) {
	correlationID := uuid.NewString()

	if len(items) == 0 {
		return Outcome{CorrelationID: correlationID}, nil
	}

	chunks, err := NewChunks(kind, correlationID, items, e.cfg.ChunkSize)
	if err != nil {
		return Outcome{CorrelationID: correlationID}, err
	}

	e.log.Debugw("Dispatching batch", "correlation_id", correlationID, "kind", kind, "items", len(items), "chunks", len(chunks))

	results := e.Dispatch(ctx, chunks, send)
	outcome := Reconcile(results, restorer)
	outcome.CorrelationID = correlationID

	metrics.RecordBatchItems(string(kind), outcome.TotalProcessed-outcome.TotalErrors, outcome.TotalErrors)

	if outcome.TotalErrors > 0 {
		e.log.Warnw("Batch finished with failures", "correlation_id", correlationID, "kind", kind,
			"total", outcome.TotalProcessed, "errors", outcome.TotalErrors)
	}

	return outcome, outcome.Err()
}

// Dispatch issues one call per chunk, concurrently and bounded by
// MaxConcurrentChunks. A failing chunk never cancels the others. Results are
// returned in chunk order.
func (e *Engine) Dispatch(ctx context.Context, chunks []Chunk, send SendFunc) []ChunkResult {
	results := make([]ChunkResult, len(chunks))

	var g errgroup.Group
	g.SetLimit(e.cfg.MaxConcurrentChunks)

	for i := range chunks {
		i := i
		g.Go(func() error {
			results[i] = e.dispatchChunk(ctx, chunks[i], send)

			return nil
		})
	}

	_ = g.Wait()

	return results
}

func (e *Engine) dispatchChunk(ctx context.Context, chunk Chunk, send SendFunc) ChunkResult {
	result := ChunkResult{Chunk: chunk}
	req := chunk.Request()

	var permanent error

	operation := func() error {
		result.Attempts++
		if result.Attempts > 1 {
			metrics.IncChunkRetry(string(chunk.Kind))
		}

		resp, err := send(ctx, req)
		if err == nil && resp == nil {
			err = &standarderrors.NetworkError{Op: string(chunk.Kind), Err: errors.New("empty response")}
		}

		if err != nil {
			if !retryable(err) {
				permanent = err

				return nil
			}

			return err
		}

		result.Response = resp

		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = e.cfg.RetryInitialInterval
	policy.MaxElapsedTime = 0

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(e.cfg.MaxRetries)), ctx))
	if err == nil {
		err = permanent
	}

	if err != nil {
		result.Err = err
		result.Response = nil

		metrics.RecordChunk(string(chunk.Kind), metrics.ResultFailure)
		e.log.Warnw("Chunk failed at transport level", "correlation_id", chunk.CorrelationID, "offset", chunk.Offset,
			"items", len(chunk.Items), "attempts", result.Attempts, "error", err)

		return result
	}

	outcome := metrics.ResultSuccess
	if len(result.Response.Failed()) > 0 {
		outcome = "partial"
	}

	metrics.RecordChunk(string(chunk.Kind), outcome)

	return result
}

// retryable reports whether a failed chunk may be resent. Client errors (4xx)
// and cancelled contexts are final.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr *standarderrors.NetworkError
	if errors.As(err, &netErr) && netErr.StatusCode >= 400 && netErr.StatusCode < 500 {
		return false
	}

	return true
}

// Reconcile applies the per-item failure policy: every item reported as
// failed is restored individually through restorer; all other items are
// committed. A chunk that failed at the transport level counts as all of its
// items failed and goes through the same per-item path.
//
// Item results are matched to chunk items by id and only fall back to the
// reported index when the id is not part of the chunk, which is the case for
// creates. When several results land on the same item, a failure wins.
func Reconcile(results []ChunkResult, restorer Restorer) Outcome {
	var outcome Outcome

	fail := func(chunk Chunk, local int, id catalog.RowID, reason string) {
		outcome.Failed = append(outcome.Failed, standarderrors.ItemFailure{
			ID:     int64(id),
			Index:  chunk.Offset + local,
			Reason: reason,
		})

		if restorer != nil && id != 0 {
			restorer.Restore(id)
		}
	}

	for _, res := range results {
		chunk := res.Chunk
		outcome.TotalProcessed += len(chunk.Items)

		if res.Err != nil || res.Response == nil {
			reason := "no response"
			if res.Err != nil {
				reason = res.Err.Error()
			}

			for i, item := range chunk.Items {
				fail(chunk, i, item.ID, reason)
			}

			continue
		}

		reported := matchResults(chunk, res.Response.Items)

		for i, item := range chunk.Items {
			r, ok := reported[i]
			if !ok {
				r = catalogapi.ItemResult{Index: i, ID: item.ID, OK: true}
			}

			if r.ID == 0 {
				r.ID = item.ID
			}

			if !r.OK {
				reason := r.Error
				if reason == "" {
					reason = "rejected by remote store"
				}

				// Roll back the local row, which for creates has no id yet.
				fail(chunk, i, item.ID, reason)

				continue
			}

			r.Index = chunk.Offset + i
			outcome.Succeeded = append(outcome.Succeeded, r)
		}
	}

	outcome.TotalErrors = len(outcome.Failed)

	return outcome
}

// matchResults keys item results by their position in chunk. Results that
// match no item are dropped.
func matchResults(chunk Chunk, items []catalogapi.ItemResult) map[int]catalogapi.ItemResult {
	byID := make(map[catalog.RowID]int, len(chunk.Items))

	for i, item := range chunk.Items {
		if item.ID != 0 {
			byID[item.ID] = i
		}
	}

	out := make(map[int]catalogapi.ItemResult, len(items))

	for _, r := range items {
		local, ok := byID[r.ID]
		if r.ID == 0 || !ok {
			if r.Index < 0 || r.Index >= len(chunk.Items) {
				continue
			}

			local = r.Index
		}

		if prev, seen := out[local]; seen && !prev.OK {
			continue
		}

		out[local] = r
	}

	return out
}

// String is used in logs.
func (o Outcome) String() string {
	return fmt.Sprintf("%d/%d failed (correlation %s)", o.TotalErrors, o.TotalProcessed, o.CorrelationID)
}

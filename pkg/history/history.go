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

// Package history delivers audit records to their sinks. Delivery is
// fire-and-forget for callers: a failed append is logged and reported but
// never undoes the edit it describes.
package history

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/catalog-grid/pkg/grid/diff"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/logger"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/metrics"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/sentry"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/standarderrors"
)

// Sink stores history records.
type Sink interface {
	Append(ctx context.Context, record *diff.Record) error
}

// MultiSink appends to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Append(ctx context.Context, record *diff.Record) error {
	var errs []error

	for _, s := range m {
		if err := s.Append(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Recorder hands records to a sink and swallows failures.
type Recorder struct {
	sink Sink
	log  *zap.SugaredLogger
}

// NewRecorder returns a recorder for sink. A nil sink discards every record.
func NewRecorder(sink Sink, log *zap.SugaredLogger) *Recorder {
	log = logger.OrNop(log)

	return &Recorder{sink: sink, log: log}
}

// Emit appends record. It returns the *standarderrors.AuditWriteError it
// swallowed, for callers that want to surface it; the edit stays committed
// either way.
func (r *Recorder) Emit(ctx context.Context, record *diff.Record) error {
	if record == nil || r.sink == nil {
		return nil
	}

	if err := r.sink.Append(ctx, record); err != nil {
		auditErr := &standarderrors.AuditWriteError{Err: err, Location: record.Location, Action: string(record.Action)}

		metrics.RecordHistory(string(record.Action), metrics.ResultFailure)
		sentry.ReportIssueWithContext(auditErr, sentry.IssueTypeWarning, r.log, map[string]interface{}{
			"component": metrics.ComponentHistorySink,
			"operation": "append",
			"record_id": record.ID,
		})

		return auditErr
	}

	metrics.RecordHistory(string(record.Action), metrics.ResultSuccess)
	r.log.Debugw("History record appended", "id", record.ID, "action", record.Action, "items", len(record.Items))

	return nil
}

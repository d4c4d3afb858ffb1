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

package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/catalog-grid/pkg/logger"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/sentry"
)

const (
	// Component Labels.
	ComponentGridController     = "grid_controller"
	ComponentBatchEngine        = "batch_engine"
	ComponentReorderCoordinator = "reorder_coordinator"
	ComponentLayoutStore        = "layout_store"
	ComponentSettingsStore      = "settings_store"
	ComponentHistorySink        = "history_sink"
	ComponentCatalogClient      = "catalog_client"
	ComponentMockServer         = "mock_server"
)

// Result label values.
const (
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultRejected = "rejected"
	ResultSkipped  = "skipped"
)

var (
	// Namespace and subsystem for all metrics.
	namespace = "catalog"
	subsystem = "grid"

	// Error counters.
	errorCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "errors_total",
			Help:      "Total number of errors encountered by component",
		},
		[]string{"component", "instance"},
	)

	batchItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "batch_items_total",
			Help:      "Items sent through the batch sync engine by operation kind and result",
		},
		[]string{"kind", "result"},
	)

	batchChunks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "batch_chunks_total",
			Help:      "Chunks dispatched by operation kind and outcome (success, partial, failure)",
		},
		[]string{"kind", "outcome"},
	)

	chunkRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "batch_chunk_retries_total",
			Help:      "Retries of chunks that failed at the transport level",
		},
		[]string{"kind"},
	)

	remoteCallDuration = promauto.NewSummaryVec(
		prometheus.SummaryOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "remote_call_duration_milliseconds",
			Help:      "Time taken by remote catalog calls (in milliseconds)",
			Objectives: map[float64]float64{
				0.5:  0.01,
				0.9:  0.01,
				0.95: 0.01,
				0.99: 0.01,
			},
		},
		[]string{"endpoint", "status"},
	)

	reorders = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reorders_total",
			Help:      "Drag reorders by result (success, rejected, failure, skipped)",
		},
		[]string{"result"},
	)

	historyRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "history_records_total",
			Help:      "History records handed to audit sinks by action and result",
		},
		[]string{"action", "result"},
	)

	validationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "validation_failures_total",
			Help:      "Commits blocked by local validation",
		},
	)

	settingsWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "settings_writes_total",
			Help:      "Column layout settings writes by result (success, failure, skipped)",
		},
		[]string{"result"},
	)

	editingRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "editing_rows",
			Help:      "Rows currently in an edit session",
		},
	)
)

// SetupMetricsEndpoint serves /metrics on addr in a background goroutine.
func SetupMetricsEndpoint(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sentry.ReportIssue(err, sentry.IssueTypeFatal, logger.For("metrics"))
		}
	}()

	return server
}

func IncErrorCountAndLog(component, instance string, err error, logger *zap.SugaredLogger) {
	IncErrorCount(component, instance)

	if logger != nil {
		logger.Debugf("Component %s instance %s failed: %v", component, instance, err)
	}
}

func IncErrorCount(component, instance string) {
	errorCounter.WithLabelValues(component, instance).Inc()
}

func InitErrorCounter(component, instance string) {
	errorCounter.WithLabelValues(component, instance).Add(0)
}

// RecordBatchItems counts succeeded and failed items of one dispatch.
func RecordBatchItems(kind string, succeeded, failed int) {
	batchItems.WithLabelValues(kind, ResultSuccess).Add(float64(succeeded))
	batchItems.WithLabelValues(kind, ResultFailure).Add(float64(failed))
}

func RecordChunk(kind, outcome string) {
	batchChunks.WithLabelValues(kind, outcome).Inc()
}

func IncChunkRetry(kind string) {
	chunkRetries.WithLabelValues(kind).Inc()
}

func ObserveRemoteCall(endpoint string, status int, duration time.Duration) {
	remoteCallDuration.WithLabelValues(endpoint, strconv.Itoa(status)).Observe(float64(duration.Milliseconds()))
}

func RecordReorder(result string) {
	reorders.WithLabelValues(result).Inc()
}

func RecordHistory(action, result string) {
	historyRecords.WithLabelValues(action, result).Inc()
}

func IncValidationFailure() {
	validationFailures.Inc()
}

func RecordSettingsWrite(result string) {
	settingsWrites.WithLabelValues(result).Inc()
}

func SetEditingRows(n int) {
	editingRows.Set(float64(n))
}

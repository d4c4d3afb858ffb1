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

package catalogapi

import (
	"sort"
	"time"

	"github.com/united-manufacturing-hub/expiremap/v2/pkg/expiremap"
)

// LatencyStats summarizes the samples of the last five minutes.
type LatencyStats struct {
	Min     time.Duration `json:"min"`
	Max     time.Duration `json:"max"`
	Avg     time.Duration `json:"avg"`
	P95     time.Duration `json:"p95"`
	P99     time.Duration `json:"p99"`
	Samples int           `json:"samples"`
}

// Latency holds the time-to-first-byte and total request latency of remote calls.
type Latency struct {
	FirstByte LatencyStats `json:"first_byte"`
	Total     LatencyStats `json:"total"`
}

func newLatencyWindow() *expiremap.ExpireMap[time.Time, time.Duration] {
	return expiremap.NewEx[time.Time, time.Duration](5*time.Minute, 5*time.Minute)
}

func calculateLatency(latencies *expiremap.ExpireMap[time.Time, time.Duration]) LatencyStats {
	var (
		stats     LatencyStats
		sum       time.Duration
		durations []time.Duration
	)

	latencies.Range(func(_ time.Time, value time.Duration) bool {
		if stats.Min == 0 || value < stats.Min {
			stats.Min = value
		}

		if value > stats.Max {
			stats.Max = value
		}

		sum += value
		durations = append(durations, value)

		return true
	})

	items := len(durations)
	if items == 0 {
		return stats
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	stats.Samples = items
	stats.Avg = sum / time.Duration(items)
	stats.P95 = durations[percentileIndex(items, 0.95)]
	stats.P99 = durations[percentileIndex(items, 0.99)]

	return stats
}

func percentileIndex(items int, p float64) int {
	idx := int(float64(items) * p)
	if idx >= items {
		idx = items - 1
	}

	if idx < 0 {
		idx = 0
	}

	return idx
}

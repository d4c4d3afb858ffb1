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

// Package notify is the boundary to the user-facing toast layer. The grid core
// reports outcomes through a Notifier; presentation is up to the host.
package notify

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/catalog-grid/pkg/logger"
)

// Level selects the notification style.
type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is one user-facing message. Entities names the affected rows where known.
type Notification struct {
	Level     Level
	Operation string
	Message   string
	Entities  []string
	Total     int
	Failed    int
}

// Notifier receives notifications from the grid core. Notify must not block.
type Notifier interface {
	Notify(n Notification)
}

// ForCounts builds the notification for a batch outcome: success when nothing
// failed, warning on partial failure and error when everything failed.
func ForCounts(operation string, total, failed int, entities []string) Notification {
	n := Notification{
		Operation: operation,
		Total:     total,
		Failed:    failed,
		Entities:  entities,
	}

	switch {
	case failed == 0:
		n.Level = LevelSuccess
		n.Message = fmt.Sprintf("%s: %d saved", operation, total)
	case failed < total:
		n.Level = LevelWarning
		n.Message = fmt.Sprintf("%s: %d of %d failed", operation, failed, total)
	default:
		n.Level = LevelError
		n.Message = fmt.Sprintf("%s: all %d failed", operation, total)
	}

	if len(entities) > 0 && failed > 0 {
		n.Message += " (" + strings.Join(entities, ", ") + ")"
	}

	return n
}

// LogNotifier writes notifications to a zap logger.
type LogNotifier struct {
	log *zap.SugaredLogger
}

func NewLogNotifier(log *zap.SugaredLogger) *LogNotifier {
	log = logger.OrNop(log)

	return &LogNotifier{log: log}
}

func (l *LogNotifier) Notify(n Notification) {
	fields := []interface{}{"operation", n.Operation, "total", n.Total, "failed", n.Failed}

	switch n.Level {
	case LevelSuccess:
		l.log.Infow(n.Message, fields...)
	case LevelWarning:
		l.log.Warnw(n.Message, fields...)
	default:
		l.log.Errorw(n.Message, fields...)
	}
}

// Recorder keeps every notification in memory. Tests and headless hosts use it.
type Recorder struct {
	items []Notification
	mu    sync.Mutex
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items = append(r.items, n)
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Notification, len(r.items))
	copy(out, r.items)

	return out
}

// Last returns the most recent notification and false if there is none.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.items) == 0 {
		return Notification{}, false
	}

	return r.items[len(r.items)-1], true
}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(n Notification) {
	for _, notifier := range m {
		notifier.Notify(n)
	}
}

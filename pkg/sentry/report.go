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

package sentry

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

type IssueType string

const (
	IssueTypeWarning IssueType = "warning"
	IssueTypeError   IssueType = "error"
	IssueTypeFatal   IssueType = "fatal"
)

// debounceWindow is the minimum time between two reports of the same level.
const debounceWindow = 2 * time.Hour

// ReportIssue logs err and sends it to Sentry. Warnings and errors are debounced,
// fatal issues are flushed and then panic.
func ReportIssue(err error, issueType IssueType, log *zap.SugaredLogger) {
	ReportIssueWithContext(err, issueType, log, nil)
}

func ReportIssuef(issueType IssueType, log *zap.SugaredLogger, template string, args ...interface{}) {
	ReportIssue(fmt.Errorf(template, args...), issueType, log)
}

// ReportIssueWithContext reports an issue with additional context data that will be included in Sentry.
func ReportIssueWithContext(err error, issueType IssueType, log *zap.SugaredLogger, context map[string]interface{}) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	switch issueType {
	case IssueTypeFatal:
		log.Error("The catalog grid has encountered a fatal error and will now terminate.")
		log.Errorf("Error: %s", err)
		log.Errorf("Stack trace: %s", string(debug.Stack()))
		sendSentryEvent(createSentryEventWithContext(sentry.LevelFatal, err, context))
		sentry.Flush(5 * time.Second)
		log.Panic("Fatal error")
	case IssueTypeError:
		log.Error(err)

		if errorDebounce.allow() {
			sendSentryEvent(createSentryEventWithContext(sentry.LevelError, err, context))
		}
	case IssueTypeWarning:
		log.Warn(err)

		if warningDebounce.allow() {
			sendSentryEvent(createSentryEventWithContext(sentry.LevelWarning, err, context))
		}
	}
}

// ReportSyncError reports a failed remote catalog operation with proper context.
func ReportSyncError(log *zap.SugaredLogger, component string, operation string, err error) {
	ReportIssueWithContext(err, IssueTypeError, log, map[string]interface{}{
		"component": component,
		"operation": operation,
	})
}

type debouncer struct {
	lastSent time.Time
	mu       sync.Mutex
}

var (
	errorDebounce   = &debouncer{lastSent: time.Now().Add(-24 * time.Hour)}
	warningDebounce = &debouncer{lastSent: time.Now().Add(-24 * time.Hour)}
)

func (d *debouncer) allow() bool {
	if !shouldDebounceErrors.Load() {
		return true
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if time.Since(d.lastSent) < debounceWindow {
		return false
	}

	d.lastSent = time.Now()

	return true
}

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
	"context"
	"errors"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

var _ = Describe("Sentry reporting", func() {
	var (
		store *eventStore
		log   *zap.SugaredLogger
	)

	BeforeEach(func() {
		store = &eventStore{}
		Expect(sentry.Init(sentry.ClientOptions{
			Dsn:       "https://test@sentry.io/123",
			Transport: &mockTransport{store: store},
		})).To(Succeed())

		log = zaptest.NewLogger(GinkgoT()).Sugar()
	})

	AfterEach(func() {
		DisableTestMode()
		sentry.Flush(time.Second)
	})

	Describe("ReportIssue", func() {
		It("sends warnings with the error title as exception type", func() {
			EnableTestMode()

			ReportIssue(errors.New("history append failed: connection refused"), IssueTypeWarning, log)

			events := store.GetAll()
			Expect(events).To(HaveLen(1))
			Expect(events[0].Level).To(Equal(sentry.LevelWarning))
			Expect(events[0].Exception[0].Type).To(Equal("history append failed"))
		})

		It("debounces repeated errors outside test mode", func() {
			errorDebounce.lastSent = time.Now().Add(-24 * time.Hour)

			ReportIssue(errors.New("first"), IssueTypeError, log)
			ReportIssue(errors.New("second"), IssueTypeError, log)

			Expect(store.GetAll()).To(HaveLen(1))
		})

		It("tags context values and extends the fingerprint", func() {
			EnableTestMode()

			ReportSyncError(log, "BatchEngine", "dispatch", errors.New("boom"))

			events := store.GetAll()
			Expect(events).To(HaveLen(1))
			Expect(events[0].Tags).To(HaveKeyWithValue("component", "BatchEngine"))
			Expect(events[0].Fingerprint).To(ContainElement("operation: dispatch"))
		})

		It("accepts a nil logger", func() {
			EnableTestMode()

			Expect(func() { ReportIssue(errors.New("x"), IssueTypeWarning, nil) }).NotTo(Panic())
		})
	})

	Describe("getMeaningfulErrorTitle", func() {
		It("truncates long messages", func() {
			long := make([]byte, 150)
			for i := range long {
				long[i] = 'a'
			}

			Expect(getMeaningfulErrorTitle(errors.New(string(long)))).To(HaveLen(100))
		})
	})

	Describe("SentryHook", func() {
		It("captures warnings with fingerprint fields", func() {
			core := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(&discardWriter{}), zapcore.DebugLevel)
			logger := zap.New(NewSentryHook(core))

			logger.Warn("layout write failed", zap.String("operation", "flush"), zap.Int("attempt", 2))
			logger.Info("ignored")

			Eventually(store.Len, time.Second, 10*time.Millisecond).Should(Equal(1))

			event := store.GetAll()[0]
			Expect(event.Message).To(Equal("layout write failed"))
			Expect(event.Tags).To(HaveKeyWithValue("attempt", "2"))
			Expect(event.Fingerprint).To(ContainElement("operation: flush"))
		})
	})
})

type eventStore struct {
	events []*sentry.Event
	mutex  sync.Mutex
}

func (s *eventStore) Add(event *sentry.Event) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.events = append(s.events, event)
}

func (s *eventStore) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return len(s.events)
}

func (s *eventStore) GetAll() []*sentry.Event {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	result := make([]*sentry.Event, len(s.events))
	copy(result, s.events)

	return result
}

// mockTransport captures Sentry events for testing.
type mockTransport struct {
	store *eventStore
}

func (t *mockTransport) Configure(options sentry.ClientOptions)    {}
func (t *mockTransport) Flush(timeout time.Duration) bool          { return true }
func (t *mockTransport) FlushWithContext(ctx context.Context) bool { return true }
func (t *mockTransport) Close()                                    {}

func (t *mockTransport) SendEvent(event *sentry.Event) {
	t.store.Add(event)
}

// discardWriter discards all writes (like /dev/null).
type discardWriter struct{}

func (d *discardWriter) Write(p []byte) (n int, err error) {
	return len(p), nil
}

func (d *discardWriter) Sync() error {
	return nil
}

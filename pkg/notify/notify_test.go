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

package notify_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap/zaptest"

	"github.com/united-manufacturing-hub/catalog-grid/pkg/notify"
)

var _ = Describe("ForCounts", func() {
	It("picks the level from the failure count", func() {
		Expect(notify.ForCounts("save", 10, 0, nil).Level).To(Equal(notify.LevelSuccess))
		Expect(notify.ForCounts("save", 10, 3, nil).Level).To(Equal(notify.LevelWarning))
		Expect(notify.ForCounts("save", 10, 10, nil).Level).To(Equal(notify.LevelError))
	})

	It("names the failed entities", func() {
		n := notify.ForCounts("save", 10, 2, []string{"3", "7"})
		Expect(n.Message).To(Equal("save: 2 of 10 failed (3, 7)"))
	})
})

var _ = Describe("Multi", func() {
	It("delivers to every notifier", func() {
		a, b := &notify.Recorder{}, &notify.Recorder{}
		m := notify.Multi{a, b, notify.NewLogNotifier(zaptest.NewLogger(GinkgoT()).Sugar())}

		m.Notify(notify.Notification{Level: notify.LevelSuccess, Message: "ok"})

		Expect(a.All()).To(HaveLen(1))
		last, ok := b.Last()
		Expect(ok).To(BeTrue())
		Expect(last.Message).To(Equal("ok"))
	})
})

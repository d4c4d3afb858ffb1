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

package env_test

import (
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/catalog-grid/pkg/env"
)

const key = "CATALOG_GRID_ENV_TEST"

func setenv(value string) {
	Expect(os.Setenv(key, value)).To(Succeed())
	DeferCleanup(os.Unsetenv, key)
}

var _ = Describe("env", func() {
	It("returns the default for an unset optional variable", func() {
		Expect(env.GetAsDuration(key, false, time.Second)).To(Equal(time.Second))
		Expect(env.GetAsString(key, false, "fallback")).To(Equal("fallback"))
	})

	It("fails for an unset required variable", func() {
		_, err := env.GetAsInt(key, true, 3)
		Expect(err).To(MatchError(ContainSubstring("is not set")))
	})

	DescribeTable("parses booleans",
		func(raw string, want bool) {
			setenv(raw)
			Expect(env.GetAsBool(key, true, !want)).To(Equal(want))
		},
		Entry("true", "true", true),
		Entry("upper case yes", "YES", true),
		Entry("on", "on", true),
		Entry("zero", "0", false),
		Entry("n", "n", false),
	)

	It("falls back to the default for an unparsable optional value", func() {
		setenv("soon")
		Expect(env.GetAsDuration(key, false, 2*time.Second)).To(Equal(2 * time.Second))
		Expect(env.GetAsBool(key, false, true)).To(BeTrue())
	})

	It("reports an unparsable required value", func() {
		setenv("twelve")
		_, err := env.GetAsInt(key, true, 0)
		Expect(err).To(MatchError(ContainSubstring("must be an integer")))
	})

	It("parses durations", func() {
		setenv("750ms")
		Expect(env.GetAsDuration(key, true, 0)).To(Equal(750 * time.Millisecond))
	})
})

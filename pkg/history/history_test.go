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

package history_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/catalog-grid/pkg/catalog"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/catalogapi"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/grid/diff"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/history"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/persistence"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/persistence/memory"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/standarderrors"
)

type failingSink struct{ calls int }

func (f *failingSink) Append(context.Context, *diff.Record) error {
	f.calls++

	return errors.New("audit service down")
}

// apiClient implements only AppendHistory.
type apiClient struct {
	catalogapi.Client
	records []*diff.Record
}

func (c *apiClient) AppendHistory(_ context.Context, r *diff.Record) error {
	c.records = append(c.records, r)

	return nil
}

func record(action diff.Action, id catalog.RowID, field string, before, after any) *diff.Record {
	rec, ok := diff.NewRecord("products", action, diff.EntityDiff{
		EntityType: catalog.EntityProduct,
		ID:         id,
		Changes:    []diff.FieldChange{{Field: field, Old: before, New: after}},
	})
	Expect(ok).To(BeTrue())

	return rec
}

var _ = Describe("History", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("Recorder", func() {
		It("swallows sink failures as AuditWriteError", func() {
			sink := &failingSink{}
			rec := history.NewRecorder(sink, zap.NewNop().Sugar())

			err := rec.Emit(ctx, record(diff.ActionPut, 5, "regular_price", "10", "20"))

			var auditErr *standarderrors.AuditWriteError
			Expect(errors.As(err, &auditErr)).To(BeTrue())
			Expect(auditErr.Action).To(Equal("put"))
			Expect(auditErr.Location).To(Equal("products"))
			Expect(sink.calls).To(Equal(1))
		})

		It("ignores nil records and nil sinks", func() {
			Expect(history.NewRecorder(&failingSink{}, nil).Emit(ctx, nil)).To(Succeed())
			Expect(history.NewRecorder(nil, nil).Emit(ctx, record(diff.ActionAdd, 1, "name", nil, "x"))).To(Succeed())
		})
	})

	Describe("StoreSink", func() {
		It("lists records in append order", func() {
			sink, err := history.NewStoreSink(ctx, memory.NewInMemoryStore())
			Expect(err).NotTo(HaveOccurred())

			first := record(diff.ActionAdd, 1, "name", nil, "Hoodie")
			second := record(diff.ActionPut, 1, "name", "Hoodie", "Zip Hoodie")
			Expect(sink.Append(ctx, first)).To(Succeed())
			Expect(sink.Append(ctx, second)).To(Succeed())

			records, err := sink.List(ctx, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(2))
			Expect(records[0].ID).To(Equal(first.ID))
			Expect(records[1].Action).To(Equal(diff.ActionPut))
			Expect(records[1].Items[0].Changes[0].New).To(Equal("Zip Hoodie"))
		})

		It("filters by action", func() {
			sink, err := history.NewStoreSink(ctx, memory.NewInMemoryStore())
			Expect(err).NotTo(HaveOccurred())

			Expect(sink.Append(ctx, record(diff.ActionAdd, 1, "name", nil, "A"))).To(Succeed())
			Expect(sink.Append(ctx, record(diff.ActionDuplicate, 2, "name", nil, "A (copy)"))).To(Succeed())

			records, err := sink.List(ctx, persistence.NewQuery().Filter("action", persistence.Eq, "duplicate"))
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].Items[0].ID).To(Equal(catalog.RowID(2)))
		})

		It("rejects duplicate record ids", func() {
			sink, err := history.NewStoreSink(ctx, memory.NewInMemoryStore())
			Expect(err).NotTo(HaveOccurred())

			rec := record(diff.ActionAdd, 1, "name", nil, "A")
			Expect(sink.Append(ctx, rec)).To(Succeed())
			Expect(errors.Is(sink.Append(ctx, rec), persistence.ErrConflict)).To(BeTrue())
		})
	})

	It("forwards to the remote history endpoint", func() {
		client := &apiClient{}
		rec := record(diff.ActionPut, 3, "sku", "A", "B")

		Expect(history.NewAPISink(client).Append(ctx, rec)).To(Succeed())
		Expect(client.records).To(ConsistOf(rec))
	})

	It("fans out to every sink and joins errors", func() {
		client := &apiClient{}
		failing := &failingSink{}

		err := history.MultiSink{failing, history.NewAPISink(client)}.Append(ctx, record(diff.ActionPut, 3, "sku", "A", "B"))
		Expect(err).To(HaveOccurred())
		Expect(client.records).To(HaveLen(1))
	})
})

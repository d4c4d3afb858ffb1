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

package mockserver_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap/zaptest"

	"github.com/united-manufacturing-hub/catalog-grid/pkg/catalog"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/catalogapi"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/catalogapi/mockserver"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/grid"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/grid/batch"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/grid/diff"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/history"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/notify"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/persistence/memory"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/safejson"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/standarderrors"
)

const token = "secret"

func ptr(id catalog.RowID) *catalog.RowID { return &id }

var _ = Describe("Server", func() {
	var (
		ctx    context.Context
		server *mockserver.Server
		ts     *httptest.Server
		client *catalogapi.HTTPClient
	)

	seed := func() []*catalog.Row {
		rows := []*catalog.Row{
			catalog.NewProduct(1, catalog.Fields{catalog.FieldName: "Hoodie", catalog.FieldRegularPrice: "40", catalog.FieldMenuOrder: 0}),
			catalog.NewProduct(2, catalog.Fields{catalog.FieldName: "Cap", catalog.FieldRegularPrice: "15", catalog.FieldMenuOrder: 1}),
			catalog.NewProduct(3, catalog.Fields{catalog.FieldName: "Scarf", catalog.FieldRegularPrice: "20", catalog.FieldMenuOrder: 2}),
			catalog.NewProduct(4, catalog.Fields{catalog.FieldName: "Socks", catalog.FieldRegularPrice: "5", catalog.FieldMenuOrder: 3}),
			catalog.NewVariation(11, 1, catalog.Fields{catalog.FieldSKU: "H-S", catalog.FieldRegularPrice: "40"}),
			catalog.NewVariation(12, 1, catalog.Fields{catalog.FieldSKU: "H-M", catalog.FieldRegularPrice: "40"}),
		}
		Expect(server.Seed(ctx, rows)).To(Succeed())

		return rows
	}

	rowByID := func(id catalog.RowID) *catalog.Row {
		rows, err := server.Rows(ctx)
		Expect(err).NotTo(HaveOccurred())

		for _, row := range rows {
			if row.ID == id {
				return row
			}
		}

		return nil
	}

	topOrder := func() []catalog.RowID {
		rows, err := server.Rows(ctx)
		Expect(err).NotTo(HaveOccurred())

		var ids []catalog.RowID
		for _, row := range rows {
			if !row.IsVariation() {
				ids = append(ids, row.ID)
			}
		}

		return ids
	}

	BeforeEach(func() {
		ctx = context.Background()
		log := zaptest.NewLogger(GinkgoT()).Sugar()

		var err error
		server, err = mockserver.New(ctx, memory.NewInMemoryStore(), token, log)
		Expect(err).NotTo(HaveOccurred())

		ts = httptest.NewServer(server.Router())
		DeferCleanup(ts.Close)

		client = catalogapi.NewHTTPClient(ts.URL, token, 5*time.Second, log)
		seed()
	})

	Describe("batch", func() {
		It("merges updated fields and drops nil ones", func() {
			resp, err := client.BatchProducts(ctx, catalogapi.BatchRequest{
				Kind: catalogapi.KindUpdate,
				Items: []catalogapi.BatchItem{
					{ID: 1, Fields: catalog.Fields{catalog.FieldRegularPrice: "45", catalog.FieldSalePrice: nil}},
				},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Errors).To(BeZero())
			Expect(resp.Items).To(ConsistOf(catalogapi.ItemResult{Index: 0, ID: 1, OK: true}))

			row := rowByID(1)
			Expect(row.Fields[catalog.FieldRegularPrice]).To(Equal("45"))
			Expect(row.Fields[catalog.FieldName]).To(Equal("Hoodie"))
			Expect(row.Fields).NotTo(HaveKey(catalog.FieldSalePrice))
		})

		It("reports refused and unknown items per index", func() {
			server.FailIDs(2)

			resp, err := client.BatchProducts(ctx, catalogapi.BatchRequest{
				Kind: catalogapi.KindUpdate,
				Items: []catalogapi.BatchItem{
					{ID: 1, Fields: catalog.Fields{catalog.FieldName: "a"}},
					{ID: 2, Fields: catalog.Fields{catalog.FieldName: "b"}},
					{ID: 99, Fields: catalog.Fields{catalog.FieldName: "c"}},
				},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Total).To(Equal(3))
			Expect(resp.Errors).To(Equal(2))

			failed := resp.Failed()
			Expect(failed).To(HaveLen(2))
			Expect(failed[0].Index).To(Equal(1))
			Expect(failed[1].Index).To(Equal(2))
			Expect(rowByID(2).Fields[catalog.FieldName]).To(Equal("Cap"))
		})

		It("assigns fresh ids on create", func() {
			resp, err := client.BatchProducts(ctx, catalogapi.BatchRequest{
				Kind:  catalogapi.KindCreate,
				Items: []catalogapi.BatchItem{{Fields: catalog.Fields{catalog.FieldName: "Gloves"}}},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Items[0].ID).To(Equal(catalog.RowID(13)))
			Expect(rowByID(13).Fields[catalog.FieldName]).To(Equal("Gloves"))
		})

		It("keeps variations under their parent", func() {
			resp, err := client.BatchVariations(ctx, 1, catalogapi.BatchRequest{
				Kind: catalogapi.KindUpdate,
				Items: []catalogapi.BatchItem{
					{ID: 11, Fields: catalog.Fields{catalog.FieldSKU: "H-XS"}},
					{ID: 2, Fields: catalog.Fields{catalog.FieldSKU: "wrong"}},
				},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Errors).To(Equal(1))
			Expect(rowByID(11).Fields[catalog.FieldSKU]).To(Equal("H-XS"))
		})

		It("answers 404 for an unknown parent", func() {
			_, err := client.BatchVariations(ctx, 77, catalogapi.BatchRequest{Kind: catalogapi.KindUpdate})

			var netErr *standarderrors.NetworkError
			Expect(errors.As(err, &netErr)).To(BeTrue())
			Expect(netErr.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("deletes a product with its variations", func() {
			resp, err := client.BatchProducts(ctx, catalogapi.BatchRequest{
				Kind:  catalogapi.KindDelete,
				Items: []catalogapi.BatchItem{{ID: 1}},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Errors).To(BeZero())
			Expect(rowByID(1)).To(BeNil())
			Expect(rowByID(11)).To(BeNil())
		})
	})

	Describe("reorder", func() {
		It("places the dragged product between its neighbors", func() {
			resp, err := client.Reorder(ctx, catalogapi.ReorderRequest{DraggedID: 3, PrevID: ptr(1), NextID: ptr(2)})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Success).To(BeTrue())
			Expect(resp.UpdatedCount).To(Equal(2))
			Expect(topOrder()).To(Equal([]catalog.RowID{1, 3, 2, 4}))
		})

		It("moves to the head when there is no previous neighbor", func() {
			resp, err := client.Reorder(ctx, catalogapi.ReorderRequest{DraggedID: 4, NextID: ptr(1)})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Success).To(BeTrue())
			Expect(topOrder()).To(Equal([]catalog.RowID{4, 1, 2, 3}))
		})

		It("refuses while locked or for unknown rows", func() {
			server.RejectReorder(true)

			resp, err := client.Reorder(ctx, catalogapi.ReorderRequest{DraggedID: 3, PrevID: ptr(1)})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Success).To(BeFalse())
			Expect(resp.Message).To(Equal("order locked"))

			server.RejectReorder(false)

			resp, err = client.Reorder(ctx, catalogapi.ReorderRequest{DraggedID: 3, PrevID: ptr(42)})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Success).To(BeFalse())
			Expect(topOrder()).To(Equal([]catalog.RowID{1, 2, 3, 4}))
		})
	})

	It("stores and lists history records", func() {
		rec, ok := diff.NewRecord("products", diff.ActionPut, diff.EntityDiff{
			EntityType: catalog.EntityProduct,
			ID:         1,
			Changes:    []diff.FieldChange{{Field: catalog.FieldName, Old: "Hoodie", New: "Sweater"}},
		})
		Expect(ok).To(BeTrue())
		Expect(client.AppendHistory(ctx, rec)).To(Succeed())

		recorder := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/history?location=products", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		server.Router().ServeHTTP(recorder, req)

		Expect(recorder.Code).To(Equal(http.StatusOK))

		var records []*diff.Record
		Expect(safejson.Unmarshal(recorder.Body.Bytes(), &records)).To(Succeed())
		Expect(records).To(HaveLen(1))
		Expect(records[0].ID).To(Equal(rec.ID))
		Expect(records[0].Items[0].Changes[0].New).To(Equal("Sweater"))
	})

	It("rejects requests without the bearer token", func() {
		anonymous := catalogapi.NewHTTPClient(ts.URL, "", time.Second, nil)

		_, err := anonymous.BatchProducts(ctx, catalogapi.BatchRequest{Kind: catalogapi.KindUpdate})

		var netErr *standarderrors.NetworkError
		Expect(errors.As(err, &netErr)).To(BeTrue())
		Expect(netErr.StatusCode).To(Equal(http.StatusUnauthorized))
	})

	Describe("with a grid controller", func() {
		var (
			ctrl  *grid.Controller
			notes *notify.Recorder
		)

		BeforeEach(func() {
			notes = &notify.Recorder{}

			rows, err := server.Rows(ctx)
			Expect(err).NotTo(HaveOccurred())

			ctrl, err = grid.New(grid.Options{
				Client:   client,
				History:  history.NewAPISink(client),
				Notifier: notes,
				Batch:    batch.Config{ChunkSize: 2},
				Logger:   zaptest.NewLogger(GinkgoT()).Sugar(),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(ctrl.Load(rows)).To(Succeed())
		})

		It("commits edit-all and rolls back what the store refused", func() {
			server.FailIDs(2)

			Expect(ctrl.EnterEditAll()).To(Succeed())
			for _, id := range []catalog.RowID{1, 2, 3, 4} {
				_, err := ctrl.SetCell(id, catalog.FieldRegularPrice, "9.90")
				Expect(err).NotTo(HaveOccurred())
			}
			_, err := ctrl.ApplyFieldEdit(12, catalog.FieldSKU, "H-L")
			Expect(err).NotTo(HaveOccurred())

			var partial *standarderrors.PartialBatchError
			Expect(errors.As(ctrl.CommitEditAll(ctx), &partial)).To(BeTrue())
			Expect(partial.FailedIDs()).To(Equal([]int64{2}))

			Expect(rowByID(1).Fields[catalog.FieldRegularPrice]).To(Equal("9.9"))
			Expect(rowByID(2).Fields[catalog.FieldRegularPrice]).To(Equal("15"))
			Expect(rowByID(12).Fields[catalog.FieldSKU]).To(Equal("H-L"))

			local, _ := ctrl.Row(2)
			Expect(local.Fields[catalog.FieldRegularPrice]).To(Equal("15"))

			last, _ := notes.Last()
			Expect(last.Level).To(Equal(notify.LevelWarning))
		})

		It("keeps the server and grid order in step", func() {
			Expect(ctrl.Reorder(ctx, 4, 1)).To(Succeed())
			Expect(topOrder()).To(Equal([]catalog.RowID{4, 1, 2, 3}))
			Expect(ctrl.VisibleOrder()).To(Equal([]catalog.RowID{4, 1, 2, 3}))

			server.RejectReorder(true)
			Expect(ctrl.Reorder(ctx, 3, 4)).NotTo(Succeed())
			Expect(ctrl.VisibleOrder()).To(Equal([]catalog.RowID{4, 1, 2, 3}))
		})
	})
})

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

package reorder_test

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap/zaptest"

	"github.com/united-manufacturing-hub/catalog-grid/pkg/catalog"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/catalogapi"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/grid/reorder"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/standarderrors"
)

const (
	A catalog.RowID = 1
	B catalog.RowID = 2
	C catalog.RowID = 3
	D catalog.RowID = 4
	V catalog.RowID = 10 // variation of A
)

func ptr(id catalog.RowID) *catalog.RowID { return &id }

type memList struct {
	rows  map[catalog.RowID]*catalog.Row
	order []catalog.RowID
	mu    sync.Mutex
}

func newMemList(ids ...catalog.RowID) *memList {
	l := &memList{rows: map[catalog.RowID]*catalog.Row{}}
	for i, id := range ids {
		l.rows[id] = catalog.NewProduct(id, catalog.Fields{catalog.FieldMenuOrder: 100 + i})
		l.order = append(l.order, id)
	}

	l.rows[V] = catalog.NewVariation(V, A, catalog.Fields{})

	return l
}

func (l *memList) Order() []catalog.RowID {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]catalog.RowID(nil), l.order...)
}

func (l *memList) SetOrder(order []catalog.RowID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(order) != len(l.order) {
		return standarderrors.ErrOrderChanged
	}

	l.order = append([]catalog.RowID(nil), order...)

	return nil
}

func (l *memList) Checkpoint() []catalog.RowID {
	return l.Order()
}

func (l *memList) Restore(checkpoint []catalog.RowID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.order = append([]catalog.RowID(nil), checkpoint...)
}

func (l *memList) Lookup(id catalog.RowID) (*catalog.Row, bool) {
	r, ok := l.rows[id]

	return r, ok
}

func (l *memList) Renumber(order []catalog.RowID) {
	for i, id := range order {
		l.rows[id].Fields[catalog.FieldMenuOrder] = i
	}
}

// shrinkingList loses a visible row between resolving and applying a drag.
type shrinkingList struct {
	*memList
}

func (l *shrinkingList) SetOrder(order []catalog.RowID) error {
	return l.memList.SetOrder(order[1:])
}

var _ = Describe("Resolve", func() {
	It("resolves dragging C between A and B", func() {
		intent, moved, changed, err := reorder.Resolve([]catalog.RowID{A, B, C, D}, C, B)
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(BeTrue())
		Expect(moved).To(Equal([]catalog.RowID{A, C, B, D}))
		Expect(intent.Dragged).To(Equal(C))
		Expect(intent.Prev).To(Equal(ptr(A)))
		Expect(intent.Next).To(Equal(ptr(B)))
	})

	It("uses nil neighbors at the ends", func() {
		intent, moved, _, err := reorder.Resolve([]catalog.RowID{A, B, C, D}, C, A)
		Expect(err).NotTo(HaveOccurred())
		Expect(moved).To(Equal([]catalog.RowID{C, A, B, D}))
		Expect(intent.Prev).To(BeNil())
		Expect(intent.Next).To(Equal(ptr(A)))

		intent, moved, _, err = reorder.Resolve([]catalog.RowID{A, B, C, D}, A, D)
		Expect(err).NotTo(HaveOccurred())
		Expect(moved).To(Equal([]catalog.RowID{B, C, D, A}))
		Expect(intent.Prev).To(Equal(ptr(D)))
		Expect(intent.Next).To(BeNil())
	})

	It("treats a drop onto the same row as a no-op", func() {
		order := []catalog.RowID{A, B}
		_, moved, changed, err := reorder.Resolve(order, B, B)
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(BeFalse())
		Expect(moved).To(Equal(order))
	})

	It("depends only on the ids of adjacent visible rows", func() {
		// The same drag in a filtered view with different surrounding ids.
		filtered := []catalog.RowID{100, A, 200, B, C}
		intent, _, _, err := reorder.Resolve(filtered, C, B)
		Expect(err).NotTo(HaveOccurred())
		Expect(intent.Prev).To(Equal(ptr(200)))
		Expect(intent.Next).To(Equal(ptr(B)))
	})

	It("rejects ids outside the visible order", func() {
		_, _, _, err := reorder.Resolve([]catalog.RowID{A, B}, C, A)
		Expect(errors.Is(err, standarderrors.ErrRowNotFound)).To(BeTrue())
	})

	It("does not modify the input order", func() {
		order := []catalog.RowID{A, B, C, D}
		_ = reorder.Move(order, 0, 3)
		Expect(order).To(Equal([]catalog.RowID{A, B, C, D}))
	})
})

var _ = Describe("Coordinator", func() {
	var (
		list  *memList
		calls []catalogapi.ReorderRequest
		reply func() (*catalogapi.ReorderResponse, error)
		coord *reorder.Coordinator
		seen  []catalog.RowID
	)

	BeforeEach(func() {
		list = newMemList(A, B, C, D)
		calls = nil
		seen = nil
		reply = func() (*catalogapi.ReorderResponse, error) {
			return &catalogapi.ReorderResponse{Success: true, UpdatedCount: 4}, nil
		}
		coord = reorder.NewCoordinator(func(_ context.Context, req catalogapi.ReorderRequest) (*catalogapi.ReorderResponse, error) {
			calls = append(calls, req)
			seen = list.Order()

			return reply()
		}, zaptest.NewLogger(GinkgoT()).Sugar())
	})

	It("applies the move before the remote call and renumbers on success", func() {
		out, err := coord.Reorder(context.Background(), list, C, B)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Applied).To(BeTrue())
		Expect(out.UpdatedCount).To(Equal(4))

		Expect(seen).To(Equal([]catalog.RowID{A, C, B, D}))
		Expect(list.Order()).To(Equal([]catalog.RowID{A, C, B, D}))
		Expect(calls).To(HaveLen(1))
		Expect(calls[0].DraggedID).To(Equal(C))
		Expect(*calls[0].PrevID).To(Equal(A))
		Expect(*calls[0].NextID).To(Equal(B))

		Expect(list.rows[A].Fields[catalog.FieldMenuOrder]).To(Equal(0))
		Expect(list.rows[C].Fields[catalog.FieldMenuOrder]).To(Equal(1))
		Expect(list.rows[D].Fields[catalog.FieldMenuOrder]).To(Equal(3))
	})

	It("restores the whole list when the store reports failure", func() {
		reply = func() (*catalogapi.ReorderResponse, error) {
			return &catalogapi.ReorderResponse{Success: false, Message: "locked"}, nil
		}

		_, err := coord.Reorder(context.Background(), list, C, B)

		var rejected *standarderrors.ReorderRejectedError
		Expect(errors.As(err, &rejected)).To(BeTrue())
		Expect(rejected.DraggedID).To(Equal(int64(C)))
		Expect(err.Error()).To(ContainSubstring("locked"))
		Expect(list.Order()).To(Equal([]catalog.RowID{A, B, C, D}))
		Expect(list.rows[A].Fields[catalog.FieldMenuOrder]).To(Equal(100))
	})

	It("restores the whole list on a transport failure", func() {
		reply = func() (*catalogapi.ReorderResponse, error) {
			return nil, &standarderrors.NetworkError{Op: "reorder", Err: errors.New("timeout")}
		}

		_, err := coord.Reorder(context.Background(), list, A, D)
		Expect(err).To(HaveOccurred())

		var netErr *standarderrors.NetworkError
		Expect(errors.As(err, &netErr)).To(BeTrue())
		Expect(list.Order()).To(Equal([]catalog.RowID{A, B, C, D}))
		Expect(calls).To(HaveLen(1))
	})

	It("restores the checkpoint taken before the optimistic apply", func() {
		reply = func() (*catalogapi.ReorderResponse, error) {
			Expect(list.Order()).To(Equal([]catalog.RowID{B, C, D, A}))

			return &catalogapi.ReorderResponse{Success: false}, nil
		}

		out, err := coord.Reorder(context.Background(), list, A, D)
		Expect(err).To(MatchError(ContainSubstring("store reported failure")))
		Expect(out.Applied).To(BeFalse())
		Expect(out.Order).To(Equal([]catalog.RowID{A, B, C, D}))
		Expect(list.Order()).To(Equal([]catalog.RowID{A, B, C, D}))
	})

	It("does not send a reorder the list refuses to apply", func() {
		short := &shrinkingList{memList: newMemList(A, B, C, D)}

		_, err := coord.Reorder(context.Background(), short, C, B)
		Expect(errors.Is(err, standarderrors.ErrOrderChanged)).To(BeTrue())
		Expect(calls).To(BeEmpty())
	})

	It("never calls the store for a drop onto the same row", func() {
		out, err := coord.Reorder(context.Background(), list, B, B)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Applied).To(BeFalse())
		Expect(calls).To(BeEmpty())
	})

	It("rejects dragging a variation", func() {
		_, err := coord.Reorder(context.Background(), list, V, B)
		Expect(errors.Is(err, standarderrors.ErrVariationReorder)).To(BeTrue())
		Expect(calls).To(BeEmpty())
		Expect(list.Order()).To(Equal([]catalog.RowID{A, B, C, D}))
	})

	It("rejects unknown rows", func() {
		_, err := coord.Reorder(context.Background(), list, 99, B)
		Expect(errors.Is(err, standarderrors.ErrRowNotFound)).To(BeTrue())
	})
})

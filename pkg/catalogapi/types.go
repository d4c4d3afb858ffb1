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

// Package catalogapi is the boundary to the remote catalog store: batch
// create/update/delete, neighbor-based reorder and history append.
package catalogapi

import (
	"context"

	"github.com/united-manufacturing-hub/catalog-grid/pkg/catalog"
	"github.com/united-manufacturing-hub/catalog-grid/pkg/grid/diff"
)

// Kind is the operation a batch applies to every item.
type Kind string

const (
	KindUpdate Kind = "update"
	KindCreate Kind = "create"
	KindDelete Kind = "delete"
)

// Endpoint is an API path relative to the configured base URL.
type Endpoint string

var (
	ProductsBatchEndpoint   Endpoint = "/products/batch"
	ProductsReorderEndpoint Endpoint = "/products/reorder"
	HistoryEndpoint         Endpoint = "/history"
)

// VariationsBatchEndpoint returns the batch endpoint for the variations of parent.
func VariationsBatchEndpoint(parent catalog.RowID) Endpoint {
	return Endpoint("/products/" + parent.String() + "/variations/batch")
}

// BatchItem is one entity of a batch. Create items carry no id; delete items carry no fields.
type BatchItem struct {
	Fields catalog.Fields `json:"fields,omitempty"`
	ID     catalog.RowID  `json:"id,omitempty"`
}

// BatchRequest is one chunk on the wire.
type BatchRequest struct {
	CorrelationID string      `json:"correlation_id"`
	Kind          Kind        `json:"kind"`
	Items         []BatchItem `json:"items"`
}

// ItemResult reports the outcome of the item at Index of the request. For
// creates, ID is the id the store assigned.
type ItemResult struct {
	Error string        `json:"error,omitempty"`
	Index int           `json:"index"`
	ID    catalog.RowID `json:"id"`
	OK    bool          `json:"ok"`
}

// BatchResponse is the structured answer to a batch. A response with failed
// items is a partial failure, not a transport failure.
type BatchResponse struct {
	Items  []ItemResult `json:"items"`
	Total  int          `json:"total"`
	Errors int          `json:"errors"`
}

// Failed returns the results of the items the store refused.
func (r *BatchResponse) Failed() []ItemResult {
	var out []ItemResult

	for _, item := range r.Items {
		if !item.OK {
			out = append(out, item)
		}
	}

	return out
}

// ReorderRequest places DraggedID between PrevID and NextID. A nil neighbor
// means the row moved to the head or tail of the visible list.
type ReorderRequest struct {
	PrevID    *catalog.RowID `json:"prev_id"`
	NextID    *catalog.RowID `json:"next_id"`
	DraggedID catalog.RowID  `json:"dragged_id"`
}

// ReorderResponse reports how many rows had their order field recomputed.
type ReorderResponse struct {
	Message      string `json:"message,omitempty"`
	UpdatedCount int    `json:"updated_count"`
	Success      bool   `json:"success"`
}

// Client is the remote catalog as seen by the grid core.
//
// Batch and reorder calls return a *standarderrors.NetworkError when no
// structured response was received.
type Client interface {
	BatchProducts(ctx context.Context, req BatchRequest) (*BatchResponse, error)
	BatchVariations(ctx context.Context, parent catalog.RowID, req BatchRequest) (*BatchResponse, error)
	Reorder(ctx context.Context, req ReorderRequest) (*ReorderResponse, error)
	AppendHistory(ctx context.Context, record *diff.Record) error
}

package standarderrors

import (
	"fmt"
	"sort"
	"strings"
)

// FieldProblem is one failed local validation rule.
type FieldProblem struct {
	Field   string
	Message string
	RowID   int64
}

// ValidationError blocks a commit before any network call. The row stays in editing.
type ValidationError struct {
	Problems []FieldProblem
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, fmt.Sprintf("row %d: %s %s", p.RowID, p.Field, p.Message))
	}

	return "validation failed: " + strings.Join(parts, "; ")
}

// Fields returns the distinct field names that failed, sorted.
func (e *ValidationError) Fields() []string {
	seen := make(map[string]struct{}, len(e.Problems))
	out := make([]string, 0, len(e.Problems))

	for _, p := range e.Problems {
		if _, ok := seen[p.Field]; ok {
			continue
		}

		seen[p.Field] = struct{}{}
		out = append(out, p.Field)
	}

	sort.Strings(out)

	return out
}

// NetworkError is a transport-level failure of a remote call: the request
// never produced a structured response. For batch calls every item of the
// chunk counts as failed.
type NetworkError struct {
	Err        error
	Op         string
	StatusCode int
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("network error during %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}

	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ItemFailure names one item the remote store refused, with its reason.
// Index is the position of the item in the unchunked list; create items
// have no ID yet and are identified by Index alone.
type ItemFailure struct {
	Reason string
	ID     int64
	Index  int
}

// PartialBatchError summarizes a batch where some items failed. Only the
// listed items were rolled back; every other item is committed.
type PartialBatchError struct {
	Failed []ItemFailure
	Total  int
}

func (e *PartialBatchError) Error() string {
	return fmt.Sprintf("%d of %d items failed", len(e.Failed), e.Total)
}

// FailedIDs returns the ids of the failed items in report order.
func (e *PartialBatchError) FailedIDs() []int64 {
	ids := make([]int64, 0, len(e.Failed))
	for _, f := range e.Failed {
		ids = append(ids, f.ID)
	}

	return ids
}

// ReorderRejectedError means the remote store did not accept a reorder. The
// whole list has been restored to its pre-drag order.
type ReorderRejectedError struct {
	Err       error
	DraggedID int64
}

func (e *ReorderRejectedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("reorder of row %d rejected: %v", e.DraggedID, e.Err)
	}

	return fmt.Sprintf("reorder of row %d rejected", e.DraggedID)
}

func (e *ReorderRejectedError) Unwrap() error {
	return e.Err
}

// AuditWriteError is a failed history append. It is logged and never affects
// the edit it describes.
type AuditWriteError struct {
	Err      error
	Location string
	Action   string
}

func (e *AuditWriteError) Error() string {
	return fmt.Sprintf("history append (%s/%s) failed: %v", e.Location, e.Action, e.Err)
}

func (e *AuditWriteError) Unwrap() error {
	return e.Err
}

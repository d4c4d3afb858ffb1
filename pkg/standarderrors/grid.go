package standarderrors

import "errors"

var (
	// ErrRowNotFound is returned when an operation names a row id the grid does not hold.
	ErrRowNotFound = errors.New("row not found")

	// ErrAlreadyEditing is returned by BeginEdit for a row that already has an open edit session.
	ErrAlreadyEditing = errors.New("row is already being edited")

	// ErrNotEditing is returned when a field edit, commit or cancel targets a row
	// that is not in an edit session.
	ErrNotEditing = errors.New("row is not being edited")

	// ErrEditAllActive is returned for per-row edit toggling while the grid is
	// in edit-all mode. Edit-all supersedes per-row sessions.
	ErrEditAllActive = errors.New("edit-all mode is active")

	// ErrRowBusy is returned while a commit for the row is in flight. In-flight
	// commits cannot be cancelled.
	ErrRowBusy = errors.New("row has a save in flight")

	// ErrVariationReorder is returned when a drag reorder targets a variation row.
	// Only top-level rows can be reordered.
	ErrVariationReorder = errors.New("variation rows cannot be reordered")

	// ErrOrderChanged is returned when the visible rows changed between
	// resolving a drag and applying it.
	ErrOrderChanged = errors.New("visible order changed during reorder")

	// ErrUnknownColumn is returned for layout or codec operations on an unregistered column.
	ErrUnknownColumn = errors.New("unknown column")
)

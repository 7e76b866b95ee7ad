package reconcile

import (
	"errors"
	"fmt"
)

var (
	// ErrNoStatementSelected is returned by operations that need a selection.
	ErrNoStatementSelected = errors.New("no statement selected")

	// ErrStaleSelection marks a response that belongs to a statement which is
	// no longer selected. The response was discarded.
	ErrStaleSelection = errors.New("statement selection changed while the request was in flight")

	// ErrUncategorizedRemaining blocks completion while staged rows lack a category.
	ErrUncategorizedRemaining = errors.New("categorize every staged transaction before completing the reconciliation")

	// ErrEmptyStaging is returned when the staging table has no date span.
	ErrEmptyStaging = errors.New("staging table has no transactions")
)

// UploadPhase names one of the three upload phases.
type UploadPhase string

const (
	UploadSignURL  UploadPhase = "sign_url"
	UploadTransfer UploadPhase = "transfer"
	UploadRegister UploadPhase = "register"
)

// UploadError reports which upload phase failed. When the register phase
// fails the object stays in the bucket and GCSURI points at it.
type UploadError struct {
	Phase  UploadPhase
	GCSURI string
	Err    error
}

func (e *UploadError) Error() string {
	if e.GCSURI != "" {
		return fmt.Sprintf("upload %s failed (object left at %s): %v", e.Phase, e.GCSURI, e.Err)
	}
	return fmt.Sprintf("upload %s failed: %v", e.Phase, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// Orphaned reports whether the uploaded object was left without a table.
func (e *UploadError) Orphaned() bool { return e.GCSURI != "" }

// CompletionError reports the completion step that failed.
// LedgerWindowCleared is set when the ledger rows of the staged date range
// were already deleted and nothing was inserted in their place.
type CompletionError struct {
	Step                string
	Err                 error
	LedgerWindowCleared bool
}

func (e *CompletionError) Error() string {
	if e.LedgerWindowCleared {
		return fmt.Sprintf("completion step %s failed after the ledger window was cleared: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("completion step %s failed: %v", e.Step, e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

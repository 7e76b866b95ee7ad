// Package reconcile coordinates reconciling an uploaded bank statement
// against the ledger: listing and uploading statements, paging through the
// matched and unmatched rows, and committing the staged rows.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/dvloznov/finance-ledger/internal/apiclient"
	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/pagination"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// API is the subset of the backend the coordinator needs.
type API interface {
	ListStatements(ctx context.Context) ([]string, error)
	StatementRows(ctx context.Context, table string) ([]domain.StatementRow, error)
	GenerateUploadURL(ctx context.Context, filename string) (string, error)
	PutObject(ctx context.Context, target, contentType string, body io.Reader) error
	CreateStatementTable(ctx context.Context, gcsURI string) (string, error)
	CreateStatementJoined(ctx context.Context, table string) error
	MatchedTxns(ctx context.Context, table string, cursor pagination.Cursor) ([]domain.Transaction, error)
	UnmatchedTxns(ctx context.Context, table string, cursor pagination.Cursor) ([]domain.Transaction, error)
	UncategorizedCount(ctx context.Context, table string) (int, error)
	MinMaxDates(ctx context.Context, table string) (domain.DateRange, error)
	DeleteTxns(ctx context.Context, table string, r domain.DateRange) error
	InsertTxns(ctx context.Context, fromTable, toTable string) error
	SuggestCategories(ctx context.Context, table string) ([]domain.Suggestion, error)
}

var _ API = (*apiclient.Client)(nil)

// Phase is the position of the current selection in the reconciliation flow.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseListed
	PhaseSelected
	PhaseReconciling
	PhaseStaged
	PhaseCompleted
	PhaseAborted
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseListed:
		return "listed"
	case PhaseSelected:
		return "selected"
	case PhaseReconciling:
		return "reconciling"
	case PhaseStaged:
		return "staged"
	case PhaseCompleted:
		return "completed"
	case PhaseAborted:
		return "aborted"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Options configures a Coordinator.
type Options struct {
	PageLimit   int
	LedgerTable string
	Logger      zerolog.Logger
}

// Coordinator drives the reconciliation of one selected statement at a time.
// It is safe for concurrent use; network calls are made without holding
// its lock.
type Coordinator struct {
	api         API
	limit       int
	ledgerTable string
	log         zerolog.Logger

	mu            sync.Mutex
	statements    []Statement
	selected      *Statement
	generation    uint64
	phase         Phase
	showReconcile bool
	matched       *pagination.Stream[domain.Transaction]
	unmatched     *pagination.Stream[domain.Transaction]
}

// NewCoordinator creates a coordinator in the idle phase.
func NewCoordinator(api API, opts Options) *Coordinator {
	if opts.LedgerTable == "" {
		opts.LedgerTable = "txns"
	}
	return &Coordinator{
		api:         api,
		limit:       pagination.First(opts.PageLimit).Limit,
		ledgerTable: opts.LedgerTable,
		log:         opts.Logger,
	}
}

// ListStatements refreshes the statement list. A failure is logged and
// reported as an empty list; the previous list and selection stay in place.
// The first statement is selected when nothing is selected yet.
func (c *Coordinator) ListStatements(ctx context.Context) []Statement {
	objects, err := c.api.ListStatements(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("Failed to list statements")
		return []Statement{}
	}

	statements := make([]Statement, 0, len(objects))
	for _, object := range objects {
		statements = append(statements, NewStatement(object))
	}

	c.mu.Lock()
	c.statements = statements
	if c.phase == PhaseIdle {
		c.phase = PhaseListed
	}
	autoSelect := c.selected == nil && len(statements) > 0
	c.mu.Unlock()

	if autoSelect {
		c.Select(statements[0].Label)
	}
	return append([]Statement(nil), statements...)
}

// Statements returns the last listed statements.
func (c *Coordinator) Statements() []Statement {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Statement(nil), c.statements...)
}

// Select makes label the current statement. Staged data of the previous
// selection is discarded and responses still in flight for it are ignored.
func (c *Coordinator) Select(label string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Statement{Label: label}
	for _, s := range c.statements {
		if s.Label == label {
			st = s
			break
		}
	}
	c.selected = &st
	c.generation++
	c.phase = PhaseSelected
	c.showReconcile = false
	c.matched = pagination.NewStream[domain.Transaction]("matched_txns:"+label, c.limit, func(ctx context.Context, cur pagination.Cursor) ([]domain.Transaction, error) {
		return c.api.MatchedTxns(ctx, label, cur)
	})
	c.unmatched = pagination.NewStream[domain.Transaction]("unmatched_txns:"+label, c.limit, func(ctx context.Context, cur pagination.Cursor) ([]domain.Transaction, error) {
		return c.api.UnmatchedTxns(ctx, label, cur)
	})
	c.log.Debug().Str("statement", label).Uint64("generation", c.generation).Msg("Statement selected")
}

// Selected returns the current statement, if any.
func (c *Coordinator) Selected() (Statement, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == nil {
		return Statement{}, false
	}
	return *c.selected, true
}

// Phase returns the current phase.
func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// ShowReconcile reports whether the staged views should be shown.
func (c *Coordinator) ShowReconcile() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.showReconcile
}

// selection captures the state a request was started under.
type selection struct {
	label      string
	generation uint64
	matched    *pagination.Stream[domain.Transaction]
	unmatched  *pagination.Stream[domain.Transaction]
}

// current returns the active selection. When label is non-empty it must name
// the selected statement.
func (c *Coordinator) current(label string) (selection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == nil {
		return selection{}, ErrNoStatementSelected
	}
	if label != "" && label != c.selected.Label {
		return selection{}, fmt.Errorf("%w: %q is not the selected statement %q", ErrStaleSelection, label, c.selected.Label)
	}
	return selection{
		label:      c.selected.Label,
		generation: c.generation,
		matched:    c.matched,
		unmatched:  c.unmatched,
	}, nil
}

// still reports whether sel is the active selection.
func (c *Coordinator) still(sel selection) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation == sel.generation
}

// setPhase moves to phase only if sel is still active.
func (c *Coordinator) setPhase(sel selection, phase Phase, show *bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != sel.generation {
		return false
	}
	c.phase = phase
	if show != nil {
		c.showReconcile = *show
	}
	return true
}

func (c *Coordinator) discard(sel selection, what string) error {
	c.log.Warn().
		Str("statement", sel.label).
		Str("request", what).
		Msg("Discarding response for a statement that is no longer selected")
	return ErrStaleSelection
}

// StatementRows returns the raw rows of the selected statement.
func (c *Coordinator) StatementRows(ctx context.Context) ([]domain.StatementRow, error) {
	sel, err := c.current("")
	if err != nil {
		return nil, err
	}
	rows, err := c.api.StatementRows(ctx, sel.label)
	if err != nil {
		return nil, fmt.Errorf("StatementRows: %w", err)
	}
	if !c.still(sel) {
		return nil, c.discard(sel, "statements")
	}
	return rows, nil
}

// UploadStatement uploads a statement file and registers it as a table.
// The three phases run in order and each failure stops the flow. The
// statement list is refreshed only after all three succeed.
func (c *Coordinator) UploadStatement(ctx context.Context, file StatementFile) (Statement, error) {
	target, err := c.api.GenerateUploadURL(ctx, file.Name)
	if err != nil {
		return Statement{}, &UploadError{Phase: UploadSignURL, Err: err}
	}

	if err := c.api.PutObject(ctx, target, file.MIMEType, file.Body); err != nil {
		return Statement{}, &UploadError{Phase: UploadTransfer, Err: err}
	}

	gcsURI, err := GCSURIFromSignedURL(target)
	if err != nil {
		c.log.Error().Err(err).Str("url", target).Msg("Uploaded object cannot be registered")
		return Statement{}, &UploadError{Phase: UploadRegister, GCSURI: target, Err: err}
	}
	if _, err := c.api.CreateStatementTable(ctx, gcsURI); err != nil {
		c.log.Error().Err(err).Str("gcs_uri", gcsURI).Msg("Statement table not created; uploaded object left in place")
		return Statement{}, &UploadError{Phase: UploadRegister, GCSURI: gcsURI, Err: err}
	}

	c.log.Info().Str("gcs_uri", gcsURI).Msg("Statement uploaded")
	c.ListStatements(ctx)
	return NewStatement(gcsURI), nil
}

// FetchMatched loads the next page of matched rows for label.
func (c *Coordinator) FetchMatched(ctx context.Context, label string) ([]domain.Transaction, error) {
	sel, err := c.current(label)
	if err != nil {
		return nil, err
	}
	return c.fetch(ctx, sel, sel.matched)
}

// FetchUnmatched loads the next page of unmatched rows for label.
func (c *Coordinator) FetchUnmatched(ctx context.Context, label string) ([]domain.Transaction, error) {
	sel, err := c.current(label)
	if err != nil {
		return nil, err
	}
	return c.fetch(ctx, sel, sel.unmatched)
}

func (c *Coordinator) fetch(ctx context.Context, sel selection, stream *pagination.Stream[domain.Transaction]) ([]domain.Transaction, error) {
	page, err := stream.FetchNextPage(ctx)
	if !c.still(sel) {
		return nil, c.discard(sel, stream.Key())
	}
	if errors.Is(err, pagination.ErrStale) {
		c.log.Debug().Str("stream", stream.Key()).Msg("Page arrived after invalidation")
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return page, nil
}

// LoadStaged fetches the first page of both streams concurrently.
func (c *Coordinator) LoadStaged(ctx context.Context) error {
	sel, err := c.current("")
	if err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := c.FetchMatched(gctx, sel.label)
		return err
	})
	g.Go(func() error {
		_, err := c.FetchUnmatched(gctx, sel.label)
		return err
	})
	return g.Wait()
}

// Matched returns the matched rows loaded so far.
func (c *Coordinator) Matched() []domain.Transaction {
	sel, err := c.current("")
	if err != nil {
		return nil
	}
	return sel.matched.Items()
}

// Unmatched returns the unmatched rows loaded so far.
func (c *Coordinator) Unmatched() []domain.Transaction {
	sel, err := c.current("")
	if err != nil {
		return nil
	}
	return sel.unmatched.Items()
}

// HasNextMatched reports whether more matched rows may exist.
func (c *Coordinator) HasNextMatched() bool {
	sel, err := c.current("")
	return err == nil && sel.matched.HasNextPage()
}

// HasNextUnmatched reports whether more unmatched rows may exist.
func (c *Coordinator) HasNextUnmatched() bool {
	sel, err := c.current("")
	return err == nil && sel.unmatched.HasNextPage()
}

// MatchedStream exposes the matched stream of the current selection.
func (c *Coordinator) MatchedStream() *pagination.Stream[domain.Transaction] {
	sel, err := c.current("")
	if err != nil {
		return nil
	}
	return sel.matched
}

// UnmatchedStream exposes the unmatched stream of the current selection.
func (c *Coordinator) UnmatchedStream() *pagination.Stream[domain.Transaction] {
	sel, err := c.current("")
	if err != nil {
		return nil
	}
	return sel.unmatched
}

// RunReconciliation asks the backend to match label against the ledger,
// rewinds both streams and reveals the staged views.
func (c *Coordinator) RunReconciliation(ctx context.Context, label string) error {
	sel, err := c.current(label)
	if err != nil {
		return err
	}
	c.setPhase(sel, PhaseReconciling, nil)

	if err := c.api.CreateStatementJoined(ctx, sel.label); err != nil {
		c.setPhase(sel, PhaseAborted, nil)
		return fmt.Errorf("RunReconciliation: %w", err)
	}

	sel.matched.Invalidate()
	sel.unmatched.Invalidate()

	show := true
	if !c.setPhase(sel, PhaseStaged, &show) {
		return c.discard(sel, "create_statement_joined")
	}
	c.log.Info().Str("statement", sel.label).Msg("Reconciliation staged")
	return nil
}

// SuggestCategories asks the backend to fill in categories for the staged
// rows of label and rewinds both streams so the next read shows them.
func (c *Coordinator) SuggestCategories(ctx context.Context, label string) (int, error) {
	sel, err := c.current(label)
	if err != nil {
		return 0, err
	}
	applied, err := c.api.SuggestCategories(ctx, sel.label)
	if err != nil {
		return 0, fmt.Errorf("SuggestCategories: %w", err)
	}
	if !c.still(sel) {
		return 0, c.discard(sel, "suggest_categories")
	}
	sel.matched.Invalidate()
	sel.unmatched.Invalidate()
	return len(applied), nil
}

// CompleteReconciliation commits the staged rows of label into the ledger.
// Nothing is deleted or inserted while staged rows remain uncategorized.
// A failure after the ledger window was cleared is reported through
// CompletionError.LedgerWindowCleared.
func (c *Coordinator) CompleteReconciliation(ctx context.Context, label string) error {
	sel, err := c.current(label)
	if err != nil {
		return err
	}

	state := &CompletionState{
		Statement:    sel.label,
		StagingTable: domain.JoinedTable(sel.label),
		LedgerTable:  c.ledgerTable,
	}
	if err := NewCompletionPipeline(c.api, c.log).Execute(ctx, state); err != nil {
		c.setPhase(sel, PhaseAborted, nil)
		var cerr *CompletionError
		if errors.As(err, &cerr) && cerr.LedgerWindowCleared {
			c.log.Error().
				Err(cerr.Err).
				Str("statement", sel.label).
				Str("from", state.Window.From.String()).
				Str("to", state.Window.To.String()).
				Msg("Ledger window cleared but staged rows were not inserted")
		}
		return err
	}

	hide := false
	if !c.setPhase(sel, PhaseCompleted, &hide) {
		return c.discard(sel, "insert_txns")
	}
	c.log.Info().
		Str("statement", sel.label).
		Str("from", state.Window.From.String()).
		Str("to", state.Window.To.String()).
		Msg("Reconciliation completed")
	return nil
}

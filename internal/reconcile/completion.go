package reconcile

import (
	"context"
	"fmt"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/rs/zerolog"
)

// CompletionState is shared by the completion steps. Statement is the
// label the backend resolves to its joined table; StagingTable is that
// table's literal name for the table-to-table copy.
type CompletionState struct {
	Statement    string
	StagingTable string
	LedgerTable  string

	Uncategorized       int
	Window              domain.DateRange
	LedgerWindowCleared bool
}

// Step is one stage of the completion sequence.
type Step interface {
	Name() string
	Execute(ctx context.Context, state *CompletionState) error
}

// Pipeline runs steps strictly in order and stops at the first failure.
// Earlier steps are not compensated.
type Pipeline struct {
	steps []Step
	log   zerolog.Logger
}

// NewPipeline creates a pipeline with the given steps.
func NewPipeline(log zerolog.Logger, steps ...Step) *Pipeline {
	return &Pipeline{steps: steps, log: log}
}

// Execute runs all steps sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *CompletionState) error {
	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return &CompletionError{Step: step.Name(), Err: err, LedgerWindowCleared: state.LedgerWindowCleared}
		}
		p.log.Debug().
			Str("statement", state.Statement).
			Int("step", i+1).
			Str("name", step.Name()).
			Msg("Running completion step")
		if err := step.Execute(ctx, state); err != nil {
			return &CompletionError{Step: step.Name(), Err: err, LedgerWindowCleared: state.LedgerWindowCleared}
		}
	}
	return nil
}

// NewCompletionPipeline builds the standard four step completion sequence.
func NewCompletionPipeline(api API, log zerolog.Logger) *Pipeline {
	return NewPipeline(log,
		&CheckUncategorizedStep{api: api},
		&DateRangeStep{api: api},
		&ClearLedgerWindowStep{api: api},
		&InsertStagedStep{api: api},
	)
}

// CheckUncategorizedStep refuses to continue while staged rows lack a category.
type CheckUncategorizedStep struct{ api API }

func (s *CheckUncategorizedStep) Name() string { return "check_uncategorized" }

func (s *CheckUncategorizedStep) Execute(ctx context.Context, state *CompletionState) error {
	n, err := s.api.UncategorizedCount(ctx, state.Statement)
	if err != nil {
		return err
	}
	state.Uncategorized = n
	if n > 0 {
		return fmt.Errorf("%w (%d remaining)", ErrUncategorizedRemaining, n)
	}
	return nil
}

// DateRangeStep reads the date span of the staging table.
type DateRangeStep struct{ api API }

func (s *DateRangeStep) Name() string { return "date_range" }

func (s *DateRangeStep) Execute(ctx context.Context, state *CompletionState) error {
	window, err := s.api.MinMaxDates(ctx, state.Statement)
	if err != nil {
		return err
	}
	if !window.Valid() {
		return ErrEmptyStaging
	}
	state.Window = window
	return nil
}

// ClearLedgerWindowStep deletes the ledger rows the staged rows replace.
type ClearLedgerWindowStep struct{ api API }

func (s *ClearLedgerWindowStep) Name() string { return "clear_ledger_window" }

func (s *ClearLedgerWindowStep) Execute(ctx context.Context, state *CompletionState) error {
	if err := s.api.DeleteTxns(ctx, state.LedgerTable, state.Window); err != nil {
		return err
	}
	state.LedgerWindowCleared = true
	return nil
}

// InsertStagedStep copies the staged rows into the ledger.
type InsertStagedStep struct{ api API }

func (s *InsertStagedStep) Name() string { return "insert_staged" }

func (s *InsertStagedStep) Execute(ctx context.Context, state *CompletionState) error {
	return s.api.InsertTxns(ctx, state.StagingTable, state.LedgerTable)
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/pagemirror/internal/extract"
	"github.com/nao1215/pagemirror/internal/model"
	"github.com/nao1215/pagemirror/internal/persist"
)

// ErrNoResult is returned by PersistStep when no page has been extracted.
var ErrNoResult = errors.New("no extraction result to persist")

// ExtractStep fetches the page and every same-origin asset it references.
type ExtractStep struct {
	extractor *extract.Extractor
}

// NewExtractStep creates an extraction step.
func NewExtractStep(extractor *extract.Extractor) *ExtractStep {
	return &ExtractStep{extractor: extractor}
}

// Name returns the step name.
func (s *ExtractStep) Name() string {
	return "extract"
}

// Do extracts run.URL with run.Depth as the @import budget.
func (s *ExtractStep) Do(ctx context.Context, run *model.Run) error {
	result, err := s.extractor.Extract(ctx, run.URL, run.Depth)
	if err != nil {
		return err
	}
	run.Result = result
	return nil
}

// PersistStep writes the extracted page and its assets to run.OutputDir.
type PersistStep struct {
	writer *persist.Writer
}

// NewPersistStep creates a persistence step.
func NewPersistStep(writer *persist.Writer) *PersistStep {
	return &PersistStep{writer: writer}
}

// Name returns the step name.
func (s *PersistStep) Name() string {
	return "persist"
}

// Do writes run.Result to disk and records the written files.
func (s *PersistStep) Do(ctx context.Context, run *model.Run) error {
	if run.Result == nil {
		return ErrNoResult
	}

	files, err := s.writer.Write(ctx, run.OutputDir, run.Result)
	run.Files = append(run.Files, files...)
	if err != nil {
		return fmt.Errorf("persist %s: %w", run.OutputDir, err)
	}
	return nil
}

// RunStore saves finished runs. database.HistoryDB implements it.
type RunStore interface {
	SaveRun(ctx context.Context, run *model.Run) error
}

// RecordStep stores the run in the history database.
// It is meant to be added as a deferred step so failed runs are kept too.
type RecordStep struct {
	store  RunStore
	logger *slog.Logger
}

// RecordStepOption configures a RecordStep.
type RecordStepOption func(*RecordStep)

// WithRecordLogger sets a custom logger for the record step.
func WithRecordLogger(logger *slog.Logger) RecordStepOption {
	return func(s *RecordStep) {
		s.logger = logger
	}
}

// NewRecordStep creates a history recording step.
func NewRecordStep(store RunStore, opts ...RecordStepOption) *RecordStep {
	s := &RecordStep{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *RecordStep) Name() string {
	return "record"
}

// Do saves the run.
func (s *RecordStep) Do(ctx context.Context, run *model.Run) error {
	if err := s.store.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	s.logger.Debug("run recorded", "run", run.ID, "files", len(run.Files))
	return nil
}

// DefaultPipeline creates the standard mirror pipeline: extract, then
// persist, then record the run when store is non-nil.
func DefaultPipeline(extractor *extract.Extractor, writer *persist.Writer, store RunStore, opts ...Option) *Pipeline {
	p := New(opts...)

	p.AddSteps(
		NewExtractStep(extractor),
		NewPersistStep(writer),
	)

	if store != nil {
		p.AddDeferredStep(NewRecordStep(store, WithRecordLogger(p.logger)))
	}

	return p
}

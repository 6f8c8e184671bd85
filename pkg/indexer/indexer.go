package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/flowindex/pkg/async"
	"github.com/platinummonkey/flowindex/pkg/indexerr"
	"github.com/platinummonkey/flowindex/pkg/observability"
	"github.com/platinummonkey/flowindex/pkg/scanner"
	"github.com/platinummonkey/flowindex/pkg/storage"
	"github.com/platinummonkey/flowindex/pkg/workflow"
)

var tracer = otel.Tracer("flowindex/indexer")

// ErrIndexing is returned when a run is requested while another is in progress
var ErrIndexing = errors.New("an index run is already in progress")

// maxReportedErrors caps Summary.FileErrors
const maxReportedErrors = 100

// Store is the part of the index the indexer reads and writes
type Store interface {
	storage.RecordReader
	storage.RecordWriter
}

// Config controls a batch run
type Config struct {
	WorkflowsDir string
	Extension    string
	Workers      int
	PruneMissing bool
	// AsyncTimeout bounds background runs; zero means no limit
	AsyncTimeout time.Duration
}

// FileError describes one document that could not be indexed
type FileError struct {
	Filename string `json:"filename"`
	Kind     string `json:"kind"`
	Message  string `json:"message"`
}

// Summary reports the outcome of one run
type Summary struct {
	RunID      string        `json:"run_id"`
	Forced     bool          `json:"forced"`
	Total      int           `json:"total"`
	Processed  int           `json:"processed"`
	Skipped    int           `json:"skipped"`
	Errors     int           `json:"errors"`
	Removed    int           `json:"removed"`
	Records    int           `json:"records"`
	FileErrors []FileError   `json:"file_errors,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
}

func (s *Summary) addError(filename string, err error) {
	s.Errors++
	if len(s.FileErrors) < maxReportedErrors {
		s.FileErrors = append(s.FileErrors, FileError{
			Filename: filename,
			Kind:     indexerr.KindOf(err).String(),
			Message:  err.Error(),
		})
	}
}

// ChangeHook runs after a run that wrote or deleted records
type ChangeHook func(ctx context.Context)

// Indexer drives scan, change detection, analysis and storage for a
// workflows directory
type Indexer struct {
	store    Store
	scanner  *scanner.Scanner
	detector *scanner.ChangeDetector
	analyzer *workflow.Analyzer
	cfg      Config
	logger   *observability.Logger
	metrics  *observability.Metrics

	running atomic.Bool
	pending atomic.Bool

	mu    sync.RWMutex
	last  *Summary
	hooks []ChangeHook
}

// New creates an indexer. metrics may be nil.
func New(store Store, cfg Config, logger *observability.Logger, metrics *observability.Metrics) *Indexer {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Indexer{
		store:    store,
		scanner:  scanner.New(cfg.Extension),
		detector: scanner.NewChangeDetector(store),
		analyzer: workflow.NewAnalyzer(),
		cfg:      cfg,
		logger:   logger.WithField("component", "indexer"),
		metrics:  metrics,
	}
}

// OnChange registers a hook run after every run that changed the index
func (idx *Indexer) OnChange(hook ChangeHook) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.hooks = append(idx.hooks, hook)
}

// Scanner returns the scanner used for the workflows directory
func (idx *Indexer) Scanner() *scanner.Scanner {
	return idx.scanner
}

// Running reports whether a run is in progress
func (idx *Indexer) Running() bool {
	return idx.running.Load()
}

// LastSummary returns the most recent completed run, or nil
func (idx *Indexer) LastSummary() *Summary {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.last
}

// IndexAll indexes every document in the workflows directory. Unchanged
// documents are skipped unless force is set. Per-document failures are counted
// in the summary and never abort the run.
func (idx *Indexer) IndexAll(ctx context.Context, force bool) (*Summary, error) {
	if !idx.running.CompareAndSwap(false, true) {
		return nil, ErrIndexing
	}
	defer idx.running.Store(false)
	return idx.run(ctx, force)
}

// IndexAsync starts IndexAll in the background and returns immediately with
// the run's result channel. A follow-up requested through Trigger while the run
// is in progress starts on ctx once it finishes, unless ctx is done by then.
func (idx *Indexer) IndexAsync(ctx context.Context, force bool) (<-chan error, error) {
	if !idx.running.CompareAndSwap(false, true) {
		return nil, ErrIndexing
	}
	if err := ctx.Err(); err != nil {
		idx.running.Store(false)
		return nil, err
	}

	parent := ctx
	done := async.SafeGo(parent, idx.logger, idx.cfg.AsyncTimeout, "index run", func(ctx context.Context) error {
		defer func() {
			idx.running.Store(false)
			if idx.pending.Swap(false) && parent.Err() == nil {
				idx.Trigger(parent)
			}
		}()
		_, err := idx.run(ctx, force)
		return err
	})
	return done, nil
}

// Trigger requests an incremental background run. A request made while a run
// is in progress is coalesced into one follow-up run.
func (idx *Indexer) Trigger(ctx context.Context) {
	for ctx.Err() == nil {
		if _, err := idx.IndexAsync(ctx, false); !errors.Is(err, ErrIndexing) {
			return
		}
		idx.pending.Store(true)
		// the run may have finished before it could see pending; take the
		// request back and start it here
		if idx.Running() || !idx.pending.CompareAndSwap(true, false) {
			return
		}
	}
}

type outcome struct {
	filename string
	rec      *workflow.Record
	skipped  bool
	err      error
}

func (idx *Indexer) run(ctx context.Context, force bool) (*Summary, error) {
	summary := &Summary{
		RunID:     uuid.NewString(),
		Forced:    force,
		StartedAt: time.Now().UTC(),
	}
	ctx = observability.WithRunID(ctx, summary.RunID)
	logger := idx.logger.WithField("run_id", summary.RunID)

	ctx, span := tracer.Start(ctx, "IndexAll",
		trace.WithAttributes(
			attribute.String("run_id", summary.RunID),
			attribute.String("dir", idx.cfg.WorkflowsDir),
			attribute.Bool("force", force),
		),
	)
	defer span.End()

	logger.WithFields(map[string]interface{}{
		"dir":   idx.cfg.WorkflowsDir,
		"force": force,
	}).Info("Index run started")

	err := idx.index(ctx, span, logger, summary, force)
	summary.Duration = time.Since(summary.StartedAt)

	idx.metrics.RecordIndexRun(observability.IndexRun{
		Processed: summary.Processed,
		Skipped:   summary.Skipped,
		Errors:    summary.Errors,
		Removed:   summary.Removed,
		Records:   summary.Records,
		Duration:  summary.Duration,
		Failed:    err != nil,
	})

	if summary.Processed > 0 || summary.Removed > 0 {
		idx.notify(ctx)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "index run failed")
		logger.WithError(err).Error("Index run failed")
		return summary, err
	}

	span.SetAttributes(
		attribute.Int("processed", summary.Processed),
		attribute.Int("skipped", summary.Skipped),
		attribute.Int("errors", summary.Errors),
		attribute.Int("removed", summary.Removed),
	)
	logger.WithFields(map[string]interface{}{
		"total":       summary.Total,
		"processed":   summary.Processed,
		"skipped":     summary.Skipped,
		"errors":      summary.Errors,
		"removed":     summary.Removed,
		"duration_ms": summary.Duration.Milliseconds(),
	}).Info("Index run complete")

	idx.mu.Lock()
	idx.last = summary
	idx.mu.Unlock()
	return summary, nil
}

func (idx *Indexer) index(ctx context.Context, span trace.Span, logger *observability.Logger, summary *Summary, force bool) error {
	scan, err := idx.scanner.Scan(idx.cfg.WorkflowsDir)
	if err != nil {
		return err
	}
	summary.Total = len(scan.Entries)

	// seen also holds entries the scan could not stat, so they are not pruned
	seen := make(map[string]bool, len(scan.Entries)+len(scan.Errors))
	for _, e := range scan.Entries {
		seen[e.Filename] = true
	}
	for _, scanErr := range scan.Errors {
		var ie *indexerr.Error
		name := ""
		if errors.As(scanErr, &ie) {
			name = filepath.Base(ie.Path)
			seen[name] = true
		}
		summary.addError(name, scanErr)
		logger.WithError(scanErr).Warn("Failed to read directory entry")
	}

	outcomes := make(chan outcome, idx.cfg.Workers)

	// single writer: SQLite serializes writers anyway, so workers only analyze
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for o := range outcomes {
			switch {
			case o.err != nil:
				idx.fileFailed(span, logger, summary, o.filename, o.err)
			case o.skipped:
				summary.Skipped++
			default:
				if err := idx.store.Upsert(ctx, o.rec); err != nil {
					idx.fileFailed(span, logger, summary, o.filename, err)
					continue
				}
				summary.Processed++
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.cfg.Workers)
	for _, entry := range scan.Entries {
		entry := entry
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes <- idx.analyze(gctx, entry, force)
			return nil
		})
	}
	waitErr := g.Wait()
	close(outcomes)
	<-writerDone

	if waitErr != nil {
		return fmt.Errorf("index run interrupted: %w", waitErr)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("index run interrupted: %w", err)
	}

	stored, err := idx.store.ListFilenames(ctx)
	if err != nil {
		return err
	}
	summary.Records = len(stored)

	if idx.cfg.PruneMissing {
		removed, err := idx.prune(ctx, stored, seen)
		if err != nil {
			return err
		}
		summary.Removed = removed
		summary.Records -= removed
		if removed > 0 {
			logger.WithField("removed", removed).Info("Removed records of deleted workflow files")
		}
	}
	return nil
}

func (idx *Indexer) analyze(ctx context.Context, entry scanner.Entry, force bool) outcome {
	o := outcome{filename: entry.Filename}

	// one read serves both the change check and the analysis
	data, err := os.ReadFile(entry.Path)
	if err != nil {
		o.err = indexerr.New(indexerr.KindIO, "read", entry.Path, err)
		return o
	}

	decision, err := idx.detector.ShouldReprocessBytes(ctx, entry.Filename, data, force)
	if err != nil {
		o.err = err
		return o
	}
	if !decision.Reprocess {
		o.skipped = true
		return o
	}

	o.rec, o.err = idx.analyzer.AnalyzeFingerprinted(entry.Filename, data, decision.Hash)
	return o
}

func (idx *Indexer) fileFailed(span trace.Span, logger *observability.Logger, summary *Summary, filename string, err error) {
	summary.addError(filename, err)
	span.AddEvent("file_failed", trace.WithAttributes(
		attribute.String("filename", filename),
		attribute.String("kind", indexerr.KindOf(err).String()),
		attribute.String("error", err.Error()),
	))
	logger.WithError(err).WithFields(map[string]interface{}{
		"filename": filename,
		"kind":     indexerr.KindOf(err).String(),
	}).Warn("Failed to index workflow")
}

func (idx *Indexer) prune(ctx context.Context, stored []string, seen map[string]bool) (int, error) {
	var missing []string
	for _, name := range stored {
		if !seen[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return 0, nil
	}
	return idx.store.DeleteMany(ctx, missing)
}

// Prune removes records whose document no longer exists in the workflows
// directory, without indexing anything
func (idx *Indexer) Prune(ctx context.Context) (int, error) {
	if !idx.running.CompareAndSwap(false, true) {
		return 0, ErrIndexing
	}
	defer idx.running.Store(false)

	ctx, span := tracer.Start(ctx, "Prune")
	defer span.End()

	scan, err := idx.scanner.Scan(idx.cfg.WorkflowsDir)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan failed")
		return 0, err
	}
	seen := make(map[string]bool, len(scan.Entries))
	for _, name := range scan.Filenames() {
		seen[name] = true
	}
	for _, scanErr := range scan.Errors {
		var ie *indexerr.Error
		if errors.As(scanErr, &ie) {
			seen[filepath.Base(ie.Path)] = true
		}
	}

	stored, err := idx.store.ListFilenames(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		return 0, err
	}

	removed, err := idx.prune(ctx, stored, seen)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return 0, err
	}
	span.SetAttributes(attribute.Int("removed", removed))
	if removed > 0 {
		idx.notify(ctx)
	}
	return removed, nil
}

func (idx *Indexer) notify(ctx context.Context) {
	idx.mu.RLock()
	hooks := make([]ChangeHook, len(idx.hooks))
	copy(hooks, idx.hooks)
	idx.mu.RUnlock()

	for _, hook := range hooks {
		hook(ctx)
	}
}

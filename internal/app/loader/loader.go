// Package loader runs the dependency-ordered load of a resolved set of dumps.
// Steps for independent types run in parallel; a dependent step stages its
// rows while its dependencies are still loading and only commits once they
// have committed.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/heartmarshall/discogs-dumpload/internal/domain"
	"github.com/heartmarshall/discogs-dumpload/internal/idcache"
	"github.com/heartmarshall/discogs-dumpload/internal/query"
	"github.com/heartmarshall/discogs-dumpload/pkg/ctxutil"
)

// Stage names reported in domain.StepError.
const (
	StageFetch   = "fetch"
	StageOpen    = "open"
	StagePrepare = "prepare"
	StageStage   = "stage"
	StageWait    = "wait"
	StageCommit  = "commit"
	StageInvert  = "invert"
)

// RecordStream yields the parsed records of one dump file; Next returns
// io.EOF after the last record.
type RecordStream interface {
	Next() (domain.Record, error)
	Close() error
}

// OpenFunc opens the dump file at path as a record stream of type t.
type OpenFunc func(path string, t domain.EntityType) (RecordStream, error)

type dumpFetcher interface {
	// Fetch makes the dump available locally and returns its path.
	Fetch(ctx context.Context, d domain.Dump) (string, error)
}

type stagedWriter interface {
	Prepare(ctx context.Context, stages []query.Stages) error
	Stage(ctx context.Context, st query.Stages, rows [][]any) error
	Commit(ctx context.Context, stages []query.Stages, upsert bool) (int64, error)
	Drop(ctx context.Context, stages []query.Stages) error
}

// existenceCache tracks the ids each step has loaded; *idcache.Cache
// implements it.
type existenceCache interface {
	RecordPresent(t domain.EntityType, ids ...int64)
	Invert(t domain.EntityType) error
	IsPresent(t domain.EntityType, id int64) (present, authoritative bool)
	Len(t domain.EntityType) int
	Discard(t domain.EntityType)
}

func newIDCache() existenceCache { return idcache.New() }

type recorder interface {
	RowsStaged(t domain.EntityType, n int)
	RowsWritten(t domain.EntityType, n int64)
	RowsSkipped(t domain.EntityType, n int)
	StepFinished(t domain.EntityType, status string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RowsStaged(domain.EntityType, int)                      {}
func (nopRecorder) RowsWritten(domain.EntityType, int64)                   {}
func (nopRecorder) RowsSkipped(domain.EntityType, int)                     {}
func (nopRecorder) StepFinished(domain.EntityType, string, time.Duration) {}

// Step statuses.
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusAborted = "aborted"
)

// Config tunes a Loader.
type Config struct {
	BatchSize   int
	Workers     int
	Upsert      bool
	KeepStaging bool
}

// StepResult is the outcome of one step.
type StepResult struct {
	Type     domain.EntityType
	ETag     string
	Status   string
	Records  int
	Staged   int
	Skipped  int
	Written  int64
	Duration time.Duration
	Err      error
}

// Report is the outcome of one run, with steps in plan order.
type Report struct {
	Plan  Plan
	Steps []StepResult
}

// Failed reports whether any step did not finish.
func (r Report) Failed() bool {
	for _, s := range r.Steps {
		if s.Status != StatusOK {
			return true
		}
	}
	return false
}

// Loader executes plans.
type Loader struct {
	log     *slog.Logger
	fetcher dumpFetcher
	open    OpenFunc
	writer  stagedWriter
	metrics recorder
	cfg     Config

	newCache func() existenceCache
}

// New creates a Loader. A nil metrics recorder disables metrics.
func New(log *slog.Logger, fetcher dumpFetcher, open OpenFunc, writer stagedWriter, metrics recorder, cfg Config) *Loader {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Loader{
		log:     log.With("component", "loader"),
		fetcher: fetcher,
		open:    open,
		writer:  writer,
		metrics: metrics,
		cfg:     cfg,

		newCache: newIDCache,
	}
}

// run holds the state shared by the steps of one plan.
type run struct {
	plan  Plan
	cache existenceCache
	done  map[domain.EntityType]chan struct{}

	mu        sync.Mutex
	remaining map[domain.EntityType]int // scheduled dependents not yet finished
}

// Run loads set. The returned report covers every planned step; the error is
// the first step failure, as a *domain.StepError, or the context error when
// the run was cancelled before any step failed.
//
// Cancelling ctx stops scheduling new steps. Steps already running finish the
// stage they are in and then stop.
func (l *Loader) Run(ctx context.Context, set domain.ResolvedSet) (Report, error) {
	return l.RunPlan(ctx, NewPlan(set))
}

// RunPlan executes an already built plan.
func (l *Loader) RunPlan(ctx context.Context, plan Plan) (Report, error) {
	// The logger picks the run id up from the context.
	ctx = ctxutil.WithRunID(ctx, plan.RunID)
	log := l.log

	r := &run{
		plan:      plan,
		cache:     l.newCache(),
		done:      make(map[domain.EntityType]chan struct{}, len(plan.Steps)),
		remaining: make(map[domain.EntityType]int, len(plan.Steps)),
	}
	for _, s := range plan.Steps {
		r.done[s.Type] = make(chan struct{})
		r.remaining[s.Type] = len(s.Downstream)
	}

	log.InfoContext(ctx, "load started", slog.Any("types", plan.Types()))
	start := time.Now()

	results := make([]StepResult, len(plan.Steps))
	for i, s := range plan.Steps {
		results[i] = StepResult{Type: s.Type, ETag: s.Dump.ETag, Status: StatusAborted}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.Workers)

	// Steps are launched in plan order, so every dependency holds or has
	// released a worker slot before its dependents ask for one.
	for i, s := range plan.Steps {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res := l.runStep(gctx, log, r, s)
			results[i] = res
			return res.Err
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	report := Report{Plan: plan, Steps: results}
	failed := 0
	for _, res := range results {
		if res.Status != StatusOK {
			failed++
		}
	}
	log.InfoContext(ctx, "load finished",
		slog.Int("steps", len(results)),
		slog.Int("not_ok", failed),
		slog.Duration("duration", time.Since(start)),
	)
	return report, err
}

func (l *Loader) runStep(ctx context.Context, log *slog.Logger, r *run, s Step) (res StepResult) {
	start := time.Now()
	log = log.With(slog.String("type", s.Type.String()), slog.String("etag", s.Dump.ETag))
	res = StepResult{Type: s.Type, ETag: s.Dump.ETag}

	defer func() {
		res.Duration = time.Since(start)
		l.metrics.StepFinished(s.Type, res.Status, res.Duration)
		if res.Err != nil {
			log.ErrorContext(ctx, "step failed", slog.String("status", res.Status), slog.String("error", res.Err.Error()))
			return
		}
		log.InfoContext(ctx, "step finished",
			slog.Int("records", res.Records),
			slog.Int("staged", res.Staged),
			slog.Int("skipped", res.Skipped),
			slog.Int64("written", res.Written),
			slog.Duration("duration", res.Duration),
		)
	}()

	fail := func(stage string, err error) StepResult {
		res.Status = StatusFailed
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			res.Status = StatusAborted
		}
		res.Err = &domain.StepError{Type: s.Type, VersionTag: s.Dump.ETag, Stage: stage, Err: err}
		return res
	}

	// A step that waited for a worker slot may start after cancellation.
	if err := ctx.Err(); err != nil {
		return fail(StageFetch, err)
	}
	log.InfoContext(ctx, "step started", slog.Any("after", s.After))

	stages, err := query.ForType(s.Type)
	if err != nil {
		return fail(StagePrepare, err)
	}

	path, err := l.fetcher.Fetch(ctx, s.Dump)
	if err != nil {
		return fail(StageFetch, err)
	}
	stream, err := l.open(path, s.Type)
	if err != nil {
		return fail(StageOpen, err)
	}
	defer stream.Close()

	// Database stages run to completion once started; cancellation is
	// observed between them.
	dbCtx := context.WithoutCancel(ctx)

	if err := l.writer.Prepare(dbCtx, stages); err != nil {
		return fail(StagePrepare, err)
	}
	if !l.cfg.KeepStaging {
		defer func() {
			if err := l.writer.Drop(dbCtx, stages); err != nil {
				log.WarnContext(ctx, "drop staging tables", slog.String("error", err.Error()))
			}
		}()
	}

	if err := l.stage(ctx, dbCtx, r, s, stages, stream, &res); err != nil {
		return fail(StageStage, err)
	}
	if sk, ok := stream.(interface{ Skipped() int }); ok && sk.Skipped() > 0 {
		log.WarnContext(ctx, "malformed records skipped", slog.Int("count", sk.Skipped()))
	}

	for _, dep := range s.After {
		select {
		case <-r.done[dep]:
		case <-ctx.Done():
			return fail(StageWait, ctx.Err())
		}
	}
	if err := ctx.Err(); err != nil {
		return fail(StageWait, err)
	}

	written, err := l.writer.Commit(dbCtx, stages, l.cfg.Upsert)
	if err != nil {
		return fail(StageCommit, err)
	}
	res.Written = written
	l.metrics.RowsWritten(s.Type, written)

	if s.NeedsCache() {
		if err := r.cache.Invert(s.Type); err != nil {
			return fail(StageInvert, err)
		}
		log.DebugContext(ctx, "existence cache inverted", slog.Int("ids", r.cache.Len(s.Type)))
	}
	close(r.done[s.Type])
	l.release(ctx, log, r, s)

	res.Status = StatusOK
	return res
}

// stage streams the dump into the staging tables in batches.
func (l *Loader) stage(ctx, dbCtx context.Context, r *run, s Step, stages []query.Stages, stream RecordStream, res *StepResult) error {
	a := audit{createdAt: time.Now().UTC(), lastModifiedAt: domain.TruncateToDay(s.Dump.LastModifiedAt)}
	batch := make([][][]any, len(stages))
	var ids []int64
	pending := 0

	flush := func() error {
		for i, rows := range batch {
			if len(rows) == 0 {
				continue
			}
			if err := l.writer.Stage(dbCtx, stages[i], rows); err != nil {
				return fmt.Errorf("%s: %w", stages[i].Table.Name, err)
			}
			res.Staged += len(rows)
			l.metrics.RowsStaged(s.Type, len(rows))
			batch[i] = batch[i][:0]
		}
		if s.NeedsCache() {
			r.cache.RecordPresent(s.Type, ids...)
		}
		ids = ids[:0]
		pending = 0
		return ctx.Err()
	}

	for {
		rec, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		res.Records++
		ids = append(ids, rec.Key())

		for _, tr := range flatten(rec, a) {
			if vetoed(r.cache, tr.refs) {
				res.Skipped++
				l.metrics.RowsSkipped(s.Type, 1)
				continue
			}
			batch[tr.table] = append(batch[tr.table], tr.row)
		}
		pending++
		if pending >= l.cfg.BatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

// vetoed reports whether a reference points at an id that an authoritative
// cache knows to be absent.
func vetoed(cache existenceCache, refs []ref) bool {
	for _, rf := range refs {
		if present, auth := cache.IsPresent(rf.typ, rf.id); auth && !present {
			return true
		}
	}
	return false
}

// release discards the cache of every dependency whose scheduled dependents
// have all finished.
func (l *Loader) release(ctx context.Context, log *slog.Logger, r *run, s Step) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, dep := range s.After {
		r.remaining[dep]--
		if r.remaining[dep] == 0 {
			r.cache.Discard(dep)
			log.DebugContext(ctx, "existence cache discarded", slog.String("discarded", dep.String()))
		}
	}
}

package transfer

import (
	"context"
	"fmt"
	"time"

	"neotransfer/internal/graph"
	"neotransfer/internal/metrics"
	"neotransfer/internal/progress"

	"go.uber.org/zap"
)

// Engine sequences one transfer: optional target reset, node copy,
// relationship copy, result aggregation. Two database sessions are held for
// the duration of a transfer; the engine does not own them and never closes
// the executors it is given.
type Engine struct {
	source  graph.Executor
	target  graph.Executor
	spec    *Spec
	log     *zap.Logger
	metrics *metrics.Collector
	tracker *progress.Tracker
	workers int

	stats runStats
}

// runStats accumulates counts over one run.
type runStats struct {
	nodesFetched  int
	nodesCreated  int
	nodesSkipped  int
	relsFetched   int
	relsCreated   int
	relsDropped   int
	relsSkipped   int
	propertiesSet int
}

// EngineOption adjusts an Engine at construction time.
type EngineOption func(*Engine)

// WithMetrics attaches a metrics collector.
func WithMetrics(collector *metrics.Collector) EngineOption {
	return func(e *Engine) { e.metrics = collector }
}

// WithTracker attaches a progress tracker.
func WithTracker(tracker *progress.Tracker) EngineOption {
	return func(e *Engine) { e.tracker = tracker }
}

// WithConcurrency sets the number of concurrent batch uploads during
// relationship copy. 1 keeps the fully sequential design.
func WithConcurrency(workers int) EngineOption {
	return func(e *Engine) { e.workers = workers }
}

// NewEngine creates a transfer engine over connected source and target
// executors.
func NewEngine(source, target graph.Executor, spec *Spec, log *zap.Logger, opts ...EngineOption) (*Engine, error) {
	if source == nil || target == nil {
		return nil, fmt.Errorf("source and target executors are required")
	}
	if spec == nil {
		return nil, fmt.Errorf("%w: spec is required", ErrMalformedSpec)
	}
	if log == nil {
		log = zap.NewNop()
	}

	e := &Engine{
		source:  source,
		target:  target,
		spec:    spec,
		log:     log,
		workers: 1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Count returns the number of source nodes and relationships matching the
// spec's filters, without moving any data.
func (e *Engine) Count(ctx context.Context) (int64, int64, error) {
	labels := e.spec.Labels()
	params := map[string]any{}
	if labels != nil {
		params["labels"] = labels
	}
	nodeRes, err := e.source.ReadQuery(ctx, nodeCountQuery(labels != nil), params)
	if err != nil {
		return 0, 0, fmt.Errorf("counting nodes: %w", err)
	}

	types := e.spec.Types()
	params = map[string]any{}
	if types != nil {
		params["types"] = types
	}
	relRes, err := e.source.ReadQuery(ctx, relCountQuery(types != nil), params)
	if err != nil {
		return 0, 0, fmt.Errorf("counting relationships: %w", err)
	}

	return countValue(nodeRes), countValue(relRes), nil
}

func countValue(result graph.QueryResult) int64 {
	if len(result.Records) == 0 {
		return 0
	}
	return int64(toInt(result.Records[0]["count"]))
}

// Run executes the transfer and blocks until it completes or fails. The
// returned result is populated even on failure; each batch commits
// independently, so a mid-transfer failure leaves the target partially
// populated and nothing is rolled back.
func (e *Engine) Run(ctx context.Context) (*UploadResult, error) {
	return e.run(ctx, nil)
}

// Stream executes the transfer and yields one partial result after node copy
// and the final result after relationship copy. The error channel delivers at
// most one error; both channels close when the transfer ends.
func (e *Engine) Stream(ctx context.Context) (<-chan UploadResult, <-chan error) {
	out := make(chan UploadResult, 2)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		result, err := e.run(ctx, func(partial UploadResult) {
			out <- partial
		})
		if err != nil {
			errc <- err
		}
		if result != nil {
			out <- *result
		}
	}()

	return out, errc
}

func (e *Engine) run(ctx context.Context, emit func(UploadResult)) (*UploadResult, error) {
	e.stats = runStats{}
	started := time.Now()

	if e.spec.ResetTarget {
		summary, err := ResetTarget(ctx, e.target, e.spec.BatchSize, e.log)
		if err != nil {
			return e.finalize(started, false), fmt.Errorf("resetting target: %w", err)
		}
		e.log.Info("target reset",
			zap.Int("constraints_dropped", summary.ConstraintsDropped),
			zap.Int("indexes_dropped", summary.IndexesDropped),
			zap.Int("nodes_deleted", summary.NodesDeleted),
		)
	}

	idMap, err := e.CopyNodes(ctx)
	if err != nil {
		return e.finalize(started, false), err
	}
	if emit != nil {
		emit(*e.snapshot(started))
	}

	if _, err := e.CopyRelationships(ctx, idMap); err != nil {
		return e.finalize(started, false), err
	}

	result := e.finalize(started, true)
	if e.metrics != nil {
		e.metrics.ObserveDuration(result.FinishedAt.Sub(result.StartedAt))
	}
	e.log.Info("transfer complete",
		zap.Int("nodes_created", result.NodesCreated),
		zap.Int("relationships_created", result.RelationshipsCreated),
		zap.Int("relationships_dropped", e.stats.relsDropped),
		zap.Float64("seconds", result.SecondsToComplete),
	)
	return result, nil
}

// snapshot builds an in-flight result from the run stats.
func (e *Engine) snapshot(started time.Time) *UploadResult {
	return &UploadResult{
		StartedAt:            started,
		RecordsTotal:         e.stats.nodesFetched + e.stats.relsFetched,
		RecordsCompleted:     e.stats.nodesCreated + e.stats.relsCreated,
		NodesCreated:         e.stats.nodesCreated,
		RelationshipsCreated: e.stats.relsCreated,
		PropertiesSet:        e.stats.propertiesSet,
	}
}

func (e *Engine) finalize(started time.Time, success bool) *UploadResult {
	result := e.snapshot(started)
	result.FinishedAt = time.Now()
	result.SecondsToComplete = result.FinishedAt.Sub(started).Seconds()
	result.WasSuccessful = success
	return result
}

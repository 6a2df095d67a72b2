// Package app wires configuration, database connections, the transfer engine
// and the run journal into the operations the CLI exposes.
package app

import (
	"context"
	"fmt"
	"time"

	"neotransfer/internal/config"
	"neotransfer/internal/graph"
	"neotransfer/internal/journal"
	"neotransfer/internal/metrics"
	"neotransfer/internal/progress"
	"neotransfer/internal/transfer"

	"go.uber.org/zap"
)

// App represents the transfer application
type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	journal journal.Store
	metrics *metrics.Collector
}

// New creates a new application instance
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	journalStore, err := journal.NewSQLiteStore(cfg.Transfer.Journal)
	if err != nil {
		return nil, fmt.Errorf("failed to create journal store: %w", err)
	}

	return &App{
		cfg:     cfg,
		logger:  logger,
		journal: journalStore,
		metrics: metrics.New(),
	}, nil
}

// RunTransfer executes one transfer according to the configuration. In
// dry-run mode it only counts what would be copied.
func (a *App) RunTransfer(ctx context.Context) error {
	spec, err := a.buildSpec()
	if err != nil {
		return err
	}

	a.logger.Info("Starting transfer",
		zap.Strings("labels", spec.Labels()),
		zap.Strings("types", spec.Types()),
		zap.Int("batch_size", spec.BatchSize),
		zap.Int("concurrency", a.cfg.Transfer.Concurrency),
		zap.Bool("reset_target", spec.ResetTarget),
		zap.Bool("dry_run", a.cfg.Transfer.DryRun),
	)

	source, err := graph.Connect(ctx, a.cfg.Source)
	if err != nil {
		return fmt.Errorf("failed to connect to source: %w", err)
	}
	defer source.Close(ctx)

	target, err := graph.Connect(ctx, a.cfg.Target)
	if err != nil {
		return fmt.Errorf("failed to connect to target: %w", err)
	}
	defer target.Close(ctx)

	if a.cfg.Transfer.MetricsAddr != "" {
		go func() {
			if err := a.metrics.StartServer(a.cfg.Transfer.MetricsAddr); err != nil {
				a.logger.Error("Failed to start metrics server", zap.Error(err))
			}
		}()
	}

	tracker := progress.NewTracker()
	engine, err := transfer.NewEngine(source, target, spec, a.logger,
		transfer.WithMetrics(a.metrics),
		transfer.WithTracker(tracker),
		transfer.WithConcurrency(a.cfg.Transfer.Concurrency),
	)
	if err != nil {
		return err
	}

	nodeTotal, relTotal, err := engine.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count source records: %w", err)
	}
	a.logger.Info("Source counted",
		zap.Int64("nodes", nodeTotal),
		zap.Int64("relationships", relTotal),
	)

	if a.cfg.Transfer.DryRun {
		fmt.Printf("dry run: %d nodes and %d relationships would be copied\n", nodeTotal, relTotal)
		return nil
	}
	tracker.SetTotals(nodeTotal, relTotal)

	var display *progress.Display
	if a.cfg.Transfer.ShowProgress && progress.IsTerminalSupported() {
		display = progress.NewDisplay(tracker, 2*time.Second)
		display.Start()
		defer display.Stop()
	}

	run := &journal.RunRecord{
		ID:           journal.NewRunID(),
		StartedAt:    time.Now(),
		TimestampKey: spec.TimestampKey,
		Labels:       spec.Labels(),
		Types:        spec.Types(),
		Fingerprint:  spec.Fingerprint(),
		Status:       journal.StatusRunning,
	}
	if spec.Tagging() {
		run.Timestamp = spec.TimestampString()
	}
	if err := a.journal.SaveRun(run); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	results, errs := engine.Stream(ctx)
	var final *transfer.UploadResult
	for result := range results {
		r := result
		final = &r
		a.logger.Debug("Transfer progress",
			zap.Int("records_completed", result.RecordsCompleted),
			zap.Int("nodes_created", result.NodesCreated),
			zap.Int("relationships_created", result.RelationshipsCreated),
		)
	}
	runErr := <-errs

	run.FinishedAt = time.Now()
	if final != nil {
		run.NodesCreated = final.NodesCreated
		run.RelationshipsCreated = final.RelationshipsCreated
	}
	if runErr != nil {
		run.Status = journal.StatusFailed
		run.LastError = runErr.Error()
	} else {
		run.Status = journal.StatusCompleted
	}
	if err := a.journal.SaveRun(run); err != nil {
		a.logger.Error("Failed to update run record", zap.Error(err))
	}

	if runErr != nil {
		return runErr
	}
	if spec.Tagging() {
		a.logger.Info("Transfer recorded",
			zap.String("run_id", run.ID),
			zap.String("timestamp", run.Timestamp),
		)
	}
	return nil
}

// Undo deletes the nodes tagged by a previous transfer. The transfer is named
// either by its tag timestamp or, with last set, resolved to the most recent
// tagged run in the journal.
func (a *App) Undo(ctx context.Context, timestamp string, last bool) error {
	key := a.cfg.Transfer.TimestampKey
	if key == "" {
		key = transfer.DefaultTimestampKey
	}

	if last {
		run, err := a.journal.LastTaggedRun()
		if err != nil {
			return fmt.Errorf("failed to read journal: %w", err)
		}
		if run == nil {
			return fmt.Errorf("journal has no tagged runs to undo")
		}
		timestamp = run.Timestamp
		if run.TimestampKey != "" {
			key = run.TimestampKey
		}
		a.logger.Info("Undoing last tagged run",
			zap.String("run_id", run.ID),
			zap.String("timestamp", timestamp),
		)
	}
	if timestamp == "" {
		return transfer.ErrUndoUnavailable
	}

	ts, err := time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return fmt.Errorf("timestamp must be RFC 3339: %w", err)
	}

	spec, err := transfer.NewSpec(transfer.Selection{}, transfer.Selection{},
		transfer.WithTimestampKey(key),
		transfer.WithTimestamp(ts),
	)
	if err != nil {
		return err
	}

	target, err := graph.Connect(ctx, a.cfg.Target)
	if err != nil {
		return fmt.Errorf("failed to connect to target: %w", err)
	}
	defer target.Close(ctx)

	summary, err := transfer.Undo(ctx, target, spec, a.logger)
	if err != nil {
		return err
	}
	fmt.Printf("undo deleted %d nodes and %d relationships\n",
		summary.NodesDeleted, summary.RelationshipsDeleted)
	return nil
}

// Reset wipes the target database: all constraints, indexes, nodes and
// relationships.
func (a *App) Reset(ctx context.Context) error {
	target, err := graph.Connect(ctx, a.cfg.Target)
	if err != nil {
		return fmt.Errorf("failed to connect to target: %w", err)
	}
	defer target.Close(ctx)

	batchSize := a.cfg.Transfer.BatchSize
	summary, err := transfer.ResetTarget(ctx, target, batchSize, a.logger)
	if err != nil {
		return err
	}
	fmt.Printf("reset dropped %d constraints, %d indexes and deleted %d nodes\n",
		summary.ConstraintsDropped, summary.IndexesDropped, summary.NodesDeleted)
	return nil
}

// Inspect prints the labels and relationship types present on the source.
func (a *App) Inspect(ctx context.Context) error {
	source, err := graph.Connect(ctx, a.cfg.Source)
	if err != nil {
		return fmt.Errorf("failed to connect to source: %w", err)
	}
	defer source.Close(ctx)

	labels, err := graph.ListLabels(ctx, source)
	if err != nil {
		return fmt.Errorf("failed to list labels: %w", err)
	}
	types, err := graph.ListRelationshipTypes(ctx, source)
	if err != nil {
		return fmt.Errorf("failed to list relationship types: %w", err)
	}

	fmt.Println("labels:")
	for _, label := range labels {
		fmt.Printf("  %s\n", label)
	}
	fmt.Println("relationship types:")
	for _, relType := range types {
		fmt.Printf("  %s\n", relType)
	}
	return nil
}

// History prints the most recent journal entries.
func (a *App) History(limit int) error {
	runs, err := a.journal.ListRuns(limit)
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("no recorded runs")
		return nil
	}
	for _, run := range runs {
		tag := run.Timestamp
		if tag == "" {
			tag = "(untagged)"
		}
		fmt.Printf("%s  %s  %-9s  nodes=%d rels=%d  %s\n",
			run.ID,
			run.StartedAt.Format(time.RFC3339),
			run.Status,
			run.NodesCreated,
			run.RelationshipsCreated,
			tag,
		)
	}
	return nil
}

// buildSpec translates the file/flag configuration into a transfer spec.
func (a *App) buildSpec() (*transfer.Spec, error) {
	nodes := selection(a.cfg.Transfer.NodeLabels, a.cfg.Transfer.NodeKeys)
	rels := selection(a.cfg.Transfer.RelationshipTypes, a.cfg.Transfer.RelationshipKeys)

	opts := []transfer.Option{
		transfer.WithBatchSize(a.cfg.Transfer.BatchSize),
		transfer.WithResetTarget(a.cfg.Transfer.ResetTarget),
	}
	if a.cfg.Transfer.TimestampKey != "" {
		opts = append(opts, transfer.WithTimestampKey(a.cfg.Transfer.TimestampKey))
	}
	if a.cfg.Transfer.DisableTagging {
		opts = append(opts, transfer.WithoutTagging())
	}
	if a.cfg.Transfer.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, a.cfg.Transfer.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp: %w", err)
		}
		opts = append(opts, transfer.WithTimestamp(ts))
	}

	return transfer.NewSpec(nodes, rels, opts...)
}

func selection(names []string, keys map[string]config.KeyMapping) transfer.Selection {
	if len(keys) > 0 {
		mapped := make(map[string]transfer.KeyTransferSpec, len(keys))
		for name, mapping := range keys {
			mapped[name] = transfer.KeyTransferSpec{
				Source: mapping.Source,
				Target: mapping.Target,
			}
		}
		return transfer.Mapped(mapped)
	}
	return transfer.Names(names...)
}

// Close cleans up resources
func (a *App) Close() error {
	if a.journal != nil {
		return a.journal.Close()
	}
	return nil
}

package transfer

import (
	"context"
	"fmt"
	"sync"

	"neotransfer/internal/worker"

	"go.uber.org/zap"
)

// relRow is one fetched source relationship, endpoint detail included when
// the key-mapped variant is in effect.
type relRow struct {
	RID         string
	Type        string
	Start       string
	End         string
	Props       map[string]any
	StartLabels []string
	StartProps  map[string]any
	EndLabels   []string
	EndProps    map[string]any
}

// relGroup collects the survivors of one page that share a create template:
// the relationship type alone under element-id identity, or the composite
// (start label set, end label set, type) under key-mapped identity, because
// the template then depends on which property matches each side.
type relGroup struct {
	key    string
	cypher string
	rows   []map[string]any
}

// CopyRelationships paginates through source relationships, resolves each
// endpoint, groups survivors and issues one batched create per group against
// the target. It returns a descriptor per created relationship. The
// identifier map must be frozen; it is only read here.
func (e *Engine) CopyRelationships(ctx context.Context, idMap *IdentifierMap) ([]CreatedRelationship, error) {
	if !idMap.Frozen() {
		return nil, fmt.Errorf("identifier map must be frozen before relationship copy")
	}

	byKey := !e.spec.UsesElementIDIdentity()
	types := e.spec.Types()
	filtered := types != nil
	typeSet := make(map[string]struct{}, len(types))
	for _, relType := range types {
		typeSet[relType] = struct{}{}
	}
	query := relPageQuery(filtered, byKey)

	var created []CreatedRelationship
	skip := 0
	for {
		params := map[string]any{"skip": skip, "limit": e.spec.BatchSize}
		if filtered {
			params["types"] = types
		}

		page, err := e.source.ReadQuery(ctx, query, params)
		if err != nil {
			return nil, fmt.Errorf("fetching relationship page at offset %d: %w", skip, err)
		}
		if len(page.Records) == 0 {
			break
		}

		groups, err := e.buildRelGroups(page.Records, idMap, typeSet, byKey)
		if err != nil {
			return nil, err
		}

		pageCreated, err := e.uploadRelGroups(ctx, groups)
		if err != nil {
			return nil, err
		}
		created = append(created, pageCreated...)
		skip += len(page.Records)
	}

	e.log.Info("relationship copy complete",
		zap.Int("fetched", e.stats.relsFetched),
		zap.Int("created", e.stats.relsCreated),
		zap.Int("dropped", e.stats.relsDropped),
		zap.Int("skipped", e.stats.relsSkipped),
	)
	return created, nil
}

func (e *Engine) buildRelGroups(records []map[string]any, idMap *IdentifierMap, typeSet map[string]struct{}, byKey bool) (map[string]*relGroup, error) {
	groups := make(map[string]*relGroup)

	for _, record := range records {
		rel, err := parseRelRow(record, byKey)
		if err != nil {
			return nil, err
		}

		// A row whose recorded type escapes the filter it was fetched under
		// indicates a concurrent mutation or driver inconsistency.
		if len(typeSet) > 0 {
			if _, ok := typeSet[rel.Type]; !ok {
				return nil, fmt.Errorf("%w: fetched %q outside the requested type filter", ErrTypeMismatch, rel.Type)
			}
		}
		e.stats.relsFetched++

		props, ok := e.relProps(rel)
		if !ok {
			continue
		}

		if byKey {
			e.groupByKey(groups, rel, props)
		} else {
			e.groupByElementID(groups, rel, props, idMap)
		}
	}

	return groups, nil
}

// groupByElementID resolves both endpoints through the identifier map and
// drops the relationship when either endpoint was not copied.
func (e *Engine) groupByElementID(groups map[string]*relGroup, rel relRow, props map[string]any, idMap *IdentifierMap) {
	newStart, startOK := idMap.Get(rel.Start)
	newEnd, endOK := idMap.Get(rel.End)
	if !startOK || !endOK {
		e.log.Warn("dropping relationship: endpoint not copied",
			zap.String("type", rel.Type),
			zap.String("start", rel.Start),
			zap.String("end", rel.End),
		)
		e.dropRelationship()
		return
	}

	group, exists := groups[rel.Type]
	if !exists {
		cypher, err := relCreateByElementID(rel.Type)
		if err != nil {
			// Surfaced on upload; an invalid type never gets this far under
			// a validated filter.
			cypher = ""
		}
		group = &relGroup{key: rel.Type, cypher: cypher}
		groups[rel.Type] = group
	}
	group.rows = append(group.rows, map[string]any{
		"start": newStart,
		"end":   newEnd,
		"props": props,
	})
}

// groupByKey matches endpoints by identity property instead of the
// identifier map. Each endpoint's label decides which property identifies it.
func (e *Engine) groupByKey(groups map[string]*relGroup, rel relRow, props map[string]any) {
	fromSpec := e.spec.nodeKeySpec(rel.StartLabels)
	toSpec := e.spec.nodeKeySpec(rel.EndLabels)

	fromValue, ok := e.endpointIdentity(rel, fromSpec, rel.Start, rel.StartProps, rel.StartLabels)
	if !ok {
		return
	}
	toValue, ok := e.endpointIdentity(rel, toSpec, rel.End, rel.EndProps, rel.EndLabels)
	if !ok {
		return
	}

	fromRecordKey := "_from_" + fromSpec.Target
	toRecordKey := "_to_" + toSpec.Target

	key := labelSetKey(rel.StartLabels) + "|" + labelSetKey(rel.EndLabels) + "|" + rel.Type
	group, exists := groups[key]
	if !exists {
		cypher, err := relCreateByKey(rel.Type, fromSpec.Target, fromRecordKey, toSpec.Target, toRecordKey)
		if err != nil {
			cypher = ""
		}
		group = &relGroup{key: key, cypher: cypher}
		groups[key] = group
	}
	group.rows = append(group.rows, map[string]any{
		fromRecordKey: fromValue,
		toRecordKey:   toValue,
		"props":       props,
	})
}

// endpointIdentity extracts the value the batched insert will match the
// endpoint node by: its element id under the sentinel, its identity property
// otherwise. Missing property means the relationship is skipped with a
// warning.
func (e *Engine) endpointIdentity(rel relRow, keySpec KeyTransferSpec, eid string, props map[string]any, labels []string) (any, bool) {
	if keySpec.Source == ElementIDKey {
		return eid, true
	}
	value, ok := props[keySpec.Source]
	if !ok {
		e.log.Warn("skipping relationship: endpoint identity property absent",
			zap.String("type", rel.Type),
			zap.Strings("endpoint_labels", labels),
			zap.String("property", keySpec.Source),
		)
		e.stats.relsSkipped++
		if e.metrics != nil {
			e.metrics.AddRelationshipsSkipped(1)
		}
		return nil, false
	}
	return value, true
}

// relProps builds the property bag for the copied relationship, applying
// identity and timestamp tagging per the type's key spec.
func (e *Engine) relProps(rel relRow) (map[string]any, bool) {
	keySpec := e.spec.relKeySpec(rel.Type)

	var identity any
	if keySpec.Source == ElementIDKey {
		identity = rel.RID
	} else {
		value, ok := rel.Props[keySpec.Source]
		if !ok {
			e.log.Warn("skipping relationship: identity property absent",
				zap.String("type", rel.Type),
				zap.String("rid", rel.RID),
				zap.String("property", keySpec.Source),
			)
			e.stats.relsSkipped++
			if e.metrics != nil {
				e.metrics.AddRelationshipsSkipped(1)
			}
			return nil, false
		}
		identity = value
	}

	props := cloneProps(rel.Props)
	props[keySpec.Target] = identity
	if e.spec.Tagging() {
		props[e.spec.TimestampKey] = e.spec.TimestampString()
	}
	return props, true
}

func (e *Engine) dropRelationship() {
	e.stats.relsDropped++
	if e.metrics != nil {
		e.metrics.AddRelationshipsDropped(1)
	}
	if e.tracker != nil {
		e.tracker.AddDropped(1)
	}
}

// uploadRelGroups issues one batched create per group, sequentially by
// default or through the worker pool when concurrency is configured. Groups
// are independent; the identifier map is frozen by now.
func (e *Engine) uploadRelGroups(ctx context.Context, groups map[string]*relGroup) ([]CreatedRelationship, error) {
	for _, group := range groups {
		if group.cypher == "" {
			return nil, fmt.Errorf("%w: group %q", ErrInvalidIdentifier, group.key)
		}
	}

	if e.workers > 1 {
		return e.uploadConcurrent(ctx, groups)
	}

	var created []CreatedRelationship
	for _, key := range sortedGroupKeys(groups) {
		group := groups[key]
		result, err := e.target.WriteQuery(ctx, group.cypher, map[string]any{"batch": group.rows})
		if err != nil {
			if e.metrics != nil {
				e.metrics.IncBatch("relationships", "error")
			}
			return nil, fmt.Errorf("creating %d relationships in group %q: %w", len(group.rows), group.key, err)
		}
		if e.metrics != nil {
			e.metrics.IncBatch("relationships", "success")
		}

		batch, err := e.collectCreated(result.Records)
		if err != nil {
			return nil, err
		}
		e.stats.propertiesSet += result.Summary.PropertiesSet
		created = append(created, batch...)
	}
	return created, nil
}

func (e *Engine) uploadConcurrent(ctx context.Context, groups map[string]*relGroup) ([]CreatedRelationship, error) {
	tasks := make(chan worker.Task, len(groups))
	results := make(chan worker.Result, len(groups))

	pool := worker.NewPool(e.workers, e.target, e.metrics, e.log)
	var wg sync.WaitGroup
	pool.Start(ctx, tasks, results, &wg)

	for _, key := range sortedGroupKeys(groups) {
		group := groups[key]
		tasks <- worker.Task{
			Kind:   "relationships",
			Group:  group.key,
			Cypher: group.cypher,
			Params: map[string]any{"batch": group.rows},
			Rows:   len(group.rows),
		}
	}
	close(tasks)

	wg.Wait()
	close(results)

	var created []CreatedRelationship
	var firstErr error
	for res := range results {
		if res.Err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("creating %d relationships in group %q: %w", res.Task.Rows, res.Task.Group, res.Err)
			}
			continue
		}
		batch, err := e.collectCreated(res.Result.Records)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		e.stats.propertiesSet += res.Result.Summary.PropertiesSet
		created = append(created, batch...)
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return created, nil
}

// collectCreated parses the descriptors a batched create returns.
func (e *Engine) collectCreated(records []map[string]any) ([]CreatedRelationship, error) {
	created := make([]CreatedRelationship, 0, len(records))
	for _, record := range records {
		relID, err := rowField(record, "rel_id")
		if err != nil {
			return nil, err
		}
		relType, err := rowField(record, "type")
		if err != nil {
			return nil, err
		}
		start, err := rowField(record, "start")
		if err != nil {
			return nil, err
		}
		end, err := rowField(record, "end")
		if err != nil {
			return nil, err
		}
		created = append(created, CreatedRelationship{
			Type:      relType,
			ElementID: relID,
			Start:     start,
			End:       end,
		})
	}

	e.stats.relsCreated += len(created)
	if e.metrics != nil {
		e.metrics.AddRelationshipsCreated(len(created))
	}
	if e.tracker != nil {
		e.tracker.AddRelationships(len(created))
	}
	return created, nil
}

func parseRelRow(record map[string]any, byKey bool) (relRow, error) {
	rid, err := rowField(record, "rid")
	if err != nil {
		return relRow{}, err
	}
	relType, err := rowField(record, "type")
	if err != nil {
		return relRow{}, err
	}
	start, err := rowField(record, "start")
	if err != nil {
		return relRow{}, err
	}
	end, err := rowField(record, "end")
	if err != nil {
		return relRow{}, err
	}

	rel := relRow{
		RID:   rid,
		Type:  relType,
		Start: start,
		End:   end,
		Props: asProps(record["props"]),
	}

	if byKey {
		startLabels, ok := asStringSlice(record["start_labels"])
		if !ok {
			return relRow{}, fmt.Errorf("fetched relationship %s has malformed start labels", rid)
		}
		endLabels, ok := asStringSlice(record["end_labels"])
		if !ok {
			return relRow{}, fmt.Errorf("fetched relationship %s has malformed end labels", rid)
		}
		rel.StartLabels = startLabels
		rel.EndLabels = endLabels
		rel.StartProps = asProps(record["start_props"])
		rel.EndProps = asProps(record["end_props"])
	}

	return rel, nil
}

package transfer

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// nodeGroup collects the rows of one page that share an exact label set.
type nodeGroup struct {
	labels []string
	rows   []map[string]any
}

// CopyNodes paginates through source nodes, groups each page by label set,
// issues one batched create per group against the target and returns the
// frozen identifier map. A failed batch aborts the copy; batches already
// committed stay on the target.
func (e *Engine) CopyNodes(ctx context.Context) (*IdentifierMap, error) {
	idMap := NewIdentifierMap()

	labels := e.spec.Labels()
	filtered := labels != nil
	query := nodePageQuery(filtered)

	skip := 0
	for {
		params := map[string]any{"skip": skip, "limit": e.spec.BatchSize}
		if filtered {
			params["labels"] = labels
		}

		page, err := e.source.ReadQuery(ctx, query, params)
		if err != nil {
			return nil, fmt.Errorf("fetching node page at offset %d: %w", skip, err)
		}
		if len(page.Records) == 0 {
			break
		}

		if err := e.copyNodePage(ctx, page.Records, idMap); err != nil {
			return nil, err
		}
		skip += len(page.Records)
	}

	idMap.Freeze()
	e.log.Info("node copy complete",
		zap.Int("fetched", e.stats.nodesFetched),
		zap.Int("created", e.stats.nodesCreated),
		zap.Int("skipped", e.stats.nodesSkipped),
		zap.Int("mapped", idMap.Len()),
	)
	return idMap, nil
}

func (e *Engine) copyNodePage(ctx context.Context, records []map[string]any, idMap *IdentifierMap) error {
	groups := make(map[string]*nodeGroup)

	for _, record := range records {
		node, err := parseNodeRecord(record)
		if err != nil {
			return err
		}
		e.stats.nodesFetched++

		row, ok := e.nodeRow(node)
		if !ok {
			continue
		}

		key := labelSetKey(node.Labels)
		group, exists := groups[key]
		if !exists {
			sorted := append([]string(nil), node.Labels...)
			sort.Strings(sorted)
			group = &nodeGroup{labels: sorted}
			groups[key] = group
		}
		group.rows = append(group.rows, row)
	}

	for _, key := range sortedGroupKeys(groups) {
		if err := e.createNodeGroup(ctx, groups[key], idMap); err != nil {
			return err
		}
	}
	return nil
}

// nodeRow builds one batch row, applying identity and timestamp tagging. A
// node whose declared identity property is absent is skipped with a warning.
func (e *Engine) nodeRow(node NodeRecord) (map[string]any, bool) {
	keySpec := e.spec.nodeKeySpec(node.Labels)

	var identity any
	if keySpec.Source == ElementIDKey {
		identity = node.EID
	} else {
		value, ok := node.Props[keySpec.Source]
		if !ok {
			e.log.Warn("skipping node: identity property absent",
				zap.String("eid", node.EID),
				zap.Strings("labels", node.Labels),
				zap.String("property", keySpec.Source),
			)
			e.stats.nodesSkipped++
			if e.metrics != nil {
				e.metrics.AddNodesSkipped(1)
			}
			return nil, false
		}
		identity = value
	}

	props := cloneProps(node.Props)
	props[keySpec.Target] = identity
	if e.spec.Tagging() {
		props[e.spec.TimestampKey] = e.spec.TimestampString()
	}

	return map[string]any{"eid": node.EID, "props": props}, true
}

func (e *Engine) createNodeGroup(ctx context.Context, group *nodeGroup, idMap *IdentifierMap) error {
	query, err := nodeCreateQuery(group.labels)
	if err != nil {
		return err
	}

	result, err := e.target.WriteQuery(ctx, query, map[string]any{"batch": group.rows})
	if err != nil {
		if e.metrics != nil {
			e.metrics.IncBatch("nodes", "error")
		}
		return fmt.Errorf("creating %d nodes %v: %w", len(group.rows), group.labels, err)
	}

	for _, record := range result.Records {
		newID, err := rowField(record, "new_id")
		if err != nil {
			return err
		}
		oldID, err := rowField(record, "old_id")
		if err != nil {
			return err
		}
		if err := idMap.Set(oldID, newID); err != nil {
			return err
		}
	}

	created := len(result.Records)
	e.stats.nodesCreated += created
	e.stats.propertiesSet += result.Summary.PropertiesSet
	if e.metrics != nil {
		e.metrics.AddNodesCreated(created)
		e.metrics.IncBatch("nodes", "success")
	}
	if e.tracker != nil {
		e.tracker.AddNodes(created)
	}
	return nil
}

func parseNodeRecord(record map[string]any) (NodeRecord, error) {
	eid, err := rowField(record, "eid")
	if err != nil {
		return NodeRecord{}, err
	}
	labels, ok := asStringSlice(record["labels"])
	if !ok {
		return NodeRecord{}, fmt.Errorf("fetched node %s has malformed labels", eid)
	}
	return NodeRecord{
		EID:    eid,
		Labels: labels,
		Props:  asProps(record["props"]),
	}, nil
}

func sortedGroupKeys[T any](groups map[string]T) []string {
	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

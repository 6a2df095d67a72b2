package transfer

import (
	"fmt"
	"regexp"
	"strings"
)

// Label, type and property names are interpolated into query templates, so
// they must be bare identifiers. Everything else is always a bound parameter.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateIdentifier rejects any name that is not a simple identifier. Names
// are never sanitized; a bad name aborts the operation.
func ValidateIdentifier(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return nil
}

func validateIdentifiers(names ...string) error {
	for _, name := range names {
		if err := ValidateIdentifier(name); err != nil {
			return err
		}
	}
	return nil
}

// quoteName backtick-quotes a schema object name (constraint or index). These
// names come back from SHOW statements and are not restricted to bare
// identifiers, so only backticks themselves are rejected.
func quoteName(name string) (string, error) {
	if name == "" || strings.Contains(name, "`") {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return "`" + name + "`", nil
}

const (
	nodePageUnfiltered = "MATCH (n) " +
		"WITH n SKIP $skip LIMIT $limit " +
		"RETURN elementId(n) AS eid, labels(n) AS labels, properties(n) AS props"

	nodePageFiltered = "MATCH (n) " +
		"WHERE any(label IN labels(n) WHERE label IN $labels) " +
		"WITH n SKIP $skip LIMIT $limit " +
		"RETURN elementId(n) AS eid, labels(n) AS labels, properties(n) AS props"

	nodeCountUnfiltered = "MATCH (n) RETURN count(n) AS count"
	nodeCountFiltered   = "MATCH (n) WHERE any(label IN labels(n) WHERE label IN $labels) RETURN count(n) AS count"

	relCountUnfiltered = "MATCH ()-[r]->() RETURN count(r) AS count"
	relCountFiltered   = "MATCH ()-[r]->() WHERE type(r) IN $types RETURN count(r) AS count"

	showConstraintsQuery = "SHOW CONSTRAINTS"
	showIndexesQuery     = "SHOW INDEXES"

	resetDeleteQuery = "MATCH (n) OPTIONAL MATCH (n)-[r]-() " +
		"WITH n, r LIMIT $batch_size DELETE n, r RETURN count(n) AS deleted"
)

// nodePageQuery returns the paginated node fetch, filtered by label
// membership when a filter is in effect. No explicit ordering: the database's
// native order is neither guaranteed nor required.
func nodePageQuery(filtered bool) string {
	if filtered {
		return nodePageFiltered
	}
	return nodePageUnfiltered
}

func nodeCountQuery(filtered bool) string {
	if filtered {
		return nodeCountFiltered
	}
	return nodeCountUnfiltered
}

func relCountQuery(filtered bool) string {
	if filtered {
		return relCountFiltered
	}
	return relCountUnfiltered
}

// relPageQuery returns the paginated relationship fetch, always directed as
// stored. withEndpoints additionally returns endpoint labels and properties,
// which the key-mapped copier needs for identity extraction.
func relPageQuery(filtered, withEndpoints bool) string {
	var b strings.Builder
	b.WriteString("MATCH (a)-[r]->(b) ")
	if filtered {
		b.WriteString("WHERE type(r) IN $types ")
	}
	b.WriteString("WITH r, a, b SKIP $skip LIMIT $limit ")
	b.WriteString("RETURN elementId(r) AS rid, type(r) AS type, elementId(a) AS start, elementId(b) AS end, properties(r) AS props")
	if withEndpoints {
		b.WriteString(", labels(a) AS start_labels, properties(a) AS start_props")
		b.WriteString(", labels(b) AS end_labels, properties(b) AS end_props")
	}
	return b.String()
}

// nodeCreateQuery builds the batched create for one label group. It returns a
// (new id, old id) pairing per row for the identifier map.
func nodeCreateQuery(labels []string) (string, error) {
	if err := validateIdentifiers(labels...); err != nil {
		return "", err
	}
	labelExpr := ""
	if len(labels) > 0 {
		labelExpr = ":" + strings.Join(labels, ":")
	}
	return fmt.Sprintf(
		"UNWIND $batch AS row CREATE (n%s) SET n = row.props "+
			"RETURN elementId(n) AS new_id, row.eid AS old_id",
		labelExpr,
	), nil
}

// relCreateByElementID builds the batched create for one type group, matching
// endpoints by their target-side element ids.
func relCreateByElementID(relType string) (string, error) {
	if err := ValidateIdentifier(relType); err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"UNWIND $batch AS row "+
			"MATCH (a) WHERE elementId(a) = row.start "+
			"MATCH (b) WHERE elementId(b) = row.end "+
			"CREATE (a)-[r:%s]->(b) SET r = row.props "+
			"RETURN elementId(r) AS rel_id, type(r) AS type, elementId(a) AS start, elementId(b) AS end",
		relType,
	), nil
}

// relCreateByKey builds the batched create for one (start labels, end labels,
// type) group, matching endpoints by their identity properties instead of the
// identifier map.
func relCreateByKey(relType, fromKey, fromRecordKey, toKey, toRecordKey string) (string, error) {
	if err := validateIdentifiers(relType, fromKey, fromRecordKey, toKey, toRecordKey); err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"UNWIND $batch AS row "+
			"MATCH (a) WHERE a.`%s` = row.%s "+
			"MATCH (b) WHERE b.`%s` = row.%s "+
			"CREATE (a)-[r:%s]->(b) SET r = row.props "+
			"RETURN elementId(r) AS rel_id, type(r) AS type, elementId(a) AS start, elementId(b) AS end",
		fromKey, fromRecordKey, toKey, toRecordKey, relType,
	), nil
}

// undoQuery builds the tagged-node delete. The timestamp value is bound.
func undoQuery(timestampKey string) (string, error) {
	if err := ValidateIdentifier(timestampKey); err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"MATCH (n) WHERE n.`%s` = $datetime DETACH DELETE n RETURN count(n) AS deleted",
		timestampKey,
	), nil
}

func dropConstraintQuery(name string) (string, error) {
	quoted, err := quoteName(name)
	if err != nil {
		return "", err
	}
	return "DROP CONSTRAINT " + quoted, nil
}

func dropIndexQuery(name string) (string, error) {
	quoted, err := quoteName(name)
	if err != nil {
		return "", err
	}
	return "DROP INDEX " + quoted + " IF EXISTS", nil
}

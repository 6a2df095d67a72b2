// Package transfer implements the graph-copy engine: paginated extraction
// from a source instance, identifier remapping, grouped batch insertion into
// a target instance, plus the target reset and undo engines.
package transfer

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"time"
)

// ElementIDKey is the reserved identity sentinel: it selects the database
// element id instead of a node/relationship property.
const ElementIDKey = "element_id"

// Defaults applied when a spec leaves them unset.
const (
	DefaultTimestampKey = "_transfer_timestamp"
	DefaultTargetKey    = "_transfer_element_id"
	DefaultBatchSize    = 1000
)

// KeyTransferSpec names which source property identifies a record (or the
// element_id sentinel) and which property the identifier is written under on
// the target side.
type KeyTransferSpec struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

func (k KeyTransferSpec) withDefaults() KeyTransferSpec {
	if k.Source == "" {
		k.Source = ElementIDKey
	}
	if k.Target == "" {
		k.Target = DefaultTargetKey
	}
	return k
}

// Selection is the tagged label/type selection: either a plain name list or a
// per-name key-transfer mapping. The zero value selects nothing, which means
// unfiltered on nodes and relationships alike.
type Selection struct {
	names  []string
	mapped map[string]KeyTransferSpec
}

// Names selects by plain name list; every entry gets the default key spec.
func Names(names ...string) Selection {
	return Selection{names: names}
}

// Mapped selects by a per-name key-transfer mapping.
func Mapped(m map[string]KeyTransferSpec) Selection {
	return Selection{mapped: m}
}

// mappings normalizes the selection into a single name -> key spec map.
func (s Selection) mappings() (map[string]KeyTransferSpec, error) {
	if s.names != nil && s.mapped != nil {
		return nil, fmt.Errorf("%w: both a name list and a key mapping were given", ErrMalformedSpec)
	}

	result := make(map[string]KeyTransferSpec)
	for _, name := range s.names {
		if name == "" {
			return nil, fmt.Errorf("%w: empty name in selection", ErrMalformedSpec)
		}
		result[name] = KeyTransferSpec{}.withDefaults()
	}
	for name, spec := range s.mapped {
		if name == "" {
			return nil, fmt.Errorf("%w: empty name in key mapping", ErrMalformedSpec)
		}
		result[name] = spec.withDefaults()
	}
	return result, nil
}

// Spec is the configuration for one transfer. Immutable once built.
type Spec struct {
	NodeMappings map[string]KeyTransferSpec
	RelMappings  map[string]KeyTransferSpec

	// TimestampKey is the property the transfer timestamp is written under.
	// Empty disables tagging, and with it undo.
	TimestampKey string
	Timestamp    time.Time

	BatchSize   int
	ResetTarget bool
}

// Option adjusts a Spec at construction time.
type Option func(*Spec)

// WithTimestampKey overrides the timestamp property key.
func WithTimestampKey(key string) Option {
	return func(s *Spec) { s.TimestampKey = key }
}

// WithoutTagging disables timestamp tagging and therefore undo.
func WithoutTagging() Option {
	return func(s *Spec) { s.TimestampKey = "" }
}

// WithTimestamp overrides the transfer timestamp.
func WithTimestamp(ts time.Time) Option {
	return func(s *Spec) { s.Timestamp = ts }
}

// WithBatchSize overrides the page/batch size.
func WithBatchSize(size int) Option {
	return func(s *Spec) { s.BatchSize = size }
}

// WithResetTarget requests a full target reset before copying.
func WithResetTarget(reset bool) Option {
	return func(s *Spec) { s.ResetTarget = reset }
}

// NewSpec normalizes the node and relationship selections and applies
// defaults: tagging on under DefaultTimestampKey, timestamp now, batch size
// DefaultBatchSize.
func NewSpec(nodes, relationships Selection, opts ...Option) (*Spec, error) {
	nodeMappings, err := nodes.mappings()
	if err != nil {
		return nil, fmt.Errorf("node selection: %w", err)
	}
	relMappings, err := relationships.mappings()
	if err != nil {
		return nil, fmt.Errorf("relationship selection: %w", err)
	}

	spec := &Spec{
		NodeMappings: nodeMappings,
		RelMappings:  relMappings,
		TimestampKey: DefaultTimestampKey,
		Timestamp:    time.Now(),
		BatchSize:    DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(spec)
	}

	if spec.BatchSize <= 0 {
		return nil, fmt.Errorf("%w: batch size must be positive", ErrMalformedSpec)
	}
	return spec, nil
}

// Labels returns the sorted label filter, or nil for an unfiltered copy.
func (s *Spec) Labels() []string {
	return sortedKeys(s.NodeMappings)
}

// Types returns the sorted relationship type filter, or nil for unfiltered.
func (s *Spec) Types() []string {
	return sortedKeys(s.RelMappings)
}

// Tagging reports whether copied records are timestamp-tagged.
func (s *Spec) Tagging() bool {
	return s.TimestampKey != ""
}

// TimestampString is the tag value written onto copied records, and the value
// undo matches with exact string equality.
func (s *Spec) TimestampString() string {
	return s.Timestamp.UTC().Format(time.RFC3339Nano)
}

// UsesElementIDIdentity reports whether every node identity is the element_id
// sentinel, in which case relationship endpoints resolve through the
// identifier map rather than by property matching.
func (s *Spec) UsesElementIDIdentity() bool {
	for _, keySpec := range s.NodeMappings {
		if keySpec.Source != ElementIDKey {
			return false
		}
	}
	return true
}

// nodeKeySpec returns the key spec for a node carrying the given labels. The
// first mapped label (in sorted order) wins; nodes outside the mapping get
// the defaults.
func (s *Spec) nodeKeySpec(labels []string) KeyTransferSpec {
	sorted := append([]string(nil), labels...)
	sort.Strings(sorted)
	for _, label := range sorted {
		if keySpec, ok := s.NodeMappings[label]; ok {
			return keySpec
		}
	}
	return KeyTransferSpec{}.withDefaults()
}

// relKeySpec returns the key spec for a relationship type.
func (s *Spec) relKeySpec(relType string) KeyTransferSpec {
	if keySpec, ok := s.RelMappings[relType]; ok {
		return keySpec
	}
	return KeyTransferSpec{}.withDefaults()
}

// Fingerprint is a stable value hash of the spec, used as its identity in the
// transfer journal.
func (s *Spec) Fingerprint() string {
	h := fnv.New64a()
	write := func(parts ...string) {
		for _, part := range parts {
			h.Write([]byte(part))
			h.Write([]byte{0})
		}
	}

	for _, label := range s.Labels() {
		keySpec := s.NodeMappings[label]
		write("n", label, keySpec.Source, keySpec.Target)
	}
	for _, relType := range s.Types() {
		keySpec := s.RelMappings[relType]
		write("r", relType, keySpec.Source, keySpec.Target)
	}
	write(s.TimestampKey, s.TimestampString(), fmt.Sprintf("%d", s.BatchSize), fmt.Sprintf("%t", s.ResetTarget))

	return fmt.Sprintf("%016x", h.Sum64())
}

func sortedKeys(m map[string]KeyTransferSpec) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// labelSetKey normalizes a label set into an order-insensitive grouping key.
func labelSetKey(labels []string) string {
	sorted := append([]string(nil), labels...)
	sort.Strings(sorted)
	return strings.Join(sorted, ":")
}

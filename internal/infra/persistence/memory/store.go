// Package memory provides an in-memory implementation of the core persistence
// store used for tests and ephemeral environments.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"termcore/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain
// persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Source aliases domain.Source for in-memory persistence operations.
	Source = domain.Source
	// Collection aliases domain.Collection.
	Collection = domain.Collection
	// Concept aliases domain.Concept.
	Concept = domain.Concept
	// Mapping aliases domain.Mapping.
	Mapping = domain.Mapping
	// SourceVersion aliases domain.SourceVersion.
	SourceVersion = domain.SourceVersion
	// CollectionVersion aliases domain.CollectionVersion.
	CollectionVersion = domain.CollectionVersion
	// ConceptVersion aliases domain.ConceptVersion.
	ConceptVersion = domain.ConceptVersion
	// MappingVersion aliases domain.MappingVersion.
	MappingVersion = domain.MappingVersion
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
	// PersistentStore aliases the domain.PersistentStore abstraction.
	PersistentStore = domain.PersistentStore
)

type memoryState struct {
	sources            map[string]Source
	collections        map[string]Collection
	concepts           map[string]Concept
	mappings           map[string]Mapping
	sourceVersions     map[string]SourceVersion
	collectionVersions map[string]CollectionVersion
	conceptVersions    map[string]ConceptVersion
	mappingVersions    map[string]MappingVersion
	// versionOrder preserves creation order of version ids per versioned
	// object; map iteration order is useless for chains.
	versionOrder map[string][]string
}

// Snapshot captures the full store state as JSON-marshalable buckets. The
// SQLite and Postgres stores persist exactly these buckets.
type Snapshot struct {
	Sources            map[string]Source            `json:"sources"`
	Collections        map[string]Collection        `json:"collections"`
	Concepts           map[string]Concept           `json:"concepts"`
	Mappings           map[string]Mapping           `json:"mappings"`
	SourceVersions     map[string]SourceVersion     `json:"source_versions"`
	CollectionVersions map[string]CollectionVersion `json:"collection_versions"`
	ConceptVersions    map[string]ConceptVersion    `json:"concept_versions"`
	MappingVersions    map[string]MappingVersion    `json:"mapping_versions"`
	VersionOrder       map[string][]string          `json:"version_order"`
}

func newMemoryState() memoryState {
	return memoryState{
		sources:            make(map[string]Source),
		collections:        make(map[string]Collection),
		concepts:           make(map[string]Concept),
		mappings:           make(map[string]Mapping),
		sourceVersions:     make(map[string]SourceVersion),
		collectionVersions: make(map[string]CollectionVersion),
		conceptVersions:    make(map[string]ConceptVersion),
		mappingVersions:    make(map[string]MappingVersion),
		versionOrder:       make(map[string][]string),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	snap := Snapshot{
		Sources:            make(map[string]Source, len(state.sources)),
		Collections:        make(map[string]Collection, len(state.collections)),
		Concepts:           make(map[string]Concept, len(state.concepts)),
		Mappings:           make(map[string]Mapping, len(state.mappings)),
		SourceVersions:     make(map[string]SourceVersion, len(state.sourceVersions)),
		CollectionVersions: make(map[string]CollectionVersion, len(state.collectionVersions)),
		ConceptVersions:    make(map[string]ConceptVersion, len(state.conceptVersions)),
		MappingVersions:    make(map[string]MappingVersion, len(state.mappingVersions)),
		VersionOrder:       make(map[string][]string, len(state.versionOrder)),
	}
	for k, v := range state.sources {
		snap.Sources[k] = v
	}
	for k, v := range state.collections {
		snap.Collections[k] = v
	}
	for k, v := range state.concepts {
		snap.Concepts[k] = v
	}
	for k, v := range state.mappings {
		snap.Mappings[k] = v
	}
	for k, v := range state.sourceVersions {
		snap.SourceVersions[k] = cloneSourceVersion(v)
	}
	for k, v := range state.collectionVersions {
		snap.CollectionVersions[k] = cloneCollectionVersion(v)
	}
	for k, v := range state.conceptVersions {
		snap.ConceptVersions[k] = cloneConceptVersion(v)
	}
	for k, v := range state.mappingVersions {
		snap.MappingVersions[k] = cloneMappingVersion(v)
	}
	for k, v := range state.versionOrder {
		snap.VersionOrder[k] = append([]string(nil), v...)
	}
	return snap
}

func memoryStateFromSnapshot(snap Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range snap.Sources {
		state.sources[k] = v
	}
	for k, v := range snap.Collections {
		state.collections[k] = v
	}
	for k, v := range snap.Concepts {
		state.concepts[k] = v
	}
	for k, v := range snap.Mappings {
		state.mappings[k] = v
	}
	for k, v := range snap.SourceVersions {
		state.sourceVersions[k] = cloneSourceVersion(v)
	}
	for k, v := range snap.CollectionVersions {
		state.collectionVersions[k] = cloneCollectionVersion(v)
	}
	for k, v := range snap.ConceptVersions {
		state.conceptVersions[k] = cloneConceptVersion(v)
	}
	for k, v := range snap.MappingVersions {
		state.mappingVersions[k] = cloneMappingVersion(v)
	}
	for k, v := range snap.VersionOrder {
		state.versionOrder[k] = append([]string(nil), v...)
	}
	return state
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.sources {
		cloned.sources[k] = v
	}
	for k, v := range s.collections {
		cloned.collections[k] = v
	}
	for k, v := range s.concepts {
		cloned.concepts[k] = v
	}
	for k, v := range s.mappings {
		cloned.mappings[k] = v
	}
	for k, v := range s.sourceVersions {
		cloned.sourceVersions[k] = cloneSourceVersion(v)
	}
	for k, v := range s.collectionVersions {
		cloned.collectionVersions[k] = cloneCollectionVersion(v)
	}
	for k, v := range s.conceptVersions {
		cloned.conceptVersions[k] = cloneConceptVersion(v)
	}
	for k, v := range s.mappingVersions {
		cloned.mappingVersions[k] = cloneMappingVersion(v)
	}
	for k, v := range s.versionOrder {
		cloned.versionOrder[k] = append([]string(nil), v...)
	}
	return cloned
}

func cloneExtras(extras map[string]any) map[string]any {
	if extras == nil {
		return nil
	}
	cp := make(map[string]any, len(extras))
	for k, v := range extras {
		cp[k] = v
	}
	return cp
}

func cloneSourceVersion(v SourceVersion) SourceVersion {
	cp := v
	cp.SupportedLocales = append([]string(nil), v.SupportedLocales...)
	cp.Extras = cloneExtras(v.Extras)
	return cp
}

func cloneCollectionVersion(v CollectionVersion) CollectionVersion {
	cp := v
	cp.SupportedLocales = append([]string(nil), v.SupportedLocales...)
	cp.References = append([]domain.Reference(nil), v.References...)
	cp.ConceptVersionIDs = append([]string(nil), v.ConceptVersionIDs...)
	cp.MappingVersionIDs = append([]string(nil), v.MappingVersionIDs...)
	cp.Extras = cloneExtras(v.Extras)
	return cp
}

func cloneConceptVersion(v ConceptVersion) ConceptVersion {
	cp := v
	cp.Names = append([]domain.LocalizedText(nil), v.Names...)
	cp.Descriptions = append([]domain.LocalizedText(nil), v.Descriptions...)
	cp.Extras = cloneExtras(v.Extras)
	return cp
}

func cloneMappingVersion(v MappingVersion) MappingVersion {
	cp := v
	cp.Extras = cloneExtras(v.Extras)
	return cp
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu    sync.RWMutex
	state memoryState
	nowFn func() time.Time
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{
		state: newMemoryState(),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the transaction clock, for tests.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

// ExportState returns a deep snapshot of the current state.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the current state with the snapshot contents.
func (s *Store) ImportState(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snap)
}

func newID() string {
	return uuid.NewString()
}

// RunInTransaction executes fn within a transactional copy of the store
// state. The state swap happens only when fn returns nil, so an aborted batch
// leaves the store exactly as it was. The store mutex serializes writers.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	cloned := s.state.clone()
	tx := &transaction{view: view{state: &cloned}, now: s.nowFn()}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = cloned
	return nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(ctx context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := s.state.clone()
	return fn(&view{state: &snapshot})
}

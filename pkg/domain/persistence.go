package domain

import "context"

// TransactionView provides read-only access to a consistent snapshot of the
// stored objects and versions. Version lists are ordered by creation time.
type TransactionView interface {
	FindSource(id string) (Source, bool)
	FindSourceByMnemonic(owner Owner, mnemonic string) (Source, bool)
	ListSources() []Source

	FindCollection(id string) (Collection, bool)
	FindCollectionByMnemonic(owner Owner, mnemonic string) (Collection, bool)
	ListCollections() []Collection

	FindConcept(id string) (Concept, bool)
	FindConceptByMnemonic(sourceID, mnemonic string) (Concept, bool)
	ListConcepts(sourceID string) []Concept

	FindMapping(id string) (Mapping, bool)
	ListMappings(sourceID string) []Mapping
	// ListMappingsForConcept returns mappings whose from- or to-concept is the
	// given concept, in creation order.
	ListMappingsForConcept(conceptID string) []Mapping

	FindSourceVersion(versionID string) (SourceVersion, bool)
	FindSourceVersionByMnemonic(objectID, mnemonic string) (SourceVersion, bool)
	ListSourceVersions(objectID string) []SourceVersion

	FindCollectionVersion(versionID string) (CollectionVersion, bool)
	FindCollectionVersionByMnemonic(objectID, mnemonic string) (CollectionVersion, bool)
	ListCollectionVersions(objectID string) []CollectionVersion

	FindConceptVersion(versionID string) (ConceptVersion, bool)
	ListConceptVersions(objectID string) []ConceptVersion

	FindMappingVersion(versionID string) (MappingVersion, bool)
	ListMappingVersions(objectID string) []MappingVersion
}

// Transaction exposes the mutations a persistence implementation must support
// within an atomic scope. Create calls assign ids and timestamps when absent
// and enforce mnemonic uniqueness among active siblings.
type Transaction interface {
	TransactionView

	CreateSource(Source) (Source, error)
	UpdateSource(id string, mutator func(*Source) error) (Source, error)
	DeleteSource(id string) error

	CreateCollection(Collection) (Collection, error)
	UpdateCollection(id string, mutator func(*Collection) error) (Collection, error)
	DeleteCollection(id string) error

	CreateConcept(Concept) (Concept, error)
	UpdateConcept(id string, mutator func(*Concept) error) (Concept, error)
	DeleteConcept(id string) error

	CreateMapping(Mapping) (Mapping, error)
	UpdateMapping(id string, mutator func(*Mapping) error) (Mapping, error)
	DeleteMapping(id string) error

	CreateSourceVersion(SourceVersion) (SourceVersion, error)
	UpdateSourceVersion(id string, mutator func(*SourceVersion) error) (SourceVersion, error)
	DeleteSourceVersion(id string) error

	CreateCollectionVersion(CollectionVersion) (CollectionVersion, error)
	UpdateCollectionVersion(id string, mutator func(*CollectionVersion) error) (CollectionVersion, error)
	DeleteCollectionVersion(id string) error

	CreateConceptVersion(ConceptVersion) (ConceptVersion, error)
	UpdateConceptVersion(id string, mutator func(*ConceptVersion) error) (ConceptVersion, error)
	DeleteConceptVersion(id string) error

	CreateMappingVersion(MappingVersion) (MappingVersion, error)
	UpdateMappingVersion(id string, mutator func(*MappingVersion) error) (MappingVersion, error)
	DeleteMappingVersion(id string) error
}

// PersistentStore is a minimal abstraction over durable backends. A store
// serializes transactions; concurrent writers against the same object either
// wait or fail with ErrConcurrentModification, never silently interleave.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) error
	View(ctx context.Context, fn func(TransactionView) error) error
}

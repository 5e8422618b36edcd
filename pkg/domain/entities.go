// Package domain defines the core persistent entities, value types, and
// validation primitives used by termcore.
package domain

import (
	"strings"
	"time"
)

// ResourceKind identifies the type of versioned object stored in the core domain.
type ResourceKind string

// Supported resource kinds used in version records and persistence buckets.
const (
	// KindSource identifies a code-system (dictionary) record.
	KindSource ResourceKind = "source"
	// KindCollection identifies a curated cross-source collection record.
	KindCollection ResourceKind = "collection"
	// KindConcept identifies a concept record owned by a source.
	KindConcept ResourceKind = "concept"
	// KindMapping identifies a concept-to-concept mapping record owned by a source.
	KindMapping ResourceKind = "mapping"
)

// OwnerKind distinguishes user-owned from organization-owned resources. The
// values double as the owner path segment in reference expressions.
type OwnerKind string

const (
	OwnerUser OwnerKind = "users"
	OwnerOrg  OwnerKind = "orgs"
)

// Owner names the user or organization a source or collection belongs to.
type Owner struct {
	Kind OwnerKind `json:"kind"`
	ID   string    `json:"id"`
}

// AccessType enumerates public-access levels carried on resource payloads.
type AccessType string

const (
	AccessView AccessType = "View"
	AccessEdit AccessType = "Edit"
	AccessNone AccessType = "None"
)

// DefaultAccess is applied when a payload does not name an access level.
const DefaultAccess = AccessView

// ValidationSchema selects the concept validation rule set for a source or
// collection.
type ValidationSchema string

const (
	SchemaBasic   ValidationSchema = "Basic"
	SchemaOpenMRS ValidationSchema = "OpenMRS"
)

// HeadMnemonic is the reserved mnemonic of the mutable working version of a
// versioned object. Numbered versions are immutable; HEAD is rewritten in
// place on metadata edits.
const HeadMnemonic = "HEAD"

// Name type values recognised on localized texts. Sources may configure more
// via reference values; these two carry structural meaning for validation.
const (
	NameTypeFullySpecified = "FULLY_SPECIFIED"
	NameTypeShort          = "SHORT"
	NameTypeIndexTerm      = "INDEX_TERM"
)

// LocalizedText is a name or description in a locale with preference and type
// flags.
type LocalizedText struct {
	Text            string `json:"text"`
	Locale          string `json:"locale"`
	LocalePreferred bool   `json:"locale_preferred,omitempty"`
	Type            string `json:"type,omitempty"`
}

// IsFullySpecified reports whether the text carries a fully-specified name type.
func (t LocalizedText) IsFullySpecified() bool {
	return t.Type == NameTypeFullySpecified || strings.EqualFold(t.Type, "Fully Specified")
}

// IsShort reports whether the text carries a short name type.
func (t LocalizedText) IsShort() bool {
	return t.Type == NameTypeShort || strings.EqualFold(t.Type, "Short")
}

// IsSearchIndexTerm reports whether the text is an index term.
func (t LocalizedText) IsSearchIndexTerm() bool {
	return t.Type == NameTypeIndexTerm || strings.EqualFold(t.Type, "Index Term")
}

// VersionedObject is the root identity shared by sources, collections,
// concepts and mappings. Payload fields live on versions; the root tracks
// ownership, the mnemonic, the version count and the soft-delete flag.
type VersionedObject struct {
	ID          string       `json:"id"`
	Kind        ResourceKind `json:"kind"`
	Owner       Owner        `json:"owner"`
	Mnemonic    string       `json:"mnemonic"`
	ParentID    string       `json:"parent_id,omitempty"` // owning source for concepts/mappings
	NumVersions int          `json:"num_versions"`
	IsActive    bool         `json:"is_active"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	CreatedBy   string       `json:"created_by,omitempty"`
	UpdatedBy   string       `json:"updated_by,omitempty"`
}

// Source is a published code system owning concepts and mappings.
type Source struct {
	VersionedObject
}

// Collection curates concepts and mappings across sources by reference.
type Collection struct {
	VersionedObject
}

// Concept is a dictionary entry owned by a source. Retired mirrors the latest
// version's flag so scope queries need not walk the chain.
type Concept struct {
	VersionedObject
	Retired bool `json:"retired,omitempty"`
}

// Mapping relates two concepts (or a concept and an external code). From/to
// fields mirror the latest version so cascade lookups need not walk the chain.
// Mappings have no human mnemonic; the root id doubles as one.
type Mapping struct {
	VersionedObject
	FromConceptID string `json:"from_concept_id"`
	ToConceptID   string `json:"to_concept_id,omitempty"`
	ToSourceID    string `json:"to_source_id,omitempty"`
	ToConceptCode string `json:"to_concept_code,omitempty"`
	Retired       bool   `json:"retired,omitempty"`
}

// VersionInfo carries the lineage and flag fields shared by every version
// kind. Versions compose it instead of inheriting a base class.
type VersionInfo struct {
	ID                string    `json:"id"`
	Mnemonic          string    `json:"mnemonic"`
	VersionedObjectID string    `json:"versioned_object_id"`
	PreviousVersionID string    `json:"previous_version_id,omitempty"`
	ParentVersionID   string    `json:"parent_version_id,omitempty"`
	Released          bool      `json:"released,omitempty"`
	Retired           bool      `json:"retired,omitempty"`
	IsLatest          bool      `json:"is_latest"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	CreatedBy         string    `json:"created_by,omitempty"`
	UpdatedBy         string    `json:"updated_by,omitempty"`
}

// IsHead reports whether the version is the mutable working copy.
func (v VersionInfo) IsHead() bool { return v.Mnemonic == HeadMnemonic }

// ContainerPayload is the metadata payload shared by source and collection
// versions.
type ContainerPayload struct {
	Name                   string           `json:"name"`
	FullName               string           `json:"full_name,omitempty"`
	Description            string           `json:"description,omitempty"`
	DefaultLocale          string           `json:"default_locale,omitempty"`
	SupportedLocales       []string         `json:"supported_locales,omitempty"`
	Website                string           `json:"website,omitempty"`
	ExternalID             string           `json:"external_id,omitempty"`
	PublicAccess           AccessType       `json:"public_access,omitempty"`
	CustomValidationSchema ValidationSchema `json:"custom_validation_schema,omitempty"`
	Extras                 map[string]any   `json:"extras,omitempty"`
}

// SourceVersion is an immutable snapshot of a source (HEAD excepted).
type SourceVersion struct {
	VersionInfo
	ContainerPayload
	SourceType string `json:"source_type,omitempty"`
}

// ReferenceType distinguishes concept from mapping references. The values
// double as the resource path segment in expressions.
type ReferenceType string

const (
	ReferenceConcept ReferenceType = "concepts"
	ReferenceMapping ReferenceType = "mappings"
)

// Reference is one entry of a collection's reference set. Expression is the
// canonical, version-qualified form; VersionedObjectID/VersionID are the
// resolved identity used for dedup.
type Reference struct {
	Expression        string        `json:"expression"`
	Type              ReferenceType `json:"reference_type"`
	VersionedObjectID string        `json:"versioned_object_id"`
	VersionID         string        `json:"version_id"`
}

// CollectionVersion is an immutable snapshot of a collection plus its
// materialized concept/mapping version id lists ("seeding"). The id lists are
// derived from the reference set and never hand-edited.
type CollectionVersion struct {
	VersionInfo
	ContainerPayload
	CollectionType    string      `json:"collection_type,omitempty"`
	References        []Reference `json:"references,omitempty"`
	ConceptVersionIDs []string    `json:"concept_version_ids,omitempty"`
	MappingVersionIDs []string    `json:"mapping_version_ids,omitempty"`
	ActiveConcepts    int         `json:"active_concepts"`
	ActiveMappings    int         `json:"active_mappings"`
}

// ConceptPayload holds the editable fields of a concept version.
type ConceptPayload struct {
	ConceptClass string          `json:"concept_class"`
	Datatype     string          `json:"datatype,omitempty"`
	Names        []LocalizedText `json:"names"`
	Descriptions []LocalizedText `json:"descriptions,omitempty"`
	PublicAccess AccessType      `json:"public_access,omitempty"`
	ExternalID   string          `json:"external_id,omitempty"`
	Extras       map[string]any  `json:"extras,omitempty"`
}

// ConceptVersion is an immutable snapshot of a concept (HEAD excepted).
type ConceptVersion struct {
	VersionInfo
	ConceptPayload
}

// DisplayName returns the preferred name when one exists, else the first name.
func (c ConceptVersion) DisplayName() string {
	for _, n := range c.Names {
		if n.LocalePreferred {
			return n.Text
		}
	}
	if len(c.Names) > 0 {
		return c.Names[0].Text
	}
	return ""
}

// MappingPayload holds the editable fields of a mapping version.
type MappingPayload struct {
	MapType       string         `json:"map_type"`
	FromConceptID string         `json:"from_concept_id"`
	ToConceptID   string         `json:"to_concept_id,omitempty"`
	ToSourceID    string         `json:"to_source_id,omitempty"`
	ToConceptCode string         `json:"to_concept_code,omitempty"`
	ToConceptName string         `json:"to_concept_name,omitempty"`
	PublicAccess  AccessType     `json:"public_access,omitempty"`
	ExternalID    string         `json:"external_id,omitempty"`
	Extras        map[string]any `json:"extras,omitempty"`
}

// MappingVersion is an immutable snapshot of a mapping (HEAD excepted).
type MappingVersion struct {
	VersionInfo
	MappingPayload
}

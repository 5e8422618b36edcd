package expression

import "termcore/pkg/domain"

// Lookup is the read-only store view resolution needs. It is a subset of
// domain.TransactionView so any snapshot satisfies it.
type Lookup interface {
	FindSourceByMnemonic(owner domain.Owner, mnemonic string) (domain.Source, bool)
	FindConceptByMnemonic(sourceID, mnemonic string) (domain.Concept, bool)
	FindMapping(id string) (domain.Mapping, bool)
	FindConceptVersion(versionID string) (domain.ConceptVersion, bool)
	FindMappingVersion(versionID string) (domain.MappingVersion, bool)
	ListConceptVersions(objectID string) []domain.ConceptVersion
	ListMappingVersions(objectID string) []domain.MappingVersion
}

// Resolved is a reference resolved to a concrete immutable version.
// Expression is the canonical, version-qualified serialization used for
// storage and dedup.
type Resolved struct {
	Type              domain.ReferenceType
	VersionedObjectID string
	VersionID         string
	Expression        string
}

// Reference converts the resolved form to a stored collection reference.
func (r Resolved) Reference() domain.Reference {
	return domain.Reference{
		Expression:        r.Expression,
		Type:              r.Type,
		VersionedObjectID: r.VersionedObjectID,
		VersionID:         r.VersionID,
	}
}

// Resolve maps a parsed reference to a concrete concept or mapping version.
// With a version segment the exact version is looked up; without one the
// resource's current latest version is chosen. Resolve reads only; failures
// propagate to the caller.
func Resolve(parsed ParsedReference, view Lookup) (Resolved, error) {
	source, ok := view.FindSourceByMnemonic(parsed.Owner(), parsed.Source)
	if !ok {
		return Resolved{}, domain.ErrNotFound{Kind: domain.KindSource, ID: parsed.Source}
	}
	switch parsed.Type {
	case domain.ReferenceConcept:
		return resolveConcept(parsed, source, view)
	case domain.ReferenceMapping:
		return resolveMapping(parsed, source, view)
	}
	return Resolved{}, domain.ErrInvalidExpression{Expression: parsed.String(), Reason: "unsupported resource type"}
}

func resolveConcept(parsed ParsedReference, source domain.Source, view Lookup) (Resolved, error) {
	concept, ok := view.FindConceptByMnemonic(source.ID, parsed.ResourceID)
	if !ok {
		return Resolved{}, domain.ErrNotFound{Kind: domain.KindConcept, ID: parsed.ResourceID}
	}
	var version domain.ConceptVersion
	if parsed.HasVersion() {
		version, ok = view.FindConceptVersion(parsed.VersionID)
		if !ok || version.VersionedObjectID != concept.ID {
			return Resolved{}, domain.ErrVersionNotFound{Kind: domain.KindConcept, VersionedObjectID: concept.ID, VersionID: parsed.VersionID}
		}
	} else {
		version, ok = latestConceptVersion(view.ListConceptVersions(concept.ID))
		if !ok {
			return Resolved{}, domain.ErrVersionNotFound{Kind: domain.KindConcept, VersionedObjectID: concept.ID}
		}
	}
	return Resolved{
		Type:              domain.ReferenceConcept,
		VersionedObjectID: concept.ID,
		VersionID:         version.ID,
		Expression:        parsed.WithVersion(version.ID).String(),
	}, nil
}

func resolveMapping(parsed ParsedReference, source domain.Source, view Lookup) (Resolved, error) {
	// Mappings carry no human mnemonic; the resource segment is the root id.
	mapping, ok := view.FindMapping(parsed.ResourceID)
	if !ok || mapping.ParentID != source.ID || !mapping.IsActive {
		return Resolved{}, domain.ErrNotFound{Kind: domain.KindMapping, ID: parsed.ResourceID}
	}
	var version domain.MappingVersion
	if parsed.HasVersion() {
		version, ok = view.FindMappingVersion(parsed.VersionID)
		if !ok || version.VersionedObjectID != mapping.ID {
			return Resolved{}, domain.ErrVersionNotFound{Kind: domain.KindMapping, VersionedObjectID: mapping.ID, VersionID: parsed.VersionID}
		}
	} else {
		version, ok = latestMappingVersion(view.ListMappingVersions(mapping.ID))
		if !ok {
			return Resolved{}, domain.ErrVersionNotFound{Kind: domain.KindMapping, VersionedObjectID: mapping.ID}
		}
	}
	return Resolved{
		Type:              domain.ReferenceMapping,
		VersionedObjectID: mapping.ID,
		VersionID:         version.ID,
		Expression:        parsed.WithVersion(version.ID).String(),
	}, nil
}

func latestConceptVersion(versions []domain.ConceptVersion) (domain.ConceptVersion, bool) {
	for i := len(versions) - 1; i >= 0; i-- {
		if versions[i].IsLatest && versions[i].IsActive {
			return versions[i], true
		}
	}
	return domain.ConceptVersion{}, false
}

func latestMappingVersion(versions []domain.MappingVersion) (domain.MappingVersion, bool) {
	for i := len(versions) - 1; i >= 0; i-- {
		if versions[i].IsLatest && versions[i].IsActive {
			return versions[i], true
		}
	}
	return domain.MappingVersion{}, false
}

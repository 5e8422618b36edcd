package core

import (
	"context"

	"termcore/pkg/domain"
)

// validateConceptVersion runs the scope's schema-selected rule set over one
// concept version. Violations accumulate across every rule.
func (s *Service) validateConceptVersion(ctx context.Context, scope domain.ValidationScope, version domain.ConceptVersion) domain.Result {
	var res domain.Result
	for _, validator := range s.validatorsFor(scope.Schema()) {
		res.Merge(validator.ValidateConcept(ctx, scope, version))
	}
	return res
}

func (s *Service) validatorsFor(schema domain.ValidationSchema) []domain.ConceptValidator {
	validators := []domain.ConceptValidator{BasicConceptValidator{}}
	if schema == domain.SchemaOpenMRS {
		validators = append(validators, OpenMRSConceptValidator{ReferenceValues: s.refValues})
	}
	return validators
}

// ValidateConcept validates a concept's latest version against its source's
// configured schema, returning every violated rule.
func (s *Service) ValidateConcept(ctx context.Context, conceptID string) (domain.Result, error) {
	var res domain.Result
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		root, ok := view.FindConcept(conceptID)
		if !ok {
			return domain.ErrNotFound{Kind: domain.KindConcept, ID: conceptID}
		}
		latest, ok := latestConceptVersion(view, conceptID)
		if !ok {
			return domain.ErrVersionNotFound{Kind: domain.KindConcept, VersionedObjectID: conceptID}
		}
		scope := s.sourceScope(view, root.ParentID, conceptID)
		res = s.validateConceptVersion(ctx, scope, latest)
		return nil
	})
	return res, err
}

// validateChildConcepts revalidates every active concept of a source under
// the given schema, tagging each violation with the failing concept id.
func (s *Service) validateChildConcepts(ctx context.Context, view domain.TransactionView, sourceID string, schema domain.ValidationSchema) domain.Result {
	var res domain.Result
	for _, concept := range view.ListConcepts(sourceID) {
		if !concept.IsActive || concept.Retired {
			continue
		}
		latest, ok := latestConceptVersion(view, concept.ID)
		if !ok {
			continue
		}
		scope := explicitSourceScope{view: view, sourceID: sourceID, schema: schema, exclude: concept.ID}
		partial := s.validateConceptVersion(ctx, scope, latest)
		for _, v := range partial.Violations {
			v.ConceptID = concept.ID
			res.Add(v)
		}
	}
	return res
}

// sourceScope builds a validation scope over a source's active concepts,
// with the schema read from the source's HEAD version.
func (s *Service) sourceScope(view domain.TransactionView, sourceID, excludeObjectID string) domain.ValidationScope {
	schema := domain.SchemaBasic
	if head, ok := view.FindSourceVersionByMnemonic(sourceID, domain.HeadMnemonic); ok && head.CustomValidationSchema != "" {
		schema = head.CustomValidationSchema
	}
	return explicitSourceScope{view: view, sourceID: sourceID, schema: schema, exclude: excludeObjectID}
}

// explicitSourceScope is a source scope with a caller-chosen schema, used
// both for regular edits and for schema-switch revalidation.
type explicitSourceScope struct {
	view     domain.TransactionView
	sourceID string
	schema   domain.ValidationSchema
	exclude  string
}

func (sc explicitSourceScope) Schema() domain.ValidationSchema { return sc.schema }

func (sc explicitSourceScope) SiblingConcepts(excludeObjectID string) []domain.ConceptVersion {
	exclude := sc.exclude
	if excludeObjectID != "" {
		exclude = excludeObjectID
	}
	var out []domain.ConceptVersion
	for _, concept := range sc.view.ListConcepts(sc.sourceID) {
		if !concept.IsActive || concept.Retired || concept.ID == exclude {
			continue
		}
		if latest, ok := latestConceptVersion(sc.view, concept.ID); ok {
			out = append(out, latest)
		}
	}
	return out
}

// collectionScope builds a validation scope over the concept versions a
// collection's reference set points at.
func (s *Service) collectionScope(view domain.TransactionView, schema domain.ValidationSchema, refs []domain.Reference, excludeObjectID string) domain.ValidationScope {
	if schema == "" {
		schema = domain.SchemaBasic
	}
	return referenceScope{view: view, schema: schema, refs: refs, exclude: excludeObjectID}
}

type referenceScope struct {
	view    domain.TransactionView
	schema  domain.ValidationSchema
	refs    []domain.Reference
	exclude string
}

func (sc referenceScope) Schema() domain.ValidationSchema { return sc.schema }

func (sc referenceScope) SiblingConcepts(excludeObjectID string) []domain.ConceptVersion {
	exclude := sc.exclude
	if excludeObjectID != "" {
		exclude = excludeObjectID
	}
	var out []domain.ConceptVersion
	for _, ref := range sc.refs {
		if ref.Type != domain.ReferenceConcept || ref.VersionedObjectID == exclude {
			continue
		}
		if version, ok := sc.view.FindConceptVersion(ref.VersionID); ok {
			out = append(out, version)
		}
	}
	return out
}

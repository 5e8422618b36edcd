package core

import (
	"context"

	"termcore/internal/config"
	"termcore/pkg/domain"
)

// OpenMRSConceptValidator enforces the OpenMRS dictionary rules on top of
// the basic invariants: per-locale preferred/fully-specified/short name
// cardinality inside one concept, scope-wide name uniqueness across the
// owning source or collection, and reference-value membership for lookup
// attributes.
type OpenMRSConceptValidator struct {
	ReferenceValues config.ReferenceValues
}

// Name implements domain.ConceptValidator.
func (OpenMRSConceptValidator) Name() string { return "OpenMRS" }

// ValidateConcept implements domain.ConceptValidator.
func (v OpenMRSConceptValidator) ValidateConcept(_ context.Context, scope domain.ValidationScope, concept domain.ConceptVersion) domain.Result {
	var res domain.Result
	v.mustHaveExactlyOnePreferredName(concept, &res)
	v.allNonShortNamesMustBeUnique(concept, &res)
	v.noMoreThanOneShortNamePerLocale(concept, &res)
	v.shortNameCannotBePreferred(concept, &res)
	v.onlyOneFullySpecifiedNamePerLocale(concept, &res)
	v.lookupAttributesMustBeValid(concept, &res)

	siblings := scope.SiblingConcepts(concept.VersionedObjectID)
	v.fullySpecifiedNameUniqueInScope(concept, siblings, &res)
	v.preferredNameUniqueInScope(concept, siblings, &res)
	return res
}

func (OpenMRSConceptValidator) mustHaveExactlyOnePreferredName(concept domain.ConceptVersion, res *domain.Result) {
	seen := map[string]bool{}
	for _, name := range concept.Names {
		if !name.LocalePreferred {
			continue
		}
		if seen[name.Locale] {
			res.Add(domain.Violation{
				Rule:    "MustHaveExactlyOnePreferredName",
				Field:   "names",
				Message: MsgMustHaveExactlyOnePreferredName,
				Value:   name.Text,
			})
		}
		seen[name.Locale] = true
	}
}

func (OpenMRSConceptValidator) allNonShortNamesMustBeUnique(concept domain.ConceptVersion, res *domain.Result) {
	seen := map[string]bool{}
	for _, name := range concept.Names {
		if name.IsShort() {
			continue
		}
		key := name.Locale + "|" + name.Text
		if seen[key] {
			res.Add(domain.Violation{
				Rule:    "NamesExceptShortMustBeUnique",
				Field:   "names",
				Message: MsgNamesExceptShortMustBeUnique,
				Value:   name.Text,
			})
		}
		seen[key] = true
	}
}

func (OpenMRSConceptValidator) noMoreThanOneShortNamePerLocale(concept domain.ConceptVersion, res *domain.Result) {
	seen := map[string]bool{}
	for _, name := range concept.Names {
		if !name.IsShort() {
			continue
		}
		if seen[name.Locale] {
			res.Add(domain.Violation{
				Rule:    "NoMoreThanOneShortNamePerLocale",
				Field:   "names",
				Message: MsgNoMoreThanOneShortNamePerLocale,
				Value:   name.Text,
			})
		}
		seen[name.Locale] = true
	}
}

func (OpenMRSConceptValidator) shortNameCannotBePreferred(concept domain.ConceptVersion, res *domain.Result) {
	for _, name := range concept.Names {
		if (name.IsShort() || name.IsSearchIndexTerm()) && name.LocalePreferred {
			res.Add(domain.Violation{
				Rule:    "ShortNameCannotBePreferred",
				Field:   "names",
				Message: MsgShortNameCannotBePreferred,
				Value:   name.Text,
			})
		}
	}
}

func (OpenMRSConceptValidator) onlyOneFullySpecifiedNamePerLocale(concept domain.ConceptVersion, res *domain.Result) {
	seen := map[string]bool{}
	for _, name := range concept.Names {
		if !name.IsFullySpecified() {
			continue
		}
		if seen[name.Locale] {
			res.Add(domain.Violation{
				Rule:    "OneFullySpecifiedNamePerLocale",
				Field:   "names",
				Message: MsgOneFullySpecifiedNamePerLocale,
				Value:   name.Text,
			})
		}
		seen[name.Locale] = true
	}
}

// lookupAttributesMustBeValid checks the concept's class, datatype, name
// types, description types and locales against the configured reference
// values. Concepts of a bootstrap lookup class are exempt so the reference
// dictionaries themselves can be loaded.
func (v OpenMRSConceptValidator) lookupAttributesMustBeValid(concept domain.ConceptVersion, res *domain.Result) {
	if config.IsLookupClass(concept.ConceptClass) {
		return
	}
	if !v.ReferenceValues.HasClass(concept.ConceptClass) {
		res.Add(domain.Violation{Rule: "ConceptClassValid", Field: "concept_class", Message: MsgInvalidConceptClass, Value: concept.ConceptClass})
	}
	if !v.ReferenceValues.HasDatatype(concept.Datatype) {
		res.Add(domain.Violation{Rule: "DatatypeValid", Field: "datatype", Message: MsgInvalidDatatype, Value: concept.Datatype})
	}
	for _, name := range concept.Names {
		if name.Type != domain.NameTypeFullySpecified && name.Type != domain.NameTypeShort && !v.ReferenceValues.HasNameType(name.Type) {
			res.Add(domain.Violation{Rule: "NameTypeValid", Field: "names", Message: MsgInvalidNameType, Value: name.Type})
		}
		if !v.ReferenceValues.HasLocale(name.Locale) {
			res.Add(domain.Violation{Rule: "NameLocaleValid", Field: "names", Message: MsgInvalidNameLocale, Value: name.Locale})
		}
	}
	for _, desc := range concept.Descriptions {
		if !v.ReferenceValues.HasDescriptionType(desc.Type) {
			res.Add(domain.Violation{Rule: "DescriptionTypeValid", Field: "descriptions", Message: MsgInvalidDescriptionType, Value: desc.Type})
		}
		if !v.ReferenceValues.HasLocale(desc.Locale) {
			res.Add(domain.Violation{Rule: "DescriptionLocaleValid", Field: "descriptions", Message: MsgInvalidDescriptionLocale, Value: desc.Locale})
		}
	}
}

func (OpenMRSConceptValidator) fullySpecifiedNameUniqueInScope(concept domain.ConceptVersion, siblings []domain.ConceptVersion, res *domain.Result) {
	for _, name := range concept.Names {
		if !name.IsFullySpecified() {
			continue
		}
		if siblingHasName(siblings, name) {
			res.Add(domain.Violation{
				Rule:    "FullySpecifiedNameUniquePerScopeLocale",
				Field:   "names",
				Message: MsgFullySpecifiedNameUniquePerScopeLocale,
				Value:   name.Text,
			})
		}
	}
}

func (OpenMRSConceptValidator) preferredNameUniqueInScope(concept domain.ConceptVersion, siblings []domain.ConceptVersion, res *domain.Result) {
	for _, name := range concept.Names {
		if !name.LocalePreferred {
			continue
		}
		if siblingHasName(siblings, name) {
			res.Add(domain.Violation{
				Rule:    "PreferredNameUniquePerScopeLocale",
				Field:   "names",
				Message: MsgPreferredNameUniquePerScopeLocale,
				Value:   name.Text,
			})
		}
	}
}

// siblingHasName scans all non-short names of the sibling concepts,
// regardless of name type, for a verbatim text match in the same locale.
func siblingHasName(siblings []domain.ConceptVersion, name domain.LocalizedText) bool {
	for _, sibling := range siblings {
		for _, other := range sibling.Names {
			if other.IsShort() {
				continue
			}
			if other.Locale == name.Locale && other.Text == name.Text {
				return true
			}
		}
	}
	return false
}

package core

import (
	"context"

	"termcore/pkg/domain"
)

// Validation rule messages. The strings are part of the API surface clients
// match on, so they are kept verbatim across releases.
const (
	MsgNamesCannotBeEmpty           = "A concept must have at least one name"
	MsgDescriptionCannotBeEmpty     = "Concept description cannot be empty"
	MsgAtLeastOneFullySpecifiedName = "A concept must have at least one fully specified name"
	MsgNameLocaleCannotBeEmpty      = "Concept name locale cannot be empty"

	MsgOneFullySpecifiedNamePerLocale         = "A concept may not have more than one fully specified name in any locale"
	MsgNoMoreThanOneShortNamePerLocale        = "A concept cannot have more than one short name in a locale"
	MsgNamesExceptShortMustBeUnique           = "All names except short names must be unique for a concept and locale"
	MsgFullySpecifiedNameUniquePerScopeLocale = "Concept fully specified name must be unique for same source and locale"
	MsgMustHaveExactlyOnePreferredName        = "A concept may not have more than one preferred name (per locale)"
	MsgShortNameCannotBePreferred             = "A short name cannot be marked as locale preferred"
	MsgPreferredNameUniquePerScopeLocale      = "Concept preferred name must be unique for same source and locale"

	MsgInvalidConceptClass      = "Invalid concept class"
	MsgInvalidDatatype          = "Invalid data type"
	MsgInvalidNameType          = "Invalid name type"
	MsgInvalidDescriptionType   = "Invalid description type"
	MsgInvalidNameLocale        = "Invalid name locale"
	MsgInvalidDescriptionLocale = "Invalid description locale"
)

// BasicConceptValidator enforces the invariants every schema shares: at
// least one name, at least one fully specified name, non-empty description
// texts and locale codes on every localized text.
type BasicConceptValidator struct{}

// Name implements domain.ConceptValidator.
func (BasicConceptValidator) Name() string { return "Basic" }

// ValidateConcept implements domain.ConceptValidator.
func (BasicConceptValidator) ValidateConcept(_ context.Context, _ domain.ValidationScope, concept domain.ConceptVersion) domain.Result {
	var res domain.Result
	if len(concept.Names) == 0 {
		res.Add(domain.Violation{Rule: "NamesCannotBeEmpty", Field: "names", Message: MsgNamesCannotBeEmpty})
	} else {
		fullySpecified := false
		for _, name := range concept.Names {
			if name.IsFullySpecified() {
				fullySpecified = true
			}
			if name.Locale == "" {
				res.Add(domain.Violation{Rule: "NameLocaleCannotBeEmpty", Field: "names", Message: MsgNameLocaleCannotBeEmpty, Value: name.Text})
			}
		}
		if !fullySpecified {
			res.Add(domain.Violation{Rule: "AtLeastOneFullySpecifiedName", Field: "names", Message: MsgAtLeastOneFullySpecifiedName})
		}
	}
	for _, desc := range concept.Descriptions {
		if desc.Text == "" {
			res.Add(domain.Violation{Rule: "DescriptionCannotBeEmpty", Field: "descriptions", Message: MsgDescriptionCannotBeEmpty})
		}
	}
	return res
}

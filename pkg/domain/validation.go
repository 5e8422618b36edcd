package domain

import "context"

// ValidationScope provides read-only access to the sibling concepts of the
// scope being validated: the latest versions of a source's active concepts
// for a standalone edit, or the concept versions referenced by a collection
// for membership changes.
type ValidationScope interface {
	// Schema returns the validation schema configured on the scope.
	Schema() ValidationSchema
	// SiblingConcepts lists the scope's concept versions excluding any version
	// of the given versioned object.
	SiblingConcepts(excludeObjectID string) []ConceptVersion
}

// ConceptValidator checks one concept version against a rule set. Violations
// are collected, never short-circuited.
type ConceptValidator interface {
	Name() string
	ValidateConcept(ctx context.Context, scope ValidationScope, concept ConceptVersion) Result
}

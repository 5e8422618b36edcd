package domain

import "fmt"

// ErrNotFound reports a missing versioned object or version.
type ErrNotFound struct {
	Kind ResourceKind
	ID   string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// ErrInvalidExpression reports an expression that does not match the
// reference grammar.
type ErrInvalidExpression struct {
	Expression string
	Reason     string
}

func (e ErrInvalidExpression) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid expression %q", e.Expression)
	}
	return fmt.Sprintf("invalid expression %q: %s", e.Expression, e.Reason)
}

// ErrVersionNotFound reports a version segment that names no stored version.
type ErrVersionNotFound struct {
	Kind              ResourceKind
	VersionedObjectID string
	VersionID         string
}

func (e ErrVersionNotFound) Error() string {
	return fmt.Sprintf("%s %s has no version %q", e.Kind, e.VersionedObjectID, e.VersionID)
}

// ErrReferenceAlreadyExists reports a reference whose resolved version is
// already present in the collection.
type ErrReferenceAlreadyExists struct {
	Expression string
}

func (e ErrReferenceAlreadyExists) Error() string {
	return fmt.Sprintf("reference %s already exists in this collection", e.Expression)
}

// ErrDuplicateVersionMnemonic reports a version label already taken within a
// versioned object.
type ErrDuplicateVersionMnemonic struct {
	VersionedObjectID string
	Mnemonic          string
}

func (e ErrDuplicateVersionMnemonic) Error() string {
	return fmt.Sprintf("version %q already exists for %s", e.Mnemonic, e.VersionedObjectID)
}

// ErrInvalidLineage reports a previous/parent version link that is not a
// valid ancestor.
type ErrInvalidLineage struct {
	Reason string
}

func (e ErrInvalidLineage) Error() string {
	return "invalid lineage: " + e.Reason
}

// ErrConcurrentModification reports a version-chain write that lost a race:
// the latest version observed by the caller is no longer latest.
type ErrConcurrentModification struct {
	VersionedObjectID string
	ExpectedLatest    string
	ActualLatest      string
}

func (e ErrConcurrentModification) Error() string {
	return fmt.Sprintf("%s was modified concurrently: expected latest %q, found %q",
		e.VersionedObjectID, e.ExpectedLatest, e.ActualLatest)
}

// ErrAlreadyRetired reports a retire call against an already retired resource.
type ErrAlreadyRetired struct {
	Kind ResourceKind
	ID   string
}

func (e ErrAlreadyRetired) Error() string {
	return fmt.Sprintf("%s %s is already retired", e.Kind, e.ID)
}

// ErrNotRetired reports an unretire call against a resource that is not
// retired.
type ErrNotRetired struct {
	Kind ResourceKind
	ID   string
}

func (e ErrNotRetired) Error() string {
	return fmt.Sprintf("%s %s is not retired", e.Kind, e.ID)
}

// ErrReferencedByOthers blocks deletion of an object that other live
// collections or mappings still point into.
type ErrReferencedByOthers struct {
	Kind         ResourceKind
	ID           string
	ReferencedBy []string
}

func (e ErrReferencedByOthers) Error() string {
	return fmt.Sprintf("%s %s is still referenced by %d other resource(s)", e.Kind, e.ID, len(e.ReferencedBy))
}

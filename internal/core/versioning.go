package core

import (
	"termcore/pkg/domain"
)

// CloneOptions control how a new numbered version is derived from an
// existing one. Exactly one of PreviousVersionID/ParentVersionID may be set;
// when neither is set the chain's current latest version becomes the
// previous version. ExpectedLatest optionally guards against concurrent
// writers: when set, version creation fails with ErrConcurrentModification
// unless it still names the current latest version.
type CloneOptions struct {
	FromVersionID     string // version to copy payload from; defaults to HEAD for containers, latest otherwise
	PreviousVersionID string
	ParentVersionID   string
	Released          bool
	ExpectedLatest    string
	CreatedBy         string
}

// versionOwner resolves a version id to the versioned object owning it.
type versionOwner func(versionID string) (objectID string, ok bool)

// resolveLineage validates the previous/parent choice and applies the
// default. allowCrossParent permits a parent version belonging to a different
// object of the same kind (collection release workflows build on another
// collection's version).
func resolveLineage(opts CloneOptions, objectID, currentLatestID string, owner versionOwner, allowCrossParent bool) (previousID, parentID string, err error) {
	if opts.PreviousVersionID != "" && opts.ParentVersionID != "" {
		return "", "", domain.ErrInvalidLineage{Reason: "previous and parent version are mutually exclusive"}
	}
	if opts.PreviousVersionID != "" {
		ownerID, ok := owner(opts.PreviousVersionID)
		if !ok {
			return "", "", domain.ErrInvalidLineage{Reason: "previous version " + opts.PreviousVersionID + " does not exist"}
		}
		if ownerID != objectID {
			return "", "", domain.ErrInvalidLineage{Reason: "previous version belongs to a different object"}
		}
		return opts.PreviousVersionID, "", nil
	}
	if opts.ParentVersionID != "" {
		ownerID, ok := owner(opts.ParentVersionID)
		if !ok {
			return "", "", domain.ErrInvalidLineage{Reason: "parent version " + opts.ParentVersionID + " does not exist"}
		}
		if ownerID != objectID && !allowCrossParent {
			return "", "", domain.ErrInvalidLineage{Reason: "parent version belongs to a different object"}
		}
		return "", opts.ParentVersionID, nil
	}
	if currentLatestID == "" {
		// First version of the chain carries no lineage.
		return "", "", nil
	}
	return currentLatestID, "", nil
}

// checkExpectedLatest enforces the optional compare-and-swap guard.
func checkExpectedLatest(objectID, expected, actual string) error {
	if expected == "" || expected == actual {
		return nil
	}
	return domain.ErrConcurrentModification{
		VersionedObjectID: objectID,
		ExpectedLatest:    expected,
		ActualLatest:      actual,
	}
}

func latestSourceVersion(view domain.TransactionView, objectID string) (domain.SourceVersion, bool) {
	versions := view.ListSourceVersions(objectID)
	for i := len(versions) - 1; i >= 0; i-- {
		if versions[i].IsLatest && versions[i].IsActive {
			return versions[i], true
		}
	}
	return domain.SourceVersion{}, false
}

func latestCollectionVersion(view domain.TransactionView, objectID string) (domain.CollectionVersion, bool) {
	versions := view.ListCollectionVersions(objectID)
	for i := len(versions) - 1; i >= 0; i-- {
		if versions[i].IsLatest && versions[i].IsActive {
			return versions[i], true
		}
	}
	return domain.CollectionVersion{}, false
}

func latestConceptVersion(view domain.TransactionView, objectID string) (domain.ConceptVersion, bool) {
	versions := view.ListConceptVersions(objectID)
	for i := len(versions) - 1; i >= 0; i-- {
		if versions[i].IsLatest && versions[i].IsActive {
			return versions[i], true
		}
	}
	return domain.ConceptVersion{}, false
}

func latestMappingVersion(view domain.TransactionView, objectID string) (domain.MappingVersion, bool) {
	versions := view.ListMappingVersions(objectID)
	for i := len(versions) - 1; i >= 0; i-- {
		if versions[i].IsLatest && versions[i].IsActive {
			return versions[i], true
		}
	}
	return domain.MappingVersion{}, false
}

func latestReleasedSourceVersion(view domain.TransactionView, objectID string) (domain.SourceVersion, bool) {
	versions := view.ListSourceVersions(objectID)
	for i := len(versions) - 1; i >= 0; i-- {
		v := versions[i]
		if v.Released && v.IsActive && !v.Retired {
			return v, true
		}
	}
	return domain.SourceVersion{}, false
}

func latestReleasedCollectionVersion(view domain.TransactionView, objectID string) (domain.CollectionVersion, bool) {
	versions := view.ListCollectionVersions(objectID)
	for i := len(versions) - 1; i >= 0; i-- {
		v := versions[i]
		if v.Released && v.IsActive && !v.Retired {
			return v, true
		}
	}
	return domain.CollectionVersion{}, false
}

// clearLatestSourceVersion drops the latest flag from whichever version
// currently carries it, ahead of flagging its successor.
func clearLatestSourceVersion(tx domain.Transaction, objectID string) error {
	for _, v := range tx.ListSourceVersions(objectID) {
		if !v.IsLatest {
			continue
		}
		if _, err := tx.UpdateSourceVersion(v.ID, func(sv *domain.SourceVersion) error {
			sv.IsLatest = false
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

func clearLatestCollectionVersion(tx domain.Transaction, objectID string) error {
	for _, v := range tx.ListCollectionVersions(objectID) {
		if !v.IsLatest {
			continue
		}
		if _, err := tx.UpdateCollectionVersion(v.ID, func(cv *domain.CollectionVersion) error {
			cv.IsLatest = false
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

func clearLatestConceptVersion(tx domain.Transaction, objectID string) error {
	for _, v := range tx.ListConceptVersions(objectID) {
		if !v.IsLatest {
			continue
		}
		if _, err := tx.UpdateConceptVersion(v.ID, func(cv *domain.ConceptVersion) error {
			cv.IsLatest = false
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

func clearLatestMappingVersion(tx domain.Transaction, objectID string) error {
	for _, v := range tx.ListMappingVersions(objectID) {
		if !v.IsLatest {
			continue
		}
		if _, err := tx.UpdateMappingVersion(v.ID, func(mv *domain.MappingVersion) error {
			mv.IsLatest = false
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

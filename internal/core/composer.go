package core

import (
	"context"

	"termcore/pkg/domain"
)

// seedReferences snapshots the given reference set onto the version and
// recomputes the materialized concept/mapping version id lists and active
// counts. Addition order is preserved.
func seedReferences(view domain.TransactionView, version *domain.CollectionVersion, refs []domain.Reference) {
	version.References = append([]domain.Reference(nil), refs...)
	version.ConceptVersionIDs = nil
	version.MappingVersionIDs = nil
	version.ActiveConcepts = 0
	version.ActiveMappings = 0
	for _, ref := range refs {
		switch ref.Type {
		case domain.ReferenceConcept:
			version.ConceptVersionIDs = append(version.ConceptVersionIDs, ref.VersionID)
			if c, ok := view.FindConcept(ref.VersionedObjectID); ok && c.IsActive && !c.Retired {
				version.ActiveConcepts++
			}
		case domain.ReferenceMapping:
			version.MappingVersionIDs = append(version.MappingVersionIDs, ref.VersionID)
			if m, ok := view.FindMapping(ref.VersionedObjectID); ok && m.IsActive && !m.Retired {
				version.ActiveMappings++
			}
		}
	}
}

// SeedCollectionVersion recomputes a collection version's concept and
// mapping id lists from the owning collection's current HEAD reference set.
// Seeding always derives from HEAD, never from the version's previous
// version, and is idempotent when the reference set has not changed.
func (s *Service) SeedCollectionVersion(ctx context.Context, versionID string) (domain.CollectionVersion, error) {
	var seeded domain.CollectionVersion
	err := s.instrument(ctx, "seed_collection_version", func() error {
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			version, ok := tx.FindCollectionVersion(versionID)
			if !ok {
				return domain.ErrVersionNotFound{Kind: domain.KindCollection, VersionID: versionID}
			}
			head, ok := tx.FindCollectionVersionByMnemonic(version.VersionedObjectID, domain.HeadMnemonic)
			if !ok {
				return domain.ErrVersionNotFound{Kind: domain.KindCollection, VersionedObjectID: version.VersionedObjectID, VersionID: domain.HeadMnemonic}
			}
			var err error
			seeded, err = tx.UpdateCollectionVersion(versionID, func(cv *domain.CollectionVersion) error {
				seedReferences(tx, cv, head.References)
				return nil
			})
			return err
		})
	})
	return seeded, err
}

// ActiveConceptCount returns the number of concept versions in the snapshot
// whose underlying concept is neither retired nor soft-deleted.
func (s *Service) ActiveConceptCount(ctx context.Context, versionID string) (int, error) {
	var count int
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		version, ok := view.FindCollectionVersion(versionID)
		if !ok {
			return domain.ErrVersionNotFound{Kind: domain.KindCollection, VersionID: versionID}
		}
		for _, vid := range version.ConceptVersionIDs {
			cv, ok := view.FindConceptVersion(vid)
			if !ok {
				continue
			}
			if c, ok := view.FindConcept(cv.VersionedObjectID); ok && c.IsActive && !c.Retired {
				count++
			}
		}
		return nil
	})
	return count, err
}

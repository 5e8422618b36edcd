package core

import (
	"context"

	"termcore/pkg/domain"
)

// collectionsReferencing lists the ids of live collections whose HEAD
// reference set points at the given versioned object.
func collectionsReferencing(view domain.TransactionView, objectID string) []string {
	var out []string
	for _, coll := range view.ListCollections() {
		if !coll.IsActive {
			continue
		}
		head, ok := view.FindCollectionVersionByMnemonic(coll.ID, domain.HeadMnemonic)
		if !ok {
			continue
		}
		for _, ref := range head.References {
			if ref.VersionedObjectID == objectID {
				out = append(out, coll.ID)
				break
			}
		}
	}
	return out
}

// DeleteConcept destroys a concept root and its whole version chain. It
// fails when a live collection still references the concept or an active
// mapping still points at it.
func (s *Service) DeleteConcept(ctx context.Context, id string) error {
	return s.instrument(ctx, "delete_concept", func() error {
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			if _, ok := tx.FindConcept(id); !ok {
				return domain.ErrNotFound{Kind: domain.KindConcept, ID: id}
			}
			referencedBy := collectionsReferencing(tx, id)
			for _, m := range tx.ListMappingsForConcept(id) {
				if m.IsActive {
					referencedBy = append(referencedBy, m.ID)
				}
			}
			if len(referencedBy) > 0 {
				return domain.ErrReferencedByOthers{Kind: domain.KindConcept, ID: id, ReferencedBy: referencedBy}
			}
			return tx.DeleteConcept(id)
		})
	})
}

// DeleteMapping destroys a mapping root and its version chain unless a live
// collection still references it.
func (s *Service) DeleteMapping(ctx context.Context, id string) error {
	return s.instrument(ctx, "delete_mapping", func() error {
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			if _, ok := tx.FindMapping(id); !ok {
				return domain.ErrNotFound{Kind: domain.KindMapping, ID: id}
			}
			if referencedBy := collectionsReferencing(tx, id); len(referencedBy) > 0 {
				return domain.ErrReferencedByOthers{Kind: domain.KindMapping, ID: id, ReferencedBy: referencedBy}
			}
			return tx.DeleteMapping(id)
		})
	})
}

// DeleteSource destroys a source with all of its concepts, mappings and
// versions. It fails when a live collection still references any of the
// source's children.
func (s *Service) DeleteSource(ctx context.Context, id string) error {
	return s.instrument(ctx, "delete_source", func() error {
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			if _, ok := tx.FindSource(id); !ok {
				return domain.ErrNotFound{Kind: domain.KindSource, ID: id}
			}
			var referencedBy []string
			for _, c := range tx.ListConcepts(id) {
				referencedBy = append(referencedBy, collectionsReferencing(tx, c.ID)...)
			}
			for _, m := range tx.ListMappings(id) {
				referencedBy = append(referencedBy, collectionsReferencing(tx, m.ID)...)
			}
			if len(referencedBy) > 0 {
				return domain.ErrReferencedByOthers{Kind: domain.KindSource, ID: id, ReferencedBy: referencedBy}
			}
			for _, m := range tx.ListMappings(id) {
				if err := tx.DeleteMapping(m.ID); err != nil {
					return err
				}
			}
			for _, c := range tx.ListConcepts(id) {
				if err := tx.DeleteConcept(c.ID); err != nil {
					return err
				}
			}
			return tx.DeleteSource(id)
		})
	})
}

// DeleteCollection destroys a collection and its version chain. A collection
// owns its references outright, so no guard applies.
func (s *Service) DeleteCollection(ctx context.Context, id string) error {
	return s.instrument(ctx, "delete_collection", func() error {
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			if _, ok := tx.FindCollection(id); !ok {
				return domain.ErrNotFound{Kind: domain.KindCollection, ID: id}
			}
			return tx.DeleteCollection(id)
		})
	})
}

// SoftDeleteConcept deactivates a concept root and every version on its
// chain without destroying history.
func (s *Service) SoftDeleteConcept(ctx context.Context, id string) error {
	return s.setConceptActive(ctx, "soft_delete_concept", id, false)
}

// UndeleteConcept reactivates a soft-deleted concept.
func (s *Service) UndeleteConcept(ctx context.Context, id string) error {
	return s.setConceptActive(ctx, "undelete_concept", id, true)
}

func (s *Service) setConceptActive(ctx context.Context, operation, id string, active bool) error {
	return s.instrument(ctx, operation, func() error {
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			if _, err := tx.UpdateConcept(id, func(c *domain.Concept) error {
				c.IsActive = active
				return nil
			}); err != nil {
				return err
			}
			for _, v := range tx.ListConceptVersions(id) {
				if _, err := tx.UpdateConceptVersion(v.ID, func(cv *domain.ConceptVersion) error {
					cv.IsActive = active
					return nil
				}); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// SoftDeleteMapping deactivates a mapping root and its versions.
func (s *Service) SoftDeleteMapping(ctx context.Context, id string) error {
	return s.setMappingActive(ctx, "soft_delete_mapping", id, false)
}

// UndeleteMapping reactivates a soft-deleted mapping.
func (s *Service) UndeleteMapping(ctx context.Context, id string) error {
	return s.setMappingActive(ctx, "undelete_mapping", id, true)
}

func (s *Service) setMappingActive(ctx context.Context, operation, id string, active bool) error {
	return s.instrument(ctx, operation, func() error {
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			if _, err := tx.UpdateMapping(id, func(m *domain.Mapping) error {
				m.IsActive = active
				return nil
			}); err != nil {
				return err
			}
			for _, v := range tx.ListMappingVersions(id) {
				if _, err := tx.UpdateMappingVersion(v.ID, func(mv *domain.MappingVersion) error {
					mv.IsActive = active
					return nil
				}); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

package core

import (
	"context"

	"termcore/internal/expression"
	"termcore/pkg/domain"
)

// AddReferences parses, resolves and appends reference expressions to the
// collection's HEAD reference set. Failures are reported per expression and
// do not abort sibling expressions; duplicates are detected by resolved
// version identity, not by raw string. When cascadeMappings is set, adding a
// concept also adds every mapping whose from- or to-concept it is.
func (s *Service) AddReferences(ctx context.Context, collectionID string, expressions []string, cascadeMappings bool) ([]domain.Reference, map[string]error, error) {
	var added []domain.Reference
	errs := make(map[string]error)
	err := s.instrument(ctx, "add_references", func() error {
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			head, ok := tx.FindCollectionVersionByMnemonic(collectionID, domain.HeadMnemonic)
			if !ok {
				return domain.ErrNotFound{Kind: domain.KindCollection, ID: collectionID}
			}
			refs := head.References
			seen := make(map[string]bool, len(refs))
			for _, ref := range refs {
				seen[refIdentity(ref.VersionedObjectID, ref.VersionID)] = true
			}

			for _, raw := range expressions {
				parsed, err := expression.Parse(raw)
				if err != nil {
					errs[raw] = err
					continue
				}
				resolved, err := expression.Resolve(parsed, tx)
				if err != nil {
					errs[raw] = err
					continue
				}
				if seen[refIdentity(resolved.VersionedObjectID, resolved.VersionID)] {
					errs[raw] = domain.ErrReferenceAlreadyExists{Expression: resolved.Expression}
					continue
				}
				if resolved.Type == domain.ReferenceConcept {
					version, ok := tx.FindConceptVersion(resolved.VersionID)
					if !ok {
						errs[raw] = domain.ErrVersionNotFound{Kind: domain.KindConcept, VersionedObjectID: resolved.VersionedObjectID, VersionID: resolved.VersionID}
						continue
					}
					scope := s.collectionScope(tx, head.CustomValidationSchema, refs, resolved.VersionedObjectID)
					if res := s.validateConceptVersion(ctx, scope, version); !res.OK() {
						errs[raw] = domain.ValidationError{Result: res}
						continue
					}
				}
				ref := resolved.Reference()
				refs = append(refs, ref)
				added = append(added, ref)
				seen[refIdentity(ref.VersionedObjectID, ref.VersionID)] = true

				if cascadeMappings && resolved.Type == domain.ReferenceConcept {
					cascaded := s.cascadeConceptMappings(tx, resolved.VersionedObjectID, seen)
					refs = append(refs, cascaded...)
					added = append(added, cascaded...)
				}
			}

			if len(added) == 0 {
				return nil
			}
			_, err := tx.UpdateCollectionVersion(head.ID, func(cv *domain.CollectionVersion) error {
				cv.References = refs
				return nil
			})
			return err
		})
	})
	if err != nil {
		return nil, nil, err
	}
	if len(added) > 0 {
		s.notifier.ReferencesAdded(ctx, collectionID, added)
	}
	return added, errs, nil
}

// cascadeConceptMappings resolves the latest version of every active mapping
// touching the concept, skipping duplicates and mappings that cannot be
// expressed (orphaned sources).
func (s *Service) cascadeConceptMappings(tx domain.TransactionView, conceptID string, seen map[string]bool) []domain.Reference {
	var out []domain.Reference
	for _, m := range tx.ListMappingsForConcept(conceptID) {
		if !m.IsActive {
			continue
		}
		src, ok := tx.FindSource(m.ParentID)
		if !ok {
			continue
		}
		version, ok := latestMappingVersion(tx, m.ID)
		if !ok {
			continue
		}
		if seen[refIdentity(m.ID, version.ID)] {
			continue
		}
		parsed := expression.ParsedReference{
			OwnerKind:  src.Owner.Kind,
			OwnerID:    src.Owner.ID,
			Source:     src.Mnemonic,
			Type:       domain.ReferenceMapping,
			ResourceID: m.ID,
			VersionID:  version.ID,
		}
		ref := domain.Reference{
			Expression:        parsed.String(),
			Type:              domain.ReferenceMapping,
			VersionedObjectID: m.ID,
			VersionID:         version.ID,
		}
		out = append(out, ref)
		seen[refIdentity(m.ID, version.ID)] = true
	}
	return out
}

// RemoveReferences drops references from the collection's HEAD reference
// set, matching by canonical resolved expression. It returns the version ids
// of concepts and mappings that are no longer referenced by any remaining
// reference. When cascadeMappings is set, removing a concept also removes
// mapping references touching it.
func (s *Service) RemoveReferences(ctx context.Context, collectionID string, expressions []string, cascadeMappings bool) (unreferencedConcepts, unreferencedMappings []string, err error) {
	var removed []domain.Reference
	err = s.instrument(ctx, "remove_references", func() error {
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			head, ok := tx.FindCollectionVersionByMnemonic(collectionID, domain.HeadMnemonic)
			if !ok {
				return domain.ErrNotFound{Kind: domain.KindCollection, ID: collectionID}
			}

			targets := make(map[string]bool, len(expressions))
			for _, raw := range expressions {
				parsed, perr := expression.Parse(raw)
				if perr != nil {
					continue
				}
				if parsed.HasVersion() {
					targets[parsed.String()] = true
					continue
				}
				resolved, rerr := expression.Resolve(parsed, tx)
				if rerr != nil {
					continue
				}
				targets[resolved.Expression] = true
			}

			removedConcepts := make(map[string]bool)
			var remaining []domain.Reference
			for _, ref := range head.References {
				if targets[ref.Expression] {
					removed = append(removed, ref)
					if ref.Type == domain.ReferenceConcept {
						removedConcepts[ref.VersionedObjectID] = true
					}
					continue
				}
				remaining = append(remaining, ref)
			}
			if cascadeMappings && len(removedConcepts) > 0 {
				remaining = s.dropCascadedMappings(tx, remaining, removedConcepts, &removed)
			}
			if len(removed) == 0 {
				return nil
			}

			stillReferenced := make(map[string]bool, len(remaining))
			for _, ref := range remaining {
				stillReferenced[ref.VersionedObjectID] = true
			}
			reported := make(map[string]bool)
			for _, ref := range removed {
				if stillReferenced[ref.VersionedObjectID] || reported[ref.VersionedObjectID] {
					continue
				}
				reported[ref.VersionedObjectID] = true
				if ref.Type == domain.ReferenceConcept {
					unreferencedConcepts = append(unreferencedConcepts, ref.VersionID)
				} else {
					unreferencedMappings = append(unreferencedMappings, ref.VersionID)
				}
			}

			_, err := tx.UpdateCollectionVersion(head.ID, func(cv *domain.CollectionVersion) error {
				cv.References = remaining
				return nil
			})
			return err
		})
	})
	if err != nil {
		return nil, nil, err
	}
	if len(removed) > 0 {
		s.notifier.ReferencesRemoved(ctx, collectionID, removed)
	}
	return unreferencedConcepts, unreferencedMappings, nil
}

func (s *Service) dropCascadedMappings(tx domain.TransactionView, refs []domain.Reference, removedConcepts map[string]bool, removed *[]domain.Reference) []domain.Reference {
	var kept []domain.Reference
	for _, ref := range refs {
		if ref.Type != domain.ReferenceMapping {
			kept = append(kept, ref)
			continue
		}
		m, ok := tx.FindMapping(ref.VersionedObjectID)
		if ok && (removedConcepts[m.FromConceptID] || removedConcepts[m.ToConceptID]) {
			*removed = append(*removed, ref)
			continue
		}
		kept = append(kept, ref)
	}
	return kept
}

// DiffReferences returns the references of superset absent from subset,
// compared by expression equality.
func DiffReferences(superset, subset []domain.Reference) []domain.Reference {
	have := make(map[string]bool, len(subset))
	for _, ref := range subset {
		have[ref.Expression] = true
	}
	var out []domain.Reference
	for _, ref := range superset {
		if !have[ref.Expression] {
			out = append(out, ref)
		}
	}
	return out
}

func refIdentity(objectID, versionID string) string {
	return objectID + "|" + versionID
}

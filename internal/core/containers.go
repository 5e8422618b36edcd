package core

import (
	"context"
	"fmt"

	"termcore/pkg/domain"
)

// CreateSource creates a source root together with its mutable HEAD version.
func (s *Service) CreateSource(ctx context.Context, owner domain.Owner, mnemonic string, payload domain.ContainerPayload, sourceType string) (domain.Source, domain.SourceVersion, error) {
	var (
		created domain.Source
		head    domain.SourceVersion
	)
	err := s.instrument(ctx, "create_source", func() error {
		if res := validateContainer(owner, mnemonic, payload); !res.OK() {
			return domain.ValidationError{Result: res}
		}
		payload = normalizeContainerPayload(payload)
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			root, err := tx.CreateSource(domain.Source{VersionedObject: domain.VersionedObject{
				Owner:    owner,
				Mnemonic: mnemonic,
			}})
			if err != nil {
				return err
			}
			hv, err := tx.CreateSourceVersion(domain.SourceVersion{
				VersionInfo: domain.VersionInfo{
					Mnemonic:          domain.HeadMnemonic,
					VersionedObjectID: root.ID,
					IsLatest:          true,
				},
				ContainerPayload: payload,
				SourceType:       sourceType,
			})
			if err != nil {
				return err
			}
			root, err = tx.UpdateSource(root.ID, func(src *domain.Source) error {
				src.NumVersions = 1
				return nil
			})
			if err != nil {
				return err
			}
			created, head = root, hv
			return nil
		})
	})
	return created, head, err
}

// CreateCollection creates a collection root together with its mutable HEAD
// version carrying the (initially empty) reference set.
func (s *Service) CreateCollection(ctx context.Context, owner domain.Owner, mnemonic string, payload domain.ContainerPayload, collectionType string) (domain.Collection, domain.CollectionVersion, error) {
	var (
		created domain.Collection
		head    domain.CollectionVersion
	)
	err := s.instrument(ctx, "create_collection", func() error {
		if res := validateContainer(owner, mnemonic, payload); !res.OK() {
			return domain.ValidationError{Result: res}
		}
		payload = normalizeContainerPayload(payload)
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			root, err := tx.CreateCollection(domain.Collection{VersionedObject: domain.VersionedObject{
				Owner:    owner,
				Mnemonic: mnemonic,
			}})
			if err != nil {
				return err
			}
			hv, err := tx.CreateCollectionVersion(domain.CollectionVersion{
				VersionInfo: domain.VersionInfo{
					Mnemonic:          domain.HeadMnemonic,
					VersionedObjectID: root.ID,
					IsLatest:          true,
				},
				ContainerPayload: payload,
				CollectionType:   collectionType,
			})
			if err != nil {
				return err
			}
			root, err = tx.UpdateCollection(root.ID, func(coll *domain.Collection) error {
				coll.NumVersions = 1
				return nil
			})
			if err != nil {
				return err
			}
			created, head = root, hv
			return nil
		})
	})
	return created, head, err
}

func validateContainer(owner domain.Owner, mnemonic string, payload domain.ContainerPayload) domain.Result {
	var res domain.Result
	if owner.ID == "" || (owner.Kind != domain.OwnerUser && owner.Kind != domain.OwnerOrg) {
		res.Add(domain.Violation{Field: "owner", Message: "owner is required"})
	}
	if mnemonic == "" {
		res.Add(domain.Violation{Field: "mnemonic", Message: "mnemonic is required"})
	}
	if payload.Name == "" {
		res.Add(domain.Violation{Field: "name", Message: "name is required"})
	}
	return res
}

func normalizeContainerPayload(payload domain.ContainerPayload) domain.ContainerPayload {
	if payload.PublicAccess == "" {
		payload.PublicAccess = domain.DefaultAccess
	}
	if payload.DefaultLocale == "" {
		payload.DefaultLocale = "en"
	}
	if payload.CustomValidationSchema == "" {
		payload.CustomValidationSchema = domain.SchemaBasic
	}
	return payload
}

// GetSource fetches a source root by id.
func (s *Service) GetSource(ctx context.Context, id string) (domain.Source, error) {
	var src domain.Source
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		found, ok := view.FindSource(id)
		if !ok {
			return domain.ErrNotFound{Kind: domain.KindSource, ID: id}
		}
		src = found
		return nil
	})
	return src, err
}

// GetSourceByMnemonic fetches an active source by owner and mnemonic.
func (s *Service) GetSourceByMnemonic(ctx context.Context, owner domain.Owner, mnemonic string) (domain.Source, error) {
	var src domain.Source
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		found, ok := view.FindSourceByMnemonic(owner, mnemonic)
		if !ok {
			return domain.ErrNotFound{Kind: domain.KindSource, ID: mnemonic}
		}
		src = found
		return nil
	})
	return src, err
}

// GetCollection fetches a collection root by id.
func (s *Service) GetCollection(ctx context.Context, id string) (domain.Collection, error) {
	var coll domain.Collection
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		found, ok := view.FindCollection(id)
		if !ok {
			return domain.ErrNotFound{Kind: domain.KindCollection, ID: id}
		}
		coll = found
		return nil
	})
	return coll, err
}

// GetCollectionByMnemonic fetches an active collection by owner and mnemonic.
func (s *Service) GetCollectionByMnemonic(ctx context.Context, owner domain.Owner, mnemonic string) (domain.Collection, error) {
	var coll domain.Collection
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		found, ok := view.FindCollectionByMnemonic(owner, mnemonic)
		if !ok {
			return domain.ErrNotFound{Kind: domain.KindCollection, ID: mnemonic}
		}
		coll = found
		return nil
	})
	return coll, err
}

// SourceHead returns the mutable working version of a source.
func (s *Service) SourceHead(ctx context.Context, sourceID string) (domain.SourceVersion, error) {
	var head domain.SourceVersion
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		hv, ok := view.FindSourceVersionByMnemonic(sourceID, domain.HeadMnemonic)
		if !ok {
			return domain.ErrVersionNotFound{Kind: domain.KindSource, VersionedObjectID: sourceID, VersionID: domain.HeadMnemonic}
		}
		head = hv
		return nil
	})
	return head, err
}

// CollectionHead returns the mutable working version of a collection,
// including its current reference set.
func (s *Service) CollectionHead(ctx context.Context, collectionID string) (domain.CollectionVersion, error) {
	var head domain.CollectionVersion
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		hv, ok := view.FindCollectionVersionByMnemonic(collectionID, domain.HeadMnemonic)
		if !ok {
			return domain.ErrVersionNotFound{Kind: domain.KindCollection, VersionedObjectID: collectionID, VersionID: domain.HeadMnemonic}
		}
		head = hv
		return nil
	})
	return head, err
}

// UpdateSourceHead rewrites the HEAD version in place. Identity, lineage and
// flag fields are preserved across the mutator. Switching the custom
// validation schema revalidates every active concept of the source under the
// new schema and aborts with a ValidationError naming the failing concepts.
func (s *Service) UpdateSourceHead(ctx context.Context, sourceID string, mutator func(*domain.SourceVersion) error) (domain.SourceVersion, error) {
	var updated domain.SourceVersion
	err := s.instrument(ctx, "update_source_head", func() error {
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			head, ok := tx.FindSourceVersionByMnemonic(sourceID, domain.HeadMnemonic)
			if !ok {
				return domain.ErrVersionNotFound{Kind: domain.KindSource, VersionedObjectID: sourceID, VersionID: domain.HeadMnemonic}
			}
			oldSchema := head.CustomValidationSchema
			hv, err := tx.UpdateSourceVersion(head.ID, func(sv *domain.SourceVersion) error {
				info := sv.VersionInfo
				if err := mutator(sv); err != nil {
					return err
				}
				sv.VersionInfo = info
				sv.ContainerPayload = normalizeContainerPayload(sv.ContainerPayload)
				return nil
			})
			if err != nil {
				return err
			}
			if hv.CustomValidationSchema != oldSchema {
				if res := s.validateChildConcepts(ctx, tx, sourceID, hv.CustomValidationSchema); !res.OK() {
					return domain.ValidationError{Result: res}
				}
			}
			updated = hv
			return nil
		})
	})
	return updated, err
}

// UpdateCollectionHead rewrites the collection HEAD metadata in place. The
// reference set and seeded id lists are derived state and survive the mutator
// untouched.
func (s *Service) UpdateCollectionHead(ctx context.Context, collectionID string, mutator func(*domain.CollectionVersion) error) (domain.CollectionVersion, error) {
	var updated domain.CollectionVersion
	err := s.instrument(ctx, "update_collection_head", func() error {
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			head, ok := tx.FindCollectionVersionByMnemonic(collectionID, domain.HeadMnemonic)
			if !ok {
				return domain.ErrVersionNotFound{Kind: domain.KindCollection, VersionedObjectID: collectionID, VersionID: domain.HeadMnemonic}
			}
			hv, err := tx.UpdateCollectionVersion(head.ID, func(cv *domain.CollectionVersion) error {
				info := cv.VersionInfo
				refs := cv.References
				conceptIDs := cv.ConceptVersionIDs
				mappingIDs := cv.MappingVersionIDs
				if err := mutator(cv); err != nil {
					return err
				}
				cv.VersionInfo = info
				cv.References = refs
				cv.ConceptVersionIDs = conceptIDs
				cv.MappingVersionIDs = mappingIDs
				cv.ContainerPayload = normalizeContainerPayload(cv.ContainerPayload)
				return nil
			})
			if err != nil {
				return err
			}
			updated = hv
			return nil
		})
	})
	return updated, err
}

// CreateSourceVersion clones a source version (HEAD unless told otherwise)
// into a new immutable numbered version and flags it latest.
func (s *Service) CreateSourceVersion(ctx context.Context, sourceID, mnemonic string, opts CloneOptions) (domain.SourceVersion, error) {
	var created domain.SourceVersion
	err := s.instrument(ctx, "create_source_version", func() error {
		if mnemonic == "" || mnemonic == domain.HeadMnemonic {
			return fmt.Errorf("version mnemonic %q is not allowed", mnemonic)
		}
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			root, ok := tx.FindSource(sourceID)
			if !ok {
				return domain.ErrNotFound{Kind: domain.KindSource, ID: sourceID}
			}
			latest, _ := latestSourceVersion(tx, sourceID)
			if err := checkExpectedLatest(sourceID, opts.ExpectedLatest, latest.ID); err != nil {
				return err
			}
			from, err := s.sourceCloneOrigin(tx, sourceID, opts.FromVersionID)
			if err != nil {
				return err
			}
			owner := func(id string) (string, bool) {
				v, ok := tx.FindSourceVersion(id)
				return v.VersionedObjectID, ok
			}
			prev, parent, err := resolveLineage(opts, sourceID, latest.ID, owner, false)
			if err != nil {
				return err
			}
			if err := clearLatestSourceVersion(tx, sourceID); err != nil {
				return err
			}
			created, err = tx.CreateSourceVersion(domain.SourceVersion{
				VersionInfo: domain.VersionInfo{
					Mnemonic:          mnemonic,
					VersionedObjectID: sourceID,
					PreviousVersionID: prev,
					ParentVersionID:   parent,
					Released:          opts.Released,
					IsLatest:          true,
					CreatedBy:         opts.CreatedBy,
				},
				ContainerPayload: from.ContainerPayload,
				SourceType:       from.SourceType,
			})
			if err != nil {
				return err
			}
			_, err = tx.UpdateSource(root.ID, func(src *domain.Source) error {
				src.NumVersions++
				return nil
			})
			return err
		})
	})
	return created, err
}

func (s *Service) sourceCloneOrigin(view domain.TransactionView, sourceID, fromVersionID string) (domain.SourceVersion, error) {
	if fromVersionID == "" {
		head, ok := view.FindSourceVersionByMnemonic(sourceID, domain.HeadMnemonic)
		if !ok {
			return domain.SourceVersion{}, domain.ErrVersionNotFound{Kind: domain.KindSource, VersionedObjectID: sourceID, VersionID: domain.HeadMnemonic}
		}
		return head, nil
	}
	from, ok := view.FindSourceVersion(fromVersionID)
	if !ok || from.VersionedObjectID != sourceID {
		return domain.SourceVersion{}, domain.ErrVersionNotFound{Kind: domain.KindSource, VersionedObjectID: sourceID, VersionID: fromVersionID}
	}
	return from, nil
}

// CreateCollectionVersion clones the collection HEAD (or the named version's
// payload) into a new immutable numbered version and seeds its concept and
// mapping id lists from the HEAD reference set. Numbered collection versions
// snapshot HEAD's references at creation time; they never inherit from their
// previous version.
func (s *Service) CreateCollectionVersion(ctx context.Context, collectionID, mnemonic string, opts CloneOptions) (domain.CollectionVersion, error) {
	var created domain.CollectionVersion
	err := s.instrument(ctx, "create_collection_version", func() error {
		if mnemonic == "" || mnemonic == domain.HeadMnemonic {
			return fmt.Errorf("version mnemonic %q is not allowed", mnemonic)
		}
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			root, ok := tx.FindCollection(collectionID)
			if !ok {
				return domain.ErrNotFound{Kind: domain.KindCollection, ID: collectionID}
			}
			head, ok := tx.FindCollectionVersionByMnemonic(collectionID, domain.HeadMnemonic)
			if !ok {
				return domain.ErrVersionNotFound{Kind: domain.KindCollection, VersionedObjectID: collectionID, VersionID: domain.HeadMnemonic}
			}
			latest, _ := latestCollectionVersion(tx, collectionID)
			if err := checkExpectedLatest(collectionID, opts.ExpectedLatest, latest.ID); err != nil {
				return err
			}
			payloadFrom := head
			if opts.FromVersionID != "" {
				from, ok := tx.FindCollectionVersion(opts.FromVersionID)
				if !ok || from.VersionedObjectID != collectionID {
					return domain.ErrVersionNotFound{Kind: domain.KindCollection, VersionedObjectID: collectionID, VersionID: opts.FromVersionID}
				}
				payloadFrom = from
			}
			owner := func(id string) (string, bool) {
				v, ok := tx.FindCollectionVersion(id)
				return v.VersionedObjectID, ok
			}
			prev, parent, err := resolveLineage(opts, collectionID, latest.ID, owner, true)
			if err != nil {
				return err
			}
			if err := clearLatestCollectionVersion(tx, collectionID); err != nil {
				return err
			}
			version := domain.CollectionVersion{
				VersionInfo: domain.VersionInfo{
					Mnemonic:          mnemonic,
					VersionedObjectID: collectionID,
					PreviousVersionID: prev,
					ParentVersionID:   parent,
					Released:          opts.Released,
					IsLatest:          true,
					CreatedBy:         opts.CreatedBy,
				},
				ContainerPayload: payloadFrom.ContainerPayload,
				CollectionType:   payloadFrom.CollectionType,
			}
			seedReferences(tx, &version, head.References)
			created, err = tx.CreateCollectionVersion(version)
			if err != nil {
				return err
			}
			_, err = tx.UpdateCollection(root.ID, func(coll *domain.Collection) error {
				coll.NumVersions++
				return nil
			})
			return err
		})
	})
	return created, err
}

// MarkSourceVersionReleased flips the released flag on a numbered source
// version.
func (s *Service) MarkSourceVersionReleased(ctx context.Context, versionID string, released bool) (domain.SourceVersion, error) {
	var updated domain.SourceVersion
	err := s.instrument(ctx, "mark_source_version_released", func() error {
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var err error
			updated, err = tx.UpdateSourceVersion(versionID, func(sv *domain.SourceVersion) error {
				if sv.IsHead() {
					return fmt.Errorf("cannot release the HEAD working copy")
				}
				sv.Released = released
				return nil
			})
			return err
		})
	})
	return updated, err
}

// MarkCollectionVersionReleased flips the released flag on a numbered
// collection version.
func (s *Service) MarkCollectionVersionReleased(ctx context.Context, versionID string, released bool) (domain.CollectionVersion, error) {
	var updated domain.CollectionVersion
	err := s.instrument(ctx, "mark_collection_version_released", func() error {
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var err error
			updated, err = tx.UpdateCollectionVersion(versionID, func(cv *domain.CollectionVersion) error {
				if cv.IsHead() {
					return fmt.Errorf("cannot release the HEAD working copy")
				}
				cv.Released = released
				return nil
			})
			return err
		})
	})
	return updated, err
}

// GetLatestSourceVersion returns the version currently flagged latest.
func (s *Service) GetLatestSourceVersion(ctx context.Context, sourceID string) (domain.SourceVersion, error) {
	var latest domain.SourceVersion
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		v, ok := latestSourceVersion(view, sourceID)
		if !ok {
			return domain.ErrVersionNotFound{Kind: domain.KindSource, VersionedObjectID: sourceID}
		}
		latest = v
		return nil
	})
	return latest, err
}

// GetLatestReleasedSourceVersion returns the newest active, released,
// non-retired version.
func (s *Service) GetLatestReleasedSourceVersion(ctx context.Context, sourceID string) (domain.SourceVersion, error) {
	var latest domain.SourceVersion
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		v, ok := latestReleasedSourceVersion(view, sourceID)
		if !ok {
			return domain.ErrVersionNotFound{Kind: domain.KindSource, VersionedObjectID: sourceID}
		}
		latest = v
		return nil
	})
	return latest, err
}

// GetLatestCollectionVersion returns the version currently flagged latest.
func (s *Service) GetLatestCollectionVersion(ctx context.Context, collectionID string) (domain.CollectionVersion, error) {
	var latest domain.CollectionVersion
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		v, ok := latestCollectionVersion(view, collectionID)
		if !ok {
			return domain.ErrVersionNotFound{Kind: domain.KindCollection, VersionedObjectID: collectionID}
		}
		latest = v
		return nil
	})
	return latest, err
}

// GetLatestReleasedCollectionVersion returns the newest active, released,
// non-retired version.
func (s *Service) GetLatestReleasedCollectionVersion(ctx context.Context, collectionID string) (domain.CollectionVersion, error) {
	var latest domain.CollectionVersion
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		v, ok := latestReleasedCollectionVersion(view, collectionID)
		if !ok {
			return domain.ErrVersionNotFound{Kind: domain.KindCollection, VersionedObjectID: collectionID}
		}
		latest = v
		return nil
	})
	return latest, err
}

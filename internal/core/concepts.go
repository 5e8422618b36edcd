package core

import (
	"context"

	"github.com/google/uuid"

	"termcore/pkg/domain"
)

// CreateConcept creates a concept root under a source together with its
// first immutable version, validating the payload under the source's
// configured schema. The initial version's mnemonic doubles as its id.
func (s *Service) CreateConcept(ctx context.Context, sourceID, mnemonic string, payload domain.ConceptPayload) (domain.Concept, domain.ConceptVersion, error) {
	var (
		created domain.Concept
		version domain.ConceptVersion
	)
	err := s.instrument(ctx, "create_concept", func() error {
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			src, ok := tx.FindSource(sourceID)
			if !ok {
				return domain.ErrNotFound{Kind: domain.KindSource, ID: sourceID}
			}
			var res domain.Result
			if mnemonic == "" {
				res.Add(domain.Violation{Field: "mnemonic", Message: "mnemonic is required"})
			}
			payload = normalizeConceptPayload(payload)
			candidate := domain.ConceptVersion{ConceptPayload: payload}
			scope := s.sourceScope(tx, src.ID, "")
			res.Merge(s.validateConceptVersion(ctx, scope, candidate))
			if !res.OK() {
				return domain.ValidationError{Result: res}
			}
			root, err := tx.CreateConcept(domain.Concept{VersionedObject: domain.VersionedObject{
				Owner:    src.Owner,
				Mnemonic: mnemonic,
				ParentID: src.ID,
			}})
			if err != nil {
				return err
			}
			vid := uuid.NewString()
			version, err = tx.CreateConceptVersion(domain.ConceptVersion{
				VersionInfo: domain.VersionInfo{
					ID:                vid,
					Mnemonic:          vid,
					VersionedObjectID: root.ID,
					IsLatest:          true,
				},
				ConceptPayload: payload,
			})
			if err != nil {
				return err
			}
			created, err = tx.UpdateConcept(root.ID, func(c *domain.Concept) error {
				c.NumVersions = 1
				return nil
			})
			return err
		})
	})
	return created, version, err
}

// UpdateConcept derives a new immutable concept version by applying the
// mutator to the latest version's payload and revalidating it. The root is
// never rewritten; history accumulates on the chain.
func (s *Service) UpdateConcept(ctx context.Context, conceptID string, mutator func(*domain.ConceptPayload) error, opts CloneOptions) (domain.ConceptVersion, error) {
	var created domain.ConceptVersion
	err := s.instrument(ctx, "update_concept", func() error {
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			root, ok := tx.FindConcept(conceptID)
			if !ok {
				return domain.ErrNotFound{Kind: domain.KindConcept, ID: conceptID}
			}
			latest, ok := latestConceptVersion(tx, conceptID)
			if !ok {
				return domain.ErrVersionNotFound{Kind: domain.KindConcept, VersionedObjectID: conceptID}
			}
			if err := checkExpectedLatest(conceptID, opts.ExpectedLatest, latest.ID); err != nil {
				return err
			}
			payload := latest.ConceptPayload
			if err := mutator(&payload); err != nil {
				return err
			}
			payload = normalizeConceptPayload(payload)
			candidate := domain.ConceptVersion{ConceptPayload: payload}
			scope := s.sourceScope(tx, root.ParentID, conceptID)
			if res := s.validateConceptVersion(ctx, scope, candidate); !res.OK() {
				return domain.ValidationError{Result: res}
			}
			var err error
			created, err = s.cloneConceptVersion(tx, root, latest, payload, latest.Retired, opts)
			return err
		})
	})
	return created, err
}

// RetireConcept clones the latest version with the retired flag set. Retired
// concepts stay visible and resolvable.
func (s *Service) RetireConcept(ctx context.Context, conceptID, actor string) (domain.ConceptVersion, error) {
	return s.setConceptRetired(ctx, "retire_concept", conceptID, actor, true)
}

// UnretireConcept clears the retired flag via a new version.
func (s *Service) UnretireConcept(ctx context.Context, conceptID, actor string) (domain.ConceptVersion, error) {
	return s.setConceptRetired(ctx, "unretire_concept", conceptID, actor, false)
}

func (s *Service) setConceptRetired(ctx context.Context, operation, conceptID, actor string, retired bool) (domain.ConceptVersion, error) {
	var created domain.ConceptVersion
	err := s.instrument(ctx, operation, func() error {
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			root, ok := tx.FindConcept(conceptID)
			if !ok {
				return domain.ErrNotFound{Kind: domain.KindConcept, ID: conceptID}
			}
			latest, ok := latestConceptVersion(tx, conceptID)
			if !ok {
				return domain.ErrVersionNotFound{Kind: domain.KindConcept, VersionedObjectID: conceptID}
			}
			if retired && latest.Retired {
				return domain.ErrAlreadyRetired{Kind: domain.KindConcept, ID: conceptID}
			}
			if !retired && !latest.Retired {
				return domain.ErrNotRetired{Kind: domain.KindConcept, ID: conceptID}
			}
			var err error
			created, err = s.cloneConceptVersion(tx, root, latest, latest.ConceptPayload, retired, CloneOptions{CreatedBy: actor})
			return err
		})
	})
	return created, err
}

// cloneConceptVersion writes the new version, swaps the latest flag,
// increments the version counter, and refreshes the root mirrors.
func (s *Service) cloneConceptVersion(tx domain.Transaction, root domain.Concept, latest domain.ConceptVersion, payload domain.ConceptPayload, retired bool, opts CloneOptions) (domain.ConceptVersion, error) {
	owner := func(id string) (string, bool) {
		v, ok := tx.FindConceptVersion(id)
		return v.VersionedObjectID, ok
	}
	prev, parent, err := resolveLineage(opts, root.ID, latest.ID, owner, false)
	if err != nil {
		return domain.ConceptVersion{}, err
	}
	if err := clearLatestConceptVersion(tx, root.ID); err != nil {
		return domain.ConceptVersion{}, err
	}
	vid := uuid.NewString()
	created, err := tx.CreateConceptVersion(domain.ConceptVersion{
		VersionInfo: domain.VersionInfo{
			ID:                vid,
			Mnemonic:          vid,
			VersionedObjectID: root.ID,
			PreviousVersionID: prev,
			ParentVersionID:   parent,
			Retired:           retired,
			IsLatest:          true,
			CreatedBy:         opts.CreatedBy,
		},
		ConceptPayload: payload,
	})
	if err != nil {
		return domain.ConceptVersion{}, err
	}
	_, err = tx.UpdateConcept(root.ID, func(c *domain.Concept) error {
		c.NumVersions++
		c.Retired = retired
		return nil
	})
	if err != nil {
		return domain.ConceptVersion{}, err
	}
	return created, nil
}

func normalizeConceptPayload(payload domain.ConceptPayload) domain.ConceptPayload {
	if payload.PublicAccess == "" {
		payload.PublicAccess = domain.DefaultAccess
	}
	return payload
}

// GetConcept fetches a concept root by id.
func (s *Service) GetConcept(ctx context.Context, id string) (domain.Concept, error) {
	var c domain.Concept
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		found, ok := view.FindConcept(id)
		if !ok {
			return domain.ErrNotFound{Kind: domain.KindConcept, ID: id}
		}
		c = found
		return nil
	})
	return c, err
}

// GetConceptByMnemonic fetches an active concept by source and mnemonic.
func (s *Service) GetConceptByMnemonic(ctx context.Context, sourceID, mnemonic string) (domain.Concept, error) {
	var c domain.Concept
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		found, ok := view.FindConceptByMnemonic(sourceID, mnemonic)
		if !ok {
			return domain.ErrNotFound{Kind: domain.KindConcept, ID: mnemonic}
		}
		c = found
		return nil
	})
	return c, err
}

// GetLatestConceptVersion returns the version currently flagged latest.
func (s *Service) GetLatestConceptVersion(ctx context.Context, conceptID string) (domain.ConceptVersion, error) {
	var latest domain.ConceptVersion
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		v, ok := latestConceptVersion(view, conceptID)
		if !ok {
			return domain.ErrVersionNotFound{Kind: domain.KindConcept, VersionedObjectID: conceptID}
		}
		latest = v
		return nil
	})
	return latest, err
}

// CreateMapping creates a mapping root under a source together with its
// first immutable version. A mapping needs a from-concept and either a
// to-concept or an external to-source/code pair.
func (s *Service) CreateMapping(ctx context.Context, sourceID string, payload domain.MappingPayload) (domain.Mapping, domain.MappingVersion, error) {
	var (
		created domain.Mapping
		version domain.MappingVersion
	)
	err := s.instrument(ctx, "create_mapping", func() error {
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			src, ok := tx.FindSource(sourceID)
			if !ok {
				return domain.ErrNotFound{Kind: domain.KindSource, ID: sourceID}
			}
			payload = normalizeMappingPayload(payload)
			if res := s.validateMapping(tx, sourceID, payload, ""); !res.OK() {
				return domain.ValidationError{Result: res}
			}
			root, err := tx.CreateMapping(domain.Mapping{
				VersionedObject: domain.VersionedObject{
					Owner:    src.Owner,
					ParentID: src.ID,
				},
				FromConceptID: payload.FromConceptID,
				ToConceptID:   payload.ToConceptID,
				ToSourceID:    payload.ToSourceID,
				ToConceptCode: payload.ToConceptCode,
			})
			if err != nil {
				return err
			}
			vid := uuid.NewString()
			version, err = tx.CreateMappingVersion(domain.MappingVersion{
				VersionInfo: domain.VersionInfo{
					ID:                vid,
					Mnemonic:          vid,
					VersionedObjectID: root.ID,
					IsLatest:          true,
				},
				MappingPayload: payload,
			})
			if err != nil {
				return err
			}
			created, err = tx.UpdateMapping(root.ID, func(m *domain.Mapping) error {
				m.NumVersions = 1
				return nil
			})
			return err
		})
	})
	return created, version, err
}

// UpdateMapping derives a new immutable mapping version.
func (s *Service) UpdateMapping(ctx context.Context, mappingID string, mutator func(*domain.MappingPayload) error, opts CloneOptions) (domain.MappingVersion, error) {
	var created domain.MappingVersion
	err := s.instrument(ctx, "update_mapping", func() error {
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			root, ok := tx.FindMapping(mappingID)
			if !ok {
				return domain.ErrNotFound{Kind: domain.KindMapping, ID: mappingID}
			}
			latest, ok := latestMappingVersion(tx, mappingID)
			if !ok {
				return domain.ErrVersionNotFound{Kind: domain.KindMapping, VersionedObjectID: mappingID}
			}
			if err := checkExpectedLatest(mappingID, opts.ExpectedLatest, latest.ID); err != nil {
				return err
			}
			payload := latest.MappingPayload
			if err := mutator(&payload); err != nil {
				return err
			}
			payload = normalizeMappingPayload(payload)
			if res := s.validateMapping(tx, root.ParentID, payload, root.ID); !res.OK() {
				return domain.ValidationError{Result: res}
			}
			var err error
			created, err = s.cloneMappingVersion(tx, root, latest, payload, latest.Retired, opts)
			return err
		})
	})
	return created, err
}

// RetireMapping clones the latest version with the retired flag set.
func (s *Service) RetireMapping(ctx context.Context, mappingID, actor string) (domain.MappingVersion, error) {
	return s.setMappingRetired(ctx, "retire_mapping", mappingID, actor, true)
}

// UnretireMapping clears the retired flag via a new version.
func (s *Service) UnretireMapping(ctx context.Context, mappingID, actor string) (domain.MappingVersion, error) {
	return s.setMappingRetired(ctx, "unretire_mapping", mappingID, actor, false)
}

func (s *Service) setMappingRetired(ctx context.Context, operation, mappingID, actor string, retired bool) (domain.MappingVersion, error) {
	var created domain.MappingVersion
	err := s.instrument(ctx, operation, func() error {
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			root, ok := tx.FindMapping(mappingID)
			if !ok {
				return domain.ErrNotFound{Kind: domain.KindMapping, ID: mappingID}
			}
			latest, ok := latestMappingVersion(tx, mappingID)
			if !ok {
				return domain.ErrVersionNotFound{Kind: domain.KindMapping, VersionedObjectID: mappingID}
			}
			if retired && latest.Retired {
				return domain.ErrAlreadyRetired{Kind: domain.KindMapping, ID: mappingID}
			}
			if !retired && !latest.Retired {
				return domain.ErrNotRetired{Kind: domain.KindMapping, ID: mappingID}
			}
			var err error
			created, err = s.cloneMappingVersion(tx, root, latest, latest.MappingPayload, retired, CloneOptions{CreatedBy: actor})
			return err
		})
	})
	return created, err
}

func (s *Service) cloneMappingVersion(tx domain.Transaction, root domain.Mapping, latest domain.MappingVersion, payload domain.MappingPayload, retired bool, opts CloneOptions) (domain.MappingVersion, error) {
	owner := func(id string) (string, bool) {
		v, ok := tx.FindMappingVersion(id)
		return v.VersionedObjectID, ok
	}
	prev, parent, err := resolveLineage(opts, root.ID, latest.ID, owner, false)
	if err != nil {
		return domain.MappingVersion{}, err
	}
	if err := clearLatestMappingVersion(tx, root.ID); err != nil {
		return domain.MappingVersion{}, err
	}
	vid := uuid.NewString()
	created, err := tx.CreateMappingVersion(domain.MappingVersion{
		VersionInfo: domain.VersionInfo{
			ID:                vid,
			Mnemonic:          vid,
			VersionedObjectID: root.ID,
			PreviousVersionID: prev,
			ParentVersionID:   parent,
			Retired:           retired,
			IsLatest:          true,
			CreatedBy:         opts.CreatedBy,
		},
		MappingPayload: payload,
	})
	if err != nil {
		return domain.MappingVersion{}, err
	}
	_, err = tx.UpdateMapping(root.ID, func(m *domain.Mapping) error {
		m.NumVersions++
		m.Retired = retired
		m.FromConceptID = payload.FromConceptID
		m.ToConceptID = payload.ToConceptID
		m.ToSourceID = payload.ToSourceID
		m.ToConceptCode = payload.ToConceptCode
		return nil
	})
	if err != nil {
		return domain.MappingVersion{}, err
	}
	return created, nil
}

func normalizeMappingPayload(payload domain.MappingPayload) domain.MappingPayload {
	if payload.PublicAccess == "" {
		payload.PublicAccess = domain.DefaultAccess
	}
	return payload
}

// validateMapping checks structural mapping invariants: a known from-concept
// and exactly one of to-concept or to-source/code. excludeMappingID skips the
// mapping being updated in the duplicate scan.
func (s *Service) validateMapping(view domain.TransactionView, sourceID string, payload domain.MappingPayload, excludeMappingID string) domain.Result {
	var res domain.Result
	if payload.MapType == "" {
		res.Add(domain.Violation{Field: "map_type", Message: "map type is required"})
	} else if !s.refValues.HasMapType(payload.MapType) {
		res.Add(domain.Violation{Field: "map_type", Message: "Invalid map type", Value: payload.MapType})
	}
	if payload.FromConceptID == "" {
		res.Add(domain.Violation{Field: "from_concept_id", Message: "from concept is required"})
	} else if from, ok := view.FindConcept(payload.FromConceptID); !ok || !from.IsActive {
		res.Add(domain.Violation{Field: "from_concept_id", Message: "from concept does not exist", Value: payload.FromConceptID})
	}
	switch {
	case payload.ToConceptID != "":
		if to, ok := view.FindConcept(payload.ToConceptID); !ok || !to.IsActive {
			res.Add(domain.Violation{Field: "to_concept_id", Message: "to concept does not exist", Value: payload.ToConceptID})
		}
	case payload.ToSourceID != "" && payload.ToConceptCode != "":
		// external target, nothing to resolve locally
	default:
		res.Add(domain.Violation{Field: "to_concept_id", Message: "a to concept or a to source and code pair is required"})
	}
	for _, m := range view.ListMappings(sourceID) {
		if !m.IsActive || m.Retired || m.ID == excludeMappingID {
			continue
		}
		latest, ok := latestMappingVersion(view, m.ID)
		if !ok {
			continue
		}
		if latest.MapType == payload.MapType &&
			latest.FromConceptID == payload.FromConceptID &&
			latest.ToConceptID == payload.ToConceptID &&
			latest.ToSourceID == payload.ToSourceID &&
			latest.ToConceptCode == payload.ToConceptCode {
			res.Add(domain.Violation{Field: "map_type", Message: "an identical mapping already exists in this source", Value: payload.MapType})
			break
		}
	}
	return res
}

// GetMapping fetches a mapping root by id.
func (s *Service) GetMapping(ctx context.Context, id string) (domain.Mapping, error) {
	var m domain.Mapping
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		found, ok := view.FindMapping(id)
		if !ok {
			return domain.ErrNotFound{Kind: domain.KindMapping, ID: id}
		}
		m = found
		return nil
	})
	return m, err
}

// GetLatestMappingVersion returns the version currently flagged latest.
func (s *Service) GetLatestMappingVersion(ctx context.Context, mappingID string) (domain.MappingVersion, error) {
	var latest domain.MappingVersion
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		v, ok := latestMappingVersion(view, mappingID)
		if !ok {
			return domain.ErrVersionNotFound{Kind: domain.KindMapping, VersionedObjectID: mappingID}
		}
		latest = v
		return nil
	})
	return latest, err
}

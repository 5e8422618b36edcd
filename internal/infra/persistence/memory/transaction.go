package memory

import (
	"fmt"
	"sort"
	"time"

	"termcore/pkg/domain"
)

var (
	_ TransactionView = (*view)(nil)
	_ Transaction     = (*transaction)(nil)
)

// view implements read-only access over a memory state. Both read snapshots
// and transactions route their reads through it.
type view struct {
	state *memoryState
}

func (v *view) FindSource(id string) (Source, bool) {
	src, ok := v.state.sources[id]
	return src, ok
}

func (v *view) FindSourceByMnemonic(owner domain.Owner, mnemonic string) (Source, bool) {
	for _, src := range v.state.sources {
		if src.IsActive && src.Owner == owner && src.Mnemonic == mnemonic {
			return src, true
		}
	}
	return Source{}, false
}

func (v *view) ListSources() []Source {
	out := make([]Source, 0, len(v.state.sources))
	for _, src := range v.state.sources {
		out = append(out, src)
	}
	sortRoots(out, func(s Source) domain.VersionedObject { return s.VersionedObject })
	return out
}

func (v *view) FindCollection(id string) (Collection, bool) {
	coll, ok := v.state.collections[id]
	return coll, ok
}

func (v *view) FindCollectionByMnemonic(owner domain.Owner, mnemonic string) (Collection, bool) {
	for _, coll := range v.state.collections {
		if coll.IsActive && coll.Owner == owner && coll.Mnemonic == mnemonic {
			return coll, true
		}
	}
	return Collection{}, false
}

func (v *view) ListCollections() []Collection {
	out := make([]Collection, 0, len(v.state.collections))
	for _, coll := range v.state.collections {
		out = append(out, coll)
	}
	sortRoots(out, func(c Collection) domain.VersionedObject { return c.VersionedObject })
	return out
}

func (v *view) FindConcept(id string) (Concept, bool) {
	c, ok := v.state.concepts[id]
	return c, ok
}

func (v *view) FindConceptByMnemonic(sourceID, mnemonic string) (Concept, bool) {
	for _, c := range v.state.concepts {
		if c.IsActive && c.ParentID == sourceID && c.Mnemonic == mnemonic {
			return c, true
		}
	}
	return Concept{}, false
}

func (v *view) ListConcepts(sourceID string) []Concept {
	var out []Concept
	for _, c := range v.state.concepts {
		if c.ParentID == sourceID {
			out = append(out, c)
		}
	}
	sortRoots(out, func(c Concept) domain.VersionedObject { return c.VersionedObject })
	return out
}

func (v *view) FindMapping(id string) (Mapping, bool) {
	m, ok := v.state.mappings[id]
	return m, ok
}

func (v *view) ListMappings(sourceID string) []Mapping {
	var out []Mapping
	for _, m := range v.state.mappings {
		if m.ParentID == sourceID {
			out = append(out, m)
		}
	}
	sortRoots(out, func(m Mapping) domain.VersionedObject { return m.VersionedObject })
	return out
}

func (v *view) ListMappingsForConcept(conceptID string) []Mapping {
	var out []Mapping
	for _, m := range v.state.mappings {
		if m.FromConceptID == conceptID || m.ToConceptID == conceptID {
			out = append(out, m)
		}
	}
	sortRoots(out, func(m Mapping) domain.VersionedObject { return m.VersionedObject })
	return out
}

func (v *view) FindSourceVersion(versionID string) (SourceVersion, bool) {
	sv, ok := v.state.sourceVersions[versionID]
	if !ok {
		return SourceVersion{}, false
	}
	return cloneSourceVersion(sv), true
}

func (v *view) FindSourceVersionByMnemonic(objectID, mnemonic string) (SourceVersion, bool) {
	for _, id := range v.state.versionOrder[objectID] {
		if sv, ok := v.state.sourceVersions[id]; ok && sv.Mnemonic == mnemonic {
			return cloneSourceVersion(sv), true
		}
	}
	return SourceVersion{}, false
}

func (v *view) ListSourceVersions(objectID string) []SourceVersion {
	var out []SourceVersion
	for _, id := range v.state.versionOrder[objectID] {
		if sv, ok := v.state.sourceVersions[id]; ok {
			out = append(out, cloneSourceVersion(sv))
		}
	}
	return out
}

func (v *view) FindCollectionVersion(versionID string) (CollectionVersion, bool) {
	cv, ok := v.state.collectionVersions[versionID]
	if !ok {
		return CollectionVersion{}, false
	}
	return cloneCollectionVersion(cv), true
}

func (v *view) FindCollectionVersionByMnemonic(objectID, mnemonic string) (CollectionVersion, bool) {
	for _, id := range v.state.versionOrder[objectID] {
		if cv, ok := v.state.collectionVersions[id]; ok && cv.Mnemonic == mnemonic {
			return cloneCollectionVersion(cv), true
		}
	}
	return CollectionVersion{}, false
}

func (v *view) ListCollectionVersions(objectID string) []CollectionVersion {
	var out []CollectionVersion
	for _, id := range v.state.versionOrder[objectID] {
		if cv, ok := v.state.collectionVersions[id]; ok {
			out = append(out, cloneCollectionVersion(cv))
		}
	}
	return out
}

func (v *view) FindConceptVersion(versionID string) (ConceptVersion, bool) {
	cv, ok := v.state.conceptVersions[versionID]
	if !ok {
		return ConceptVersion{}, false
	}
	return cloneConceptVersion(cv), true
}

func (v *view) ListConceptVersions(objectID string) []ConceptVersion {
	var out []ConceptVersion
	for _, id := range v.state.versionOrder[objectID] {
		if cv, ok := v.state.conceptVersions[id]; ok {
			out = append(out, cloneConceptVersion(cv))
		}
	}
	return out
}

func (v *view) FindMappingVersion(versionID string) (MappingVersion, bool) {
	mv, ok := v.state.mappingVersions[versionID]
	if !ok {
		return MappingVersion{}, false
	}
	return cloneMappingVersion(mv), true
}

func (v *view) ListMappingVersions(objectID string) []MappingVersion {
	var out []MappingVersion
	for _, id := range v.state.versionOrder[objectID] {
		if mv, ok := v.state.mappingVersions[id]; ok {
			out = append(out, cloneMappingVersion(mv))
		}
	}
	return out
}

func sortRoots[T any](items []T, root func(T) domain.VersionedObject) {
	sort.Slice(items, func(i, j int) bool {
		a, b := root(items[i]), root(items[j])
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// transaction applies mutations against a private clone of the store state.
type transaction struct {
	view
	now time.Time
}

func (t *transaction) stampRoot(obj *domain.VersionedObject, kind domain.ResourceKind) {
	if obj.ID == "" {
		obj.ID = newID()
	}
	obj.Kind = kind
	obj.IsActive = true
	if obj.CreatedAt.IsZero() {
		obj.CreatedAt = t.now
	}
	obj.UpdatedAt = t.now
}

func (t *transaction) stampVersion(info *domain.VersionInfo) {
	if info.ID == "" {
		info.ID = newID()
	}
	info.IsActive = true
	if info.CreatedAt.IsZero() {
		info.CreatedAt = t.now
	}
	info.UpdatedAt = t.now
}

func (t *transaction) CreateSource(src Source) (Source, error) {
	if _, exists := t.FindSourceByMnemonic(src.Owner, src.Mnemonic); exists {
		return Source{}, fmt.Errorf("source %q already exists for %s/%s", src.Mnemonic, src.Owner.Kind, src.Owner.ID)
	}
	t.stampRoot(&src.VersionedObject, domain.KindSource)
	t.state.sources[src.ID] = src
	return src, nil
}

func (t *transaction) UpdateSource(id string, mutator func(*Source) error) (Source, error) {
	src, ok := t.state.sources[id]
	if !ok {
		return Source{}, domain.ErrNotFound{Kind: domain.KindSource, ID: id}
	}
	if err := mutator(&src); err != nil {
		return Source{}, err
	}
	src.ID = id
	src.UpdatedAt = t.now
	t.state.sources[id] = src
	return src, nil
}

func (t *transaction) DeleteSource(id string) error {
	if _, ok := t.state.sources[id]; !ok {
		return domain.ErrNotFound{Kind: domain.KindSource, ID: id}
	}
	for _, vid := range t.state.versionOrder[id] {
		delete(t.state.sourceVersions, vid)
	}
	delete(t.state.versionOrder, id)
	delete(t.state.sources, id)
	return nil
}

func (t *transaction) CreateCollection(coll Collection) (Collection, error) {
	if _, exists := t.FindCollectionByMnemonic(coll.Owner, coll.Mnemonic); exists {
		return Collection{}, fmt.Errorf("collection %q already exists for %s/%s", coll.Mnemonic, coll.Owner.Kind, coll.Owner.ID)
	}
	t.stampRoot(&coll.VersionedObject, domain.KindCollection)
	t.state.collections[coll.ID] = coll
	return coll, nil
}

func (t *transaction) UpdateCollection(id string, mutator func(*Collection) error) (Collection, error) {
	coll, ok := t.state.collections[id]
	if !ok {
		return Collection{}, domain.ErrNotFound{Kind: domain.KindCollection, ID: id}
	}
	if err := mutator(&coll); err != nil {
		return Collection{}, err
	}
	coll.ID = id
	coll.UpdatedAt = t.now
	t.state.collections[id] = coll
	return coll, nil
}

func (t *transaction) DeleteCollection(id string) error {
	if _, ok := t.state.collections[id]; !ok {
		return domain.ErrNotFound{Kind: domain.KindCollection, ID: id}
	}
	for _, vid := range t.state.versionOrder[id] {
		delete(t.state.collectionVersions, vid)
	}
	delete(t.state.versionOrder, id)
	delete(t.state.collections, id)
	return nil
}

func (t *transaction) CreateConcept(c Concept) (Concept, error) {
	if _, ok := t.state.sources[c.ParentID]; !ok {
		return Concept{}, domain.ErrNotFound{Kind: domain.KindSource, ID: c.ParentID}
	}
	if _, exists := t.FindConceptByMnemonic(c.ParentID, c.Mnemonic); exists {
		return Concept{}, fmt.Errorf("concept %q already exists in source %s", c.Mnemonic, c.ParentID)
	}
	t.stampRoot(&c.VersionedObject, domain.KindConcept)
	t.state.concepts[c.ID] = c
	return c, nil
}

func (t *transaction) UpdateConcept(id string, mutator func(*Concept) error) (Concept, error) {
	c, ok := t.state.concepts[id]
	if !ok {
		return Concept{}, domain.ErrNotFound{Kind: domain.KindConcept, ID: id}
	}
	if err := mutator(&c); err != nil {
		return Concept{}, err
	}
	c.ID = id
	c.UpdatedAt = t.now
	t.state.concepts[id] = c
	return c, nil
}

func (t *transaction) DeleteConcept(id string) error {
	if _, ok := t.state.concepts[id]; !ok {
		return domain.ErrNotFound{Kind: domain.KindConcept, ID: id}
	}
	for _, vid := range t.state.versionOrder[id] {
		delete(t.state.conceptVersions, vid)
	}
	delete(t.state.versionOrder, id)
	delete(t.state.concepts, id)
	return nil
}

func (t *transaction) CreateMapping(m Mapping) (Mapping, error) {
	if _, ok := t.state.sources[m.ParentID]; !ok {
		return Mapping{}, domain.ErrNotFound{Kind: domain.KindSource, ID: m.ParentID}
	}
	t.stampRoot(&m.VersionedObject, domain.KindMapping)
	if m.Mnemonic == "" {
		m.Mnemonic = m.ID
	}
	t.state.mappings[m.ID] = m
	return m, nil
}

func (t *transaction) UpdateMapping(id string, mutator func(*Mapping) error) (Mapping, error) {
	m, ok := t.state.mappings[id]
	if !ok {
		return Mapping{}, domain.ErrNotFound{Kind: domain.KindMapping, ID: id}
	}
	if err := mutator(&m); err != nil {
		return Mapping{}, err
	}
	m.ID = id
	m.UpdatedAt = t.now
	t.state.mappings[id] = m
	return m, nil
}

func (t *transaction) DeleteMapping(id string) error {
	if _, ok := t.state.mappings[id]; !ok {
		return domain.ErrNotFound{Kind: domain.KindMapping, ID: id}
	}
	for _, vid := range t.state.versionOrder[id] {
		delete(t.state.mappingVersions, vid)
	}
	delete(t.state.versionOrder, id)
	delete(t.state.mappings, id)
	return nil
}

func (t *transaction) checkVersionMnemonic(objectID, mnemonic string) error {
	for _, vid := range t.state.versionOrder[objectID] {
		var existing string
		if sv, ok := t.state.sourceVersions[vid]; ok {
			existing = sv.Mnemonic
		} else if cv, ok := t.state.collectionVersions[vid]; ok {
			existing = cv.Mnemonic
		} else if cv, ok := t.state.conceptVersions[vid]; ok {
			existing = cv.Mnemonic
		} else if mv, ok := t.state.mappingVersions[vid]; ok {
			existing = mv.Mnemonic
		}
		if existing == mnemonic {
			return domain.ErrDuplicateVersionMnemonic{VersionedObjectID: objectID, Mnemonic: mnemonic}
		}
	}
	return nil
}

func (t *transaction) appendVersion(objectID, versionID string) {
	t.state.versionOrder[objectID] = append(t.state.versionOrder[objectID], versionID)
}

func (t *transaction) removeVersion(objectID, versionID string) {
	order := t.state.versionOrder[objectID]
	for i, id := range order {
		if id == versionID {
			t.state.versionOrder[objectID] = append(order[:i:i], order[i+1:]...)
			return
		}
	}
}

func (t *transaction) CreateSourceVersion(sv SourceVersion) (SourceVersion, error) {
	if _, ok := t.state.sources[sv.VersionedObjectID]; !ok {
		return SourceVersion{}, domain.ErrNotFound{Kind: domain.KindSource, ID: sv.VersionedObjectID}
	}
	if err := t.checkVersionMnemonic(sv.VersionedObjectID, sv.Mnemonic); err != nil {
		return SourceVersion{}, err
	}
	t.stampVersion(&sv.VersionInfo)
	t.state.sourceVersions[sv.ID] = cloneSourceVersion(sv)
	t.appendVersion(sv.VersionedObjectID, sv.ID)
	return sv, nil
}

func (t *transaction) UpdateSourceVersion(id string, mutator func(*SourceVersion) error) (SourceVersion, error) {
	sv, ok := t.state.sourceVersions[id]
	if !ok {
		return SourceVersion{}, domain.ErrVersionNotFound{Kind: domain.KindSource, VersionID: id}
	}
	sv = cloneSourceVersion(sv)
	if err := mutator(&sv); err != nil {
		return SourceVersion{}, err
	}
	sv.ID = id
	sv.UpdatedAt = t.now
	t.state.sourceVersions[id] = sv
	return cloneSourceVersion(sv), nil
}

func (t *transaction) DeleteSourceVersion(id string) error {
	sv, ok := t.state.sourceVersions[id]
	if !ok {
		return domain.ErrVersionNotFound{Kind: domain.KindSource, VersionID: id}
	}
	t.removeVersion(sv.VersionedObjectID, id)
	delete(t.state.sourceVersions, id)
	return nil
}

func (t *transaction) CreateCollectionVersion(cv CollectionVersion) (CollectionVersion, error) {
	if _, ok := t.state.collections[cv.VersionedObjectID]; !ok {
		return CollectionVersion{}, domain.ErrNotFound{Kind: domain.KindCollection, ID: cv.VersionedObjectID}
	}
	if err := t.checkVersionMnemonic(cv.VersionedObjectID, cv.Mnemonic); err != nil {
		return CollectionVersion{}, err
	}
	t.stampVersion(&cv.VersionInfo)
	t.state.collectionVersions[cv.ID] = cloneCollectionVersion(cv)
	t.appendVersion(cv.VersionedObjectID, cv.ID)
	return cv, nil
}

func (t *transaction) UpdateCollectionVersion(id string, mutator func(*CollectionVersion) error) (CollectionVersion, error) {
	cv, ok := t.state.collectionVersions[id]
	if !ok {
		return CollectionVersion{}, domain.ErrVersionNotFound{Kind: domain.KindCollection, VersionID: id}
	}
	cv = cloneCollectionVersion(cv)
	if err := mutator(&cv); err != nil {
		return CollectionVersion{}, err
	}
	cv.ID = id
	cv.UpdatedAt = t.now
	t.state.collectionVersions[id] = cv
	return cloneCollectionVersion(cv), nil
}

func (t *transaction) DeleteCollectionVersion(id string) error {
	cv, ok := t.state.collectionVersions[id]
	if !ok {
		return domain.ErrVersionNotFound{Kind: domain.KindCollection, VersionID: id}
	}
	t.removeVersion(cv.VersionedObjectID, id)
	delete(t.state.collectionVersions, id)
	return nil
}

func (t *transaction) CreateConceptVersion(cv ConceptVersion) (ConceptVersion, error) {
	if _, ok := t.state.concepts[cv.VersionedObjectID]; !ok {
		return ConceptVersion{}, domain.ErrNotFound{Kind: domain.KindConcept, ID: cv.VersionedObjectID}
	}
	if err := t.checkVersionMnemonic(cv.VersionedObjectID, cv.Mnemonic); err != nil {
		return ConceptVersion{}, err
	}
	t.stampVersion(&cv.VersionInfo)
	t.state.conceptVersions[cv.ID] = cloneConceptVersion(cv)
	t.appendVersion(cv.VersionedObjectID, cv.ID)
	return cv, nil
}

func (t *transaction) UpdateConceptVersion(id string, mutator func(*ConceptVersion) error) (ConceptVersion, error) {
	cv, ok := t.state.conceptVersions[id]
	if !ok {
		return ConceptVersion{}, domain.ErrVersionNotFound{Kind: domain.KindConcept, VersionID: id}
	}
	cv = cloneConceptVersion(cv)
	if err := mutator(&cv); err != nil {
		return ConceptVersion{}, err
	}
	cv.ID = id
	cv.UpdatedAt = t.now
	t.state.conceptVersions[id] = cv
	return cloneConceptVersion(cv), nil
}

func (t *transaction) DeleteConceptVersion(id string) error {
	cv, ok := t.state.conceptVersions[id]
	if !ok {
		return domain.ErrVersionNotFound{Kind: domain.KindConcept, VersionID: id}
	}
	t.removeVersion(cv.VersionedObjectID, id)
	delete(t.state.conceptVersions, id)
	return nil
}

func (t *transaction) CreateMappingVersion(mv MappingVersion) (MappingVersion, error) {
	if _, ok := t.state.mappings[mv.VersionedObjectID]; !ok {
		return MappingVersion{}, domain.ErrNotFound{Kind: domain.KindMapping, ID: mv.VersionedObjectID}
	}
	if err := t.checkVersionMnemonic(mv.VersionedObjectID, mv.Mnemonic); err != nil {
		return MappingVersion{}, err
	}
	t.stampVersion(&mv.VersionInfo)
	t.state.mappingVersions[mv.ID] = cloneMappingVersion(mv)
	t.appendVersion(mv.VersionedObjectID, mv.ID)
	return mv, nil
}

func (t *transaction) UpdateMappingVersion(id string, mutator func(*MappingVersion) error) (MappingVersion, error) {
	mv, ok := t.state.mappingVersions[id]
	if !ok {
		return MappingVersion{}, domain.ErrVersionNotFound{Kind: domain.KindMapping, VersionID: id}
	}
	mv = cloneMappingVersion(mv)
	if err := mutator(&mv); err != nil {
		return MappingVersion{}, err
	}
	mv.ID = id
	mv.UpdatedAt = t.now
	t.state.mappingVersions[id] = mv
	return cloneMappingVersion(mv), nil
}

func (t *transaction) DeleteMappingVersion(id string) error {
	mv, ok := t.state.mappingVersions[id]
	if !ok {
		return domain.ErrVersionNotFound{Kind: domain.KindMapping, VersionID: id}
	}
	t.removeVersion(mv.VersionedObjectID, id)
	delete(t.state.mappingVersions, id)
	return nil
}

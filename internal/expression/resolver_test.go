package expression_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"termcore/internal/expression"
	"termcore/pkg/domain"
)

// fakeLookup is a hand-rolled store view for resolver tests.
type fakeLookup struct {
	sources         map[string]domain.Source // keyed by owner kind/id/mnemonic
	concepts        map[string]domain.Concept
	mappings        map[string]domain.Mapping
	conceptVersions map[string]domain.ConceptVersion
	mappingVersions map[string]domain.MappingVersion
	conceptChains   map[string][]domain.ConceptVersion
	mappingChains   map[string][]domain.MappingVersion
}

func sourceKey(owner domain.Owner, mnemonic string) string {
	return string(owner.Kind) + "/" + owner.ID + "/" + mnemonic
}

func (f *fakeLookup) FindSourceByMnemonic(owner domain.Owner, mnemonic string) (domain.Source, bool) {
	s, ok := f.sources[sourceKey(owner, mnemonic)]
	return s, ok
}

func (f *fakeLookup) FindConceptByMnemonic(sourceID, mnemonic string) (domain.Concept, bool) {
	c, ok := f.concepts[sourceID+"/"+mnemonic]
	return c, ok
}

func (f *fakeLookup) FindMapping(id string) (domain.Mapping, bool) {
	m, ok := f.mappings[id]
	return m, ok
}

func (f *fakeLookup) FindConceptVersion(versionID string) (domain.ConceptVersion, bool) {
	v, ok := f.conceptVersions[versionID]
	return v, ok
}

func (f *fakeLookup) FindMappingVersion(versionID string) (domain.MappingVersion, bool) {
	v, ok := f.mappingVersions[versionID]
	return v, ok
}

func (f *fakeLookup) ListConceptVersions(objectID string) []domain.ConceptVersion {
	return f.conceptChains[objectID]
}

func (f *fakeLookup) ListMappingVersions(objectID string) []domain.MappingVersion {
	return f.mappingChains[objectID]
}

func newFakeLookup() *fakeLookup {
	owner := domain.Owner{Kind: domain.OwnerOrg, ID: "org1"}
	f := &fakeLookup{
		sources:         map[string]domain.Source{},
		concepts:        map[string]domain.Concept{},
		mappings:        map[string]domain.Mapping{},
		conceptVersions: map[string]domain.ConceptVersion{},
		mappingVersions: map[string]domain.MappingVersion{},
		conceptChains:   map[string][]domain.ConceptVersion{},
		mappingChains:   map[string][]domain.MappingVersion{},
	}
	f.sources[sourceKey(owner, "S")] = domain.Source{VersionedObject: domain.VersionedObject{
		ID: "src1", Kind: domain.KindSource, Owner: owner, Mnemonic: "S", IsActive: true,
	}}
	f.concepts["src1/K"] = domain.Concept{VersionedObject: domain.VersionedObject{
		ID: "con1", Kind: domain.KindConcept, Mnemonic: "K", ParentID: "src1", IsActive: true,
	}}
	v1 := domain.ConceptVersion{VersionInfo: domain.VersionInfo{
		ID: "cv1", Mnemonic: "cv1", VersionedObjectID: "con1", IsActive: true,
	}}
	v2 := domain.ConceptVersion{VersionInfo: domain.VersionInfo{
		ID: "cv2", Mnemonic: "cv2", VersionedObjectID: "con1", PreviousVersionID: "cv1", IsLatest: true, IsActive: true,
	}}
	f.conceptVersions["cv1"] = v1
	f.conceptVersions["cv2"] = v2
	f.conceptChains["con1"] = []domain.ConceptVersion{v1, v2}

	f.mappings["map1"] = domain.Mapping{VersionedObject: domain.VersionedObject{
		ID: "map1", Kind: domain.KindMapping, Mnemonic: "map1", ParentID: "src1", IsActive: true,
	}}
	mv := domain.MappingVersion{VersionInfo: domain.VersionInfo{
		ID: "mv1", Mnemonic: "mv1", VersionedObjectID: "map1", IsLatest: true, IsActive: true,
	}}
	f.mappingVersions["mv1"] = mv
	f.mappingChains["map1"] = []domain.MappingVersion{mv}
	return f
}

func mustParse(t *testing.T, expr string) expression.ParsedReference {
	t.Helper()
	parsed, err := expression.Parse(expr)
	require.NoError(t, err)
	return parsed
}

func TestResolveConceptLatest(t *testing.T) {
	view := newFakeLookup()
	resolved, err := expression.Resolve(mustParse(t, "/orgs/org1/sources/S/concepts/K/"), view)
	require.NoError(t, err)
	assert.Equal(t, domain.ReferenceConcept, resolved.Type)
	assert.Equal(t, "con1", resolved.VersionedObjectID)
	assert.Equal(t, "cv2", resolved.VersionID)
	assert.Equal(t, "/orgs/org1/sources/S/concepts/K/cv2/", resolved.Expression)
}

func TestResolveConceptPinnedVersion(t *testing.T) {
	view := newFakeLookup()
	resolved, err := expression.Resolve(mustParse(t, "/orgs/org1/sources/S/concepts/K/cv1/"), view)
	require.NoError(t, err)
	assert.Equal(t, "cv1", resolved.VersionID)
	assert.Equal(t, "/orgs/org1/sources/S/concepts/K/cv1/", resolved.Expression)
}

func TestResolveConceptVersionFromOtherConceptRejected(t *testing.T) {
	view := newFakeLookup()
	// mv1 exists but belongs to a mapping, not concept K
	view.conceptVersions["stray"] = domain.ConceptVersion{VersionInfo: domain.VersionInfo{
		ID: "stray", VersionedObjectID: "other", IsActive: true,
	}}
	_, err := expression.Resolve(mustParse(t, "/orgs/org1/sources/S/concepts/K/stray/"), view)
	var notFound domain.ErrVersionNotFound
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, domain.KindConcept, notFound.Kind)
}

func TestResolveMappingLatest(t *testing.T) {
	view := newFakeLookup()
	resolved, err := expression.Resolve(mustParse(t, "/orgs/org1/sources/S/mappings/map1/"), view)
	require.NoError(t, err)
	assert.Equal(t, domain.ReferenceMapping, resolved.Type)
	assert.Equal(t, "map1", resolved.VersionedObjectID)
	assert.Equal(t, "mv1", resolved.VersionID)
	assert.Equal(t, "/orgs/org1/sources/S/mappings/map1/mv1/", resolved.Expression)
}

func TestResolveInactiveMappingNotFound(t *testing.T) {
	view := newFakeLookup()
	m := view.mappings["map1"]
	m.IsActive = false
	view.mappings["map1"] = m
	_, err := expression.Resolve(mustParse(t, "/orgs/org1/sources/S/mappings/map1/"), view)
	var notFound domain.ErrNotFound
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, domain.KindMapping, notFound.Kind)
}

func TestResolveUnknownSource(t *testing.T) {
	view := newFakeLookup()
	_, err := expression.Resolve(mustParse(t, "/orgs/org1/sources/Nope/concepts/K/"), view)
	var notFound domain.ErrNotFound
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, domain.KindSource, notFound.Kind)
}

func TestResolveSkipsRetiredLatest(t *testing.T) {
	view := newFakeLookup()
	// deactivate the latest; nothing resolvable remains because cv1 is not latest
	v2 := view.conceptVersions["cv2"]
	v2.IsActive = false
	view.conceptVersions["cv2"] = v2
	view.conceptChains["con1"][1] = v2

	_, err := expression.Resolve(mustParse(t, "/orgs/org1/sources/S/concepts/K/"), view)
	var notFound domain.ErrVersionNotFound
	require.True(t, errors.As(err, &notFound))
}

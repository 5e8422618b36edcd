package core_test

import (
	"context"
	"errors"
	"testing"

	"termcore/internal/core"
	"termcore/pkg/domain"
)

func newSourceFixture(t *testing.T, svc *core.Service) domain.Source {
	t.Helper()
	src, _, err := svc.CreateSource(context.Background(), org, "S", domain.ContainerPayload{Name: "S"}, "")
	if err != nil {
		t.Fatalf("create source: %v", err)
	}
	return src
}

func TestCreateConceptInitialVersion(t *testing.T) {
	svc := core.NewInMemoryService()
	ctx := context.Background()
	src := newSourceFixture(t, svc)

	concept, version, err := svc.CreateConcept(ctx, src.ID, "A15.1", namePayload("Tuberculosis of lung"))
	if err != nil {
		t.Fatalf("create concept: %v", err)
	}
	if concept.Mnemonic != "A15.1" || concept.ParentID != src.ID {
		t.Fatalf("unexpected concept root: %+v", concept.VersionedObject)
	}
	if concept.NumVersions != 1 {
		t.Fatalf("NumVersions = %d, want 1", concept.NumVersions)
	}
	// the first numbered version names itself
	if version.ID == "" || version.Mnemonic != version.ID {
		t.Fatalf("initial version mnemonic should equal its id: %+v", version.VersionInfo)
	}
	if !version.IsLatest {
		t.Fatalf("initial version must be latest")
	}
	if version.DisplayName() != "Tuberculosis of lung" {
		t.Fatalf("display name = %q", version.DisplayName())
	}
}

func TestCreateConceptRequiresName(t *testing.T) {
	svc := core.NewInMemoryService()
	ctx := context.Background()
	src := newSourceFixture(t, svc)

	_, _, err := svc.CreateConcept(ctx, src.ID, "K", domain.ConceptPayload{ConceptClass: "Diagnosis"})
	var verr domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	found := false
	for _, v := range verr.Result.Violations {
		if v.Message == core.MsgNamesCannotBeEmpty {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing names violation: %+v", verr.Result.Violations)
	}
}

func TestUpdateConceptAppendsVersion(t *testing.T) {
	svc := core.NewInMemoryService()
	ctx := context.Background()
	src := newSourceFixture(t, svc)
	concept, v1, err := svc.CreateConcept(ctx, src.ID, "K", namePayload("Cough"))
	if err != nil {
		t.Fatalf("create concept: %v", err)
	}

	v2, err := svc.UpdateConcept(ctx, concept.ID, func(p *domain.ConceptPayload) error {
		p.Names = append(p.Names, domain.LocalizedText{Text: "Tos", Locale: "es"})
		return nil
	}, core.CloneOptions{})
	if err != nil {
		t.Fatalf("update concept: %v", err)
	}
	if v2.PreviousVersionID != v1.ID {
		t.Fatalf("v2 previous = %q, want %q", v2.PreviousVersionID, v1.ID)
	}
	if len(v2.Names) != 2 {
		t.Fatalf("expected merged names, got %+v", v2.Names)
	}

	latest, err := svc.GetLatestConceptVersion(ctx, concept.ID)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.ID != v2.ID {
		t.Fatalf("latest = %s, want %s", latest.ID, v2.ID)
	}
	got, err := svc.GetConcept(ctx, concept.ID)
	if err != nil {
		t.Fatalf("get concept: %v", err)
	}
	if got.NumVersions != 2 {
		t.Fatalf("NumVersions = %d, want 2", got.NumVersions)
	}
}

func TestUpdateConceptExpectedLatestGuard(t *testing.T) {
	svc := core.NewInMemoryService()
	ctx := context.Background()
	src := newSourceFixture(t, svc)
	concept, v1, err := svc.CreateConcept(ctx, src.ID, "K", namePayload("Cough"))
	if err != nil {
		t.Fatalf("create concept: %v", err)
	}
	touch := func(p *domain.ConceptPayload) error {
		p.ExternalID = "x"
		return nil
	}
	if _, err := svc.UpdateConcept(ctx, concept.ID, touch, core.CloneOptions{ExpectedLatest: v1.ID}); err != nil {
		t.Fatalf("update with fresh guard: %v", err)
	}
	_, err = svc.UpdateConcept(ctx, concept.ID, touch, core.CloneOptions{ExpectedLatest: v1.ID})
	var conflict domain.ErrConcurrentModification
	if !errors.As(err, &conflict) {
		t.Fatalf("expected concurrent modification, got %v", err)
	}
}

func TestRetireUnretireConcept(t *testing.T) {
	svc := core.NewInMemoryService()
	ctx := context.Background()
	src := newSourceFixture(t, svc)
	concept, _, err := svc.CreateConcept(ctx, src.ID, "K", namePayload("Cough"))
	if err != nil {
		t.Fatalf("create concept: %v", err)
	}

	retired, err := svc.RetireConcept(ctx, concept.ID, "alice")
	if err != nil {
		t.Fatalf("retire: %v", err)
	}
	if !retired.Retired {
		t.Fatalf("version not flagged retired")
	}
	got, err := svc.GetConcept(ctx, concept.ID)
	if err != nil {
		t.Fatalf("get concept: %v", err)
	}
	if !got.Retired {
		t.Fatalf("root retired mirror not updated")
	}

	_, err = svc.RetireConcept(ctx, concept.ID, "alice")
	var already domain.ErrAlreadyRetired
	if !errors.As(err, &already) {
		t.Fatalf("expected already retired, got %v", err)
	}

	unretired, err := svc.UnretireConcept(ctx, concept.ID, "alice")
	if err != nil {
		t.Fatalf("unretire: %v", err)
	}
	if unretired.Retired {
		t.Fatalf("version still retired after unretire")
	}
	_, err = svc.UnretireConcept(ctx, concept.ID, "alice")
	var notRetired domain.ErrNotRetired
	if !errors.As(err, &notRetired) {
		t.Fatalf("expected not retired, got %v", err)
	}
}

func TestCreateMappingValidation(t *testing.T) {
	svc := core.NewInMemoryService()
	ctx := context.Background()
	src := newSourceFixture(t, svc)
	from, _, err := svc.CreateConcept(ctx, src.ID, "K1", namePayload("Cough"))
	if err != nil {
		t.Fatalf("create from concept: %v", err)
	}
	to, _, err := svc.CreateConcept(ctx, src.ID, "K2", namePayload("Symptom of cough"))
	if err != nil {
		t.Fatalf("create to concept: %v", err)
	}

	// map type required
	_, _, err = svc.CreateMapping(ctx, src.ID, domain.MappingPayload{FromConceptID: from.ID, ToConceptID: to.ID})
	var verr domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error for missing map type, got %v", err)
	}

	// internal target and external target are mutually exclusive
	_, _, err = svc.CreateMapping(ctx, src.ID, domain.MappingPayload{
		MapType:       "SAME-AS",
		FromConceptID: from.ID,
		ToConceptID:   to.ID,
		ToSourceID:    src.ID,
		ToConceptCode: "X1",
	})
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error for dual target, got %v", err)
	}

	mapping, version, err := svc.CreateMapping(ctx, src.ID, domain.MappingPayload{
		MapType:       "SAME-AS",
		FromConceptID: from.ID,
		ToConceptID:   to.ID,
	})
	if err != nil {
		t.Fatalf("create mapping: %v", err)
	}
	if mapping.Mnemonic != mapping.ID {
		t.Fatalf("mapping mnemonic should default to its id: %+v", mapping.VersionedObject)
	}
	if version.MapType != "SAME-AS" {
		t.Fatalf("unexpected version payload: %+v", version.MappingPayload)
	}

	// identical mapping rejected
	_, _, err = svc.CreateMapping(ctx, src.ID, domain.MappingPayload{
		MapType:       "SAME-AS",
		FromConceptID: from.ID,
		ToConceptID:   to.ID,
	})
	if !errors.As(err, &verr) {
		t.Fatalf("expected duplicate mapping rejection, got %v", err)
	}

	// same pair under a different map type is a distinct mapping
	if _, _, err := svc.CreateMapping(ctx, src.ID, domain.MappingPayload{
		MapType:       "NARROWER-THAN",
		FromConceptID: from.ID,
		ToConceptID:   to.ID,
	}); err != nil {
		t.Fatalf("different map type should be allowed: %v", err)
	}
}

func TestUpdateMappingDoesNotTripOnItself(t *testing.T) {
	svc := core.NewInMemoryService()
	ctx := context.Background()
	src := newSourceFixture(t, svc)
	from, _, err := svc.CreateConcept(ctx, src.ID, "K1", namePayload("Cough"))
	if err != nil {
		t.Fatalf("create concept: %v", err)
	}
	mapping, v1, err := svc.CreateMapping(ctx, src.ID, domain.MappingPayload{
		MapType:       "SAME-AS",
		FromConceptID: from.ID,
		ToSourceID:    src.ID,
		ToConceptCode: "EXT-1",
	})
	if err != nil {
		t.Fatalf("create mapping: %v", err)
	}

	v2, err := svc.UpdateMapping(ctx, mapping.ID, func(p *domain.MappingPayload) error {
		p.ToConceptName = "External one"
		return nil
	}, core.CloneOptions{})
	if err != nil {
		t.Fatalf("update mapping: %v", err)
	}
	if v2.PreviousVersionID != v1.ID {
		t.Fatalf("v2 previous = %q, want %q", v2.PreviousVersionID, v1.ID)
	}
	if v2.ToConceptName != "External one" {
		t.Fatalf("payload not applied: %+v", v2.MappingPayload)
	}
}

package exports_test

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"termcore/internal/adapters/exports"
	"termcore/internal/blob"
	"termcore/internal/core"
	"termcore/pkg/domain"
)

var org = domain.Owner{Kind: domain.OwnerOrg, ID: "org1"}

type fixture struct {
	svc        *core.Service
	store      blob.Store
	worker     *exports.Worker
	collection domain.Collection
	version    domain.CollectionVersion
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	svc := core.NewInMemoryService()

	src, _, err := svc.CreateSource(ctx, org, "S", domain.ContainerPayload{Name: "S"}, "")
	if err != nil {
		t.Fatalf("create source: %v", err)
	}
	if _, _, err := svc.CreateConcept(ctx, src.ID, "K", domain.ConceptPayload{
		ConceptClass: "Diagnosis",
		Datatype:     "None",
		Names: []domain.LocalizedText{
			{Text: "Malaria", Locale: "en", LocalePreferred: true, Type: domain.NameTypeFullySpecified},
		},
	}); err != nil {
		t.Fatalf("create concept: %v", err)
	}

	coll, _, err := svc.CreateCollection(ctx, org, "DICT", domain.ContainerPayload{Name: "DICT"}, "")
	if err != nil {
		t.Fatalf("create collection: %v", err)
	}
	if _, errs, err := svc.AddReferences(ctx, coll.ID, []string{"/orgs/org1/sources/S/concepts/K/"}, false); err != nil || len(errs) != 0 {
		t.Fatalf("add references: err=%v errs=%v", err, errs)
	}
	version, err := svc.CreateCollectionVersion(ctx, coll.ID, "v1", core.CloneOptions{})
	if err != nil {
		t.Fatalf("create version: %v", err)
	}
	if _, err := svc.MarkCollectionVersionReleased(ctx, version.ID, true); err != nil {
		t.Fatalf("release version: %v", err)
	}

	store := blob.NewMemory()
	worker := exports.NewWorker(svc, store, zerolog.Nop())
	worker.Start()
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = worker.Stop(stopCtx)
	})
	return &fixture{svc: svc, store: store, worker: worker, collection: coll, version: version}
}

func waitForExport(t *testing.T, worker *exports.Worker, id string) exports.Record {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		record, ok := worker.Get(id)
		if !ok {
			t.Fatalf("export %s vanished", id)
		}
		if record.Status == exports.StatusSucceeded || record.Status == exports.StatusFailed {
			return record
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("export %s did not finish", id)
	return exports.Record{}
}

func TestExportPublishesArchive(t *testing.T) {
	fx := newFixture(t)
	frozen := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	fx.worker.SetNowFunc(func() time.Time { return frozen })

	record, err := fx.worker.Enqueue(context.Background(), exports.Input{
		CollectionID: fx.collection.ID,
		Version:      "v1",
		RequestedBy:  "tester",
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if record.Status != exports.StatusQueued || record.Version != "v1" {
		t.Fatalf("queued record wrong: %+v", record)
	}

	done := waitForExport(t, fx.worker, record.ID)
	if done.Status != exports.StatusSucceeded {
		t.Fatalf("export failed: %s", done.Error)
	}
	wantKey := fmt.Sprintf("orgs/org1/DICT_v1.%s.tgz", frozen.Format("20060102150405"))
	if done.Key != wantKey {
		t.Fatalf("key = %s, want %s", done.Key, wantKey)
	}
	if done.Artifact == nil || done.Artifact.Size == 0 || done.CompletedAt == nil {
		t.Fatalf("artifact not recorded: %+v", done)
	}

	info, rc, err := fx.store.Get(context.Background(), done.Key)
	if err != nil {
		t.Fatalf("fetch archive: %v", err)
	}
	defer func() { _ = rc.Close() }()
	if info.ContentType != "application/gzip" || info.Metadata["collection"] != "DICT" {
		t.Fatalf("blob attributes wrong: %+v", info)
	}

	m := readManifest(t, rc)
	if m.Mnemonic != "DICT" || m.Version != "v1" || !m.Released {
		t.Fatalf("manifest header wrong: %+v", m)
	}
	if len(m.Expressions) != 1 || !strings.HasPrefix(m.Expressions[0], "/orgs/org1/sources/S/concepts/K/") {
		t.Fatalf("expressions wrong: %v", m.Expressions)
	}
	if len(m.Concepts) != 1 || m.Concepts[0].DisplayName() != "Malaria" {
		t.Fatalf("concept payloads missing: %+v", m.Concepts)
	}
	if m.ActiveConcepts != 1 {
		t.Fatalf("active concept count = %d", m.ActiveConcepts)
	}
}

func TestEnqueueDefaultsToLatestReleased(t *testing.T) {
	fx := newFixture(t)

	record, err := fx.worker.Enqueue(context.Background(), exports.Input{CollectionID: fx.collection.ID})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if record.Version != "v1" {
		t.Fatalf("resolved version = %s, want v1", record.Version)
	}
	done := waitForExport(t, fx.worker, record.ID)
	if done.Status != exports.StatusSucceeded {
		t.Fatalf("export failed: %s", done.Error)
	}
}

func TestEnqueueRejectsWorkingCopy(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.worker.Enqueue(context.Background(), exports.Input{
		CollectionID: fx.collection.ID,
		Version:      domain.HeadMnemonic,
	})
	if err == nil || !strings.Contains(err.Error(), "working copy") {
		t.Fatalf("HEAD export must be rejected, got %v", err)
	}
}

func TestEnqueueUnknownCollection(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.worker.Enqueue(context.Background(), exports.Input{CollectionID: "nope", Version: "v1"})
	var notFound domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestEnqueueUnreleasedCollection(t *testing.T) {
	svc := core.NewInMemoryService()
	ctx := context.Background()
	coll, _, err := svc.CreateCollection(ctx, org, "EMPTY", domain.ContainerPayload{Name: "EMPTY"}, "")
	if err != nil {
		t.Fatalf("create collection: %v", err)
	}
	worker := exports.NewWorker(svc, blob.NewMemory(), zerolog.Nop())

	_, err = worker.Enqueue(ctx, exports.Input{CollectionID: coll.ID})
	var missing domain.ErrVersionNotFound
	if !errors.As(err, &missing) {
		t.Fatalf("expected version-not-found without a released version, got %v", err)
	}
}

func readManifest(t *testing.T, r io.Reader) (m struct {
	Mnemonic       string                  `json:"mnemonic"`
	Version        string                  `json:"version"`
	Released       bool                    `json:"released"`
	Expressions    []string                `json:"expressions"`
	Concepts       []domain.ConceptVersion `json:"concepts"`
	ActiveConcepts int                     `json:"active_concepts"`
}) {
	t.Helper()
	gz, err := gzip.NewReader(r)
	if err != nil {
		t.Fatalf("gzip: %v", err)
	}
	tr := tar.NewReader(gz)
	hdr, err := tr.Next()
	if err != nil {
		t.Fatalf("tar: %v", err)
	}
	if hdr.Name != "export.json" {
		t.Fatalf("archive entry = %s", hdr.Name)
	}
	if err := json.NewDecoder(tr).Decode(&m); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	return m
}

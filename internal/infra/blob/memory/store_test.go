package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"termcore/internal/blob/core"
)

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	store := New()

	info, err := store.Put(ctx, "exports/a.tgz", bytes.NewReader([]byte("archive")), core.PutOptions{
		ContentType: "application/gzip",
		Metadata:    map[string]string{"collection": "DICT"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 7 || info.ContentType != "application/gzip" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, "exports/a.tgz", bytes.NewReader(nil), core.PutOptions{}); err == nil {
		t.Fatalf("duplicate key must fail")
	}

	got, rc, err := store.Get(ctx, "exports/a.tgz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(b) != "archive" || got.Metadata["collection"] != "DICT" {
		t.Fatalf("get mismatch: %q %+v", b, got)
	}

	if _, err := store.Head(ctx, "exports/missing.tgz"); err == nil {
		t.Fatalf("head on missing key must fail")
	}

	ok, err := store.Delete(ctx, "exports/a.tgz")
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, _ := store.Delete(ctx, "exports/a.tgz"); ok {
		t.Fatalf("second delete should report absence")
	}
}

func TestListPrefixSorted(t *testing.T) {
	ctx := context.Background()
	store := New()
	for _, key := range []string{"b/2", "a/1", "a/0"} {
		if _, err := store.Put(ctx, key, bytes.NewReader([]byte("x")), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	list, err := store.List(ctx, "a/")
	if err != nil || len(list) != 2 || list[0].Key != "a/0" || list[1].Key != "a/1" {
		t.Fatalf("list: %v %+v", err, list)
	}
}

func TestMetadataIsolated(t *testing.T) {
	ctx := context.Background()
	store := New()
	meta := map[string]string{"a": "1"}
	if _, err := store.Put(ctx, "k", bytes.NewReader([]byte("x")), core.PutOptions{Metadata: meta}); err != nil {
		t.Fatalf("put: %v", err)
	}
	meta["a"] = "2"
	info, err := store.Head(ctx, "k")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if info.Metadata["a"] != "1" {
		t.Fatalf("caller mutation leaked into store: %+v", info.Metadata)
	}
}

func TestPresignUnsupported(t *testing.T) {
	store := New()
	if _, err := store.PresignURL(context.Background(), "k", core.SignedURLOptions{}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

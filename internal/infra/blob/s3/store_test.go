package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"termcore/internal/blob/core"
)

func TestMockedBasicFlow(t *testing.T) {
	store := NewMockForTests()
	ctx := context.Background()

	info, err := store.Put(ctx, "orgs/org1/DICT_v1.tgz", bytes.NewReader([]byte("archive")), core.PutOptions{ContentType: "application/gzip"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "orgs/org1/DICT_v1.tgz" || info.ContentType != "application/gzip" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, "orgs/org1/DICT_v1.tgz", bytes.NewReader([]byte("ignored")), core.PutOptions{}); err == nil {
		t.Fatalf("expected duplicate put error")
	}

	if _, err := store.Head(ctx, "orgs/org1/DICT_v1.tgz"); err != nil {
		t.Fatalf("head: %v", err)
	}
	_, rc, err := store.Get(ctx, "orgs/org1/DICT_v1.tgz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "archive" {
		t.Fatalf("get mismatch: %q", data)
	}

	list, err := store.List(ctx, "orgs/org1/")
	if err != nil || len(list) != 1 || list[0].Key != "orgs/org1/DICT_v1.tgz" {
		t.Fatalf("list: %v %+v", err, list)
	}
	if url, err := store.PresignURL(ctx, "orgs/org1/DICT_v1.tgz", core.SignedURLOptions{Expiry: 30 * time.Second}); err != nil || url == "" {
		t.Fatalf("presign: %v %s", err, url)
	}
	if ok, err := store.Delete(ctx, "orgs/org1/DICT_v1.tgz"); err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
}

func TestErrorPaths(t *testing.T) {
	store := NewMockForTests()
	ctx := context.Background()

	if _, err := store.Head(ctx, "missing"); err == nil {
		t.Fatalf("expected head error for missing key")
	}
	if _, _, err := store.Get(ctx, "missing"); err == nil {
		t.Fatalf("expected get error for missing key")
	}
	if _, err := store.PresignURL(ctx, "k", core.SignedURLOptions{Method: "PUT"}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected bucket requirement error")
	}
	store, err := New(context.Background(), Config{Bucket: "bkt", Endpoint: "https://mock.s3.local", PathStyle: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if store.Driver() != core.DriverS3 {
		t.Fatalf("driver = %s", store.Driver())
	}
}

func TestOpenFromEnv(t *testing.T) {
	t.Setenv("TERMCORE_BLOB_S3_BUCKET", "")
	if _, err := OpenFromEnv(context.Background()); err == nil {
		t.Fatalf("expected error without bucket")
	}

	t.Setenv("TERMCORE_BLOB_S3_BUCKET", "env-bucket")
	t.Setenv("TERMCORE_BLOB_S3_REGION", "us-east-1")
	_ = os.Setenv("AWS_ACCESS_KEY_ID", "AKIA")
	_ = os.Setenv("AWS_SECRET_ACCESS_KEY", "SECRET")
	defer func() {
		_ = os.Unsetenv("AWS_ACCESS_KEY_ID")
		_ = os.Unsetenv("AWS_SECRET_ACCESS_KEY")
	}()
	if _, err := OpenFromEnv(context.Background()); err != nil {
		t.Fatalf("OpenFromEnv: %v", err)
	}
}

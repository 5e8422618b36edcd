package blob_test

import (
	"context"
	"testing"

	"termcore/internal/blob"
)

func TestOpenDefaultsToFilesystem(t *testing.T) {
	t.Setenv("TERMCORE_BLOB_DRIVER", "")
	t.Setenv("TERMCORE_BLOB_FS_ROOT", t.TempDir())

	store, err := blob.Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if store.Driver() != blob.DriverFilesystem {
		t.Fatalf("driver = %s, want %s", store.Driver(), blob.DriverFilesystem)
	}
}

func TestOpenMemoryDriver(t *testing.T) {
	t.Setenv("TERMCORE_BLOB_DRIVER", "memory")

	store, err := blob.Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if store.Driver() != blob.DriverMemory {
		t.Fatalf("driver = %s, want %s", store.Driver(), blob.DriverMemory)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Setenv("TERMCORE_BLOB_DRIVER", "tape")

	if _, err := blob.Open(context.Background()); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

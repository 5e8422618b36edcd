package core_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"termcore/internal/core"
	"termcore/pkg/domain"
)

func TestExpvarRecorderAggregates(t *testing.T) {
	rec := core.NewExpvarMetricsRecorder("")
	ctx := context.Background()

	rec.Observe(ctx, "create_source", true, 20*time.Millisecond)
	rec.Observe(ctx, "create_source", true, 30*time.Millisecond)
	rec.Observe(ctx, "create_source", false, 5*time.Millisecond)
	rec.Observe(ctx, "", true, time.Second) // ignored

	snap := rec.Snapshot()
	if got := snap.Results["create_source"]["success"]; got != 2 {
		t.Fatalf("success count = %d", got)
	}
	if got := snap.Results["create_source"]["error"]; got != 1 {
		t.Fatalf("error count = %d", got)
	}
	if got := snap.DurationsMS["create_source"]; got < 54 || got > 56 {
		t.Fatalf("duration total = %f", got)
	}
	if rec.Name() == "" {
		t.Fatalf("generated name expected")
	}
}

func TestPrometheusRecorderRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := core.NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	rec.Observe(context.Background(), "add_references", true, 10*time.Millisecond)
	rec.Observe(context.Background(), "add_references", false, 10*time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	if !names["termcore_operation_duration_seconds"] || !names["termcore_operation_results_total"] {
		t.Fatalf("collectors missing: %v", names)
	}

	// double registration must surface the registry error
	if _, err := core.NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

type capturingRecorder struct {
	mu         sync.Mutex
	operations []string
	failures   int
}

func (r *capturingRecorder) Observe(_ context.Context, operation string, success bool, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operations = append(r.operations, operation)
	if !success {
		r.failures++
	}
}

func TestServiceReportsOperationOutcomes(t *testing.T) {
	rec := &capturingRecorder{}
	svc := core.NewInMemoryService(core.WithMetricsRecorder(rec))
	ctx := context.Background()

	if _, _, err := svc.CreateSource(ctx, org, "S", domain.ContainerPayload{Name: "S"}, ""); err != nil {
		t.Fatalf("create source: %v", err)
	}
	if _, _, err := svc.CreateSource(ctx, org, "S", domain.ContainerPayload{Name: "S"}, ""); err == nil {
		t.Fatalf("duplicate mnemonic should fail")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.operations) != 2 || rec.operations[0] != "create_source" {
		t.Fatalf("observed operations = %v", rec.operations)
	}
	if rec.failures != 1 {
		t.Fatalf("failures = %d", rec.failures)
	}
}

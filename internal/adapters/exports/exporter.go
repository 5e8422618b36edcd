// Package exports builds downloadable archives of collection versions and
// publishes them to a blob store.
package exports

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"termcore/internal/blob"
	"termcore/internal/core"
	"termcore/pkg/domain"
)

// Status describes the lifecycle stage of an export request.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Input represents an enqueue request for the worker.
type Input struct {
	CollectionID string
	Version      string // version mnemonic; empty means the latest released version
	RequestedBy  string
}

// Record tracks an export request and the resulting archive.
type Record struct {
	ID           string     `json:"id"`
	CollectionID string     `json:"collection_id"`
	Version      string     `json:"version"`
	Key          string     `json:"key,omitempty"`
	Status       Status     `json:"status"`
	Error        string     `json:"error,omitempty"`
	Artifact     *blob.Info `json:"artifact,omitempty"`
	RequestedBy  string     `json:"requested_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

func (r Record) copy() Record {
	out := r
	if r.Artifact != nil {
		info := *r.Artifact
		out.Artifact = &info
	}
	if r.CompletedAt != nil {
		at := *r.CompletedAt
		out.CompletedAt = &at
	}
	return out
}

// Scheduler queues collection version exports and exposes status.
type Scheduler interface {
	Enqueue(ctx context.Context, input Input) (Record, error)
	Get(id string) (Record, bool)
}

// manifest is the export.json document placed inside the archive.
type manifest struct {
	CollectionID    string                  `json:"collection_id"`
	Owner           domain.Owner            `json:"owner"`
	Mnemonic        string                  `json:"mnemonic"`
	Version         string                  `json:"version"`
	Name            string                  `json:"name,omitempty"`
	Released        bool                    `json:"released"`
	Expressions     []string                `json:"expressions"`
	Concepts        []domain.ConceptVersion `json:"concepts"`
	Mappings        []domain.MappingVersion `json:"mappings"`
	ActiveConcepts  int                     `json:"active_concepts"`
	ActiveMappings  int                     `json:"active_mappings"`
	GeneratedAt     time.Time               `json:"generated_at"`
	VersionCreated  time.Time               `json:"version_created_at"`
	VersionReleased time.Time               `json:"version_updated_at"`
}

// Worker executes collection version exports asynchronously.
type Worker struct {
	service *core.Service
	store   blob.Store
	logger  zerolog.Logger
	nowFn   func() time.Time

	queue chan task
	mu    sync.RWMutex
	jobs  map[string]*Record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type task struct {
	id        string
	versionID string
}

// NewWorker constructs an export worker over the given service and blob store.
func NewWorker(service *core.Service, store blob.Store, logger zerolog.Logger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		service: service,
		store:   store,
		logger:  logger.With().Str("component", "exports").Logger(),
		nowFn:   func() time.Time { return time.Now().UTC() },
		queue:   make(chan task, 32),
		jobs:    make(map[string]*Record),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// SetNowFunc overrides the clock. Tests only.
func (w *Worker) SetNowFunc(fn func() time.Time) { w.nowFn = fn }

// Start begins processing export requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for completion.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case t := <-w.queue:
			w.process(t)
		}
	}
}

// Enqueue schedules an export and returns the queued record. The target
// version must be a numbered version; HEAD working copies are not exportable.
func (w *Worker) Enqueue(ctx context.Context, input Input) (Record, error) {
	if strings.TrimSpace(input.CollectionID) == "" {
		return Record{}, fmt.Errorf("collection id required")
	}
	version, err := w.resolveVersion(ctx, input)
	if err != nil {
		return Record{}, err
	}
	if version.IsHead() {
		return Record{}, fmt.Errorf("cannot export %s working copy", domain.HeadMnemonic)
	}

	id := uuid.NewString()
	now := w.nowFn()
	record := Record{
		ID:           id,
		CollectionID: input.CollectionID,
		Version:      version.Mnemonic,
		Status:       StatusQueued,
		RequestedBy:  input.RequestedBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	w.mu.Lock()
	w.jobs[id] = &record
	queued := record.copy()
	w.mu.Unlock()

	select {
	case w.queue <- task{id: id, versionID: version.ID}:
	default:
		return Record{}, fmt.Errorf("export queue full")
	}

	w.logger.Info().Str("export_id", id).Str("collection_id", input.CollectionID).Str("version", version.Mnemonic).Msg("export queued")
	return queued, nil
}

// Get returns a snapshot of the export record.
func (w *Worker) Get(id string) (Record, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return Record{}, false
	}
	return record.copy(), true
}

func (w *Worker) resolveVersion(ctx context.Context, input Input) (domain.CollectionVersion, error) {
	if input.Version == "" {
		return w.service.GetLatestReleasedCollectionVersion(ctx, input.CollectionID)
	}
	var version domain.CollectionVersion
	err := w.service.Store().View(ctx, func(view domain.TransactionView) error {
		if _, ok := view.FindCollection(input.CollectionID); !ok {
			return domain.ErrNotFound{Kind: domain.KindCollection, ID: input.CollectionID}
		}
		v, ok := view.FindCollectionVersionByMnemonic(input.CollectionID, input.Version)
		if !ok {
			return domain.ErrVersionNotFound{Kind: domain.KindCollection, VersionedObjectID: input.CollectionID, VersionID: input.Version}
		}
		version = v
		return nil
	})
	return version, err
}

func (w *Worker) process(t task) {
	w.setStatus(t.id, StatusRunning, "")

	// Materialize first so the archive reflects a seeded version even when
	// the version predates its reference snapshot.
	version, err := w.service.SeedCollectionVersion(w.ctx, t.versionID)
	if err != nil {
		w.fail(t.id, fmt.Sprintf("seed version: %v", err))
		return
	}

	archive, m, err := w.buildArchive(version)
	if err != nil {
		w.fail(t.id, err.Error())
		return
	}

	key := archiveKey(m.Owner, m.Mnemonic, m.Version, w.nowFn())
	info, err := w.store.Put(w.ctx, key, bytes.NewReader(archive), blob.PutOptions{
		ContentType: "application/gzip",
		Metadata: map[string]string{
			"collection": m.Mnemonic,
			"version":    m.Version,
		},
	})
	if err != nil {
		w.fail(t.id, fmt.Sprintf("store archive: %v", err))
		return
	}

	w.complete(t.id, key, info)
	w.logger.Info().Str("export_id", t.id).Str("key", key).Int64("size_bytes", info.Size).Msg("export complete")
}

// archiveKey builds the stable blob key for an export archive:
// {ownerKind}/{ownerID}/{collection}_{version}.{timestamp}.tgz
func archiveKey(owner domain.Owner, mnemonic, version string, at time.Time) string {
	return fmt.Sprintf("%s/%s/%s_%s.%s.tgz", owner.Kind, owner.ID, mnemonic, version, at.Format("20060102150405"))
}

func (w *Worker) buildArchive(version domain.CollectionVersion) ([]byte, manifest, error) {
	var m manifest
	err := w.service.Store().View(w.ctx, func(view domain.TransactionView) error {
		coll, ok := view.FindCollection(version.VersionedObjectID)
		if !ok {
			return domain.ErrNotFound{Kind: domain.KindCollection, ID: version.VersionedObjectID}
		}
		m = manifest{
			CollectionID:    coll.ID,
			Owner:           coll.Owner,
			Mnemonic:        coll.Mnemonic,
			Version:         version.Mnemonic,
			Name:            version.Name,
			Released:        version.Released,
			Expressions:     make([]string, 0, len(version.References)),
			Concepts:        make([]domain.ConceptVersion, 0, len(version.ConceptVersionIDs)),
			Mappings:        make([]domain.MappingVersion, 0, len(version.MappingVersionIDs)),
			ActiveConcepts:  version.ActiveConcepts,
			ActiveMappings:  version.ActiveMappings,
			GeneratedAt:     w.nowFn(),
			VersionCreated:  version.CreatedAt,
			VersionReleased: version.UpdatedAt,
		}
		for _, ref := range version.References {
			m.Expressions = append(m.Expressions, ref.Expression)
		}
		for _, id := range version.ConceptVersionIDs {
			if cv, ok := view.FindConceptVersion(id); ok {
				m.Concepts = append(m.Concepts, cv)
			}
		}
		for _, id := range version.MappingVersionIDs {
			if mv, ok := view.FindMappingVersion(id); ok {
				m.Mappings = append(m.Mappings, mv)
			}
		}
		return nil
	})
	if err != nil {
		return nil, manifest{}, err
	}

	payload, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, manifest{}, fmt.Errorf("marshal manifest: %w", err)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	hdr := &tar.Header{
		Name:    "export.json",
		Mode:    0o644,
		Size:    int64(len(payload)),
		ModTime: m.GeneratedAt,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return nil, manifest{}, fmt.Errorf("write archive header: %w", err)
	}
	if _, err := tw.Write(payload); err != nil {
		return nil, manifest{}, fmt.Errorf("write archive payload: %w", err)
	}
	if err := tw.Close(); err != nil {
		return nil, manifest{}, err
	}
	if err := gz.Close(); err != nil {
		return nil, manifest{}, err
	}
	return buf.Bytes(), m, nil
}

func (w *Worker) setStatus(id string, status Status, message string) {
	now := w.nowFn()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = status
		record.Error = message
		record.UpdatedAt = now
	}
	w.mu.Unlock()
}

func (w *Worker) complete(id, key string, info blob.Info) {
	now := w.nowFn()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusSucceeded
		record.Error = ""
		record.Key = key
		record.Artifact = &info
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
}

func (w *Worker) fail(id, reason string) {
	now := w.nowFn()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusFailed
		record.Error = reason
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.logger.Warn().Str("export_id", id).Str("reason", reason).Msg("export failed")
}

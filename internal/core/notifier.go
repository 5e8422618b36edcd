package core

import (
	"context"

	"termcore/pkg/domain"
)

// Notifier is invoked after successful reference-set changes so external
// collaborators (search indexers, export archivers) can react. Calls happen
// outside the storage transaction; a notifier must not call back into the
// service synchronously.
type Notifier interface {
	ReferencesAdded(ctx context.Context, collectionID string, added []domain.Reference)
	ReferencesRemoved(ctx context.Context, collectionID string, removed []domain.Reference)
}

// NoopNotifier discards all notifications.
type NoopNotifier struct{}

// ReferencesAdded implements Notifier.
func (NoopNotifier) ReferencesAdded(context.Context, string, []domain.Reference) {}

// ReferencesRemoved implements Notifier.
func (NoopNotifier) ReferencesRemoved(context.Context, string, []domain.Reference) {}

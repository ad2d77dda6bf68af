package service

import (
	"github.com/lumidex/lumidex-go/internal/core/domain"
	"github.com/lumidex/lumidex-go/internal/documents"
	"github.com/lumidex/lumidex-go/internal/storage"
)

// Progress describes how far an update has advanced through a phase.
type Progress struct {
	Phase     string
	Processed uint64
	Total     uint64
}

// ProgressFunc receives throttled progress notifications. May be nil.
type ProgressFunc func(Progress)

// UpdateHandler applies index updates inside a caller-owned write
// transaction. The caller decides transaction boundaries: a restore
// runs settings and documents in one transaction so a failure leaves
// nothing behind.
type UpdateHandler interface {
	// ApplySettings persists validated settings and, when primaryKey is
	// non-nil, the primary-key field name.
	ApplySettings(txn *storage.Txn, settings domain.CheckedSettings, primaryKey *string, progress ProgressFunc) error

	// IndexDocuments indexes every document of a finalized batch:
	// payload storage, external-id mapping, and posting lists over the
	// searchable attributes. The batch must not be empty; callers skip
	// indexing for empty batches so primary-key inference is never
	// attempted against zero documents.
	IndexDocuments(txn *storage.Txn, batch *documents.BatchReader, progress ProgressFunc) error
}

// Update phases reported through ProgressFunc.
const (
	PhaseSettings  = "settings"
	PhaseDocuments = "documents"
)

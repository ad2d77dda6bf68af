package index

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/lumidex/lumidex-go/internal/core/domain"
	"github.com/lumidex/lumidex-go/internal/core/service"
	"github.com/lumidex/lumidex-go/internal/documents"
	"github.com/lumidex/lumidex-go/internal/storage"
	"github.com/lumidex/lumidex-go/internal/telemetry/logger"
)

// LoadDump rebuilds an index from the snapshot directory src (one
// index's meta.json and documents.jsonl) into a fresh environment at
// cfg.Path joined with src's base name. Settings are re-validated and
// applied before any document is indexed, and settings plus documents
// commit in one write transaction: a failed restore leaves the
// destination directory and environment files on disk, but with no
// committed state; discarding them is the caller's responsibility.
//
// The environment is fully closed before LoadDump returns, so the
// destination directory is immediately safe to open, copy or swap in.
// cfg.UID defaults to the snapshot directory's name.
func LoadDump(ctx context.Context, src string, cfg Config, progress service.ProgressFunc) error {
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	if cfg.Handler == nil {
		cfg.Handler = service.NewIndexer(cfg.Logger)
	}
	if cfg.UID == "" {
		cfg.UID = filepath.Base(src)
	}
	dst := filepath.Join(cfg.Path, filepath.Base(src))

	opID := logger.NewOperationID()
	ctx = logger.WithOperationID(ctx, opID)
	log := logger.L(ctx).With("uid", cfg.UID)

	start := time.Now()
	log.Info("snapshot restore started", "src", src, "dst", dst)

	count, err := loadDump(src, dst, cfg, progress)
	if err != nil {
		if cfg.Metrics != nil {
			cfg.Metrics.SnapshotErrors.WithLabelValues("restore").Inc()
		}
		log.Error("snapshot restore failed", "error", err)
		return err
	}

	if cfg.Metrics != nil {
		cfg.Metrics.RestoreDuration.Observe(time.Since(start).Seconds())
		cfg.Metrics.DocumentsIndexed.Add(float64(count))
	}
	log.Info("snapshot restore finished",
		"documents", count,
		"duration", time.Since(start))
	return nil
}

// loadDump creates the destination and its environment first, then
// replays the snapshot into it. The order is part of the contract:
// whatever fails afterwards, the destination directory already exists
// on disk for the caller to inspect or discard.
func loadDump(src, dst string, cfg Config, progress service.ProgressFunc) (uint64, error) {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return 0, domain.ErrIndexIO.WithCause(err)
	}

	envCfg := storage.DefaultConfig(dst, cfg.MapSize)
	envCfg.Logger = cfg.Logger
	env, err := storage.Open(envCfg)
	if err != nil {
		return 0, domain.ErrIndexIO.WithCause(err)
	}
	if cfg.Registry != nil {
		env.RegisterMetrics(cfg.Registry)
	}

	count, err := restoreInto(env, src, cfg, progress)
	if err != nil {
		env.Close()
		return 0, err
	}

	// Close waits out background work; only then is the directory a
	// complete, self-contained index.
	if err := env.Close(); err != nil {
		return 0, err
	}
	return count, nil
}

// restoreInto replays the snapshot under the environment's single
// write transaction: settings first, then the normalized document
// batch, one commit. An empty batch applies settings only; indexing is
// skipped so primary-key inference is never attempted against zero
// documents. On any failure the transaction aborts and the destination
// holds zero documents and no settings.
func restoreInto(env *storage.Env, src string, cfg Config, progress service.ProgressFunc) (uint64, error) {
	meta, err := readMeta(filepath.Join(src, metaFileName))
	if err != nil {
		return 0, err
	}

	// Settings crossed a trust boundary inside the snapshot; they are
	// re-validated before anything reaches the indexer.
	checked, err := meta.Settings.Check()
	if err != nil {
		return 0, err
	}

	txn, err := env.WriteTxn()
	if err != nil {
		return 0, err
	}
	defer txn.Abort()

	if err := storage.PutIndexUID(txn, cfg.UID); err != nil {
		return 0, err
	}
	if err := cfg.Handler.ApplySettings(txn, checked, meta.PrimaryKey, progress); err != nil {
		return 0, err
	}

	stream, err := os.Open(filepath.Join(src, dataFileName))
	if err != nil {
		return 0, domain.ErrIndexIO.WithCause(err)
	}
	defer stream.Close()

	// The document stream normalizes through a spill file into the
	// batch encoding the bulk loader consumes.
	spill, cleanup, err := documents.TempBatchFile()
	if err != nil {
		return 0, domain.ErrIndexIO.WithCause(err)
	}
	defer cleanup()

	builder, err := documents.NewBatchBuilder(spill)
	if err != nil {
		return 0, domain.ErrIndexIO.WithCause(err)
	}
	added, err := documents.ReadNDJSON(stream, builder)
	if err != nil {
		return 0, err
	}
	if err := builder.Finalize(); err != nil {
		return 0, domain.ErrIndexIO.WithCause(err)
	}
	batch, err := documents.NewBatchReader(spill)
	if err != nil {
		return 0, domain.ErrCorruptedPayload.WithCause(err)
	}

	if !batch.IsEmpty() {
		if err := cfg.Handler.IndexDocuments(txn, batch, progress); err != nil {
			return 0, err
		}
	}
	if err := txn.Commit(); err != nil {
		return 0, err
	}
	return uint64(added), nil
}

// readMeta reads and decodes a snapshot meta record. An unreadable or
// malformed record is a Schema error; restore never guesses at
// settings.
func readMeta(path string) (DumpMeta, error) {
	var meta DumpMeta
	payload, err := os.ReadFile(path)
	if err != nil {
		return meta, domain.ErrInvalidMeta.WithCause(err)
	}
	if err := json.Unmarshal(payload, &meta); err != nil {
		return meta, domain.ErrInvalidMeta.WithCause(err)
	}
	return meta, nil
}

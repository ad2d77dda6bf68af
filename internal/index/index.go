// Package index implements a single document index: its lifecycle on
// disk, document and settings updates, search, and the snapshot
// subsystem (Dump / LoadDump) that moves an index between
// environments through a portable directory layout.
package index

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lumidex/lumidex-go/internal/core/domain"
	"github.com/lumidex/lumidex-go/internal/core/service"
	"github.com/lumidex/lumidex-go/internal/documents"
	"github.com/lumidex/lumidex-go/internal/storage"
	"github.com/lumidex/lumidex-go/internal/telemetry/logger"
	"github.com/lumidex/lumidex-go/internal/telemetry/metric"
)

// Config configures an index.
type Config struct {
	// Path is the index's environment directory.
	Path string

	// UID is the index's stable identifier. Create generates one when
	// empty; Open ignores it and reads the stored value.
	UID string

	// MapSize is the environment's storage arena bound in bytes.
	MapSize int64

	// Logger is the structured logger.
	Logger logger.Logger

	// Metrics receives operation metrics when non-nil.
	Metrics *metric.Metrics

	// Registry, when non-nil, receives the environment's storage
	// gauges.
	Registry *prometheus.Registry

	// Handler applies updates. Defaults to service.NewIndexer.
	Handler service.UpdateHandler
}

// Index is one document index backed by a storage environment.
//
// All writes funnel through the environment's single write
// transaction, so concurrent readers always observe a fully committed
// state.
type Index struct {
	uid     string
	env     *storage.Env
	logger  logger.Logger
	metrics *metric.Metrics
	handler service.UpdateHandler
}

// Create initializes a fresh index at cfg.Path. The directory must not
// already hold an index.
func Create(cfg Config) (*Index, error) {
	idx, env, err := openEnv(cfg)
	if err != nil {
		return nil, err
	}

	txn, err := env.WriteTxn()
	if err != nil {
		env.Close()
		return nil, err
	}
	defer txn.Abort()

	if _, ok, err := storage.IndexUID(txn); err != nil {
		env.Close()
		return nil, err
	} else if ok {
		env.Close()
		return nil, domain.ErrInvalidMeta.WithDetails("directory already holds an index")
	}

	uid := cfg.UID
	if uid == "" {
		uid = ulid.Make().String()
	}
	if err := storage.PutIndexUID(txn, uid); err != nil {
		env.Close()
		return nil, err
	}
	if err := storage.PutSettings(txn, domain.DefaultCheckedSettings()); err != nil {
		env.Close()
		return nil, err
	}
	if err := txn.Commit(); err != nil {
		env.Close()
		return nil, err
	}

	idx.uid = uid
	idx.logger.Info("index created", "uid", uid, "path", cfg.Path)
	return idx, nil
}

// Open opens an existing index at cfg.Path.
func Open(cfg Config) (*Index, error) {
	idx, env, err := openEnv(cfg)
	if err != nil {
		return nil, err
	}

	txn, err := env.ReadTxn()
	if err != nil {
		env.Close()
		return nil, err
	}
	uid, ok, err := storage.IndexUID(txn)
	txn.Abort()
	if err != nil {
		env.Close()
		return nil, err
	}
	if !ok {
		env.Close()
		return nil, domain.ErrInvalidMeta.WithDetails("directory holds no index")
	}

	idx.uid = uid
	return idx, nil
}

func openEnv(cfg Config) (*Index, *storage.Env, error) {
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	if cfg.Handler == nil {
		cfg.Handler = service.NewIndexer(cfg.Logger)
	}

	envCfg := storage.DefaultConfig(cfg.Path, cfg.MapSize)
	envCfg.Logger = cfg.Logger
	env, err := storage.Open(envCfg)
	if err != nil {
		return nil, nil, domain.ErrIndexIO.WithCause(err)
	}
	if cfg.Registry != nil {
		env.RegisterMetrics(cfg.Registry)
	}
	return &Index{
		env:     env,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		handler: cfg.Handler,
	}, env, nil
}

// UID returns the index's stable identifier.
func (i *Index) UID() string {
	return i.uid
}

// Path returns the index's environment directory.
func (i *Index) Path() string {
	return i.env.Path()
}

// Close shuts the index down, waiting for in-flight transactions and
// background work. The directory is safe to copy or hand over once
// Close returns.
func (i *Index) Close() error {
	return i.env.Close()
}

// Settings returns the index's current settings, falling back to the
// defaults when none were ever applied.
func (i *Index) Settings() (domain.CheckedSettings, error) {
	txn, err := i.env.ReadTxn()
	if err != nil {
		return domain.CheckedSettings{}, err
	}
	defer txn.Abort()

	s, ok, err := storage.Settings(txn)
	if err != nil {
		return domain.CheckedSettings{}, err
	}
	if !ok {
		return domain.DefaultCheckedSettings(), nil
	}
	return s, nil
}

// PrimaryKey returns the index's primary-key field name, nil when none
// is set yet.
func (i *Index) PrimaryKey() (*string, error) {
	txn, err := i.env.ReadTxn()
	if err != nil {
		return nil, err
	}
	defer txn.Abort()

	pk, ok, err := storage.PrimaryKey(txn)
	if err != nil || !ok {
		return nil, err
	}
	return &pk, nil
}

// DocCount returns the number of stored documents.
func (i *Index) DocCount() (uint64, error) {
	txn, err := i.env.ReadTxn()
	if err != nil {
		return 0, err
	}
	defer txn.Abort()
	return storage.DocCount(txn)
}

// ApplySettings validates raw settings and applies them atomically.
func (i *Index) ApplySettings(ctx context.Context, s domain.Settings, progress service.ProgressFunc) error {
	checked, err := s.Check()
	if err != nil {
		return err
	}

	txn, err := i.env.WriteTxn()
	if err != nil {
		return err
	}
	defer txn.Abort()

	if err := i.handler.ApplySettings(txn, checked, nil, progress); err != nil {
		return err
	}
	if err := txn.Commit(); err != nil {
		return err
	}
	logger.L(ctx).Info("settings applied", "uid", i.uid)
	return nil
}

// AddDocuments streams line-delimited JSON documents from r into the
// index in one atomic write. It returns the number of documents added.
// An empty stream is a no-op.
func (i *Index) AddDocuments(ctx context.Context, r io.Reader, progress service.ProgressFunc) (int, error) {
	spill, cleanup, err := documents.TempBatchFile()
	if err != nil {
		return 0, domain.ErrIndexIO.WithCause(err)
	}
	defer cleanup()

	builder, err := documents.NewBatchBuilder(spill)
	if err != nil {
		return 0, domain.ErrIndexIO.WithCause(err)
	}
	added, err := documents.ReadNDJSON(r, builder)
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
	if batch.IsEmpty() {
		return 0, nil
	}

	txn, err := i.env.WriteTxn()
	if err != nil {
		return 0, err
	}
	defer txn.Abort()

	if err := i.handler.IndexDocuments(txn, batch, progress); err != nil {
		return 0, err
	}
	if err := txn.Commit(); err != nil {
		return 0, err
	}

	if i.metrics != nil {
		i.metrics.DocumentsIndexed.Add(float64(added))
	}
	logger.L(ctx).Info("documents added", "uid", i.uid, "count", added)
	return added, nil
}

// Search returns the documents matching every term of query, rendered
// as JSON objects in docid order.
func (i *Index) Search(query string) ([][]byte, error) {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	txn, err := i.env.ReadTxn()
	if err != nil {
		return nil, err
	}
	defer txn.Abort()

	var match []uint32
	for n, term := range terms {
		ids, err := storage.Postings(txn, term)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			match = ids
		} else {
			match = intersect(match, ids)
		}
		if len(match) == 0 {
			return nil, nil
		}
	}

	fields, err := storage.FieldsIds(txn)
	if err != nil {
		return nil, err
	}

	out := make([][]byte, 0, len(match))
	for _, docid := range match {
		payload, err := storage.GetDocument(txn, docid)
		if err != nil {
			return nil, err
		}
		decoded, err := documents.DecodeFields(payload)
		if err != nil {
			return nil, err
		}
		rendered, err := renderDocument(fields, decoded)
		if err != nil {
			return nil, err
		}
		out = append(out, rendered)
	}
	return out, nil
}

// queryTerms splits a query into lowercased letter/digit runs, the same
// shape the indexer tokenizes document values into.
func queryTerms(q string) []string {
	return strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// intersect merges two sorted docid lists.
func intersect(a, b []uint32) []uint32 {
	var out []uint32
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}

// String implements fmt.Stringer.
func (i *Index) String() string {
	return fmt.Sprintf("index %s at %s", i.uid, i.env.Path())
}

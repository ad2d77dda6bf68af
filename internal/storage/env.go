package storage

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lumidex/lumidex-go/internal/telemetry/logger"
)

// Common errors
var (
	ErrKeyNotFound      = errors.New("storage: key not found")
	ErrClosed           = errors.New("storage: environment closed")
	ErrReadOnly         = errors.New("storage: write on read-only transaction")
	ErrCapacityExceeded = errors.New("storage: map size exceeded")
)

// Config configures a storage environment.
type Config struct {
	// Dir is the environment directory.
	Dir string

	// MapSize is the fixed upper bound, in bytes, on the environment's
	// storage arena. Writes that would exceed it fail with
	// ErrCapacityExceeded.
	MapSize int64

	// SyncWrites enables fsync after each commit.
	// Default: false
	SyncWrites bool

	// GCInterval is the interval between value log GC runs.
	// Default: 10m
	GCInterval time.Duration

	// GCThreshold is the GC discard ratio threshold (0.0-1.0).
	// Default: 0.5
	GCThreshold float64

	// Logger is the structured logger.
	Logger logger.Logger
}

// DefaultConfig returns the default environment configuration.
func DefaultConfig(dir string, mapSize int64) Config {
	return Config{
		Dir:         dir,
		MapSize:     mapSize,
		GCInterval:  10 * time.Minute,
		GCThreshold: 0.5,
	}
}

// Env is a transactional storage environment backed by Badger.
//
// It is single-writer/multi-reader: a write transaction excludes all
// other transactions for its lifetime, so a reader opened while a write
// is in flight blocks until that write resolves and never observes a
// torn state.
type Env struct {
	db     *badger.DB
	cfg    Config
	logger logger.Logger

	// mu serializes the single writer against readers.
	mu     sync.RWMutex
	closed atomic.Bool

	// Prometheus metrics (optional, via RegisterMetrics)
	metricsLSMSize      prometheus.Gauge
	metricsValueLogSize prometheus.Gauge

	// Shutdown
	stopCh chan struct{}
	doneCh chan struct{}
}

// Open opens (or creates) a storage environment.
func Open(cfg Config) (*Env, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("storage: dir is required")
	}
	if cfg.MapSize <= 0 {
		return nil, fmt.Errorf("storage: map_size is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	if cfg.GCInterval == 0 {
		cfg.GCInterval = 10 * time.Minute
	}
	if cfg.GCThreshold == 0 {
		cfg.GCThreshold = 0.5
	}

	opts := badger.DefaultOptions(cfg.Dir)
	opts.Logger = &badgerLogger{logger: cfg.Logger}
	opts.SyncWrites = cfg.SyncWrites
	opts.NumVersionsToKeep = 1
	// The env's RWMutex already guarantees a single writer.
	opts.DetectConflicts = false

	// Keep value log files within the arena bound.
	vlogSize := int64(1 << 30)
	if cfg.MapSize < vlogSize {
		vlogSize = cfg.MapSize
	}
	if vlogSize < 1<<20 {
		vlogSize = 1 << 20
	}
	opts.ValueLogFileSize = vlogSize

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("storage: open env: %w", err)
	}

	env := &Env{
		db:     db,
		cfg:    cfg,
		logger: cfg.Logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	go env.gcLoop()

	cfg.Logger.Info("storage environment opened",
		"dir", cfg.Dir,
		"map_size", cfg.MapSize)

	return env, nil
}

// Path returns the environment directory.
func (e *Env) Path() string {
	return e.cfg.Dir
}

// Size returns the current on-disk size in bytes.
func (e *Env) Size() int64 {
	lsm, vlog := e.db.Size()
	return lsm + vlog
}

// ReadTxn begins a read transaction. It blocks until any in-flight
// write transaction resolves.
func (e *Env) ReadTxn() (*Txn, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	e.mu.RLock()
	return &Txn{
		env: e,
		txn: e.db.NewTransaction(false),
	}, nil
}

// WriteTxn begins the environment's single write transaction. It blocks
// until all other transactions resolve.
func (e *Env) WriteTxn() (*Txn, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	e.mu.Lock()
	return &Txn{
		env:    e,
		txn:    e.db.NewTransaction(true),
		update: true,
	}, nil
}

// checkCapacity rejects writes that would push the environment past its
// arena bound.
func (e *Env) checkCapacity(pending int64) error {
	if e.Size()+pending > e.cfg.MapSize {
		return fmt.Errorf("%w: cap %d bytes", ErrCapacityExceeded, e.cfg.MapSize)
	}
	return nil
}

// Close shuts the environment down and waits for completion: the GC
// loop stops, outstanding transactions finish, and Badger flushes its
// background work before Close returns. After Close the destination
// directory is safe to hand over.
func (e *Env) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	close(e.stopCh)
	<-e.doneCh

	// Taking the write lock waits out every active transaction.
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.db.Close(); err != nil {
		return fmt.Errorf("storage: close env: %w", err)
	}

	e.logger.Info("storage environment closed", "dir", e.cfg.Dir)
	return nil
}

// RegisterMetrics registers environment metrics with Prometheus.
// Returns the env for chaining.
func (e *Env) RegisterMetrics(registry *prometheus.Registry) *Env {
	e.metricsLSMSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "lumidex",
		Subsystem: "storage",
		Name:      "lsm_size_bytes",
		Help:      "LSM tree size in bytes",
	})
	e.metricsValueLogSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "lumidex",
		Subsystem: "storage",
		Name:      "value_log_size_bytes",
		Help:      "Value log size in bytes",
	})

	registry.MustRegister(e.metricsLSMSize, e.metricsValueLogSize)
	return e
}

// gcLoop runs periodic value log garbage collection and refreshes the
// size gauges when metrics are registered.
func (e *Env) gcLoop() {
	defer close(e.doneCh)

	ticker := time.NewTicker(e.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if e.metricsLSMSize != nil {
				lsm, vlog := e.db.Size()
				e.metricsLSMSize.Set(float64(lsm))
				e.metricsValueLogSize.Set(float64(vlog))
			}
			for {
				err := e.db.RunValueLogGC(e.cfg.GCThreshold)
				if err != nil {
					if !errors.Is(err, badger.ErrNoRewrite) {
						e.logger.Warn("value log gc failed", "error", err)
					}
					break
				}
			}

		case <-e.stopCh:
			return
		}
	}
}

// Txn is a storage transaction. Read transactions see one committed
// state; the write transaction sees its own pending writes.
type Txn struct {
	env     *Env
	txn     *badger.Txn
	update  bool
	pending int64
	done    bool
}

// Get retrieves a value by key. Returns ErrKeyNotFound if the key does
// not exist.
func (t *Txn) Get(key []byte) ([]byte, error) {
	item, err := t.txn.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	return item.ValueCopy(nil)
}

// Set stores a key-value pair, enforcing the environment's arena bound.
func (t *Txn) Set(key, value []byte) error {
	if !t.update {
		return ErrReadOnly
	}
	add := int64(len(key) + len(value))
	if err := t.env.checkCapacity(t.pending + add); err != nil {
		return err
	}
	if err := t.txn.Set(key, value); err != nil {
		if errors.Is(err, badger.ErrTxnTooBig) {
			return fmt.Errorf("%w: transaction buffer exhausted", ErrCapacityExceeded)
		}
		return err
	}
	t.pending += add
	return nil
}

// Delete removes a key.
func (t *Txn) Delete(key []byte) error {
	if !t.update {
		return ErrReadOnly
	}
	return t.txn.Delete(key)
}

// Scan iterates over keys with the given prefix in key order. The
// callback's error aborts iteration and is returned unchanged.
func (t *Txn) Scan(prefix []byte, fn func(key, value []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := t.txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := fn(item.KeyCopy(nil), value); err != nil {
			return err
		}
	}
	return nil
}

// Commit commits the transaction and releases its lock on the
// environment.
func (t *Txn) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	err := t.txn.Commit()
	t.unlock()
	if err != nil {
		return fmt.Errorf("storage: commit: %w", err)
	}
	return nil
}

// Abort discards the transaction and releases its lock. Abort after
// Commit is a no-op, so it is safe to defer.
func (t *Txn) Abort() {
	if t.done {
		return
	}
	t.done = true
	t.txn.Discard()
	t.unlock()
}

func (t *Txn) unlock() {
	if t.update {
		t.env.mu.Unlock()
	} else {
		t.env.mu.RUnlock()
	}
}

// badgerLogger adapts the application logger to Badger's Logger
// interface.
type badgerLogger struct {
	logger logger.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

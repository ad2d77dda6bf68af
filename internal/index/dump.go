package index

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/lumidex/lumidex-go/internal/core/domain"
	"github.com/lumidex/lumidex-go/internal/documents"
	"github.com/lumidex/lumidex-go/internal/storage"
	"github.com/lumidex/lumidex-go/internal/telemetry/logger"
)

// Snapshot directory layout. A snapshot root holds one subdirectory
// per index under indexes/, each with a meta record and a document
// stream:
//
//	<root>/indexes/<uid>/meta.json
//	<root>/indexes/<uid>/documents.jsonl
const (
	indexesDirName = "indexes"
	metaFileName   = "meta.json"
	dataFileName   = "documents.jsonl"
)

// DumpMeta is the snapshot meta record: the raw settings plus the
// primary key. Settings travel in unchecked form and are re-validated
// on restore.
type DumpMeta struct {
	Settings   domain.Settings `json:"settings"`
	PrimaryKey *string         `json:"primaryKey"`
}

// Dump writes the index's full logical state under
// dst/indexes/<uid>/. It runs inside one read transaction, so the
// snapshot is a point-in-time view: a dump requested while a write is
// in flight waits for that write and then captures the state it left.
//
// The destination files are plain JSON/JSONL; a dump of an untouched
// restore reproduces the meta record byte for byte.
func (i *Index) Dump(ctx context.Context, dst string) error {
	opID := logger.NewOperationID()
	ctx = logger.WithOperationID(ctx, opID)
	log := logger.L(ctx).With("uid", i.uid)

	start := time.Now()
	log.Info("snapshot dump started", "dst", dst)

	count, err := i.dump(ctx, dst)
	if err != nil {
		if i.metrics != nil {
			i.metrics.SnapshotErrors.WithLabelValues("dump").Inc()
		}
		log.Error("snapshot dump failed", "error", err)
		return err
	}

	if i.metrics != nil {
		i.metrics.DumpDuration.Observe(time.Since(start).Seconds())
		i.metrics.DocumentsDumped.Add(float64(count))
	}
	log.Info("snapshot dump finished",
		"documents", count,
		"duration", time.Since(start))
	return nil
}

func (i *Index) dump(ctx context.Context, dst string) (uint64, error) {
	dir := filepath.Join(dst, indexesDirName, i.uid)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, domain.ErrIndexIO.WithCause(err)
	}

	// One read transaction spans both files: meta and documents always
	// describe the same committed state.
	txn, err := i.env.ReadTxn()
	if err != nil {
		return 0, err
	}
	defer txn.Abort()

	count, err := dumpDocuments(ctx, txn, filepath.Join(dir, dataFileName))
	if err != nil {
		return 0, err
	}
	if err := dumpMeta(txn, filepath.Join(dir, metaFileName)); err != nil {
		return 0, err
	}
	return count, nil
}

// dumpDocuments streams every document to path as line-delimited JSON
// in docid order, field names resolved through the fields-ids map.
func dumpDocuments(ctx context.Context, txn *storage.Txn, path string) (uint64, error) {
	fields, err := storage.FieldsIds(txn)
	if err != nil {
		return 0, err
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, domain.ErrIndexIO.WithCause(err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	var count uint64
	err = storage.IterDocuments(txn, func(id uint32, payload []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		decoded, err := documents.DecodeFields(payload)
		if err != nil {
			return err
		}
		line, err := renderDocument(fields, decoded)
		if err != nil {
			return err
		}
		if _, err := w.Write(line); err != nil {
			return domain.ErrIndexIO.WithCause(err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return domain.ErrIndexIO.WithCause(err)
		}
		count++
		return nil
	})
	if err != nil {
		return 0, err
	}

	if err := w.Flush(); err != nil {
		return 0, domain.ErrIndexIO.WithCause(err)
	}
	if err := f.Sync(); err != nil {
		return 0, domain.ErrIndexIO.WithCause(err)
	}
	return count, nil
}

// dumpMeta writes the meta record from the stored settings and primary
// key. Settings are downgraded to their raw form; all keys serialize,
// so identical configurations yield identical bytes.
func dumpMeta(txn *storage.Txn, path string) error {
	settings, ok, err := storage.Settings(txn)
	if err != nil {
		return err
	}
	if !ok {
		settings = domain.DefaultCheckedSettings()
	}

	meta := DumpMeta{Settings: settings.IntoUnchecked()}
	if pk, ok, err := storage.PrimaryKey(txn); err != nil {
		return err
	} else if ok {
		meta.PrimaryKey = &pk
	}

	payload, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("index: marshal meta: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return domain.ErrIndexIO.WithCause(err)
	}
	return nil
}

// renderDocument rebuilds a document's JSON object from its stored
// field pairs in field-id order, the fields-ids map's insertion order.
// A field id missing from the map means stored state and schema
// disagree; the dump fails rather than emit a lossy document.
func renderDocument(fields *domain.FieldsIdsMap, decoded []documents.FieldValue) ([]byte, error) {
	sort.Slice(decoded, func(a, b int) bool { return decoded[a].ID < decoded[b].ID })

	var buf bytes.Buffer
	buf.WriteByte('{')
	for n, fv := range decoded {
		name, ok := fields.Name(fv.ID)
		if !ok {
			return nil, domain.ErrUnknownFieldID.WithDetails(
				fmt.Sprintf("field id %d", fv.ID))
		}
		if n > 0 {
			buf.WriteByte(',')
		}
		nameJSON, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(nameJSON)
		buf.WriteByte(':')
		buf.Write(fv.Value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

package documents

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/lumidex/lumidex-go/internal/core/domain"
)

// Batch files identify themselves with magic bytes followed by a
// version byte. Layout:
//
//	magic(8) | version(1)
//	per document: u32 payload length | payload
//	fields index JSON (id-ordered name array)
//	footer: u32 fields index length | u32 document count
var batchMagic = []byte("LDXBATCH")

const (
	batchVersion    = 1
	batchHeaderSize = 9 // magic + version
	batchFooterSize = 8 // fields length + document count
)

var (
	ErrInvalidBatch     = errors.New("documents: invalid batch encoding")
	ErrBatchUnsupported = errors.New("documents: unsupported batch version")
	ErrBatchFinalized   = errors.New("documents: batch already finalized")
)

// NamedValue is one (field name, raw JSON value) pair of a parsed
// document, in source order.
type NamedValue struct {
	Name  string
	Value json.RawMessage
}

// TempBatchFile creates the staging file batches spill into. The
// returned cleanup releases the file and must run on every exit path.
func TempBatchFile() (*os.File, func(), error) {
	f, err := os.CreateTemp("", "lumidex-batch-*")
	if err != nil {
		return nil, nil, fmt.Errorf("documents: create staging file: %w", err)
	}
	cleanup := func() {
		f.Close()
		os.Remove(f.Name())
	}
	return f, cleanup, nil
}

// BatchBuilder writes the canonical batch encoding to a spill file,
// assigning field ids in encounter order.
type BatchBuilder struct {
	f         *os.File
	w         *bufio.Writer
	fields    *domain.FieldsIdsMap
	count     uint32
	finalized bool
}

// NewBatchBuilder starts a batch in f, which must be empty and
// positioned at the start.
func NewBatchBuilder(f *os.File) (*BatchBuilder, error) {
	w := bufio.NewWriter(f)
	if _, err := w.Write(batchMagic); err != nil {
		return nil, fmt.Errorf("documents: write batch header: %w", err)
	}
	if err := w.WriteByte(batchVersion); err != nil {
		return nil, fmt.Errorf("documents: write batch header: %w", err)
	}
	return &BatchBuilder{
		f:      f,
		w:      w,
		fields: domain.NewFieldsIdsMap(),
	}, nil
}

// AddDocument appends one parsed document. Field ids are assigned in
// encounter order across the whole batch; document ids are sequential
// in insertion order.
func (b *BatchBuilder) AddDocument(fields []NamedValue) error {
	if b.finalized {
		return ErrBatchFinalized
	}

	encoded := make([]FieldValue, 0, len(fields))
	for _, nv := range fields {
		id, err := b.fields.Insert(nv.Name)
		if err != nil {
			return err
		}
		encoded = append(encoded, FieldValue{ID: id, Value: nv.Value})
	}

	payload := EncodeFields(encoded)
	var frame [4]byte
	binary.BigEndian.PutUint32(frame[:], uint32(len(payload)))
	if _, err := b.w.Write(frame[:]); err != nil {
		return fmt.Errorf("documents: write document frame: %w", err)
	}
	if _, err := b.w.Write(payload); err != nil {
		return fmt.Errorf("documents: write document payload: %w", err)
	}

	b.count++
	return nil
}

// Count returns the number of documents added so far.
func (b *BatchBuilder) Count() uint32 {
	return b.count
}

// Finalize writes the fields index and footer. A batch with zero
// documents finalizes into a valid, explicitly empty encoding.
func (b *BatchBuilder) Finalize() error {
	if b.finalized {
		return ErrBatchFinalized
	}
	b.finalized = true

	fieldsJSON, err := json.Marshal(b.fields)
	if err != nil {
		return fmt.Errorf("documents: marshal fields index: %w", err)
	}
	if _, err := b.w.Write(fieldsJSON); err != nil {
		return fmt.Errorf("documents: write fields index: %w", err)
	}

	var footer [batchFooterSize]byte
	binary.BigEndian.PutUint32(footer[:4], uint32(len(fieldsJSON)))
	binary.BigEndian.PutUint32(footer[4:], b.count)
	if _, err := b.w.Write(footer[:]); err != nil {
		return fmt.Errorf("documents: write batch footer: %w", err)
	}
	if err := b.w.Flush(); err != nil {
		return fmt.Errorf("documents: flush batch: %w", err)
	}
	return nil
}

// BatchReader iterates a finalized batch in document order, assigning
// the same stable sequential ids the builder observed.
type BatchReader struct {
	r       *bufio.Reader
	fields  *domain.FieldsIdsMap
	count   uint32
	next    uint32
	pos     int64
	docsEnd int64
}

// NewBatchReader opens the batch in f, validating the header and
// footer and loading the fields index.
func NewBatchReader(f *os.File) (*BatchReader, error) {
	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("documents: stat batch: %w", err)
	}
	size := stat.Size()
	if size < batchHeaderSize+batchFooterSize {
		return nil, ErrInvalidBatch
	}

	header := make([]byte, batchHeaderSize)
	if _, err := f.ReadAt(header, 0); err != nil {
		return nil, fmt.Errorf("documents: read batch header: %w", err)
	}
	if !bytes.Equal(header[:len(batchMagic)], batchMagic) {
		return nil, ErrInvalidBatch
	}
	if header[len(batchMagic)] != batchVersion {
		return nil, ErrBatchUnsupported
	}

	var footer [batchFooterSize]byte
	if _, err := f.ReadAt(footer[:], size-batchFooterSize); err != nil {
		return nil, fmt.Errorf("documents: read batch footer: %w", err)
	}
	fieldsLen := int64(binary.BigEndian.Uint32(footer[:4]))
	count := binary.BigEndian.Uint32(footer[4:])

	docsEnd := size - batchFooterSize - fieldsLen
	if docsEnd < batchHeaderSize {
		return nil, ErrInvalidBatch
	}

	fieldsJSON := make([]byte, fieldsLen)
	if _, err := f.ReadAt(fieldsJSON, docsEnd); err != nil {
		return nil, fmt.Errorf("documents: read fields index: %w", err)
	}
	fields := domain.NewFieldsIdsMap()
	if err := json.Unmarshal(fieldsJSON, fields); err != nil {
		return nil, fmt.Errorf("documents: decode fields index: %w", err)
	}

	if _, err := f.Seek(batchHeaderSize, io.SeekStart); err != nil {
		return nil, fmt.Errorf("documents: seek batch: %w", err)
	}

	return &BatchReader{
		r:       bufio.NewReader(f),
		fields:  fields,
		count:   count,
		pos:     batchHeaderSize,
		docsEnd: docsEnd,
	}, nil
}

// IsEmpty reports whether the batch holds zero documents.
func (r *BatchReader) IsEmpty() bool {
	return r.count == 0
}

// Count returns the total number of documents in the batch.
func (r *BatchReader) Count() uint32 {
	return r.count
}

// Fields returns the batch's fields-ids map.
func (r *BatchReader) Fields() *domain.FieldsIdsMap {
	return r.fields
}

// Next returns the next document's sequential id and decoded field
// pairs. It returns io.EOF after the last document.
func (r *BatchReader) Next() (uint32, []FieldValue, error) {
	if r.next >= r.count || r.pos >= r.docsEnd {
		if r.next != r.count {
			return 0, nil, ErrInvalidBatch
		}
		return 0, nil, io.EOF
	}

	var frame [4]byte
	if _, err := io.ReadFull(r.r, frame[:]); err != nil {
		return 0, nil, fmt.Errorf("documents: read document frame: %w", err)
	}
	length := int64(binary.BigEndian.Uint32(frame[:]))
	if r.pos+4+length > r.docsEnd {
		return 0, nil, ErrInvalidBatch
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		return 0, nil, fmt.Errorf("documents: read document payload: %w", err)
	}
	r.pos += 4 + length

	fields, err := DecodeFields(payload)
	if err != nil {
		return 0, nil, err
	}

	id := r.next
	r.next++
	return id, fields, nil
}

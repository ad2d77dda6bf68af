package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/lumidex/lumidex-go/internal/core/domain"
)

// Key layout. Every table lives under its own prefix inside one
// environment:
//
//	d/<docid BE32>   field-id-encoded document payload
//	e/<external id>  external document id -> internal docid
//	p/<term>         posting list (delta-uvarint docids)
//	m/...            index metadata singletons
var (
	prefixDocument = []byte("d/")
	prefixExternal = []byte("e/")
	prefixPosting  = []byte("p/")

	keyIndexUID  = []byte("m/uid")
	keyFieldsIds = []byte("m/fields")
	keySettings  = []byte("m/settings")
	keyPrimary   = []byte("m/primary-key")
	keyDocCount  = []byte("m/doc-count")
)

func documentKey(id uint32) []byte {
	key := make([]byte, len(prefixDocument)+4)
	copy(key, prefixDocument)
	binary.BigEndian.PutUint32(key[len(prefixDocument):], id)
	return key
}

func externalKey(external string) []byte {
	return append(append([]byte{}, prefixExternal...), external...)
}

func postingKey(term string) []byte {
	return append(append([]byte{}, prefixPosting...), term...)
}

// PutDocument stores one document payload under its internal id.
func PutDocument(t *Txn, id uint32, payload []byte) error {
	return t.Set(documentKey(id), payload)
}

// GetDocument returns the payload stored under id.
func GetDocument(t *Txn, id uint32) ([]byte, error) {
	return t.Get(documentKey(id))
}

// IterDocuments enumerates all documents as (internal id, payload)
// pairs in docid order. The callback's error aborts iteration.
func IterDocuments(t *Txn, fn func(id uint32, payload []byte) error) error {
	return t.Scan(prefixDocument, func(key, value []byte) error {
		suffix := key[len(prefixDocument):]
		if len(suffix) != 4 {
			return domain.ErrCorruptedPayload.WithDetails("bad document key")
		}
		return fn(binary.BigEndian.Uint32(suffix), value)
	})
}

// PutExternalDocID records the mapping from external to internal id.
func PutExternalDocID(t *Txn, external string, id uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], id)
	return t.Set(externalKey(external), buf[:])
}

// GetExternalDocID resolves an external document id.
func GetExternalDocID(t *Txn, external string) (uint32, bool, error) {
	value, err := t.Get(externalKey(external))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if len(value) != 4 {
		return 0, false, domain.ErrCorruptedPayload.WithDetails("bad external id record")
	}
	return binary.BigEndian.Uint32(value), true, nil
}

// FieldsIds loads the index's fields-ids map; a fresh index yields an
// empty map.
func FieldsIds(t *Txn) (*domain.FieldsIdsMap, error) {
	value, err := t.Get(keyFieldsIds)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return domain.NewFieldsIdsMap(), nil
		}
		return nil, err
	}
	m := domain.NewFieldsIdsMap()
	if err := json.Unmarshal(value, m); err != nil {
		return nil, domain.ErrCorruptedPayload.WithDetails("fields-ids map").WithCause(err)
	}
	return m, nil
}

// PutFieldsIds persists the fields-ids map.
func PutFieldsIds(t *Txn, m *domain.FieldsIdsMap) error {
	value, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("storage: marshal fields-ids map: %w", err)
	}
	return t.Set(keyFieldsIds, value)
}

// Settings loads the index's checked settings, reporting whether any
// are stored.
func Settings(t *Txn) (domain.CheckedSettings, bool, error) {
	var s domain.CheckedSettings
	value, err := t.Get(keySettings)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return s, false, nil
		}
		return s, false, err
	}
	if err := json.Unmarshal(value, &s); err != nil {
		return s, false, domain.ErrCorruptedPayload.WithDetails("settings record").WithCause(err)
	}
	return s, true, nil
}

// PutSettings persists the checked settings.
func PutSettings(t *Txn, s domain.CheckedSettings) error {
	value, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("storage: marshal settings: %w", err)
	}
	return t.Set(keySettings, value)
}

// PrimaryKey returns the configured primary-key field name.
func PrimaryKey(t *Txn) (string, bool, error) {
	value, err := t.Get(keyPrimary)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(value), true, nil
}

// PutPrimaryKey sets the primary-key field name.
func PutPrimaryKey(t *Txn, name string) error {
	return t.Set(keyPrimary, []byte(name))
}

// IndexUID returns the index's stable identifier.
func IndexUID(t *Txn) (string, bool, error) {
	value, err := t.Get(keyIndexUID)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(value), true, nil
}

// PutIndexUID persists the index's stable identifier.
func PutIndexUID(t *Txn, uid string) error {
	return t.Set(keyIndexUID, []byte(uid))
}

// DocCount returns the number of stored documents.
func DocCount(t *Txn) (uint64, error) {
	value, err := t.Get(keyDocCount)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if len(value) != 8 {
		return 0, domain.ErrCorruptedPayload.WithDetails("doc-count record")
	}
	return binary.BigEndian.Uint64(value), nil
}

// PutDocCount stores the number of stored documents.
func PutDocCount(t *Txn, n uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	return t.Set(keyDocCount, buf[:])
}

// Postings returns the sorted docids indexed under term.
func Postings(t *Txn, term string) ([]uint32, error) {
	value, err := t.Get(postingKey(term))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return decodePostings(value)
}

// PutPostings stores the posting list for term. Ids are deduplicated
// and stored sorted.
func PutPostings(t *Txn, term string, ids []uint32) error {
	return t.Set(postingKey(term), encodePostings(ids))
}

// encodePostings delta-encodes a sorted, deduplicated docid list.
func encodePostings(ids []uint32) []byte {
	sorted := make([]uint32, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	out := make([]byte, 0, len(sorted)*binary.MaxVarintLen32)
	var scratch [binary.MaxVarintLen32]byte
	prev := uint32(0)
	first := true
	for _, id := range sorted {
		if !first && id == prev {
			continue
		}
		delta := id
		if !first {
			delta = id - prev
		}
		n := binary.PutUvarint(scratch[:], uint64(delta))
		out = append(out, scratch[:n]...)
		prev = id
		first = false
	}
	return out
}

func decodePostings(value []byte) ([]uint32, error) {
	var ids []uint32
	prev := uint32(0)
	first := true
	for len(value) > 0 {
		delta, n := binary.Uvarint(value)
		if n <= 0 {
			return nil, domain.ErrCorruptedPayload.WithDetails("posting list")
		}
		value = value[n:]
		if first {
			prev = uint32(delta)
			first = false
		} else {
			prev += uint32(delta)
		}
		ids = append(ids, prev)
	}
	return ids, nil
}

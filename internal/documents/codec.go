package documents

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/lumidex/lumidex-go/internal/core/domain"
)

// FieldValue is one (field id, raw JSON value) pair of an encoded
// document payload.
type FieldValue struct {
	ID    domain.FieldID
	Value json.RawMessage
}

// EncodeFields encodes field pairs as a sequence of
// (uvarint field id, uvarint value length, raw JSON value) tuples.
// Pair order is preserved; it is the field order the document is
// rendered back in.
func EncodeFields(fields []FieldValue) []byte {
	size := 0
	for _, fv := range fields {
		size += 2*binary.MaxVarintLen32 + len(fv.Value)
	}
	out := make([]byte, 0, size)

	var scratch [binary.MaxVarintLen32]byte
	for _, fv := range fields {
		n := binary.PutUvarint(scratch[:], uint64(fv.ID))
		out = append(out, scratch[:n]...)
		n = binary.PutUvarint(scratch[:], uint64(len(fv.Value)))
		out = append(out, scratch[:n]...)
		out = append(out, fv.Value...)
	}
	return out
}

// DecodeFields decodes a payload produced by EncodeFields. A payload
// that cannot be decoded signals data corruption.
func DecodeFields(payload []byte) ([]FieldValue, error) {
	var fields []FieldValue
	for len(payload) > 0 {
		id, n := binary.Uvarint(payload)
		if n <= 0 || id > uint64(^domain.FieldID(0)) {
			return nil, domain.ErrCorruptedPayload.WithDetails("bad field id varint")
		}
		payload = payload[n:]

		length, n := binary.Uvarint(payload)
		if n <= 0 {
			return nil, domain.ErrCorruptedPayload.WithDetails("bad value length varint")
		}
		payload = payload[n:]

		if uint64(len(payload)) < length {
			return nil, domain.ErrCorruptedPayload.WithDetails(
				fmt.Sprintf("value truncated: want %d bytes, have %d", length, len(payload)))
		}
		value := make([]byte, length)
		copy(value, payload[:length])
		payload = payload[length:]

		fields = append(fields, FieldValue{
			ID:    domain.FieldID(id),
			Value: json.RawMessage(value),
		})
	}
	return fields, nil
}

package documents

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/lumidex/lumidex-go/internal/core/domain"
)

// Document lines are read through a scanner sized for large documents;
// a single document above maxLineBytes is a Format error, not a crash.
const maxLineBytes = 64 << 20

// ReadNDJSON streams line-delimited JSON objects from r into b,
// preserving encounter order. Blank lines are skipped. A malformed line
// aborts normalization with a Format error; nothing is skipped.
//
// It returns the number of documents added.
func ReadNDJSON(r io.Reader, b *BatchBuilder) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64<<10), maxLineBytes)

	added := 0
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		fields, err := ParseDocument(line)
		if err != nil {
			return added, domain.ErrMalformedDocument.
				WithDetails(fmt.Sprintf("line %d", lineNo)).
				WithCause(err)
		}
		if err := b.AddDocument(fields); err != nil {
			return added, err
		}
		added++
	}
	if err := scanner.Err(); err != nil {
		return added, fmt.Errorf("documents: read stream: %w", err)
	}
	return added, nil
}

// ParseDocument parses one JSON object, preserving field order. Later
// duplicates of a field overwrite the earlier value in place, keeping
// the original position.
func ParseDocument(line []byte) ([]NamedValue, error) {
	dec := json.NewDecoder(bytes.NewReader(line))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parse object: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("document is not a JSON object")
	}

	var fields []NamedValue
	seen := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parse field name: %w", err)
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("field name is not a string")
		}

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("parse value of %q: %w", name, err)
		}

		if i, dup := seen[name]; dup {
			fields[i].Value = value
			continue
		}
		seen[name] = len(fields)
		fields = append(fields, NamedValue{Name: name, Value: value})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("parse object end: %w", err)
	}
	// Trailing garbage after the object is malformed input.
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected content after document")
	}
	return fields, nil
}

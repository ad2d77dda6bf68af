package documents

import (
	"errors"
	"strings"
	"testing"

	"github.com/lumidex/lumidex-go/internal/core/domain"
)

func TestReadNDJSON(t *testing.T) {
	t.Run("documents in encounter order", func(t *testing.T) {
		f := newTestBatchFile(t)
		b, _ := NewBatchBuilder(f)

		input := `{"id":1,"title":"a"}
{"id":2,"title":"b"}
`
		n, err := ReadNDJSON(strings.NewReader(input), b)
		if err != nil {
			t.Fatalf("ReadNDJSON failed: %v", err)
		}
		if n != 2 {
			t.Errorf("added = %d, want 2", n)
		}
		if err := b.Finalize(); err != nil {
			t.Fatalf("Finalize failed: %v", err)
		}

		r, err := NewBatchReader(f)
		if err != nil {
			t.Fatalf("NewBatchReader failed: %v", err)
		}
		id, fields, err := r.Next()
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if id != 0 {
			t.Errorf("first doc id = %d, want 0", id)
		}
		name, _ := r.Fields().Name(fields[0].ID)
		if name != "id" || string(fields[0].Value) != "1" {
			t.Errorf("first field = %s %s", name, fields[0].Value)
		}
	})

	t.Run("empty input yields empty batch", func(t *testing.T) {
		f := newTestBatchFile(t)
		b, _ := NewBatchBuilder(f)

		n, err := ReadNDJSON(strings.NewReader(""), b)
		if err != nil || n != 0 {
			t.Fatalf("ReadNDJSON = %d, %v", n, err)
		}
		if err := b.Finalize(); err != nil {
			t.Fatalf("Finalize failed: %v", err)
		}

		r, err := NewBatchReader(f)
		if err != nil {
			t.Fatalf("NewBatchReader failed: %v", err)
		}
		if !r.IsEmpty() {
			t.Error("batch should be empty")
		}
	})

	t.Run("blank lines skipped", func(t *testing.T) {
		f := newTestBatchFile(t)
		b, _ := NewBatchBuilder(f)

		n, err := ReadNDJSON(strings.NewReader("\n{\"id\":1}\n\n"), b)
		if err != nil || n != 1 {
			t.Fatalf("ReadNDJSON = %d, %v", n, err)
		}
	})

	t.Run("malformed line fails fast", func(t *testing.T) {
		f := newTestBatchFile(t)
		b, _ := NewBatchBuilder(f)

		_, err := ReadNDJSON(strings.NewReader("{\"id\":1}\n{broken\n{\"id\":3}\n"), b)
		if !errors.Is(err, domain.ErrMalformedDocument) {
			t.Errorf("err = %v, want ErrMalformedDocument", err)
		}
	})

	t.Run("non-object line rejected", func(t *testing.T) {
		f := newTestBatchFile(t)
		b, _ := NewBatchBuilder(f)

		_, err := ReadNDJSON(strings.NewReader("[1,2,3]\n"), b)
		if !errors.Is(err, domain.ErrMalformedDocument) {
			t.Errorf("err = %v, want ErrMalformedDocument", err)
		}
	})
}

func TestParseDocument(t *testing.T) {
	t.Run("preserves field order", func(t *testing.T) {
		fields, err := ParseDocument([]byte(`{"z":1,"a":{"deep":true},"m":null}`))
		if err != nil {
			t.Fatalf("ParseDocument failed: %v", err)
		}
		want := []string{"z", "a", "m"}
		if len(fields) != len(want) {
			t.Fatalf("got %d fields, want %d", len(fields), len(want))
		}
		for i, name := range want {
			if fields[i].Name != name {
				t.Errorf("field %d = %q, want %q", i, fields[i].Name, name)
			}
		}
	})

	t.Run("duplicate keys keep position, last value wins", func(t *testing.T) {
		fields, err := ParseDocument([]byte(`{"a":1,"b":2,"a":3}`))
		if err != nil {
			t.Fatalf("ParseDocument failed: %v", err)
		}
		if len(fields) != 2 {
			t.Fatalf("got %d fields, want 2", len(fields))
		}
		if fields[0].Name != "a" || string(fields[0].Value) != "3" {
			t.Errorf("fields[0] = %s=%s, want a=3", fields[0].Name, fields[0].Value)
		}
	})

	t.Run("trailing garbage rejected", func(t *testing.T) {
		if _, err := ParseDocument([]byte(`{"a":1} {"b":2}`)); err == nil {
			t.Error("expected error for trailing content")
		}
	})
}

package storage

import (
	"testing"

	"github.com/lumidex/lumidex-go/internal/core/domain"
)

func TestTables_Documents(t *testing.T) {
	env := newTestEnv(t)

	w, _ := env.WriteTxn()
	// Insert out of order; iteration must come back docid-ascending.
	for _, id := range []uint32{7, 0, 300} {
		if err := PutDocument(w, id, []byte{byte(id)}); err != nil {
			t.Fatalf("PutDocument failed: %v", err)
		}
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	r, _ := env.ReadTxn()
	defer r.Abort()

	payload, err := GetDocument(r, 7)
	if err != nil || payload[0] != 7 {
		t.Fatalf("GetDocument(7) = %v, %v", payload, err)
	}

	var ids []uint32
	err = IterDocuments(r, func(id uint32, payload []byte) error {
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		t.Fatalf("IterDocuments failed: %v", err)
	}
	if len(ids) != 3 || ids[0] != 0 || ids[1] != 7 || ids[2] != 300 {
		t.Errorf("iteration order = %v, want [0 7 300]", ids)
	}
}

func TestTables_ExternalIDs(t *testing.T) {
	env := newTestEnv(t)

	w, _ := env.WriteTxn()
	if err := PutExternalDocID(w, "doc-42", 9); err != nil {
		t.Fatalf("PutExternalDocID failed: %v", err)
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	r, _ := env.ReadTxn()
	defer r.Abort()

	id, ok, err := GetExternalDocID(r, "doc-42")
	if err != nil || !ok || id != 9 {
		t.Errorf("GetExternalDocID = %d, %v, %v", id, ok, err)
	}
	_, ok, err = GetExternalDocID(r, "absent")
	if err != nil || ok {
		t.Errorf("GetExternalDocID(absent) = %v, %v, want not found", ok, err)
	}
}

func TestTables_Metadata(t *testing.T) {
	env := newTestEnv(t)

	r, _ := env.ReadTxn()
	if _, ok, _ := IndexUID(r); ok {
		t.Error("fresh env should have no uid")
	}
	if _, ok, _ := Settings(r); ok {
		t.Error("fresh env should have no settings")
	}
	if _, ok, _ := PrimaryKey(r); ok {
		t.Error("fresh env should have no primary key")
	}
	if n, _ := DocCount(r); n != 0 {
		t.Errorf("fresh DocCount = %d, want 0", n)
	}
	m, err := FieldsIds(r)
	if err != nil || m.Len() != 0 {
		t.Errorf("fresh FieldsIds = %d fields, %v", m.Len(), err)
	}
	r.Abort()

	fields := domain.NewFieldsIdsMap()
	fields.Insert("id")
	fields.Insert("title")

	settings := domain.DefaultCheckedSettings()
	settings.StopWords = []string{"the"}

	w, _ := env.WriteTxn()
	if err := PutIndexUID(w, "movies"); err != nil {
		t.Fatalf("PutIndexUID failed: %v", err)
	}
	if err := PutFieldsIds(w, fields); err != nil {
		t.Fatalf("PutFieldsIds failed: %v", err)
	}
	if err := PutSettings(w, settings); err != nil {
		t.Fatalf("PutSettings failed: %v", err)
	}
	if err := PutPrimaryKey(w, "id"); err != nil {
		t.Fatalf("PutPrimaryKey failed: %v", err)
	}
	if err := PutDocCount(w, 2); err != nil {
		t.Fatalf("PutDocCount failed: %v", err)
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	r, _ = env.ReadTxn()
	defer r.Abort()

	uid, ok, err := IndexUID(r)
	if err != nil || !ok || uid != "movies" {
		t.Errorf("IndexUID = %q, %v, %v", uid, ok, err)
	}
	m, err = FieldsIds(r)
	if err != nil || m.Len() != 2 {
		t.Fatalf("FieldsIds = %d fields, %v", m.Len(), err)
	}
	if id, _ := m.ID("title"); id != 1 {
		t.Errorf("ID(title) = %d, want 1", id)
	}
	s, ok, err := Settings(r)
	if err != nil || !ok {
		t.Fatalf("Settings = %v, %v", ok, err)
	}
	if len(s.StopWords) != 1 || s.StopWords[0] != "the" {
		t.Errorf("StopWords = %v", s.StopWords)
	}
	pk, ok, err := PrimaryKey(r)
	if err != nil || !ok || pk != "id" {
		t.Errorf("PrimaryKey = %q, %v, %v", pk, ok, err)
	}
	if n, _ := DocCount(r); n != 2 {
		t.Errorf("DocCount = %d, want 2", n)
	}
}

func TestTables_Postings(t *testing.T) {
	env := newTestEnv(t)

	w, _ := env.WriteTxn()
	// Unsorted input with a duplicate; stored list is sorted and unique.
	if err := PutPostings(w, "hello", []uint32{5, 1, 300, 5}); err != nil {
		t.Fatalf("PutPostings failed: %v", err)
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	r, _ := env.ReadTxn()
	defer r.Abort()

	ids, err := Postings(r, "hello")
	if err != nil {
		t.Fatalf("Postings failed: %v", err)
	}
	want := []uint32{1, 5, 300}
	if len(ids) != len(want) {
		t.Fatalf("Postings = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("Postings[%d] = %d, want %d", i, ids[i], want[i])
		}
	}

	ids, err = Postings(r, "absent")
	if err != nil || ids != nil {
		t.Errorf("Postings(absent) = %v, %v, want nil", ids, err)
	}
}

func TestPostingsCodec_Corruption(t *testing.T) {
	// A stray continuation byte must surface as corruption.
	if _, err := decodePostings([]byte{0x80}); err == nil {
		t.Error("expected error for truncated varint")
	}
}

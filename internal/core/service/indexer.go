package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/time/rate"

	"github.com/lumidex/lumidex-go/internal/core/domain"
	"github.com/lumidex/lumidex-go/internal/documents"
	"github.com/lumidex/lumidex-go/internal/storage"
	"github.com/lumidex/lumidex-go/internal/telemetry/logger"
)

// Indexer is the default UpdateHandler. It is stateless between calls;
// all index state lives in the transaction it is handed.
type Indexer struct {
	logger logger.Logger
}

// NewIndexer creates an indexer.
func NewIndexer(log logger.Logger) *Indexer {
	if log == nil {
		log = logger.Default()
	}
	return &Indexer{logger: log}
}

// ApplySettings persists settings and an optional primary key.
func (ix *Indexer) ApplySettings(txn *storage.Txn, settings domain.CheckedSettings, primaryKey *string, progress ProgressFunc) error {
	if progress != nil {
		progress(Progress{Phase: PhaseSettings, Processed: 0, Total: 1})
	}
	if err := storage.PutSettings(txn, settings); err != nil {
		return err
	}
	if primaryKey != nil {
		if strings.TrimSpace(*primaryKey) == "" {
			return domain.ErrInvalidSettings.WithDetails("primary key: empty field name")
		}
		if err := storage.PutPrimaryKey(txn, *primaryKey); err != nil {
			return err
		}
	}
	if progress != nil {
		progress(Progress{Phase: PhaseSettings, Processed: 1, Total: 1})
	}
	return nil
}

// IndexDocuments indexes a finalized, non-empty batch: it resolves the
// primary key (stored, or inferred from the batch's field names),
// stores every payload re-encoded with the index's own field ids,
// maintains the external-id mapping (a repeated external id replaces
// the earlier document in place), and rebuilds the posting lists the
// batch touches.
func (ix *Indexer) IndexDocuments(txn *storage.Txn, batch *documents.BatchReader, progress ProgressFunc) error {
	if batch.IsEmpty() {
		return domain.ErrMissingPrimaryKey.WithDetails("empty document batch")
	}

	settings, _, err := storage.Settings(txn)
	if err != nil {
		return err
	}
	storeFields, err := storage.FieldsIds(txn)
	if err != nil {
		return err
	}

	primaryKey, err := resolvePrimaryKey(txn, batch.Fields())
	if err != nil {
		return err
	}

	// Translate batch field ids to the index's stable ids once.
	batchNames := batch.Fields().Names()
	fidMap := make([]domain.FieldID, len(batchNames))
	for i, name := range batchNames {
		id, err := storeFields.Insert(name)
		if err != nil {
			return err
		}
		fidMap[i] = id
	}
	pkFieldID, pkKnown := batch.Fields().ID(primaryKey)
	if !pkKnown {
		return domain.ErrMissingDocumentID.WithDetails(
			fmt.Sprintf("no document carries primary key %q", primaryKey))
	}

	searchable := searchableFieldIDs(settings, storeFields)
	stopWords := make(map[string]struct{}, len(settings.StopWords))
	for _, w := range settings.StopWords {
		stopWords[w] = struct{}{}
	}

	docCount, err := storage.DocCount(txn)
	if err != nil {
		return err
	}

	// Posting deltas accumulate in memory and merge once per term.
	postings := make(map[string][]uint32)

	limiter := rate.NewLimiter(rate.Every(200*time.Millisecond), 1)
	total := uint64(batch.Count())
	processed := uint64(0)

	for {
		_, fields, err := batch.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		externalID, err := externalIDOf(fields, pkFieldID, primaryKey)
		if err != nil {
			return err
		}

		docid, exists, err := storage.GetExternalDocID(txn, externalID)
		if err != nil {
			return err
		}
		if !exists {
			docid = uint32(docCount)
			docCount++
			if err := storage.PutExternalDocID(txn, externalID, docid); err != nil {
				return err
			}
		}

		stored := make([]documents.FieldValue, len(fields))
		for i, fv := range fields {
			stored[i] = documents.FieldValue{ID: fidMap[fv.ID], Value: fv.Value}
		}
		if err := storage.PutDocument(txn, docid, documents.EncodeFields(stored)); err != nil {
			return err
		}

		for _, fv := range stored {
			if _, ok := searchable[fv.ID]; !ok {
				continue
			}
			for _, term := range tokenize(fv.Value) {
				if _, stop := stopWords[term]; stop {
					continue
				}
				postings[term] = append(postings[term], docid)
			}
		}

		processed++
		if progress != nil && (limiter.Allow() || processed == total) {
			progress(Progress{Phase: PhaseDocuments, Processed: processed, Total: total})
		}
	}

	for term, ids := range postings {
		existing, err := storage.Postings(txn, term)
		if err != nil {
			return err
		}
		if err := storage.PutPostings(txn, term, append(existing, ids...)); err != nil {
			return err
		}
	}

	if err := storage.PutFieldsIds(txn, storeFields); err != nil {
		return err
	}
	if err := storage.PutDocCount(txn, docCount); err != nil {
		return err
	}

	ix.logger.Debug("documents indexed",
		"count", processed,
		"terms", len(postings),
		"primary_key", primaryKey)
	return nil
}

// resolvePrimaryKey returns the stored primary key or infers one from
// the batch's field names, persisting the inference. Inference picks
// the first field, in id order, whose name ends in "id"
// case-insensitively; a substring match would also catch names like
// "video".
func resolvePrimaryKey(txn *storage.Txn, batchFields *domain.FieldsIdsMap) (string, error) {
	if pk, ok, err := storage.PrimaryKey(txn); err != nil {
		return "", err
	} else if ok {
		return pk, nil
	}

	for _, name := range batchFields.Names() {
		if strings.HasSuffix(strings.ToLower(name), "id") {
			if err := storage.PutPrimaryKey(txn, name); err != nil {
				return "", err
			}
			return name, nil
		}
	}
	return "", domain.ErrMissingPrimaryKey
}

// searchableFieldIDs resolves the settings' searchable attributes to
// store field ids. nil searchable attributes means every field.
func searchableFieldIDs(settings domain.CheckedSettings, storeFields *domain.FieldsIdsMap) map[domain.FieldID]struct{} {
	out := make(map[domain.FieldID]struct{})
	if settings.SearchableAttributes == nil {
		for _, name := range storeFields.Names() {
			id, _ := storeFields.ID(name)
			out[id] = struct{}{}
		}
		return out
	}
	for _, name := range settings.SearchableAttributes {
		if id, ok := storeFields.ID(name); ok {
			out[id] = struct{}{}
		}
	}
	return out
}

// externalIDOf extracts and validates a document's external id from its
// primary-key field. Valid ids are non-empty strings of letters,
// digits, hyphens and underscores, or JSON integers.
func externalIDOf(fields []documents.FieldValue, pkField domain.FieldID, primaryKey string) (string, error) {
	for _, fv := range fields {
		if fv.ID != pkField {
			continue
		}
		raw := strings.TrimSpace(string(fv.Value))
		if len(raw) == 0 {
			break
		}
		if raw[0] == '"' {
			var s string
			if err := json.Unmarshal(fv.Value, &s); err != nil {
				return "", domain.ErrInvalidDocumentID.WithCause(err)
			}
			if !validExternalID(s) {
				return "", domain.ErrInvalidDocumentID.WithDetails(
					fmt.Sprintf("%q is not a valid document id", s))
			}
			return s, nil
		}
		if isJSONInteger(raw) {
			return raw, nil
		}
		return "", domain.ErrInvalidDocumentID.WithDetails(
			fmt.Sprintf("%s: document ids are strings or integers", raw))
	}
	return "", domain.ErrMissingDocumentID.WithDetails(
		fmt.Sprintf("document has no %q field", primaryKey))
}

func validExternalID(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
			return false
		}
	}
	return true
}

func isJSONInteger(s string) bool {
	if s == "" {
		return false
	}
	if s[0] == '-' {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	for _, c := range []byte(s) {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// tokenize extracts lowercased letter/digit runs from a raw JSON value,
// descending into arrays and objects.
func tokenize(raw json.RawMessage) []string {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil
	}
	var terms []string
	collectTerms(value, &terms)
	return terms
}

func collectTerms(value any, terms *[]string) {
	switch v := value.(type) {
	case string:
		*terms = append(*terms, splitTerms(v)...)
	case float64:
		*terms = append(*terms, strconv.FormatFloat(v, 'f', -1, 64))
	case bool:
		*terms = append(*terms, fmt.Sprintf("%t", v))
	case []any:
		for _, item := range v {
			collectTerms(item, terms)
		}
	case map[string]any:
		for _, item := range v {
			collectTerms(item, terms)
		}
	}
}

func splitTerms(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Package storage provides the transactional storage environment
// backing a Lumidex index.
//
// An Env wraps a Badger database with single-writer/multi-reader
// transaction semantics and a fixed byte-size cap on the storage arena.
// On top of the raw key space it defines the typed tables an index is
// made of: document payloads, the external-id mapping, posting lists,
// and the metadata singletons (uid, fields-ids map, settings, primary
// key, document count).
package storage

// Package service contains the index update pipeline.
//
// UpdateHandler is the seam between transaction owners (index open,
// document addition, snapshot restore) and the indexing logic; Indexer
// is its default implementation. Handlers never open or commit
// transactions themselves, so a caller can run several updates under
// one atomic write.
package service

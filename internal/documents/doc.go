// Package documents implements the document-normalization pipeline.
//
// It streams line-delimited JSON documents into the canonical batch
// encoding consumed by the bulk loader, spilling to a staging file
// instead of holding input resident. The same pipeline serves both the
// ordinary document-addition path and snapshot restoration.
//
// Batch files are self-contained: a magic header, length-framed
// per-document payloads in encounter order, and a trailing fields index
// mapping compact field ids back to names.
package documents

// Package domain defines the core domain models for Lumidex.
//
// Domain models are pure value objects without any IO dependencies
// or framework coupling. This package contains:
//
//   - Settings / CheckedSettings: raw vs. validated index configuration
//   - FieldsIdsMap: bidirectional field name <-> id table
//   - Errors: domain-specific error definitions
//
// CheckedSettings are reachable only through Settings.Check; nothing
// else in the module may hand unvalidated configuration to the indexer.
package domain

// Package source provides rule document trees and the document parser.
//
// A Source yields leaf documents (YAML or JSON) in deterministic order. The
// repository walks every configured source and hands each document to Parse,
// which turns it into rule records.
//
// Available sources:
//
//   - FileSource: a directory tree or single file on disk
//   - SQLiteSource: documents in a SQLite table, keyed by hierarchical path
//   - RedisSource: documents stored under a Redis key prefix
//   - MemorySource: in-memory documents for tests and embedding
//
// The git package adds a source that clones a repository and walks a
// sub-directory of the checkout.
//
// FindRulesRoot locates a rules directory by searching upward from a start
// directory, so callers resolve roots before loading.
package source

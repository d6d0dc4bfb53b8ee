// Package repository holds the active rule set.
//
// A Repository loads rule documents from one or more sources, keeps the
// admitted rules as an immutable snapshot and swaps that snapshot atomically
// on reload. Readers never observe a partially loaded rule set.
//
// Loading is lenient: documents that fail to read, parse or validate are
// reported in the LoadResult and skipped, and a missing rules root yields an
// empty rule set with a recorded condition rather than an error.
//
// Hot reload is available through Watch (fsnotify, for file sources) and
// Scheduler (cron, for git, SQLite and Redis sources).
package repository

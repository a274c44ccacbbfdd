// Package store provides PostgreSQL persistence for the daemon.
//
// Responsibilities:
//   - Market definitions and instruments, loaded at startup and on catalog
//     refresh (relational configuration data)
//   - Closed bars, written with idempotent batch inserts (append-only)
//   - 52-week extremes, queried over the persisted bar history
//
// The store is optional: with no database configured, the catalog falls back
// to YAML-defined markets and closed bars stay in the in-memory history only.
package store

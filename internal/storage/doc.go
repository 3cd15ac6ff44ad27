// Package storage provides the key/value persistence layer behind tip and
// activity state.
//
// Backends:
//   - memory: process-local map (default when storage is not configured)
//   - file: JSON snapshot + JSONL journal, compacted periodically
//   - sqlite: single kv table (modernc.org/sqlite)
//   - redis: GET/SET/DEL under a key prefix
//
// Backends report failures as errors. Adapter is the boundary the rest of the
// core talks to: it absorbs those errors (and panics), logs them, and degrades
// to "absent" or "no-op".
package storage

// Package storage provides JSON-based persistence for the monitoring state.
//
// The storage package manages the single state file that carries the last
// recorded status date, the moment the target date first appeared and the
// termination flag across runs. A missing file yields first-run defaults.
// Writes replace the file atomically via a temp file and rename.
package storage

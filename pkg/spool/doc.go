// Package spool keeps batches the sink could not write.
//
// When a worker's batch fails every write attempt, the batch is saved as
// one JSON file named <worker>-<unix>.json. `shortscraper spool replay`
// feeds the files back through the sink and deletes each one once it has
// been written.
//
// Spool files live in the platform data directory unless output.spool_dir
// is set:
//   - Linux: ~/.local/share/shortscraper/spool/
//   - macOS: ~/Library/Application Support/shortscraper/spool/
//   - Windows: %APPDATA%/shortscraper/spool/
//
// Files are written to a temporary name, synced and renamed, so a crash
// never leaves a half-written batch behind.
package spool

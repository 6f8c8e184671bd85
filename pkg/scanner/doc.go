// Package scanner enumerates workflow documents on disk and decides which of
// them need to be reanalyzed.
//
// Scan lists the documents of a single directory (non-recursive). Fingerprint
// hashes a file's bytes; ChangeDetector compares that hash with the one stored
// for the same filename so unchanged files cost one hash and nothing more.
// Watcher turns filesystem events into debounced change notifications.
package scanner

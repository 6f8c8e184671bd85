package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/platinummonkey/flowindex/pkg/indexerr"
)

// DefaultExtension is the document extension scanned when none is configured
const DefaultExtension = ".json"

// Entry is one candidate document
type Entry struct {
	Path     string
	Filename string
	Size     int64
}

// ScanResult holds the documents found in a directory plus the per-entry
// failures that were skipped
type ScanResult struct {
	Entries []Entry
	Errors  []error
}

// Filenames returns the base names of all entries
func (r *ScanResult) Filenames() []string {
	names := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		names[i] = e.Filename
	}
	return names
}

// Scanner lists documents in a directory
type Scanner struct {
	ext string
}

// New creates a scanner matching files with the given extension
func New(ext string) *Scanner {
	if ext == "" {
		ext = DefaultExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return &Scanner{ext: strings.ToLower(ext)}
}

// Matches reports whether a filename has the scanned extension
func (s *Scanner) Matches(name string) bool {
	return strings.ToLower(filepath.Ext(name)) == s.ext
}

// Scan lists matching regular files directly inside dir, sorted by filename.
// An unreadable directory is a KindIO error; an unreadable entry is recorded in
// ScanResult.Errors and skipped.
func (s *Scanner) Scan(dir string) (*ScanResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, indexerr.New(indexerr.KindIO, "scan", dir, err)
	}

	result := &ScanResult{Entries: make([]Entry, 0, len(entries))}
	for _, entry := range entries {
		if entry.IsDir() || !s.Matches(entry.Name()) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, indexerr.New(indexerr.KindIO, "stat", path, err))
			continue
		}
		if !info.Mode().IsRegular() {
			// symlinks are followed; anything else is skipped
			target, err := os.Stat(path)
			if err != nil {
				result.Errors = append(result.Errors, indexerr.New(indexerr.KindIO, "stat", path, err))
				continue
			}
			if !target.Mode().IsRegular() {
				continue
			}
			info = target
		}

		result.Entries = append(result.Entries, Entry{
			Path:     path,
			Filename: entry.Name(),
			Size:     info.Size(),
		})
	}

	sort.Slice(result.Entries, func(i, j int) bool {
		return result.Entries[i].Filename < result.Entries[j].Filename
	})
	return result, nil
}

// String implements fmt.Stringer
func (s *Scanner) String() string {
	return fmt.Sprintf("scanner(*%s)", s.ext)
}

package scanner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	"github.com/platinummonkey/flowindex/pkg/indexerr"
)

// Fingerprint streams the file at path through SHA-256 and returns the hex
// digest and the number of bytes read
func Fingerprint(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, indexerr.New(indexerr.KindIO, "open", path, err)
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, indexerr.New(indexerr.KindIO, "read", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// FingerprintBytes returns the hex SHA-256 digest of data
func FingerprintBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FingerprintLookup returns the stored fingerprint for a filename. found is
// false when no record exists.
type FingerprintLookup interface {
	Fingerprint(ctx context.Context, filename string) (hash string, found bool, err error)
}

// Decision is the outcome of a change check
type Decision struct {
	Reprocess bool
	Reason    string
	Hash      string
	Size      int64
}

const (
	ReasonForced    = "forced"
	ReasonNew       = "new"
	ReasonChanged   = "changed"
	ReasonUnchanged = "unchanged"
)

// ChangeDetector decides whether a document needs to be reanalyzed
type ChangeDetector struct {
	lookup FingerprintLookup
}

// NewChangeDetector creates a change detector backed by stored fingerprints
func NewChangeDetector(lookup FingerprintLookup) *ChangeDetector {
	return &ChangeDetector{lookup: lookup}
}

// ShouldReprocess hashes the file and compares the result with the stored
// fingerprint for its filename. It returns Reprocess=true when force is set, when
// no fingerprint is stored, or when the hashes differ.
func (d *ChangeDetector) ShouldReprocess(ctx context.Context, path string, force bool) (Decision, error) {
	hash, size, err := Fingerprint(path)
	if err != nil {
		return Decision{}, err
	}
	return d.decide(ctx, filepath.Base(path), hash, size, force)
}

// ShouldReprocessBytes is ShouldReprocess for a document already read into
// memory. The returned Hash and Size describe data.
func (d *ChangeDetector) ShouldReprocessBytes(ctx context.Context, filename string, data []byte, force bool) (Decision, error) {
	return d.decide(ctx, filename, FingerprintBytes(data), int64(len(data)), force)
}

func (d *ChangeDetector) decide(ctx context.Context, filename, hash string, size int64, force bool) (Decision, error) {
	decision := Decision{Hash: hash, Size: size}
	if force {
		decision.Reprocess = true
		decision.Reason = ReasonForced
		return decision, nil
	}

	stored, found, err := d.lookup.Fingerprint(ctx, filename)
	if err != nil {
		return Decision{}, err
	}

	switch {
	case !found:
		decision.Reprocess = true
		decision.Reason = ReasonNew
	case stored != hash:
		decision.Reprocess = true
		decision.Reason = ReasonChanged
	default:
		decision.Reason = ReasonUnchanged
	}
	return decision, nil
}

// SPDX-License-Identifier: MPL-2.0

package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/azbin/azbin/internal/fingerprint"
)

const (
	// MarkerFile is the name of the validated marker inside a slot.
	MarkerFile = ".azbin-slot.toml"

	// MarkerSchema is the current marker layout version.
	MarkerSchema = 1
)

// ErrMarkerMismatch is returned when a marker belongs to another build.
var ErrMarkerMismatch = errors.New("marker belongs to another build")

// Marker records that a slot passed verification. It is written last.
type Marker struct {
	Schema      int                 `toml:"schema"`
	Tool        string              `toml:"tool"`
	BuildID     fingerprint.BuildID `toml:"build_id"`
	Digest      fingerprint.Digest  `toml:"digest"`
	ToolVersion string              `toml:"tool_version,omitempty"`
	Format      string              `toml:"format"`
	EntryPoint  string              `toml:"entry_point"`
	ExtractedAt time.Time           `toml:"extracted_at"`
	Manifest    string              `toml:"manifest,omitempty"`
	Files       int                 `toml:"files"`
	Bytes       int64               `toml:"bytes"`
}

// ReadMarker decodes the marker at path.
func ReadMarker(path string) (*Marker, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var mk Marker
	if err := toml.Unmarshal(data, &mk); err != nil {
		return nil, fmt.Errorf("decoding marker %s: %w", path, err)
	}
	if mk.Schema != MarkerSchema {
		return nil, fmt.Errorf("marker %s: unsupported schema %d", path, mk.Schema)
	}
	return &mk, nil
}

// WriteMarker publishes mk into s: encode to a temp file in the slot, fsync,
// then rename over MarkerFile so readers never observe a partial marker.
func WriteMarker(s Slot, mk *Marker) error {
	mk.Schema = MarkerSchema
	data, err := toml.Marshal(mk)
	if err != nil {
		return fmt.Errorf("encoding marker: %w", err)
	}
	return writeFileAtomic(s.MarkerPath(), data, 0o644)
}

func (mk *Marker) matches(s Slot) error {
	if mk.BuildID != s.BuildID || mk.Digest != s.Digest {
		return fmt.Errorf("%w: marker has build %s digest %s, slot wants build %s digest %s",
			ErrMarkerMismatch, mk.BuildID, mk.Digest.Short(), s.BuildID, s.Digest.Short())
	}
	return nil
}

// writeFileAtomic writes data to a temp file beside path, syncs it and renames
// it into place. The directory is synced afterwards where supported.
func writeFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName) // Best-effort cleanup of the unpublished temp file.
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("publishing %s: %w", path, err)
	}
	syncDir(dir)
	return nil
}

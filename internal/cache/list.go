// SPDX-License-Identifier: MPL-2.0

package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/azbin/azbin/internal/fingerprint"
)

type (
	// SlotInfo describes one slot found on disk.
	SlotInfo struct {
		Name        string              `json:"name" yaml:"name"`
		Dir         string              `json:"dir" yaml:"dir"`
		BuildID     fingerprint.BuildID `json:"build_id" yaml:"build_id"`
		DigestShort string              `json:"digest" yaml:"digest"`
		State       string              `json:"state" yaml:"state"`
		Reason      string              `json:"reason,omitempty" yaml:"reason,omitempty"`
		ToolVersion string              `json:"tool_version,omitempty" yaml:"tool_version,omitempty"`
		ExtractedAt time.Time           `json:"extracted_at,omitzero" yaml:"extracted_at,omitempty"`
		Bytes       int64               `json:"bytes" yaml:"bytes"`
		Current     bool                `json:"current" yaml:"current"`

		slot Slot
	}

	// PruneOptions selects what Prune removes.
	PruneOptions struct {
		// Keep is the number of newest validated slots retained besides the
		// current one.
		Keep int
		// All removes every slot, including the current one.
		All bool
		// DryRun reports what would be removed without removing it.
		DryRun bool
	}

	// PruneResult reports the outcome for every slot considered.
	PruneResult struct {
		Removed []SlotInfo
		Kept    []SlotInfo
		Busy    []SlotInfo
	}
)

// Slot returns the slot the info describes.
func (i SlotInfo) Slot() Slot { return i.slot }

// List returns every slot of the tool, newest build first. current marks the
// slot of the running fingerprint; pass a zero Fingerprint when unknown.
func (m *Manager) List(current fingerprint.Fingerprint) ([]SlotInfo, error) {
	entries, err := os.ReadDir(m.ToolDir())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", m.ToolDir(), err)
	}

	var currentName string
	if current.BuildID != 0 {
		currentName = SlotName(current.BuildID, current.Digest)
	}

	var infos []SlotInfo
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, short, ok := parseSlotName(e.Name())
		if !ok {
			continue
		}
		info := SlotInfo{
			Name:        e.Name(),
			Dir:         filepath.Join(m.ToolDir(), e.Name()),
			BuildID:     id,
			DigestShort: short,
			Current:     e.Name() == currentName,
		}
		info.slot = Slot{Dir: info.Dir, Name: info.Name, BuildID: id}

		mk, err := ReadMarker(filepath.Join(info.Dir, MarkerFile))
		switch {
		case err != nil:
			info.State = StateInvalid.String()
			info.Reason = "no readable marker"
		case mk.BuildID != id || !strings.HasPrefix(mk.Digest.String(), short):
			info.State = StateInvalid.String()
			info.Reason = ErrMarkerMismatch.Error()
		default:
			info.State = StateValidated.String()
			info.ToolVersion = mk.ToolVersion
			info.ExtractedAt = mk.ExtractedAt
			info.Bytes = mk.Bytes
			info.slot.Digest = mk.Digest
		}
		infos = append(infos, info)
	}

	sort.SliceStable(infos, func(i, j int) bool {
		if infos[i].BuildID != infos[j].BuildID {
			return infos[i].BuildID > infos[j].BuildID
		}
		return infos[i].Name < infos[j].Name
	})
	return infos, nil
}

// Prune removes old slots. The current slot is kept unless opts.All, the
// opts.Keep newest validated slots are kept, and slots whose lock is held by
// a running launcher are skipped.
func (m *Manager) Prune(current fingerprint.Fingerprint, opts PruneOptions) (*PruneResult, error) {
	infos, err := m.List(current)
	if err != nil {
		return nil, err
	}

	res := &PruneResult{}
	kept := 0
	for _, info := range infos {
		if !opts.All {
			if info.Current {
				res.Kept = append(res.Kept, info)
				continue
			}
			if info.State == StateValidated.String() && kept < opts.Keep {
				kept++
				res.Kept = append(res.Kept, info)
				continue
			}
		}

		lk, err := m.TryLock(info.slot)
		if errors.Is(err, ErrLocked) {
			res.Busy = append(res.Busy, info)
			continue
		}
		if err != nil {
			return res, err
		}
		if !opts.DryRun {
			err = m.Discard(info.slot)
			if err == nil {
				if removeErr := lk.Remove(); removeErr != nil {
					m.logger.Debug("removing lock file", "lock", info.slot.LockPath(), "error", removeErr)
				}
			}
		}
		releaseErr := lk.Release()
		if err != nil {
			return res, err
		}
		if releaseErr != nil {
			m.logger.Debug("releasing slot lock", "lock", info.slot.LockPath(), "error", releaseErr)
		}
		res.Removed = append(res.Removed, info)
	}
	return res, nil
}

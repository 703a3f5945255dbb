// SPDX-License-Identifier: MPL-2.0

package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/azbin/azbin/internal/fingerprint"
)

const (
	// StateMissing means the slot directory does not exist.
	StateMissing State = iota
	// StateValidated means the slot carries a marker for the running build.
	StateValidated
	// StateInvalid means the slot exists but cannot be trusted.
	StateInvalid
)

//nolint:gochecknoglobals // Compiled once.
var slotNameRE = regexp.MustCompile(`^b([0-9]+)-([0-9a-f]{12})$`)

type (
	// State is the outcome of probing a slot.
	State int

	// Slot is the on-disk location of one build's runtime environment.
	Slot struct {
		Dir     string
		Name    string
		BuildID fingerprint.BuildID
		Digest  fingerprint.Digest
	}

	// ProbeResult is what Probe found. Reason explains StateInvalid.
	ProbeResult struct {
		State  State
		Reason string
		Marker *Marker
	}
)

// SlotName returns "b<build>-<digest12>".
func SlotName(id fingerprint.BuildID, d fingerprint.Digest) string {
	return "b" + id.String() + "-" + d.Short()
}

// parseSlotName extracts the build id and digest prefix from a slot name.
func parseSlotName(name string) (fingerprint.BuildID, string, bool) {
	m := slotNameRE.FindStringSubmatch(name)
	if m == nil {
		return 0, "", false
	}
	id, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil || id == 0 {
		return 0, "", false
	}
	return fingerprint.BuildID(id), m[2], true
}

// LockPath is the lock file beside the slot directory.
func (s Slot) LockPath() string { return s.Dir + ".lock" }

// MarkerPath is the validated marker inside the slot.
func (s Slot) MarkerPath() string { return filepath.Join(s.Dir, MarkerFile) }

// ManifestPath is the file manifest inside the slot.
func (s Slot) ManifestPath() string { return filepath.Join(s.Dir, ManifestFile) }

// Path joins a slash-separated relative path onto the slot directory.
func (s Slot) Path(rel string) string { return filepath.Join(s.Dir, filepath.FromSlash(rel)) }

// String returns the state name.
func (st State) String() string {
	switch st {
	case StateMissing:
		return "missing"
	case StateValidated:
		return "validated"
	case StateInvalid:
		return "invalid"
	default:
		return "State(" + strconv.Itoa(int(st)) + ")"
	}
}

// Probe inspects s without locking. A slot is validated only when its marker
// is readable, names the same build id and digest, and the entry-point it
// records exists.
func Probe(s Slot) ProbeResult {
	info, err := os.Stat(s.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		return ProbeResult{State: StateMissing}
	}
	if err != nil {
		return ProbeResult{State: StateInvalid, Reason: err.Error()}
	}
	if !info.IsDir() {
		return ProbeResult{State: StateInvalid, Reason: "slot path is not a directory"}
	}

	mk, err := ReadMarker(s.MarkerPath())
	if errors.Is(err, fs.ErrNotExist) {
		return ProbeResult{State: StateInvalid, Reason: "no validated marker (interrupted extraction)"}
	}
	if err != nil {
		return ProbeResult{State: StateInvalid, Reason: err.Error()}
	}
	if err := mk.matches(s); err != nil {
		return ProbeResult{State: StateInvalid, Reason: err.Error(), Marker: mk}
	}
	if mk.EntryPoint != "" {
		if _, err := os.Stat(s.Path(mk.EntryPoint)); err != nil {
			return ProbeResult{State: StateInvalid, Reason: fmt.Sprintf("entry-point %s: %v", mk.EntryPoint, err), Marker: mk}
		}
	}
	return ProbeResult{State: StateValidated, Marker: mk}
}

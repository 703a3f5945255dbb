// SPDX-License-Identifier: MPL-2.0

package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// ErrLocked is returned by TryLock when another process holds the slot lock.
var ErrLocked = errors.New("slot is locked by another process")

// Lock is an exclusive cross-process lock on a slot. The kernel releases it
// when the holding process exits, so an orphaned lock file is harmless.
type Lock struct {
	file *os.File
	path string
}

// Lock blocks until the exclusive lock on s is held. There is no timeout.
func (m *Manager) Lock(s Slot) (*Lock, error) {
	return m.lock(s, true)
}

// TryLock acquires the lock on s without waiting. It returns ErrLocked when
// the slot is busy.
func (m *Manager) TryLock(s Slot) (*Lock, error) {
	return m.lock(s, false)
}

func (m *Manager) lock(s Slot, block bool) (*Lock, error) {
	path := s.LockPath()
	m.logger.Debug("acquiring slot lock", "lock", path, "block", block)
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open lock file %s: %w", path, err)
		}
		if err := lockFile(f, block); err != nil {
			_ = f.Close() // The lock error is what matters.
			return nil, err
		}
		// Prune unlinks lock files while holding them; a lock taken on an
		// unlinked file protects nothing, so start over on the new one.
		if held, err := f.Stat(); err == nil {
			if onDisk, err := os.Stat(path); err == nil && os.SameFile(held, onDisk) {
				return &Lock{file: f, path: path}, nil
			}
		}
		_ = unlockFile(f)
		_ = f.Close()
	}
}

// Remove unlinks the lock file while the lock is still held. Waiting
// processes notice and retry on a fresh file.
func (l *Lock) Remove() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Release unlocks and closes the lock file. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	unlockErr := unlockFile(l.file)
	closeErr := l.file.Close()
	l.file = nil
	if unlockErr != nil {
		return fmt.Errorf("unlock: %w", unlockErr)
	}
	return closeErr
}

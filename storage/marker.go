// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package storage

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

var ErrLocked = errors.New("build group is locked by another fetch")

// MarkerStore persists, per build group, the archive name last accepted as
// current. A missing marker means nothing was downloaded yet.
type MarkerStore struct {
	dir string
}

func NewMarkerStore(dir string) MarkerStore {
	return MarkerStore{dir: dir}
}

func (m MarkerStore) FileName(slug string) string {
	return filepath.Join(m.dir, "last_"+slug+"_downloaded.txt")
}

func (m MarkerStore) Read(slug string) (string, error) {
	content, err := os.ReadFile(m.FileName(slug))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("unable to read marker for %s: %w", slug, err)
	}
	return strings.TrimSpace(string(content)), nil
}

// Write stores the bare file name of archive as the group's marker.
func (m MarkerStore) Write(slug, archive string) error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("unable to create marker directory: %w", err)
	}
	name := m.FileName(slug)
	tmp := name + ".tmp"
	if err := os.WriteFile(tmp, []byte(BareName(archive)), 0o644); err != nil {
		return fmt.Errorf("unable to write marker for %s: %w", slug, err)
	}
	if err := os.Rename(tmp, name); err != nil {
		return fmt.Errorf("unable to replace marker for %s: %w", slug, err)
	}
	return nil
}

// IsAlreadyDownloaded reports whether candidate is the archive recorded by the
// group's marker. No marker means not downloaded.
func (m MarkerStore) IsAlreadyDownloaded(slug, candidate string) (bool, error) {
	if _, err := os.Stat(m.FileName(slug)); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	previous, err := m.Read(slug)
	if err != nil {
		return false, err
	}
	return previous == BareName(candidate), nil
}

// Lock takes an exclusive, non-blocking lock on the group's marker so two
// processes never run a fetch cycle for the same group at once.
func (m MarkerStore) Lock(slug string) (func(), error) {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, fmt.Errorf("unable to create marker directory: %w", err)
	}
	lock := flock.New(m.FileName(slug) + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("unable to lock %s: %w", slug, err)
	} else if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, slug)
	}
	return func() { _ = lock.Unlock() }, nil
}

// BareName strips any directory part, slash or backslash separated.
func BareName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	return path.Base(name)
}

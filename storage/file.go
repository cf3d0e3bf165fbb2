// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/foundriesio/fw-autotest/config"
)

// FsHandle knows the on-disk layout of an auto-test workspace.
type FsHandle struct {
	Downloads string
	AutoTest  string
	Deploy    string
	Config    string
	Log       string
	Templates string
	Resources string
}

func NewFs(cfg *config.Config) *FsHandle {
	return &FsHandle{
		Downloads: cfg.Path(cfg.Paths.Downloads),
		AutoTest:  cfg.Path(cfg.Paths.AutoTest),
		Deploy:    cfg.Path(cfg.Paths.Deploy),
		Config:    cfg.Path(cfg.Paths.Config),
		Log:       cfg.Path(cfg.Paths.Log),
		Templates: cfg.Path(cfg.Paths.Templates),
		Resources: cfg.Path(cfg.Paths.Resources),
	}
}

// EnsureDirs creates the directories the executor and the build client write into.
func (h FsHandle) EnsureDirs() error {
	for _, dir := range []string{h.AutoTest, h.Deploy, h.Config, h.Log, h.Downloads} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("unable to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// GroupDownloadDir is where archives of a build group are downloaded to.
func (h FsHandle) GroupDownloadDir(groupPath string) string {
	return filepath.Join(h.Downloads, filepath.FromSlash(groupPath))
}

// GroupAutoTestDir is where the accepted archive of a build group is staged.
func (h FsHandle) GroupAutoTestDir(groupPath string) string {
	return filepath.Join(h.AutoTest, filepath.FromSlash(groupPath))
}

func (h FsHandle) Markers() MarkerStore {
	return MarkerStore{dir: h.Downloads}
}

// ResetDir removes a directory with all its content and creates it again empty.
func ResetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("unable to remove directory %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("unable to create directory %s: %w", dir, err)
	}
	return nil
}

// CopyFile copies src over dst, creating dst's parent directory when missing.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("unable to open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("unable to create directory for %s: %w", dst, err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("unable to create %s: %w", dst, err)
	}
	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("unable to copy %s to %s: %w", src, dst, err)
	}
	return out.Close()
}

// CopyTree copies every regular file under src into dst keeping the relative
// layout. Existing files are overwritten.
func CopyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return CopyFile(path, target)
	})
}

// RemoveMatching deletes the files of dir whose names match a glob pattern and
// returns how many were removed.
func RemoveMatching(dir, pattern string) (int, error) {
	matches, err := doublestar.Glob(os.DirFS(dir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("unable to match %s in %s: %w", pattern, dir, err)
	}
	for _, name := range matches {
		if err := os.Remove(filepath.Join(dir, filepath.FromSlash(name))); err != nil {
			return 0, fmt.Errorf("unable to remove %s: %w", name, err)
		}
	}
	return len(matches), nil
}

// ListFiles returns the sorted names of the files of dir starting with prefix
// and ending with suffix. A missing directory holds no files.
func ListFiles(dir, prefix, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("unable to list %s: %w", dir, err)
	}
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && strings.HasPrefix(name, prefix) && strings.HasSuffix(name, suffix) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

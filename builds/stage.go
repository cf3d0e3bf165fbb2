// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package builds

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/foundriesio/fw-autotest/context"
	"github.com/foundriesio/fw-autotest/storage"
)

// Unpack extracts the group's accepted archive inside its autotest directory
// and removes the archive. Nothing staged is not an error.
func (c Client) Unpack(ctx context.Context, g Group) error {
	log := context.CtxGetLog(ctx).With("group", g.Name)
	archive, err := c.markers.Read(g.Slug())
	if err != nil {
		return err
	}
	dir := c.fs.GroupAutoTestDir(g.Path)
	path := filepath.Join(dir, archive)
	if archive == "" {
		log.Info("Nothing to unpack")
		return nil
	} else if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Info("Archive already unpacked", "archive", archive)
		return nil
	}

	count, err := extractZip(path, dir)
	if err != nil {
		return fmt.Errorf("unable to unpack %s: %w", archive, err)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("unable to remove %s: %w", archive, err)
	}
	log.Info("Archive unpacked", "archive", archive, "files", count)
	return nil
}

func extractZip(archive, dst string) (int, error) {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return 0, err
	}
	defer func() { _ = zr.Close() }()

	root := filepath.Clean(dst) + string(os.PathSeparator)
	count := 0
	for _, f := range zr.File {
		target := filepath.Join(dst, filepath.FromSlash(strings.ReplaceAll(f.Name, "\\", "/")))
		if !strings.HasPrefix(target, root) {
			return count, fmt.Errorf("%w: entry %s escapes the target directory", ErrParse, f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return count, err
			}
			continue
		}
		if err := extractEntry(f, target); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func extractEntry(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	in, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	out, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// Deploy removes stale files matching any of the patterns from the deploy
// directory, then copies the group's unpacked tree over it.
func (c Client) Deploy(ctx context.Context, g Group, stale ...string) error {
	log := context.CtxGetLog(ctx).With("group", g.Name)
	for _, pattern := range stale {
		removed, err := storage.RemoveMatching(c.fs.Deploy, pattern)
		if err != nil {
			return err
		}
		if removed > 0 {
			log.Debug("Removed stale deploy files", "pattern", pattern, "count", removed)
		}
	}
	src := c.fs.GroupAutoTestDir(g.Path)
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("unable to deploy %s: %w", g.Path, err)
	}
	if err := storage.CopyTree(src, c.fs.Deploy); err != nil {
		return fmt.Errorf("unable to deploy %s: %w", g.Path, err)
	}
	log.Info("Build deployed", "dir", c.fs.Deploy)
	return nil
}

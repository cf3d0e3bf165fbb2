// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package builds

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/foundriesio/fw-autotest/config"
	"github.com/foundriesio/fw-autotest/context"
	"github.com/foundriesio/fw-autotest/storage"
)

var ErrNotNewer = errors.New("no newer build available")

// Client acquires builds for a group: it finds the newest archive offered by
// its Source, downloads it when newer than the group's marker, and stages it
// for the executor.
type Client struct {
	fs      *storage.FsHandle
	markers storage.MarkerStore
	source  Source
}

func NewClient(fs *storage.FsHandle, source Source) *Client {
	return &Client{fs: fs, markers: fs.Markers(), source: source}
}

// NewClientFromConfig picks the build source from the deploy mode flag.
func NewClientFromConfig(cfg *config.Config, fs *storage.FsHandle) *Client {
	var source Source
	if cfg.Flags.DeployMode {
		source = NewLocalStaged(fs.Resources)
	} else {
		source = NewRemote(cfg.Repository.URL, cfg.Repository.Name, cfg.Repository.Timeout)
	}
	return NewClient(fs, source)
}

// FetchLatest returns the accepted build record, or ErrNotNewer when the
// group's marker already holds a build at least as new as the source's best.
// The marker is only written once the archive is fully downloaded and staged.
func (c Client) FetchLatest(ctx context.Context, g Group) (*BuildRecord, error) {
	log := context.CtxGetLog(ctx).With("group", g.Name)

	unlock, err := c.markers.Lock(g.Slug())
	if err != nil {
		return nil, err
	}
	defer unlock()

	best, err := c.source.Latest(ctx, g)
	if err != nil {
		return nil, err
	}
	if best == "" {
		log.Info("No build archives offered")
		return nil, fmt.Errorf("%w: %s offers no archives", ErrNotNewer, g.Path)
	}

	if done, err := c.markers.IsAlreadyDownloaded(g.Slug(), best); err != nil {
		return nil, err
	} else if done {
		log.Info("Latest build already downloaded", "archive", best)
		return nil, fmt.Errorf("%w: %s", ErrNotNewer, best)
	}
	current, err := c.markers.Read(g.Slug())
	if err != nil {
		return nil, err
	}
	if ord, err := Compare(best, current, g.Encoding); err != nil {
		return nil, err
	} else if ord != Newer {
		log.Info("Latest build is not newer than the current one", "archive", best, "current", current)
		return nil, fmt.Errorf("%w: %s is %s than %s", ErrNotNewer, best, ord, current)
	}

	log.Info("Downloading build", "archive", best, "previous", current)
	downloaded, err := c.download(ctx, g, best)
	if err != nil {
		return nil, err
	}

	stageDir := c.fs.GroupAutoTestDir(g.Path)
	if err := storage.ResetDir(stageDir); err != nil {
		return nil, err
	}
	if err := storage.CopyFile(downloaded, filepath.Join(stageDir, best)); err != nil {
		return nil, fmt.Errorf("unable to stage %s: %w", best, err)
	}
	if err := c.markers.Write(g.Slug(), best); err != nil {
		return nil, err
	}
	log.Info("Build accepted", "archive", best)
	return newBuildRecord(g, best), nil
}

func (c Client) download(ctx context.Context, g Group, archive string) (string, error) {
	dir := c.fs.GroupDownloadDir(g.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("unable to create download directory: %w", err)
	}
	dst := filepath.Join(dir, archive)
	part := dst + ".part"

	fd, err := os.Create(part)
	if err != nil {
		return "", fmt.Errorf("unable to create %s: %w", part, err)
	}
	err = c.source.Fetch(ctx, g, archive, fd)
	if closeErr := fd.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("%w: %w", ErrDownload, closeErr)
	}
	if err != nil {
		_ = os.Remove(part)
		return "", err
	}
	if err := os.Rename(part, dst); err != nil {
		_ = os.Remove(part)
		return "", fmt.Errorf("unable to move %s into place: %w", archive, err)
	}
	return dst, nil
}

// IsAlreadyDownloaded reports whether candidate is the group's current marker.
func (c Client) IsAlreadyDownloaded(g Group, candidate string) (bool, error) {
	return c.markers.IsAlreadyDownloaded(g.Slug(), candidate)
}

// Marker returns the archive name currently accepted for the group.
func (c Client) Marker(g Group) (string, error) {
	return c.markers.Read(g.Slug())
}

// CurrentVersion extracts the version token of the group's current build
// without fetching anything.
func (c Client) CurrentVersion(ctx context.Context, g Group) (string, error) {
	archive, err := c.markers.Read(g.Slug())
	if err != nil {
		return "", err
	}
	if archive == "" {
		return "", fmt.Errorf("no build downloaded yet for %s", g.Path)
	}
	version, err := FindVersion(archive, g.VersionIndex)
	if err != nil {
		return "", err
	}
	context.CtxGetLog(ctx).Debug("Current build version", "group", g.Name, "archive", archive, "version", version)
	return version, nil
}

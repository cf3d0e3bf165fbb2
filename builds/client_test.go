// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package builds

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foundriesio/fw-autotest/config"
	"github.com/foundriesio/fw-autotest/context"
	"github.com/foundriesio/fw-autotest/storage"
)

type fakeRepo struct {
	t         *testing.T
	pages     []IndexPage
	searches  atomic.Int32
	downloads atomic.Int32
	failFetch bool
}

func (f *fakeRepo) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/service/rest/v1/search":
		require.Equal(f.t, "ChemiDocGo-FW", r.URL.Query().Get("repository"))
		require.Equal(f.t, "/Windows/CI", r.URL.Query().Get("group"))
		idx := int(f.searches.Add(1)) - 1
		if token := r.URL.Query().Get("continuationToken"); token != "" {
			require.Equal(f.t, f.pages[idx-1].ContinuationToken, &token)
		}
		require.Nil(f.t, json.NewEncoder(w).Encode(f.pages[idx]))
	case strings.HasPrefix(r.URL.Path, "/repository/ChemiDocGo-FW/Windows/CI/"):
		f.downloads.Add(1)
		if f.failFetch {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("zip:" + filepath.Base(r.URL.Path)))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func token(s string) *string {
	return &s
}

func testClient(t *testing.T, repo *fakeRepo) (*Client, *storage.FsHandle, Group) {
	cfg := config.Defaults()
	cfg.Workspace = t.TempDir()
	fs := storage.NewFs(&cfg)
	require.Nil(t, fs.EnsureDirs())
	srv := httptest.NewServer(repo)
	t.Cleanup(srv.Close)
	g, err := GroupFromConfig(cfg.Groups[0])
	require.Nil(t, err)
	return NewClient(fs, NewRemote(srv.URL, "ChemiDocGo-FW", time.Second)), fs, g
}

func TestFetchLatestAcceptsNewest(t *testing.T) {
	repo := &fakeRepo{t: t, pages: []IndexPage{
		{Items: []IndexItem{{Name: "Windows/CI/fw_1.2.3.zip"}, {Name: "Windows/CI/fw_1.2.4.zip"}}},
	}}
	client, fs, g := testClient(t, repo)
	ctx := context.Background()

	rec, err := client.FetchLatest(ctx, g)
	require.Nil(t, err)
	require.Equal(t, "fw_1.2.4.zip", rec.ArchiveName)
	require.Equal(t, []string{"fw_1", "2", "4"}, rec.RawVersionTokens)
	require.Equal(t, int32(1), repo.downloads.Load())

	marker, err := client.Marker(g)
	require.Nil(t, err)
	require.Equal(t, "fw_1.2.4.zip", marker)

	content, err := os.ReadFile(filepath.Join(fs.GroupAutoTestDir(g.Path), "fw_1.2.4.zip"))
	require.Nil(t, err)
	require.Equal(t, "zip:fw_1.2.4.zip", string(content))
	_, err = os.Stat(filepath.Join(fs.GroupDownloadDir(g.Path), "fw_1.2.4.zip"))
	require.Nil(t, err)
}

func TestFetchLatestNotNewer(t *testing.T) {
	repo := &fakeRepo{t: t, pages: []IndexPage{
		{Items: []IndexItem{{Name: "fw_1.2.3.zip"}, {Name: "fw_1.2.4.zip"}}},
	}}
	client, fs, g := testClient(t, repo)
	require.Nil(t, fs.Markers().Write(g.Slug(), "fw_1.2.4.zip"))

	_, err := client.FetchLatest(context.Background(), g)
	require.True(t, errors.Is(err, ErrNotNewer))
	require.Equal(t, int32(0), repo.downloads.Load())
	marker, err := client.Marker(g)
	require.Nil(t, err)
	require.Equal(t, "fw_1.2.4.zip", marker)

	// An older build on the index is not a reason to download either.
	repo.searches.Store(0)
	require.Nil(t, fs.Markers().Write(g.Slug(), "fw_1.3.0.zip"))
	_, err = client.FetchLatest(context.Background(), g)
	require.True(t, errors.Is(err, ErrNotNewer))
	require.Equal(t, int32(0), repo.downloads.Load())
}

func TestFetchLatestPagination(t *testing.T) {
	repo := &fakeRepo{t: t, pages: []IndexPage{
		{Items: []IndexItem{{Name: "fw_1.2.3.zip"}, {Name: "notes.txt"}}, ContinuationToken: token("p2")},
		{Items: []IndexItem{{Name: "fw_1.4.1.zip"}, {Name: "fw_1.4.1.pdb"}}, ContinuationToken: token("p3")},
		{Items: []IndexItem{{Name: "fw_1.3.9.zip"}}},
	}}
	client, _, g := testClient(t, repo)

	rec, err := client.FetchLatest(context.Background(), g)
	require.Nil(t, err)
	require.Equal(t, int32(3), repo.searches.Load())
	require.Equal(t, "fw_1.4.1.zip", rec.ArchiveName)
}

func TestFetchLatestDownloadFailureKeepsMarker(t *testing.T) {
	repo := &fakeRepo{t: t, failFetch: true, pages: []IndexPage{
		{Items: []IndexItem{{Name: "fw_1.2.4.zip"}}},
	}}
	client, fs, g := testClient(t, repo)
	require.Nil(t, fs.Markers().Write(g.Slug(), "fw_1.2.3.zip"))

	_, err := client.FetchLatest(context.Background(), g)
	require.True(t, errors.Is(err, ErrDownload))
	marker, err := client.Marker(g)
	require.Nil(t, err)
	require.Equal(t, "fw_1.2.3.zip", marker)

	entries, err := os.ReadDir(fs.GroupDownloadDir(g.Path))
	require.Nil(t, err)
	require.Len(t, entries, 0)
}

func TestFetchLatestMalformedName(t *testing.T) {
	repo := &fakeRepo{t: t, pages: []IndexPage{
		{Items: []IndexItem{{Name: "fw_1.2.4.zip"}, {Name: "fw_latest.zip"}}},
	}}
	client, _, g := testClient(t, repo)
	_, err := client.FetchLatest(context.Background(), g)
	require.True(t, errors.Is(err, ErrParse))
}

func TestFetchLatestLocked(t *testing.T) {
	repo := &fakeRepo{t: t, pages: []IndexPage{{Items: []IndexItem{{Name: "fw_1.2.4.zip"}}}}}
	client, fs, g := testClient(t, repo)
	unlock, err := fs.Markers().Lock(g.Slug())
	require.Nil(t, err)
	defer unlock()

	_, err = client.FetchLatest(context.Background(), g)
	require.True(t, errors.Is(err, storage.ErrLocked))
	require.Equal(t, int32(0), repo.searches.Load())
}

func TestCurrentVersion(t *testing.T) {
	client, fs, _ := testClient(t, &fakeRepo{t: t})
	g := Group{Name: "windows", Path: "Windows/CI", VersionIndex: 3}

	_, err := client.CurrentVersion(context.Background(), g)
	require.NotNil(t, err)

	require.Nil(t, fs.Markers().Write(g.Slug(), "CDGo_Windows_CI_2.7.113.zip"))
	v, err := client.CurrentVersion(context.Background(), g)
	require.Nil(t, err)
	require.Equal(t, "2.7.113", v)
}

func writeZip(t *testing.T, path string, files map[string]string) {
	fd, err := os.Create(path)
	require.Nil(t, err)
	zw := zip.NewWriter(fd)
	for name, content := range files {
		w, err := zw.Create(name)
		require.Nil(t, err)
		_, err = w.Write([]byte(content))
		require.Nil(t, err)
	}
	require.Nil(t, zw.Close())
	require.Nil(t, fd.Close())
}

func TestLocalStagedUnpackDeploy(t *testing.T) {
	cfg := config.Defaults()
	cfg.Workspace = t.TempDir()
	cfg.Flags.DeployMode = true
	fs := storage.NewFs(&cfg)
	require.Nil(t, fs.EnsureDirs())
	require.Nil(t, os.MkdirAll(fs.Resources, 0o755))

	g := Group{Name: "windows", Path: "Windows/CI", Encoding: DotIndexed, DeployArchive: "fw_2.0.1.zip"}
	writeZip(t, filepath.Join(fs.Resources, g.DeployArchive), map[string]string{
		"Instr_MainBoard_FW_2_0_1_a.bin": "main",
		"bin/FwTestApp.exe":              "exe",
	})
	require.Nil(t, os.WriteFile(filepath.Join(fs.Deploy, "Instr_MainBoard_FW_1_9_0_a.bin"), []byte("old"), 0o644))

	client := NewClientFromConfig(&cfg, fs)
	ctx := context.Background()
	rec, err := client.FetchLatest(ctx, g)
	require.Nil(t, err)
	require.Equal(t, "fw_2.0.1.zip", rec.ArchiveName)

	_, err = client.FetchLatest(ctx, g)
	require.True(t, errors.Is(err, ErrNotNewer))

	require.Nil(t, client.Unpack(ctx, g))
	_, err = os.Stat(filepath.Join(fs.GroupAutoTestDir(g.Path), g.DeployArchive))
	require.True(t, os.IsNotExist(err))
	// A second unpack finds nothing left to do.
	require.Nil(t, client.Unpack(ctx, g))

	require.Nil(t, client.Deploy(ctx, g, "Instr_MainBoard_FW_*.bin"))
	_, err = os.Stat(filepath.Join(fs.Deploy, "Instr_MainBoard_FW_1_9_0_a.bin"))
	require.True(t, os.IsNotExist(err))
	content, err := os.ReadFile(filepath.Join(fs.Deploy, "Instr_MainBoard_FW_2_0_1_a.bin"))
	require.Nil(t, err)
	require.Equal(t, "main", string(content))
	_, err = os.Stat(filepath.Join(fs.Deploy, "bin", "FwTestApp.exe"))
	require.Nil(t, err)
}

func TestUnpackRejectsEscapingEntries(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.zip")
	writeZip(t, archive, map[string]string{"../outside.txt": "x"})
	_, err := extractZip(archive, filepath.Join(dir, "out"))
	require.NotNil(t, err)
	_, err = os.Stat(filepath.Join(dir, "outside.txt"))
	require.True(t, os.IsNotExist(err))
}

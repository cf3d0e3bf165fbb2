// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package builds

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/foundriesio/fw-autotest/context"
	"github.com/foundriesio/fw-autotest/storage"
)

var ErrDownload = errors.New("build download failed")

// Source is where build archives come from.
type Source interface {
	// Latest returns the newest archive name offered for the group, or an
	// empty string when there is none.
	Latest(ctx context.Context, g Group) (string, error)
	// Fetch writes the archive content into w.
	Fetch(ctx context.Context, g Group, archive string, w io.Writer) error
}

// IndexPage is one page of the repository search API.
type IndexPage struct {
	Items             []IndexItem `json:"items"`
	ContinuationToken *string     `json:"continuationToken"`
}

type IndexItem struct {
	Name string `json:"name"`
}

// Remote reads a Nexus-style repository: a paginated search index and a raw
// download path per artifact.
type Remote struct {
	baseUrl    string
	repository string
	client     *http.Client
}

func NewRemote(baseUrl, repository string, timeout time.Duration) *Remote {
	return &Remote{
		baseUrl:    strings.TrimRight(baseUrl, "/"),
		repository: repository,
		client:     &http.Client{Timeout: timeout},
	}
}

// Page fetches one index page; an empty token asks for the first one.
func (r Remote) Page(ctx context.Context, g Group, token string) (*IndexPage, error) {
	query := url.Values{}
	query.Set("repository", r.repository)
	query.Set("group", "/"+g.Path)
	if token != "" {
		query.Set("continuationToken", token)
	}
	endpoint := r.baseUrl + "/service/rest/v1/search?" + query.Encode()
	context.CtxGetLog(ctx).Debug("Fetching build index page", "url", endpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to create index request: %w", err)
	}
	res, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to fetch index for %s: %w", ErrDownload, g.Path, err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: index for %s returned HTTP_%d", ErrDownload, g.Path, res.StatusCode)
	}

	var page IndexPage
	if err := json.NewDecoder(res.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("%w: unable to decode index page for %s: %w", ErrParse, g.Path, err)
	}
	return &page, nil
}

// Latest walks every index page and keeps the newest zip archive.
func (r Remote) Latest(ctx context.Context, g Group) (string, error) {
	log := context.CtxGetLog(ctx)
	best, token, pages := "", "", 0
	for {
		page, err := r.Page(ctx, g, token)
		if err != nil {
			return "", err
		}
		pages++
		if best, err = foldPage(best, page, g.Encoding); err != nil {
			return "", err
		}
		if page.ContinuationToken == nil || *page.ContinuationToken == "" {
			break
		}
		token = *page.ContinuationToken
	}
	log.Debug("Build index exhausted", "group", g.Path, "pages", pages, "latest", best)
	return best, nil
}

func foldPage(best string, page *IndexPage, enc Encoding) (string, error) {
	for _, item := range page.Items {
		name := storage.BareName(item.Name)
		if !strings.EqualFold(extension(name), archiveExtension) {
			continue
		}
		ord, err := Compare(name, best, enc)
		if err != nil {
			return "", err
		}
		if ord == Newer {
			best = name
		}
	}
	return best, nil
}

func (r Remote) Fetch(ctx context.Context, g Group, archive string, w io.Writer) error {
	endpoint := fmt.Sprintf("%s/repository/%s/%s/%s", r.baseUrl, r.repository, g.Path, url.PathEscape(archive))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("unable to create download request: %w", err)
	}
	res, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDownload, archive, err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned HTTP_%d", ErrDownload, archive, res.StatusCode)
	}
	if _, err := io.Copy(w, res.Body); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDownload, archive, err)
	}
	return nil
}

// LocalStaged serves deploy builds: a fixed archive per group shipped in a
// local resources directory.
type LocalStaged struct {
	dir string
}

func NewLocalStaged(dir string) *LocalStaged {
	return &LocalStaged{dir: dir}
}

func (l LocalStaged) Latest(ctx context.Context, g Group) (string, error) {
	if g.DeployArchive == "" {
		return "", fmt.Errorf("group %s has no deploy archive configured", g.Name)
	}
	return storage.BareName(g.DeployArchive), nil
}

func (l LocalStaged) Fetch(ctx context.Context, g Group, archive string, w io.Writer) error {
	fd, err := os.Open(filepath.Join(l.dir, archive))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDownload, err)
	}
	defer func() { _ = fd.Close() }()
	if _, err := io.Copy(w, fd); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDownload, archive, err)
	}
	return nil
}

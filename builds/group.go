// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package builds

import (
	"fmt"
	"strings"

	"github.com/foundriesio/fw-autotest/config"
)

const archiveExtension = "zip"

// Group is a firmware build channel, e.g. Windows/CI, with its own marker and
// version encoding.
type Group struct {
	Name          string
	Path          string
	Encoding      Encoding
	VersionIndex  int
	DeployArchive string
}

func GroupFromConfig(c config.Group) (Group, error) {
	enc, err := ParseEncoding(c.Encoding)
	if err != nil {
		return Group{}, fmt.Errorf("group %s: %w", c.Name, err)
	}
	return Group{
		Name:          c.Name,
		Path:          strings.Trim(c.Path, "/"),
		Encoding:      enc,
		VersionIndex:  c.VersionIndex,
		DeployArchive: c.DeployArchive,
	}, nil
}

func GroupsFromConfig(cfg *config.Config) ([]Group, error) {
	groups := make([]Group, 0, len(cfg.Groups))
	for _, c := range cfg.Groups {
		g, err := GroupFromConfig(c)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// Slug names the group in marker files: "Windows/CI" becomes "Windows_CI".
func (g Group) Slug() string {
	return strings.ReplaceAll(g.Path, "/", "_")
}

// BuildRecord is a build accepted by a fetch cycle.
type BuildRecord struct {
	Group            string
	ArchiveName      string
	RawVersionTokens []string
}

func newBuildRecord(g Group, archive string) *BuildRecord {
	return &BuildRecord{
		Group:            g.Name,
		ArchiveName:      archive,
		RawVersionTokens: VersionTokens(archive, g.Encoding),
	}
}

// FindVersion returns the underscore separated token at index of an archive
// name, extension removed: "CDGo_Windows_CI_1.2.4.zip" at 3 is "1.2.4".
func FindVersion(archive string, index int) (string, error) {
	tokens := strings.Split(trimArchive(archive), "_")
	if index < 0 || index >= len(tokens) {
		return "", fmt.Errorf("%w: %s has no version token %d", ErrParse, archive, index)
	}
	return tokens[index], nil
}

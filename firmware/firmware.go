// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

// Package firmware finds the firmware binaries of a staged build and works out
// the version suffix each one carries in its file name.
package firmware

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/foundriesio/fw-autotest/context"
)

var ErrNotFound = errors.New("firmware binary not resolved")

const Extension = ".bin"

// Category decides which file name tokens form a binary's version suffix.
type Category int

const (
	StandardBoard Category = iota
	CameraBoard
	FpgaBoard
	DeployBoard
)

func (c Category) String() string {
	switch c {
	case CameraBoard:
		return "camera-board"
	case FpgaBoard:
		return "fpga-board"
	case DeployBoard:
		return "deploy-board"
	}
	return "standard-board"
}

// Component is one of the five independently versioned firmware images.
type Component string

const (
	Main         Component = "main"
	Led          Component = "led"
	Camera       Component = "camera"
	Fpga         Component = "fpga"
	PowerMonitor Component = "powerMonitor"
)

var Components = []Component{Main, Led, Camera, Fpga, PowerMonitor}

var prefixes = map[Component]string{
	Main:         "Instr_MainBoard_FW",
	Led:          "Instr_LedBoard_FW",
	Camera:       "Instr_CameraBoard_FX3_FW",
	Fpga:         "Instr_CameraBoard_FPGA_100T",
	PowerMonitor: "Instr_PMBoard_FW",
}

func (c Component) Prefix() string {
	return prefixes[c]
}

// Placeholder is the token a firmware-update template carries for the
// component's binary.
func (c Component) Placeholder() string {
	return c.Prefix() + Extension
}

func (c Component) Category() Category {
	switch c {
	case Camera:
		return CameraBoard
	case Fpga:
		return FpgaBoard
	}
	return StandardBoard
}

// Pattern is the glob locating the component's binary for a build version.
// The FPGA image is not versioned with the rest of the firmware.
func (c Component) Pattern(major, minor, build string) string {
	if c == Fpga {
		return c.Prefix() + "_*" + Extension
	}
	return fmt.Sprintf("%s_%s_%s_%s_*%s", c.Prefix(), major, minor, build, Extension)
}

// FileName rebuilds the binary name from a resolved suffix.
func (c Component) FileName(suffix string) string {
	return c.Prefix() + "_" + suffix + Extension
}

// Resolver looks binaries up in a single directory, normally the deploy one.
type Resolver struct {
	dir string
}

func NewResolver(dir string) *Resolver {
	return &Resolver{dir: dir}
}

// Resolve globs for pattern and returns the version suffix of the one match.
// No match, or more than one, is ErrNotFound.
func (r Resolver) Resolve(ctx context.Context, pattern string, category Category) (string, error) {
	log := context.CtxGetLog(ctx)
	matches, err := doublestar.Glob(os.DirFS(r.dir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return "", fmt.Errorf("unable to glob %s: %w", pattern, err)
	}
	if len(matches) != 1 {
		log.Warn("Firmware binary lookup needs exactly one match", "pattern", pattern, "matches", matches)
		return "", fmt.Errorf("%w: %s matched %d files", ErrNotFound, pattern, len(matches))
	}
	suffix, err := Suffix(filepath.Base(matches[0]), category)
	if err != nil {
		return "", err
	}
	log.Debug("Firmware binary resolved", "pattern", pattern, "file", matches[0], "suffix", suffix)
	return suffix, nil
}

// Suffix extracts the category's version tokens from a binary file name.
func Suffix(name string, category Category) (string, error) {
	if idx := strings.IndexByte(name, '.'); idx >= 0 {
		name = name[:idx]
	}
	tokens := strings.Split(name, "_")

	var first, last int
	switch category {
	case StandardBoard:
		first, last = 3, 8
	case CameraBoard:
		first, last = 4, 9
	case DeployBoard:
		first, last = 3, 7
	case FpgaBoard:
		if len(tokens) < 5 || tokens[1] != "CameraBoard" || tokens[2] != "FPGA" || tokens[3] != "100T" {
			return "", fmt.Errorf("%w: %s is not a CameraBoard FPGA 100T image", ErrNotFound, name)
		}
		first, last = 4, len(tokens)
	default:
		return "", fmt.Errorf("%w: unknown category %d", ErrNotFound, category)
	}
	if len(tokens) < last {
		return "", fmt.Errorf("%w: %s has %d tokens, %s needs %d", ErrNotFound, name, len(tokens), category, last)
	}
	return strings.Join(tokens[first:last], "_"), nil
}

// BinarySet holds the resolved suffix of every component of a build.
type BinarySet map[Component]string

func (s BinarySet) FileName(c Component) string {
	return c.FileName(s[c])
}

// ResolveSet resolves all five components for a build version and fails on
// the first one that does not resolve.
func (r Resolver) ResolveSet(ctx context.Context, major, minor, build string) (BinarySet, error) {
	set := make(BinarySet, len(Components))
	for _, c := range Components {
		suffix, err := r.Resolve(ctx, c.Pattern(major, minor, build), c.Category())
		if err != nil {
			return nil, fmt.Errorf("%s firmware: %w", c, err)
		}
		set[c] = suffix
	}
	return set, nil
}

// StalePatterns matches every firmware binary a previous deploy may have left
// behind.
func StalePatterns() []string {
	patterns := make([]string, 0, len(Components))
	for _, c := range Components {
		patterns = append(patterns, c.Prefix()+"_*"+Extension)
	}
	return patterns
}

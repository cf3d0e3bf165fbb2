// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package builds

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/foundriesio/fw-autotest/storage"
)

var ErrParse = errors.New("malformed build name")

// Encoding tells where the minor and build numbers live in an archive name.
type Encoding int

const (
	// DotIndexed names carry minor and build at dot separated tokens 1 and 2,
	// e.g. "fw_1.2.4.zip".
	DotIndexed Encoding = iota
	// UnderscoreIndexed names carry them at underscore separated tokens 5 and 6.
	UnderscoreIndexed
)

func ParseEncoding(s string) (Encoding, error) {
	switch s {
	case "dot":
		return DotIndexed, nil
	case "underscore":
		return UnderscoreIndexed, nil
	}
	return 0, fmt.Errorf("unknown build name encoding: %s", s)
}

func (e Encoding) String() string {
	if e == UnderscoreIndexed {
		return "underscore"
	}
	return "dot"
}

func (e Encoding) separator() string {
	if e == UnderscoreIndexed {
		return "_"
	}
	return "."
}

func (e Encoding) indexes() (int, int) {
	if e == UnderscoreIndexed {
		return 5, 6
	}
	return 1, 2
}

type Ordering int

const (
	Older Ordering = -1
	Same  Ordering = 0
	Newer Ordering = 1
)

func (o Ordering) String() string {
	switch o {
	case Older:
		return "older"
	case Newer:
		return "newer"
	}
	return "same"
}

// Compare orders candidate against current. An empty current makes any
// candidate newer, an empty candidate is always older. Names that do not
// carry numeric minor and build tokens are an ErrParse.
func Compare(candidate, current string, enc Encoding) (Ordering, error) {
	if current == "" {
		return Newer, nil
	}
	if candidate == "" {
		return Older, nil
	}
	minor1, build1, err := versionKey(candidate, enc)
	if err != nil {
		return Same, err
	}
	minor2, build2, err := versionKey(current, enc)
	if err != nil {
		return Same, err
	}

	switch {
	case minor1 > minor2:
		return Newer, nil
	case minor1 < minor2:
		return Older, nil
	case build1 > build2:
		return Newer, nil
	case build1 < build2:
		return Older, nil
	}
	return Same, nil
}

// VersionTokens splits the bare archive name, extension removed, the way its
// encoding does.
func VersionTokens(name string, enc Encoding) []string {
	return strings.Split(trimArchive(name), enc.separator())
}

func versionKey(name string, enc Encoding) (int, int, error) {
	tokens := VersionTokens(name, enc)
	minorIdx, buildIdx := enc.indexes()
	if len(tokens) <= buildIdx {
		return 0, 0, fmt.Errorf("%w: %s has no %s token %d", ErrParse, name, enc, buildIdx)
	}
	minor, err := strconv.Atoi(tokens[minorIdx])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %s minor token %q is not a number", ErrParse, name, tokens[minorIdx])
	}
	build, err := strconv.Atoi(tokens[buildIdx])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %s build token %q is not a number", ErrParse, name, tokens[buildIdx])
	}
	return minor, build, nil
}

func trimArchive(name string) string {
	name = storage.BareName(name)
	if strings.EqualFold(extension(name), archiveExtension) {
		name = name[:len(name)-len(archiveExtension)-1]
	}
	return name
}

func extension(name string) string {
	if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
		return name[idx+1:]
	}
	return ""
}

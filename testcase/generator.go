// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package testcase

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/foundriesio/fw-autotest/context"
	"github.com/foundriesio/fw-autotest/firmware"
)

var ErrGeneration = errors.New("unable to generate test case")

const Extension = ".tst"

// GeneratedTestCase is a test case file stamped out of a template.
type GeneratedTestCase struct {
	Name     string
	FilePath string
}

type Generator struct {
	templates string
	output    string
	resolver  *firmware.Resolver
}

// NewGenerator reads templates from one directory and writes generated cases
// into another. The resolver is only needed for firmware-update cases.
func NewGenerator(templates, output string, resolver *firmware.Resolver) *Generator {
	return &Generator{templates: templates, output: output, resolver: resolver}
}

// Generate writes <testPrefix><version>.tst with every occurrence of the
// template prefix replaced by the generated case name. An existing file of
// that name is overwritten.
func (g Generator) Generate(ctx context.Context, templatePrefix, testPrefix, version string) (*GeneratedTestCase, error) {
	name := testPrefix + version
	content, err := g.load(templatePrefix)
	if err != nil {
		return nil, err
	}
	content = strings.ReplaceAll(content, templatePrefix, name)
	return g.write(ctx, name, content)
}

// GenerateFirmwareUpdate also substitutes the five firmware binary
// placeholders with the binaries resolved for version. If any binary does not
// resolve no file is written.
func (g Generator) GenerateFirmwareUpdate(ctx context.Context, templatePrefix, testPrefix, version string) (*GeneratedTestCase, error) {
	name := testPrefix + version
	content, err := g.load(templatePrefix)
	if err != nil {
		return nil, err
	}
	content = strings.ReplaceAll(content, templatePrefix, name)

	major, minor, build, err := SplitVersion(version)
	if err != nil {
		return nil, err
	}
	if g.resolver == nil {
		return nil, fmt.Errorf("%w: no firmware resolver configured", ErrGeneration)
	}
	set, err := g.resolver.ResolveSet(ctx, major, minor, build)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrGeneration, name, err)
	}
	for _, c := range firmware.Components {
		content = strings.ReplaceAll(content, c.Placeholder(), set.FileName(c))
	}
	return g.write(ctx, name, content)
}

func (g Generator) load(templatePrefix string) (string, error) {
	path := filepath.Join(g.templates, templatePrefix+Extension)
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: unable to read template %s: %w", ErrGeneration, path, err)
	}
	return string(content), nil
}

func (g Generator) write(ctx context.Context, name, content string) (*GeneratedTestCase, error) {
	if err := os.MkdirAll(g.output, 0o755); err != nil {
		return nil, fmt.Errorf("%w: unable to create %s: %w", ErrGeneration, g.output, err)
	}
	path := filepath.Join(g.output, name+Extension)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("%w: unable to write %s: %w", ErrGeneration, path, err)
	}
	context.CtxGetLog(ctx).Info("Generated test case from template", "name", name, "path", path)
	return &GeneratedTestCase{Name: name, FilePath: path}, nil
}

// SplitVersion splits a dotted "major.minor.build" version.
func SplitVersion(version string) (major, minor, build string, err error) {
	parts := strings.Split(version, ".")
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("%w: version %q is not major.minor.build", ErrGeneration, version)
	}
	return parts[0], parts[1], parts[2], nil
}

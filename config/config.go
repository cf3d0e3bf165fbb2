// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is built once at start-up and handed to every component that needs
// a piece of it.
type Config struct {
	Workspace  string       `yaml:"workspace" toml:"workspace"`
	LogLevel   string       `yaml:"log_level" toml:"log_level"`
	Paths      Paths        `yaml:"paths" toml:"paths"`
	Flags      Flags        `yaml:"flags" toml:"flags"`
	Repository Repository   `yaml:"repository" toml:"repository"`
	Groups     []Group      `yaml:"groups" toml:"groups"`
	Executor   Executor     `yaml:"executor" toml:"executor"`
	Instrument Instrument   `yaml:"instrument" toml:"instrument"`
	Ticket     Ticket       `yaml:"ticket" toml:"ticket"`
	History    History      `yaml:"history" toml:"history"`
	Server     Server       `yaml:"server" toml:"server"`
	Tests      []TestConfig `yaml:"tests" toml:"tests"`
}

// Paths are relative to the workspace unless absolute.
type Paths struct {
	Downloads string `yaml:"downloads" toml:"downloads"`
	AutoTest  string `yaml:"autotest" toml:"autotest"`
	Deploy    string `yaml:"deploy" toml:"deploy"`
	Config    string `yaml:"config" toml:"config"`
	Log       string `yaml:"log" toml:"log"`
	Templates string `yaml:"templates" toml:"templates"`
	Resources string `yaml:"resources" toml:"resources"`
}

type Flags struct {
	DebugMode     bool `yaml:"debug_mode" toml:"debug_mode"`
	TicketPosting bool `yaml:"ticket_posting" toml:"ticket_posting"`
	DeployMode    bool `yaml:"deploy_mode" toml:"deploy_mode"`
}

type Repository struct {
	URL     string        `yaml:"url" toml:"url"`
	Name    string        `yaml:"name" toml:"name"`
	Timeout time.Duration `yaml:"timeout" toml:"timeout"`
}

type Group struct {
	Name          string `yaml:"name" toml:"name"`
	Path          string `yaml:"path" toml:"path"`
	Encoding      string `yaml:"encoding" toml:"encoding"`
	VersionIndex  int    `yaml:"version_index" toml:"version_index"`
	DeployArchive string `yaml:"deploy_archive" toml:"deploy_archive"`
}

type Executor struct {
	Binary       string        `yaml:"binary" toml:"binary"`
	BootDelay    time.Duration `yaml:"boot_delay" toml:"boot_delay"`
	SettleDelay  time.Duration `yaml:"settle_delay" toml:"settle_delay"`
	PollInterval time.Duration `yaml:"poll_interval" toml:"poll_interval"`
}

type Instrument struct {
	Host          string        `yaml:"host" toml:"host"`
	Port          int           `yaml:"port" toml:"port"`
	User          string        `yaml:"user" toml:"user"`
	Password      string        `yaml:"password" toml:"password"`
	KeyFile       string        `yaml:"key_file" toml:"key_file"`
	Timeout       time.Duration `yaml:"timeout" toml:"timeout"`
	LaunchCommand string        `yaml:"launch_command" toml:"launch_command"`
	SwitchCommand string        `yaml:"switch_command" toml:"switch_command"`
}

type Ticket struct {
	Kind         string `yaml:"kind" toml:"kind"`
	URL          string `yaml:"url" toml:"url"`
	TokenURL     string `yaml:"token_url" toml:"token_url"`
	ClientID     string `yaml:"client_id" toml:"client_id"`
	ClientSecret string `yaml:"client_secret" toml:"client_secret"`
	AmqpURL      string `yaml:"amqp_url" toml:"amqp_url"`
	Exchange     string `yaml:"exchange" toml:"exchange"`
}

type History struct {
	DbFile string `yaml:"db_file" toml:"db_file"`
}

type Server struct {
	Port          uint16        `yaml:"port" toml:"port"`
	CacheTTL      time.Duration `yaml:"cache_ttl" toml:"cache_ttl"`
	TriggerRate   float64       `yaml:"trigger_rate" toml:"trigger_rate"`
	FetchInterval time.Duration `yaml:"fetch_interval" toml:"fetch_interval"`
	// RunOnBuild starts the whole catalog once a fetched build is deployed.
	RunOnBuild bool `yaml:"run_on_build" toml:"run_on_build"`
	// No tokens leaves the API open to anyone who can reach the port.
	Tokens []ApiToken `yaml:"tokens" toml:"tokens"`
}

// ApiToken grants scopes to whoever presents a bearer token whose sha256 hex
// digest is Sha256.
type ApiToken struct {
	Name   string `yaml:"name" toml:"name"`
	Sha256 string `yaml:"sha256" toml:"sha256"`
	Scopes string `yaml:"scopes" toml:"scopes"`
}

// TestConfig describes one entry of the test catalog. Kind is one of
// "basic", "scripted" or "firmware-update".
type TestConfig struct {
	Number         int           `yaml:"number" toml:"number"`
	Name           string        `yaml:"name" toml:"name"`
	Kind           string        `yaml:"kind" toml:"kind"`
	Category       string        `yaml:"category" toml:"category"`
	TemplatePrefix string        `yaml:"template" toml:"template"`
	ExecPrefix     string        `yaml:"prefix" toml:"prefix"`
	TicketId       string        `yaml:"ticket" toml:"ticket"`
	Summary        string        `yaml:"summary" toml:"summary"`
	PostDelay      time.Duration `yaml:"post_delay" toml:"post_delay"`
	VersionGroup   string        `yaml:"version_group" toml:"version_group"`
}

const (
	TestKindBasic          = "basic"
	TestKindScripted       = "scripted"
	TestKindFirmwareUpdate = "firmware-update"
)

func Defaults() Config {
	return Config{
		Workspace: ".",
		LogLevel:  "info",
		Paths: Paths{
			Downloads: "auto-test-downloads",
			AutoTest:  "auto-test",
			Deploy:    filepath.Join("auto-test", "deploy"),
			Config:    filepath.Join("auto-test", "deploy", "config"),
			Log:       filepath.Join("auto-test", "deploy", "log"),
			Templates: filepath.Join("1template", "config"),
			Resources: "resources",
		},
		Repository: Repository{
			URL:     "http://10.240.20.40",
			Name:    "ChemiDocGo-FW",
			Timeout: 5 * time.Minute,
		},
		Groups: []Group{
			{Name: "windows", Path: "Windows/CI", Encoding: "dot", VersionIndex: 3},
			{Name: "arm64", Path: "ARM64/CI", Encoding: "dot", VersionIndex: 7},
			{Name: "fpga", Path: "FPGA/CI", Encoding: "underscore", VersionIndex: 5},
		},
		Executor: Executor{
			Binary:       "FwTestApp.exe",
			BootDelay:    60 * time.Second,
			SettleDelay:  5 * time.Second,
			PollInterval: time.Second,
		},
		Instrument: Instrument{
			Port:    22,
			Timeout: 30 * time.Second,
		},
		Ticket: Ticket{Kind: "none"},
		History: History{
			DbFile: "autotest.db",
		},
		Server: Server{
			Port:          8080,
			CacheTTL:      10 * time.Second,
			TriggerRate:   1,
			FetchInterval: 15 * time.Minute,
		},
		Tests: []TestConfig{
			{Number: 1, Name: "Connect", Kind: TestKindBasic, Category: "connect"},
		},
	}
}

// Load reads a yaml or toml config file over the defaults. An empty path
// returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file not found at %s", path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if cfg.Flags.DebugMode {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) Validate() error {
	seen := make(map[string]bool, len(c.Groups))
	for _, g := range c.Groups {
		if g.Name == "" || g.Path == "" {
			return fmt.Errorf("group entries need a name and a path")
		}
		if seen[g.Name] {
			return fmt.Errorf("duplicate group '%s'", g.Name)
		}
		seen[g.Name] = true
		if g.Encoding != "dot" && g.Encoding != "underscore" {
			return fmt.Errorf("group '%s' has unknown encoding '%s'", g.Name, g.Encoding)
		}
	}

	numbers := make(map[int]bool, len(c.Tests))
	for _, t := range c.Tests {
		switch t.Kind {
		case TestKindBasic, TestKindScripted, TestKindFirmwareUpdate:
		default:
			return fmt.Errorf("test %d (%s) has unknown kind '%s'", t.Number, t.Name, t.Kind)
		}
		if numbers[t.Number] {
			return fmt.Errorf("duplicate test number %d", t.Number)
		}
		numbers[t.Number] = true
		if t.Kind != TestKindBasic && (t.TemplatePrefix == "" || t.ExecPrefix == "") {
			return fmt.Errorf("test %d (%s) needs a template and a prefix", t.Number, t.Name)
		}
		if t.VersionGroup != "" && !seen[t.VersionGroup] {
			return fmt.Errorf("test %d (%s) references unknown group '%s'", t.Number, t.Name, t.VersionGroup)
		}
	}

	switch c.Ticket.Kind {
	case "", "none", "http", "amqp":
	default:
		return fmt.Errorf("unknown ticket kind '%s'", c.Ticket.Kind)
	}
	return nil
}

// Path resolves a configured directory against the workspace.
func (c Config) Path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Workspace, p)
}

func (c Config) Group(name string) (Group, bool) {
	for _, g := range c.Groups {
		if g.Name == name {
			return g, true
		}
	}
	return Group{}, false
}

// Package cliconfig provides configuration types and loading for the grpcprobe CLI.
package cliconfig

import (
	"github.com/getmockd/grpcprobe/pkg/example"
	"github.com/getmockd/grpcprobe/pkg/invoke"
)

// CLIConfig represents the complete configuration for the grpcprobe CLI.
// Configuration values can come from multiple sources with the following precedence:
// 1. Command-line flags (highest priority)
// 2. Environment variables
// 3. Local config file (.grpcproberc.yaml in current directory)
// 4. Global config file (~/.config/grpcprobe/config.yaml)
// 5. Default values (lowest priority)
type CLIConfig struct {
	// Schema source
	ProtoDir         string   `yaml:"protoDir,omitempty" json:"protoDir,omitempty"`
	FallbackProtoDir string   `yaml:"fallbackProtoDir" json:"fallbackProtoDir"`
	Include          []string `yaml:"include,omitempty" json:"include,omitempty"`
	Exclude          []string `yaml:"exclude,omitempty" json:"exclude,omitempty"`
	ImportSubdirs    []string `yaml:"importSubdirs,omitempty" json:"importSubdirs,omitempty"`
	Concurrency      int      `yaml:"concurrency,omitempty" json:"concurrency,omitempty"`

	// Invocation targets
	Environments       []invoke.Environment `yaml:"environments,omitempty" json:"environments,omitempty"`
	DefaultEnvironment string               `yaml:"defaultEnvironment" json:"defaultEnvironment"`

	// Example overrides. Entries extend the built-in table unless
	// ReplaceOverrides is set.
	Overrides        []example.Override `yaml:"overrides,omitempty" json:"overrides,omitempty"`
	ReplaceOverrides bool               `yaml:"replaceOverrides,omitempty" json:"replaceOverrides,omitempty"`

	// Logging settings
	LogLevel  string `yaml:"logLevel" json:"logLevel"`
	LogFormat string `yaml:"logFormat" json:"logFormat"`
	LogFile   string `yaml:"logFile,omitempty" json:"logFile,omitempty"`

	// Output settings
	Verbose bool `yaml:"verbose" json:"verbose"`
	JSON    bool `yaml:"json" json:"json"`

	// Schema repository used by "grpcprobe sync"
	Repo RepoConfig `yaml:"repo,omitempty" json:"repo,omitempty"`

	// GitToken is only read from the environment or flags, never from files.
	GitToken string `yaml:"-" json:"-"`

	// ConfigFile is the explicit config path, if any.
	ConfigFile string `yaml:"-" json:"configFile,omitempty"`

	// Source tracks where each value came from (for debugging)
	Sources map[string]string `yaml:"-" json:"-"`

	// SetFields records which top-level keys were present in the loaded
	// file, so explicit false booleans can be told apart from absent ones.
	SetFields map[string]bool `yaml:"-" json:"-"`
}

// RepoConfig locates the git checkout that holds the proto tree.
type RepoConfig struct {
	Dir    string `yaml:"dir,omitempty" json:"dir,omitempty"`
	Remote string `yaml:"remote,omitempty" json:"remote,omitempty"`
	Branch string `yaml:"branch,omitempty" json:"branch,omitempty"`
}

// ConfigSource identifies where a config value originated.
const (
	SourceDefault = "default"
	SourceEnv     = "env"
	SourceGlobal  = "global"
	SourceLocal   = "local"
	SourceFile    = "file"
	SourceFlag    = "flag"
)

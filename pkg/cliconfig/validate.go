package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/getmockd/grpcprobe/pkg/example"
	"github.com/getmockd/grpcprobe/pkg/invoke"
	"github.com/getmockd/grpcprobe/pkg/logging"
	"github.com/getmockd/grpcprobe/pkg/schema"
)

// Validate checks the merged configuration. It returns the first problem found.
func (c *CLIConfig) Validate() error {
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency %d is out of range (must be >= 0)", c.Concurrency)
	}
	if !logging.ValidLevel(c.LogLevel) {
		return fmt.Errorf("logLevel %q is not one of debug, info, warn, error", c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logFormat %q is not one of text, json", c.LogFormat)
	}
	for _, p := range c.Include {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("include pattern %q is invalid", p)
		}
	}
	for _, p := range c.Exclude {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("exclude pattern %q is invalid", p)
		}
	}

	envs, err := c.EnvironmentTable()
	if err != nil {
		return err
	}
	if c.DefaultEnvironment != "" {
		if _, err := envs.Lookup(c.DefaultEnvironment); err != nil {
			return fmt.Errorf("defaultEnvironment %q is not in environments (have %s)",
				c.DefaultEnvironment, strings.Join(envs.Names(), ", "))
		}
	}
	if _, err := c.OverrideTable(); err != nil {
		return err
	}
	return nil
}

// EnvironmentTable returns the configured environments, or the built-in
// table when none are configured.
func (c *CLIConfig) EnvironmentTable() (*invoke.Environments, error) {
	list := c.Environments
	if len(list) == 0 {
		list = invoke.DefaultEnvironments()
	}
	envs, err := invoke.NewEnvironments(list)
	if err != nil {
		return nil, fmt.Errorf("environments: %w", err)
	}
	return envs, nil
}

// OverrideTable returns the built-in overrides followed by the configured
// ones, or only the configured ones when ReplaceOverrides is set.
func (c *CLIConfig) OverrideTable() (*example.Overrides, error) {
	var entries []example.Override
	if !c.ReplaceOverrides {
		entries = append(entries, example.DefaultOverrides()...)
	}
	entries = append(entries, c.Overrides...)
	o, err := example.NewOverrides(entries)
	if err != nil {
		return nil, fmt.Errorf("overrides: %w", err)
	}
	return o, nil
}

// ResolveProtoDir returns the directory to load. A configured directory that
// exists always wins; otherwise the fallback is used when it exists. When
// neither exists the configured path (or the fallback, if nothing was
// configured) is returned so the loader reports it as missing.
func (c *CLIConfig) ResolveProtoDir() string {
	if c.ProtoDir != "" && isDir(c.ProtoDir) {
		return c.ProtoDir
	}
	if c.FallbackProtoDir != "" && isDir(c.FallbackProtoDir) {
		return c.FallbackProtoDir
	}
	if c.ProtoDir == "" && c.Repo.Dir != "" {
		if dir := filepath.Join(c.Repo.Dir, DefaultFallbackProtoDir); isDir(dir) {
			return dir
		}
	}
	if c.ProtoDir != "" {
		return c.ProtoDir
	}
	return c.FallbackProtoDir
}

// LoaderOptions translates the schema settings into loader options.
func (c *CLIConfig) LoaderOptions() []schema.Option {
	var opts []schema.Option
	if len(c.Include) > 0 {
		opts = append(opts, schema.WithInclude(c.Include...))
	}
	if len(c.Exclude) > 0 {
		opts = append(opts, schema.WithExclude(c.Exclude...))
	}
	if len(c.ImportSubdirs) > 0 {
		opts = append(opts, schema.WithImportSubdirs(c.ImportSubdirs...))
	}
	if c.Concurrency > 0 {
		opts = append(opts, schema.WithConcurrency(c.Concurrency))
	}
	return opts
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

package cliconfig

import "strconv"

// DefaultFallbackProtoDir is searched when the configured proto directory
// does not exist.
const DefaultFallbackProtoDir = "proto"

// DefaultEnvironmentName is the environment used when a call names none.
const DefaultEnvironmentName = "local"

// DefaultLogLevel is quiet enough that only degraded loads are reported.
const DefaultLogLevel = "warn"

// DefaultLogFormat is the default stderr log format.
const DefaultLogFormat = "text"

// DefaultRemote and DefaultBranch are pulled by "grpcprobe sync".
const (
	DefaultRemote = "origin"
	DefaultBranch = "main"
)

func itoa(i int) string {
	return strconv.Itoa(i)
}

// NewDefault creates a new CLIConfig with default values.
func NewDefault() *CLIConfig {
	cfg := &CLIConfig{
		FallbackProtoDir:   DefaultFallbackProtoDir,
		DefaultEnvironment: DefaultEnvironmentName,
		LogLevel:           DefaultLogLevel,
		LogFormat:          DefaultLogFormat,
		Repo: RepoConfig{
			Remote: DefaultRemote,
			Branch: DefaultBranch,
		},
		Sources: make(map[string]string),
	}

	// Mark all as default source
	cfg.Sources["fallbackProtoDir"] = SourceDefault
	cfg.Sources["defaultEnvironment"] = SourceDefault
	cfg.Sources["environments"] = SourceDefault
	cfg.Sources["overrides"] = SourceDefault
	cfg.Sources["logLevel"] = SourceDefault
	cfg.Sources["logFormat"] = SourceDefault
	cfg.Sources["repo.remote"] = SourceDefault
	cfg.Sources["repo.branch"] = SourceDefault

	return cfg
}

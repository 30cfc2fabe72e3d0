package cliconfig

import (
	"os"
	"strconv"
	"strings"
)

// Environment variables read by LoadEnvConfig.
const (
	EnvConfig    = "GRPCPROBE_CONFIG"
	EnvProtoDir  = "GRPCPROBE_PROTO_DIR"
	EnvLogLevel  = "GRPCPROBE_LOG_LEVEL"
	EnvLogFormat = "GRPCPROBE_LOG_FORMAT"
	EnvJSON      = "GRPCPROBE_JSON"
	EnvVerbose   = "GRPCPROBE_VERBOSE"
	EnvGitToken  = "GRPCPROBE_GIT_TOKEN"
)

// LoadEnvConfig applies GRPCPROBE_* variables on top of cfg.
func LoadEnvConfig(cfg *CLIConfig) {
	if cfg.Sources == nil {
		cfg.Sources = make(map[string]string)
	}

	if v := os.Getenv(EnvProtoDir); v != "" {
		cfg.ProtoDir = v
		cfg.Sources["protoDir"] = SourceEnv
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
		cfg.Sources["logLevel"] = SourceEnv
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		cfg.LogFormat = v
		cfg.Sources["logFormat"] = SourceEnv
	}
	if b, ok := envBool(EnvJSON); ok {
		cfg.JSON = b
		cfg.Sources["json"] = SourceEnv
	}
	if b, ok := envBool(EnvVerbose); ok {
		cfg.Verbose = b
		cfg.Sources["verbose"] = SourceEnv
	}
	if v := os.Getenv(EnvGitToken); v != "" {
		cfg.GitToken = v
		cfg.Sources["gitToken"] = SourceEnv
	}
}

// envBool parses a boolean variable. Unset or unparsable values report ok=false.
func envBool(name string) (value, ok bool) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

package cliconfig

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	// GlobalConfigDir is the directory for global config
	GlobalConfigDir = "grpcprobe"
)

// LocalConfigFileNames are the names to search for local config (in order).
var LocalConfigFileNames = []string{".grpcproberc.yaml", ".grpcproberc.yml"}

// GlobalConfigFileNames are the names to search for global config (in order).
var GlobalConfigFileNames = []string{"config.yaml", "config.yml"}

// FindLocalConfig searches for .grpcproberc.yaml or .grpcproberc.yml in the current directory.
func FindLocalConfig() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for _, name := range LocalConfigFileNames {
		path := filepath.Join(cwd, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", nil
}

// FindGlobalConfig returns the path to the global config file.
// Returns empty string if not found.
func FindGlobalConfig() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		//nolint:nilerr // intentionally returning empty string when no config dir is available
		return "", nil
	}
	for _, name := range GlobalConfigFileNames {
		path := filepath.Join(configDir, GlobalConfigDir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", nil
}

// GetConfigSearchPaths returns every path LoadAll looks at, global first.
func GetConfigSearchPaths() []string {
	var paths []string
	if configDir, err := os.UserConfigDir(); err == nil {
		for _, name := range GlobalConfigFileNames {
			paths = append(paths, filepath.Join(configDir, GlobalConfigDir, name))
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		for _, name := range LocalConfigFileNames {
			paths = append(paths, filepath.Join(cwd, name))
		}
	}
	return paths
}

// LoadConfigFile loads a CLIConfig from a YAML file. Unknown keys are errors.
func LoadConfigFile(path string) (*CLIConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseConfig(path, data)
}

func parseConfig(path string, data []byte) (*CLIConfig, error) {
	var cfg CLIConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, newConfigError(path, err)
	}

	// A second pass over the raw node records which keys were present.
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, newConfigError(path, err)
	}
	cfg.SetFields = topLevelKeys(&root)
	cfg.Sources = make(map[string]string)
	return &cfg, nil
}

func topLevelKeys(root *yaml.Node) map[string]bool {
	keys := make(map[string]bool)
	doc := root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		return keys
	}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key := doc.Content[i].Value
		keys[key] = true
		if key == "repo" && doc.Content[i+1].Kind == yaml.MappingNode {
			sub := doc.Content[i+1]
			for j := 0; j+1 < len(sub.Content); j += 2 {
				keys["repo."+sub.Content[j].Value] = true
			}
		}
	}
	return keys
}

// ConfigError represents a configuration file error with location info.
type ConfigError struct {
	Path    string
	Line    int
	Column  int
	Message string
}

func (e *ConfigError) Error() string {
	if e.Line > 0 {
		return e.Path + " (line " + itoa(e.Line) + ", column " + itoa(e.Column) + "): " + e.Message
	}
	return e.Path + ": " + e.Message
}

var yamlLine = regexp.MustCompile(`line (\d+)(?::(\d+))?: `)

// newConfigError lifts the line number yaml.v3 embeds in its messages into
// ConfigError fields.
func newConfigError(path string, err error) *ConfigError {
	msg := err.Error()
	ce := &ConfigError{Path: path, Message: msg}
	var te *yaml.TypeError
	if errors.As(err, &te) && len(te.Errors) > 0 {
		msg = te.Errors[0]
	}
	if m := yamlLine.FindStringSubmatchIndex(msg); m != nil {
		ce.Line, _ = strconv.Atoi(msg[m[2]:m[3]])
		ce.Column = 1
		if m[4] >= 0 {
			ce.Column, _ = strconv.Atoi(msg[m[4]:m[5]])
		}
		ce.Message = msg[m[1]:]
	}
	return ce
}

// LoadAll loads configuration from all sources and merges them.
// Precedence: flags > env > local config > global config > defaults.
// When explicitPath (or GRPCPROBE_CONFIG) is set, only that file is read and
// it must exist.
func LoadAll(explicitPath string) (*CLIConfig, error) {
	// Start with defaults
	cfg := NewDefault()

	if explicitPath == "" {
		explicitPath = os.Getenv(EnvConfig)
	}
	if explicitPath != "" {
		fileCfg, err := LoadConfigFile(explicitPath)
		if err != nil {
			return nil, err
		}
		MergeConfig(cfg, fileCfg, SourceFile)
		cfg.ConfigFile = explicitPath
		LoadEnvConfig(cfg)
		return cfg, nil
	}

	// Load global config
	if globalPath, err := FindGlobalConfig(); err == nil && globalPath != "" {
		globalCfg, err := LoadConfigFile(globalPath)
		if err != nil {
			return nil, err
		}
		MergeConfig(cfg, globalCfg, SourceGlobal)
	}

	// Load local config
	if localPath, err := FindLocalConfig(); err == nil && localPath != "" {
		localCfg, err := LoadConfigFile(localPath)
		if err != nil {
			return nil, err
		}
		MergeConfig(cfg, localCfg, SourceLocal)
		cfg.ConfigFile = localPath
	}

	// Load environment variables
	LoadEnvConfig(cfg)

	return cfg, nil
}

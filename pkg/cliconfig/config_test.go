package cliconfig

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/grpcprobe/pkg/example"
	"github.com/getmockd/grpcprobe/pkg/invoke"
)

func TestCLIConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  CLIConfig
		wantErr string
	}{
		{
			name:    "valid defaults",
			config:  *NewDefault(),
			wantErr: "",
		},
		{
			name: "valid custom environments",
			config: CLIConfig{
				Environments: []invoke.Environment{
					{Name: "QA", Address: "qa.internal:443"},
					{Name: "PROD", Address: "prod.internal:443"},
				},
				DefaultEnvironment: "qa",
				LogLevel:           "DEBUG",
				LogFormat:          "json",
				Concurrency:        4,
			},
			wantErr: "",
		},
		{
			name:    "concurrency negative",
			config:  CLIConfig{Concurrency: -1},
			wantErr: "concurrency -1 is out of range",
		},
		{
			name:    "unknown log level",
			config:  CLIConfig{LogLevel: "loud"},
			wantErr: `logLevel "loud"`,
		},
		{
			name:    "unknown log format",
			config:  CLIConfig{LogFormat: "xml"},
			wantErr: `logFormat "xml"`,
		},
		{
			name:    "bad include pattern",
			config:  CLIConfig{Include: []string{"[proto"}},
			wantErr: `include pattern "[proto"`,
		},
		{
			name: "environment without address",
			config: CLIConfig{
				Environments: []invoke.Environment{{Name: "qa"}},
			},
			wantErr: `environment "qa" has no address`,
		},
		{
			name: "duplicate environment names",
			config: CLIConfig{
				Environments: []invoke.Environment{
					{Name: "qa", Address: "a:1"},
					{Name: "QA", Address: "b:1"},
				},
			},
			wantErr: "defined twice",
		},
		{
			name:    "default environment missing",
			config:  CLIConfig{DefaultEnvironment: "staging"},
			wantErr: `defaultEnvironment "staging" is not in environments (have local)`,
		},
		{
			name: "override with unknown kind",
			config: CLIConfig{
				Overrides: []example.Override{{Field: "id", Kind: "decimal", Value: 1}},
			},
			wantErr: "unknown kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("expected error containing %q, got nil", tt.wantErr)
				} else if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("expected error containing %q, got %q", tt.wantErr, err.Error())
				}
			}
		})
	}
}

func TestMergeConfig_BasicFields(t *testing.T) {
	t.Run("merges non-zero values", func(t *testing.T) {
		target := NewDefault()
		source := &CLIConfig{
			ProtoDir:  "/srv/protos",
			LogLevel:  "debug",
			SetFields: map[string]bool{"protoDir": true, "logLevel": true},
		}

		MergeConfig(target, source, SourceLocal)

		if target.ProtoDir != "/srv/protos" {
			t.Errorf("expected protoDir /srv/protos, got %q", target.ProtoDir)
		}
		if target.LogLevel != "debug" {
			t.Errorf("expected debug log level, got %q", target.LogLevel)
		}
		if target.Sources["protoDir"] != SourceLocal {
			t.Errorf("expected source 'local', got %q", target.Sources["protoDir"])
		}
	})

	t.Run("does not overwrite with zero values", func(t *testing.T) {
		target := NewDefault()
		source := &CLIConfig{
			FallbackProtoDir: "", // zero value should not overwrite
		}

		MergeConfig(target, source, SourceLocal)

		if target.FallbackProtoDir != DefaultFallbackProtoDir {
			t.Errorf("expected fallback %q, got %q", DefaultFallbackProtoDir, target.FallbackProtoDir)
		}
	})

	t.Run("handles boolean false with SetFields", func(t *testing.T) {
		target := NewDefault()
		target.Verbose = true

		source := &CLIConfig{
			Verbose:   false,
			SetFields: map[string]bool{"verbose": true},
		}

		MergeConfig(target, source, SourceLocal)

		if target.Verbose != false {
			t.Error("expected verbose to be false after merge")
		}
	})

	t.Run("does not merge boolean false without SetFields", func(t *testing.T) {
		target := NewDefault()
		target.Verbose = true

		source := &CLIConfig{
			Verbose: false,
		}

		MergeConfig(target, source, SourceLocal)

		if target.Verbose != true {
			t.Error("expected verbose to remain true without SetFields")
		}
	})

	t.Run("environment table replaces wholesale", func(t *testing.T) {
		target := NewDefault()
		target.Environments = []invoke.Environment{{Name: "a", Address: "a:1"}, {Name: "b", Address: "b:1"}}

		MergeConfig(target, &CLIConfig{
			Environments: []invoke.Environment{{Name: "c", Address: "c:1"}},
		}, SourceGlobal)

		require.Len(t, target.Environments, 1)
		assert.Equal(t, "c", target.Environments[0].Name)
		assert.Equal(t, SourceGlobal, target.Sources["environments"])
	})

	t.Run("nil source is no-op", func(t *testing.T) {
		target := NewDefault()
		original := target.LogLevel

		MergeConfig(target, nil, SourceLocal)

		if target.LogLevel != original {
			t.Errorf("expected log level unchanged, got %q", target.LogLevel)
		}
	})
}

func writeConfig(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "cfg.yaml", `
protoDir: ./protos
exclude:
  - "vendor/**"
json: false
environments:
  - name: QA
    address: qa.internal:443
    metadata:
      - key: x-team
        value: catalog
      - key: x-debug
        value: "1"
        enabled: false
overrides:
  - field: store_id
    kind: string
    value: store-1
repo:
  dir: /src/catalog
`)

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, "./protos", cfg.ProtoDir)
	assert.Equal(t, []string{"vendor/**"}, cfg.Exclude)
	require.Len(t, cfg.Environments, 1)
	env := cfg.Environments[0]
	assert.Equal(t, "qa.internal:443", env.Address)
	require.Len(t, env.Metadata, 2)
	assert.True(t, env.Metadata[0].IsEnabled())
	assert.False(t, env.Metadata[1].IsEnabled())
	assert.Equal(t, []example.Override{{Field: "store_id", Kind: "string", Value: "store-1"}}, cfg.Overrides)
	assert.Equal(t, "/src/catalog", cfg.Repo.Dir)

	assert.True(t, cfg.SetFields["json"])
	assert.True(t, cfg.SetFields["repo.dir"])
	assert.False(t, cfg.SetFields["verbose"])
}

func TestLoadConfigFile_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("unknown key", func(t *testing.T) {
		path := writeConfig(t, dir, "unknown.yaml", "protoDir: x\nport: 4280\n")
		_, err := LoadConfigFile(path)

		var ce *ConfigError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, 2, ce.Line)
		assert.Contains(t, ce.Message, "port")
		assert.Contains(t, ce.Error(), "(line 2, column 1)")
	})

	t.Run("syntax error", func(t *testing.T) {
		path := writeConfig(t, dir, "broken.yaml", "protoDir: x\nexclude: [a\n")
		_, err := LoadConfigFile(path)

		var ce *ConfigError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, path, ce.Path)
		assert.Positive(t, ce.Line)
	})

	t.Run("empty file", func(t *testing.T) {
		path := writeConfig(t, dir, "empty.yaml", "")
		cfg, err := LoadConfigFile(path)
		require.NoError(t, err)
		assert.Empty(t, cfg.SetFields)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfigFile(filepath.Join(dir, "nope.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestLoadAll_ExplicitPathAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "grpcprobe.yaml", "protoDir: from-file\nlogLevel: info\nverbose: true\n")

	t.Setenv(EnvProtoDir, "from-env")
	t.Setenv(EnvVerbose, "false")
	t.Setenv(EnvGitToken, "s3cret")

	cfg, err := LoadAll(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.ProtoDir)
	assert.Equal(t, SourceEnv, cfg.Sources["protoDir"])
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, SourceFile, cfg.Sources["logLevel"])
	assert.False(t, cfg.Verbose)
	assert.Equal(t, "s3cret", cfg.GitToken)
	assert.Equal(t, path, cfg.ConfigFile)
}

func TestLoadAll_ConfigEnvVar(t *testing.T) {
	t.Setenv(EnvConfig, filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := LoadAll("")
	assert.Error(t, err)
}

func TestLoadAll_LocalOverGlobal(t *testing.T) {
	home := t.TempDir()
	work := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv(EnvConfig, "")
	require.NoError(t, os.MkdirAll(filepath.Join(home, GlobalConfigDir), 0o755))
	writeConfig(t, filepath.Join(home, GlobalConfigDir), "config.yaml", "logLevel: error\nlogFormat: json\n")
	writeConfig(t, work, ".grpcproberc.yaml", "logLevel: debug\n")
	t.Chdir(work)

	cfg, err := LoadAll("")
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, SourceLocal, cfg.Sources["logLevel"])
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, SourceGlobal, cfg.Sources["logFormat"])
}

func TestResolveProtoDir(t *testing.T) {
	configured := t.TempDir()
	fallback := t.TempDir()
	missing := filepath.Join(configured, "does-not-exist")

	tests := []struct {
		name     string
		protoDir string
		fallback string
		want     string
	}{
		{"configured wins", configured, fallback, configured},
		{"fallback when configured missing", missing, fallback, fallback},
		{"configured reported when both missing", missing, missing + "-2", missing},
		{"fallback when nothing configured", "", fallback, fallback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &CLIConfig{ProtoDir: tt.protoDir, FallbackProtoDir: tt.fallback}
			assert.Equal(t, tt.want, cfg.ResolveProtoDir())
		})
	}
}

func TestOverrideTable(t *testing.T) {
	extra := []example.Override{{Field: "store_id", Kind: "string", Value: "s-1"}}

	cfg := &CLIConfig{Overrides: extra}
	o, err := cfg.OverrideTable()
	require.NoError(t, err)
	assert.Equal(t, len(example.DefaultOverrides())+1, o.Len())

	cfg.ReplaceOverrides = true
	o, err = cfg.OverrideTable()
	require.NoError(t, err)
	assert.Equal(t, extra, o.Entries())
}

func TestLoaderOptions(t *testing.T) {
	assert.Empty(t, NewDefault().LoaderOptions())

	cfg := &CLIConfig{Include: []string{"**/*.proto"}, Exclude: []string{"x/**"}, Concurrency: 2}
	assert.Len(t, cfg.LoaderOptions(), 3)
}

package cliconfig

// MergeConfig merges source config into target, updating sources tracking.
// Only non-zero values from source are applied.
func MergeConfig(target, source *CLIConfig, sourceType string) {
	if source == nil {
		return
	}
	if target.Sources == nil {
		target.Sources = make(map[string]string)
	}

	if source.ProtoDir != "" {
		target.ProtoDir = source.ProtoDir
		target.Sources["protoDir"] = sourceType
	}
	if source.FallbackProtoDir != "" {
		target.FallbackProtoDir = source.FallbackProtoDir
		target.Sources["fallbackProtoDir"] = sourceType
	}
	if len(source.Include) > 0 {
		target.Include = source.Include
		target.Sources["include"] = sourceType
	}
	if len(source.Exclude) > 0 {
		target.Exclude = source.Exclude
		target.Sources["exclude"] = sourceType
	}
	if len(source.ImportSubdirs) > 0 {
		target.ImportSubdirs = source.ImportSubdirs
		target.Sources["importSubdirs"] = sourceType
	}
	if source.Concurrency != 0 {
		target.Concurrency = source.Concurrency
		target.Sources["concurrency"] = sourceType
	}
	// Tables replace wholesale; merging entry by entry would make it
	// impossible to remove an environment defined globally.
	if len(source.Environments) > 0 {
		target.Environments = source.Environments
		target.Sources["environments"] = sourceType
	}
	if source.DefaultEnvironment != "" {
		target.DefaultEnvironment = source.DefaultEnvironment
		target.Sources["defaultEnvironment"] = sourceType
	}
	if len(source.Overrides) > 0 {
		target.Overrides = source.Overrides
		target.Sources["overrides"] = sourceType
	}
	if boolIsSet(source, "replaceOverrides") {
		target.ReplaceOverrides = source.ReplaceOverrides
		target.Sources["replaceOverrides"] = sourceType
	}
	if source.LogLevel != "" {
		target.LogLevel = source.LogLevel
		target.Sources["logLevel"] = sourceType
	}
	if source.LogFormat != "" {
		target.LogFormat = source.LogFormat
		target.Sources["logFormat"] = sourceType
	}
	if source.LogFile != "" {
		target.LogFile = source.LogFile
		target.Sources["logFile"] = sourceType
	}
	if source.Repo.Dir != "" {
		target.Repo.Dir = source.Repo.Dir
		target.Sources["repo.dir"] = sourceType
	}
	if source.Repo.Remote != "" {
		target.Repo.Remote = source.Repo.Remote
		target.Sources["repo.remote"] = sourceType
	}
	if source.Repo.Branch != "" {
		target.Repo.Branch = source.Repo.Branch
		target.Sources["repo.branch"] = sourceType
	}
	if source.GitToken != "" {
		target.GitToken = source.GitToken
		target.Sources["gitToken"] = sourceType
	}
	// For booleans, checking `if source.X` cannot detect an explicit false.
	// We use SetFields (populated during file loading) to know whether a
	// boolean was explicitly present in the source. If SetFields is nil
	// (e.g., config built programmatically), fall back to only merging
	// true values.
	if boolIsSet(source, "verbose") {
		target.Verbose = source.Verbose
		target.Sources["verbose"] = sourceType
	}
	if boolIsSet(source, "json") {
		target.JSON = source.JSON
		target.Sources["json"] = sourceType
	}
}

// boolIsSet reports whether a boolean field identified by its YAML key was
// explicitly set in the source config. When SetFields is available (file-loaded
// configs), it checks for the key's presence. Otherwise it falls back to
// treating true as "set".
func boolIsSet(cfg *CLIConfig, yamlKey string) bool {
	if cfg.SetFields != nil {
		return cfg.SetFields[yamlKey]
	}
	switch yamlKey {
	case "replaceOverrides":
		return cfg.ReplaceOverrides
	case "verbose":
		return cfg.Verbose
	case "json":
		return cfg.JSON
	}
	return false
}

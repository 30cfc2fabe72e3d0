package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/getmockd/grpcprobe/pkg/cliconfig"
)

var (
	// Persistent flags available to all subcommands
	configPath string
	protoDir   string
	jsonOutput bool
	logLevel   string
	logFormat  string

	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "grpcprobe",
	Short: "grpcprobe explores and calls gRPC methods from a directory of .proto files",
	Long: `grpcprobe loads every .proto file under a directory, lists the methods it
finds, synthesizes example requests and performs unary calls against a
configured environment.

Configuration can be provided via flags, environment variables (GRPCPROBE_*),
a local .grpcproberc.yaml or ~/.config/grpcprobe/config.yaml.`,
	SilenceUsage:      true,
	SilenceErrors:     true, // We handle errors in Main()
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) {
		if current != nil {
			current.close()
		}
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default: .grpcproberc.yaml, then the global config)")
	pf.StringVar(&protoDir, "proto-dir", "", "Directory holding the .proto tree")
	pf.BoolVar(&jsonOutput, "json", false, "Output command results in JSON format")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&logFormat, "log-format", "", "Log format: text, json")
}

// setup loads configuration before any subcommand runs. The schema itself is
// loaded lazily by the commands that need it.
func setup(cmd *cobra.Command, _ []string) error {
	cfg, err := cliconfig.LoadAll(configPath)
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	jsonOutput = cfg.JSON

	a, err := newApp(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	current = a
	return nil
}

// applyFlags layers explicitly set persistent flags over cfg.
func applyFlags(cmd *cobra.Command, cfg *cliconfig.CLIConfig) {
	flagCfg := &cliconfig.CLIConfig{SetFields: map[string]bool{}}
	flags := cmd.Flags()
	if flags.Changed("proto-dir") {
		flagCfg.ProtoDir = protoDir
	}
	if flags.Changed("log-level") {
		flagCfg.LogLevel = logLevel
	}
	if flags.Changed("log-format") {
		flagCfg.LogFormat = logFormat
	}
	if flags.Changed("json") {
		flagCfg.JSON = jsonOutput
		flagCfg.SetFields["json"] = true
	}
	cliconfig.MergeConfig(cfg, flagCfg, cliconfig.SourceFlag)
}

// Main runs the command line and returns the process exit code.
func Main() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return run(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printError(stderr, err)
		return exitCode(err)
	}
	return 0
}

// exitCode maps errors to process exit codes. A reported fault was already
// printed in full by the command.
func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/getmockd/grpcprobe/pkg/cli/internal/output"
	"github.com/getmockd/grpcprobe/pkg/cliconfig"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show effective configuration and where each value came from",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := current.cfg
		protoRoot := cfg.ResolveProtoDir()

		if jsonOutput {
			return output.JSON(cmd.OutOrStdout(), map[string]any{
				"config":       cfg,
				"sources":      cfg.Sources,
				"protoRoot":    protoRoot,
				"searchPaths":  cliconfig.GetConfigSearchPaths(),
				"gitTokenSet":  cfg.GitToken != "",
				"explicitFile": cfg.ConfigFile,
			})
		}

		w := cmd.OutOrStdout()
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		if cfg.ConfigFile != "" {
			fmt.Fprintf(w, "# Config file: %s\n", cfg.ConfigFile)
		} else {
			fmt.Fprintln(w, "# No config file found; searched:")
			for _, p := range cliconfig.GetConfigSearchPaths() {
				fmt.Fprintf(w, "#   %s\n", p)
			}
		}
		fmt.Fprintf(w, "# Proto root in use: %s\n", protoRoot)
		fmt.Fprintln(w)
		_, _ = w.Write(data)
		fmt.Fprintln(w)
		printSources(w, cfg.Sources)
		return nil
	},
}

func printSources(w io.Writer, sources map[string]string) {
	keys := make([]string, 0, len(sources))
	for k := range sources {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintln(w, "# Sources:")
	tw := output.Table(w)
	for _, k := range keys {
		fmt.Fprintf(tw, "#   %s\t%s\n", k, sources[k])
	}
	_ = tw.Flush()
}

func init() {
	rootCmd.AddCommand(configCmd)
}

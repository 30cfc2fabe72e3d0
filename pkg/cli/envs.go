package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/getmockd/grpcprobe/pkg/cli/internal/output"
)

var envsCmd = &cobra.Command{
	Use:     "envs",
	Aliases: []string{"environments"},
	Short:   "List the environments calls can target",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		envs, err := current.cfg.EnvironmentTable()
		if err != nil {
			return err
		}
		list := envs.List()
		def := current.cfg.DefaultEnvironment

		return printResult(cmd, map[string]any{
			"default":      def,
			"environments": list,
		}, func(w io.Writer) {
			tw := output.Table(w)
			fmt.Fprintln(tw, "NAME\tADDRESS\tTLS\tMETADATA")
			for _, env := range list {
				name := env.Name
				if strings.EqualFold(name, def) {
					name += " (default)"
				}
				tls := "yes"
				switch {
				case env.Plaintext:
					tls = "no"
				case env.TLS != nil && env.TLS.CertFile != "":
					tls = "mtls"
				case env.TLS != nil && env.TLS.InsecureSkipVerify:
					tls = "unverified"
				}
				var keys []string
				for _, e := range env.Metadata {
					if e.IsEnabled() && e.Key != "" {
						keys = append(keys, e.Key)
					}
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", name, env.Address, tls, strings.Join(keys, ","))
			}
			_ = tw.Flush()
		})
	},
}

var overridesCmd = &cobra.Command{
	Use:   "overrides",
	Short: "Show the example override table",
	Long: `Show the field values used instead of zero values in synthesized examples.

The built-in entries can be extended with 'overrides' in the config file, or
replaced entirely with 'replaceOverrides: true'.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		table, err := current.cfg.OverrideTable()
		if err != nil {
			return err
		}
		entries := table.Entries()

		return printResult(cmd, entries, func(w io.Writer) {
			tw := output.Table(w)
			fmt.Fprintln(tw, "FIELD\tKIND\tVALUE")
			for _, e := range entries {
				kind := e.Kind
				if kind == "" {
					kind = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%v\n", e.Field, kind, e.Value)
			}
			_ = tw.Flush()
		})
	},
}

func init() {
	rootCmd.AddCommand(envsCmd)
	rootCmd.AddCommand(overridesCmd)
}

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion <shell>",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts.

Supported shells: bash, zsh, fish, powershell

Method, type and environment names are completed from the proto tree and the
configuration.`,
	Example: `  # Bash (add to ~/.bashrc or /etc/bash_completion.d/)
  grpcprobe completion bash > /etc/bash_completion.d/grpcprobe

  # Zsh (add to fpath)
  grpcprobe completion zsh > "${fpath[1]}/_grpcprobe"

  # Fish
  grpcprobe completion fish > ~/.config/fish/completions/grpcprobe.fish`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	// Completion scripts must work without a valid config.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletionV2(w, true)
		case "zsh":
			return rootCmd.GenZshCompletion(w)
		case "fish":
			return rootCmd.GenFishCompletion(w, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(w)
		default:
			return fmt.Errorf("unknown shell: %s\n\nSupported shells: bash, zsh, fish, powershell", args[0])
		}
	},
}

// completeMethods offers catalog IDs for the first argument.
func completeMethods(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	if err := setup(cmd, args); err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	defer current.close()

	_, cat, err := current.load(cmd.Context())
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	var out []string
	for _, m := range cat.List() {
		if strings.HasPrefix(m.ID, toComplete) || strings.HasPrefix(m.FullName, toComplete) {
			out = append(out, m.ID+"\t"+newMethodInfo(m).status())
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

// completeTypes offers message names, then method IDs.
func completeTypes(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	if err := setup(cmd, args); err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	defer current.close()

	res, cat, err := current.load(cmd.Context())
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	var out []string
	for _, name := range res.Tree.TypeNames() {
		if strings.HasPrefix(name, toComplete) {
			out = append(out, name)
		}
	}
	for _, m := range cat.List() {
		if strings.HasPrefix(m.ID, toComplete) {
			out = append(out, m.ID)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func completeEnvironments(cmd *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if err := setup(cmd, args); err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	defer current.close()

	envs, err := current.cfg.EnvironmentTable()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	var out []string
	for _, env := range envs.List() {
		out = append(out, env.Name+"\t"+env.Address)
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func init() {
	rootCmd.AddCommand(completionCmd)

	callCmd.ValidArgsFunction = completeMethods
	methodCmd.ValidArgsFunction = completeMethods
	exampleCmd.ValidArgsFunction = completeTypes
	describeCmd.ValidArgsFunction = completeTypes
	_ = callCmd.RegisterFlagCompletionFunc("env", completeEnvironments)
}

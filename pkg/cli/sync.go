package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/getmockd/grpcprobe/pkg/protosync"
)

var (
	syncToken string
	syncForce bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull the schema repository and reload the proto tree",
	Long: `Pull the configured branch of the schema repository (repo.dir in the config
file), then load the proto tree again and report what it contains.

The token is read from --token or GRPCPROBE_GIT_TOKEN and is only used for
the transfer.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := current.cfg
		if cfg.Repo.Dir == "" {
			return ErrNoRepo
		}
		token := cfg.GitToken
		if cmd.Flags().Changed("token") {
			token = syncToken
		}

		syncer := protosync.New(cfg.Repo.Dir,
			protosync.WithRemote(cfg.Repo.Remote),
			protosync.WithBranch(cfg.Repo.Branch),
			protosync.WithForce(syncForce),
			protosync.WithLogger(current.log),
		)
		pulled, err := syncer.Pull(cmd.Context(), token)
		if err != nil {
			return err
		}

		res, cat, err := current.reload(cmd.Context())
		if err != nil {
			return fmt.Errorf("pulled %s but the proto tree did not load: %w", short(pulled.Head), err)
		}

		return printResult(cmd, map[string]any{
			"sync":     pulled,
			"root":     res.Root,
			"files":    len(res.Files),
			"failures": len(res.Failures),
			"methods":  cat.Len(),
		}, func(w io.Writer) {
			if pulled.Updated {
				fmt.Fprintf(w, "Updated %s: %s -> %s\n", pulled.Dir, short(pulled.Before), short(pulled.Head))
			} else {
				fmt.Fprintf(w, "%s is already up to date (%s)\n", pulled.Dir, short(pulled.Head))
			}
			fmt.Fprintf(w, "Loaded %d methods from %d files in %s\n", cat.Len(), len(res.Files), res.Root)
		})
	},
}

func short(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().StringVar(&syncToken, "token", "", "Access token for the remote (default $GRPCPROBE_GIT_TOKEN)")
	syncCmd.Flags().BoolVar(&syncForce, "force", false, "Move the local branch even if the remote history diverged")
}

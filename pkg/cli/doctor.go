package cli

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/getmockd/grpcprobe/pkg/cliconfig"
	"github.com/getmockd/grpcprobe/pkg/invoke"
	"github.com/getmockd/grpcprobe/pkg/protosync"
)

var (
	doctorOffline bool
	doctorTimeout time.Duration
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose common setup issues and validate configuration",
	Long: `Check the configuration, the proto tree, the schema repository and whether
each environment accepts TCP connections.`,
	Example: `  # Run all checks
  grpcprobe doctor

  # Skip the network checks
  grpcprobe doctor --offline`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorOffline, "offline", false, "Skip environment reachability checks")
	doctorCmd.Flags().DurationVar(&doctorTimeout, "timeout", 2*time.Second, "Dial timeout per environment")
}

// doctorCheck holds the result of a single doctor check.
type doctorCheck struct {
	Name   string `json:"name"`
	Status string `json:"status"` // "ok", "fail", "info"
	Detail string `json:"detail"`
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg := current.cfg

	allPassed := true
	var checks []doctorCheck
	add := func(name, status, detail string) {
		if status == "fail" {
			allPassed = false
		}
		checks = append(checks, doctorCheck{Name: name, Status: status, Detail: detail})
	}

	// Check 1: config files in the search path
	if cfg.ConfigFile != "" {
		add("config_file", "ok", cfg.ConfigFile)
	} else {
		add("config_file", "info", "none found; searched "+strings.Join(cliconfig.GetConfigSearchPaths(), ", "))
	}

	// Check 2: proto root
	root := cfg.ResolveProtoDir()
	if info, err := os.Stat(root); err == nil && info.IsDir() {
		add("proto_root", "ok", root)
	} else {
		add("proto_root", "fail", fmt.Sprintf("%s is not a directory", root))
	}

	// Check 3: load the tree
	if allPassed {
		res, cat, err := current.load(ctx)
		switch {
		case err != nil:
			add("proto_load", "fail", err.Error())
		case res.Degraded():
			add("proto_load", "info", fmt.Sprintf("%d files, %d did not load cleanly (see 'grpcprobe methods --failures')",
				len(res.Files), len(res.Failures)))
		default:
			add("proto_load", "ok", fmt.Sprintf("%d files in %s", len(res.Files), res.Duration.Round(time.Millisecond)))
		}
		if err == nil {
			callable := 0
			for _, m := range cat.List() {
				if newMethodInfo(m).Callable {
					callable++
				}
			}
			status := "ok"
			if callable == 0 {
				status = "fail"
			}
			add("methods", status, fmt.Sprintf("%d of %d callable", callable, cat.Len()))
		}
	}

	// Check 4: schema repository
	if cfg.Repo.Dir == "" {
		add("schema_repo", "info", "not configured")
	} else {
		st, err := protosync.New(cfg.Repo.Dir,
			protosync.WithRemote(cfg.Repo.Remote),
			protosync.WithBranch(cfg.Repo.Branch),
		).Status()
		switch {
		case err != nil:
			add("schema_repo", "fail", err.Error())
		case !st.Clean:
			add("schema_repo", "fail", fmt.Sprintf("%s has uncommitted changes; sync will refuse to pull", st.Dir))
		case !st.OnBranch:
			add("schema_repo", "info", fmt.Sprintf("%s is on %q, sync pulls %q", st.Dir, st.Branch, cfg.Repo.Branch))
		default:
			add("schema_repo", "ok", fmt.Sprintf("%s at %s", st.Branch, short(st.Head)))
		}
	}

	// Check 5: environments
	envs, err := cfg.EnvironmentTable()
	if err != nil {
		add("environments", "fail", err.Error())
	} else if !doctorOffline {
		for _, r := range probeEnvironments(ctx, envs.List(), doctorTimeout) {
			add("env_"+r.name, r.status, r.detail)
		}
	}

	return printResult(cmd, map[string]any{"checks": checks, "allPassed": allPassed}, func(w io.Writer) {
		printChecks(w, checks, allPassed)
	})
}

func printChecks(w io.Writer, checks []doctorCheck, allPassed bool) {
	fmt.Fprintln(w, "grpcprobe doctor")
	fmt.Fprintln(w, "================")
	fmt.Fprintln(w)
	for _, c := range checks {
		switch c.Status {
		case "ok":
			fmt.Fprintf(w, "  ✓ %s: %s\n", c.Name, c.Detail)
		case "fail":
			fmt.Fprintf(w, "  ✗ %s: %s\n", c.Name, c.Detail)
		default:
			fmt.Fprintf(w, "  • %s: %s\n", c.Name, c.Detail)
		}
	}
	fmt.Fprintln(w)
	if allPassed {
		fmt.Fprintln(w, "All checks passed!")
	} else {
		fmt.Fprintln(w, "Some checks failed. See above for details.")
	}
}

type probeResult struct {
	name   string
	status string
	detail string
}

// probeEnvironments dials every environment concurrently. Unreachable
// environments are informational: VPN-only deployments are common.
func probeEnvironments(ctx context.Context, envs []invoke.Environment, timeout time.Duration) []probeResult {
	results := make([]probeResult, len(envs))
	g, ctx := errgroup.WithContext(ctx)
	for i, env := range envs {
		g.Go(func() error {
			r := probeResult{name: env.Name}
			start := time.Now()
			dialer := net.Dialer{Timeout: timeout}
			conn, err := dialer.DialContext(ctx, "tcp", env.Address)
			if err != nil {
				r.status, r.detail = "info", fmt.Sprintf("%s unreachable: %v", env.Address, err)
			} else {
				_ = conn.Close()
				r.status, r.detail = "ok", fmt.Sprintf("%s accepted a connection in %s", env.Address, time.Since(start).Round(time.Millisecond))
			}
			results[i] = r
			return nil
		})
	}
	_ = g.Wait()
	return results
}

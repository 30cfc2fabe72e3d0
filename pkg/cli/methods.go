package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/getmockd/grpcprobe/pkg/catalog"
	"github.com/getmockd/grpcprobe/pkg/cli/internal/output"
	"github.com/getmockd/grpcprobe/pkg/schema"
)

var (
	methodsFailures   bool
	methodsService    string
	methodsUnresolved bool
)

type methodInfo struct {
	ID         string `json:"id"`
	FullName   string `json:"fullName"`
	Path       string `json:"path"`
	Service    string `json:"service"`
	Request    string `json:"requestType"`
	Response   string `json:"responseType"`
	Streaming  string `json:"streaming"`
	Unresolved bool   `json:"unresolved,omitempty"`
	Callable   bool   `json:"callable"`
}

func newMethodInfo(m *catalog.Method) methodInfo {
	return methodInfo{
		ID:         m.ID,
		FullName:   m.FullName,
		Path:       m.Path,
		Service:    m.ServiceFullName,
		Request:    m.RequestType,
		Response:   m.ResponseType,
		Streaming:  m.StreamingType(),
		Unresolved: m.Unresolved(),
		Callable:   m.IsUnary() && m.Linked() && !m.Unresolved(),
	}
}

// status is the one-word state shown in tables.
func (mi methodInfo) status() string {
	switch {
	case mi.Unresolved:
		return "unresolved"
	case mi.Streaming != "unary":
		return mi.Streaming
	case !mi.Callable:
		return "unlinked"
	default:
		return "ok"
	}
}

var methodsCmd = &cobra.Command{
	Use:     "methods",
	Aliases: []string{"ls"},
	Short:   "List every method found in the proto tree",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		res, cat, err := current.load(cmd.Context())
		if err != nil {
			return err
		}
		if methodsFailures {
			return printFailures(cmd, res)
		}

		methods := make([]methodInfo, 0, cat.Len())
		for _, m := range cat.List() {
			if methodsService != "" && m.ServiceFullName != methodsService && m.Service != methodsService {
				continue
			}
			if methodsUnresolved && !m.Unresolved() {
				continue
			}
			methods = append(methods, newMethodInfo(m))
		}

		return printResult(cmd, map[string]any{
			"root":     res.Root,
			"files":    len(res.Files),
			"linked":   res.Linked,
			"failures": len(res.Failures),
			"methods":  methods,
		}, func(w io.Writer) {
			if len(methods) == 0 {
				fmt.Fprintf(w, "No methods found in %s\n", res.Root)
				return
			}
			tw := output.Table(w)
			fmt.Fprintln(tw, "METHOD\tREQUEST\tRESPONSE\tSTATUS")
			for _, mi := range methods {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", mi.ID, mi.Request, mi.Response, mi.status())
			}
			_ = tw.Flush()
		})
	},
}

type failureInfo struct {
	Path    string `json:"path"`
	Stage   string `json:"stage"`
	Partial bool   `json:"partial"`
	Error   string `json:"error"`
}

// printFailures shows files that did not load, imports no strategy found and
// type references that stayed symbolic.
func printFailures(cmd *cobra.Command, res *schema.Result) error {
	failures := make([]failureInfo, 0, len(res.Failures))
	for _, f := range res.Failures {
		msg := ""
		if f.Err != nil {
			msg = f.Err.Error()
		}
		failures = append(failures, failureInfo{Path: f.Path, Stage: string(f.Stage), Partial: f.Partial, Error: msg})
	}
	imports := make([]schema.ImportResolution, 0)
	for _, ir := range res.Imports {
		if !ir.Resolved() {
			imports = append(imports, ir)
		}
	}
	refs := make([]schema.TypeResolution, 0)
	for _, tr := range res.Tree.Resolutions() {
		if tr.Resolved == "" {
			refs = append(refs, tr)
		}
	}

	return printResult(cmd, map[string]any{
		"failures":          failures,
		"unresolvedImports": imports,
		"unresolvedTypes":   refs,
	}, func(w io.Writer) {
		if len(failures) == 0 {
			fmt.Fprintf(w, "All %d files loaded cleanly\n", len(res.Files))
			return
		}
		tw := output.Table(w)
		fmt.Fprintln(tw, "FILE\tSTAGE\tKEPT\tERROR")
		for _, f := range failures {
			kept := "no"
			if f.Partial {
				kept = "unlinked"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.Path, f.Stage, kept, firstLine(f.Error))
		}
		_ = tw.Flush()

		for _, ir := range imports {
			fmt.Fprintf(w, "\nimport %q from %s not found; tried:\n", ir.Import, ir.Importer)
			for _, at := range ir.Attempts {
				fmt.Fprintf(w, "  %-18s %s\n", at.Strategy, at.Reason)
			}
		}
		for _, tr := range refs {
			fmt.Fprintf(w, "\ntype %q at %s not resolved\n", tr.Ref, tr.Site)
		}
	})
}

var methodCmd = &cobra.Command{
	Use:   "method <name>",
	Short: "Show one method and its request and response types",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, cat, err := current.load(cmd.Context())
		if err != nil {
			return err
		}
		m, err := cat.Get(args[0])
		if err != nil {
			return err
		}
		synth, err := current.synthesizer(res.Tree)
		if err != nil {
			return err
		}
		mi := newMethodInfo(m)
		req := synth.Synthesize(m.Request)

		return printResult(cmd, map[string]any{
			"method":  mi,
			"example": req,
		}, func(w io.Writer) {
			fmt.Fprintf(w, "Method:    %s\n", mi.FullName)
			fmt.Fprintf(w, "Path:      %s\n", mi.Path)
			fmt.Fprintf(w, "Request:   %s\n", mi.Request)
			fmt.Fprintf(w, "Response:  %s\n", mi.Response)
			fmt.Fprintf(w, "Streaming: %s\n", mi.Streaming)
			fmt.Fprintf(w, "Status:    %s\n", mi.status())
			if m.Request != nil {
				fmt.Fprintln(w, "\nRequest fields:")
				printFields(w, m.Request)
			}
		})
	},
}

func printFields(w io.Writer, node *schema.TypeNode) {
	tw := output.Table(w)
	for _, f := range node.Fields {
		typ := f.TypeRef
		if f.Scalar != schema.ScalarNone {
			typ = f.Scalar.String()
		}
		var notes []string
		if f.Map {
			notes = append(notes, "map")
		} else if f.Repeated {
			notes = append(notes, "repeated")
		}
		if f.Wrapper != schema.WrapperNone {
			notes = append(notes, "wrapper")
		}
		if f.Oneof != "" {
			notes = append(notes, "oneof "+f.Oneof)
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", f.Name, typ, strings.Join(notes, ", "))
	}
	_ = tw.Flush()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func init() {
	rootCmd.AddCommand(methodsCmd)
	rootCmd.AddCommand(methodCmd)

	methodsCmd.Flags().BoolVar(&methodsFailures, "failures", false, "Show files that failed to load and unresolved references")
	methodsCmd.Flags().StringVar(&methodsService, "service", "", "Only list methods of this service")
	methodsCmd.Flags().BoolVar(&methodsUnresolved, "unresolved", false, "Only list methods with unresolved types")
}

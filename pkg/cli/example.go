package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/getmockd/grpcprobe/pkg/catalog"
	"github.com/getmockd/grpcprobe/pkg/cli/internal/output"
	"github.com/getmockd/grpcprobe/pkg/schema"
)

var exampleResponse bool

var exampleCmd = &cobra.Command{
	Use:   "example <method|type>",
	Short: "Print a synthesized example message",
	Long: `Print an example request for a method, or an example of any message type.

Fields hold zero values except those on the override table (see
'grpcprobe overrides'). Wrapper fields show their bare value; 'call'
wraps them again when the example is sent.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, cat, err := current.load(cmd.Context())
		if err != nil {
			return err
		}
		node, label, err := exampleTarget(res.Tree, cat, args[0], exampleResponse)
		if err != nil {
			return err
		}
		if node == nil {
			output.Warn(cmd.ErrOrStderr(), "%s is unresolved; its example is null", label)
		}
		synth, err := current.synthesizer(res.Tree)
		if err != nil {
			return err
		}
		// Examples are always JSON; --json only changes diagnostics.
		return output.JSON(cmd.OutOrStdout(), synth.Synthesize(node))
	},
}

// exampleTarget accepts a qualified message name or anything the catalog
// resolves to a method.
func exampleTarget(tree *schema.Tree, cat *catalog.Catalog, name string, response bool) (*schema.TypeNode, string, error) {
	if node, ok := tree.Lookup(name); ok {
		if node.Kind != schema.KindMessage {
			return nil, "", fmt.Errorf("%s is an enum, not a message", name)
		}
		return node, node.FullName, nil
	}
	m, err := cat.Get(name)
	if err != nil {
		return nil, "", err
	}
	if response {
		return m.Response, m.ID + " response (" + m.ResponseType + ")", nil
	}
	return m.Request, m.ID + " request (" + m.RequestType + ")", nil
}

var describeCmd = &cobra.Command{
	Use:   "describe <type|service|method>",
	Short: "Print the proto definition of a type, service or method",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, cat, err := current.load(cmd.Context())
		if err != nil {
			return err
		}
		tree := res.Tree
		name := args[0]

		var sources []string
		switch {
		case lookupType(tree, name) != nil:
			src, err := lookupType(tree, name).ProtoSource()
			if err != nil {
				return err
			}
			sources = append(sources, src)
		case lookupService(tree, name) != nil:
			src, err := lookupService(tree, name).ProtoSource()
			if err != nil {
				return err
			}
			sources = append(sources, src)
		default:
			m, err := cat.Get(name)
			if err != nil {
				return err
			}
			for _, node := range []*schema.TypeNode{m.Request, m.Response} {
				if node == nil {
					continue
				}
				src, err := node.ProtoSource()
				if err != nil {
					return err
				}
				sources = append(sources, src)
			}
			if len(sources) == 0 {
				return fmt.Errorf("%s: request and response types are unresolved", m.ID)
			}
		}

		return printResult(cmd, map[string]any{"name": name, "source": sources}, func(w io.Writer) {
			for i, src := range sources {
				if i > 0 {
					fmt.Fprintln(w)
				}
				fmt.Fprint(w, src)
			}
		})
	},
}

func lookupType(tree *schema.Tree, name string) *schema.TypeNode {
	node, _ := tree.Lookup(name)
	return node
}

func lookupService(tree *schema.Tree, name string) *schema.ServiceNode {
	svc, _ := tree.Service(name)
	return svc
}

func init() {
	rootCmd.AddCommand(exampleCmd)
	rootCmd.AddCommand(describeCmd)

	exampleCmd.Flags().BoolVar(&exampleResponse, "response", false, "Synthesize the response type instead of the request")
}

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"
	"github.com/yosuke-furukawa/json5/encoding/json5"
	"google.golang.org/grpc/metadata"

	"github.com/getmockd/grpcprobe/pkg/catalog"
	"github.com/getmockd/grpcprobe/pkg/cli/internal/flags"
	"github.com/getmockd/grpcprobe/pkg/cli/internal/output"
	"github.com/getmockd/grpcprobe/pkg/example"
	"github.com/getmockd/grpcprobe/pkg/invoke"
)

var (
	callEnv         string
	callData        string
	callHeaders     flags.StringSlice
	callService     string
	callTimeout     time.Duration
	callQuery       string
	callDryRun      bool
	callShowHeaders bool
)

var callCmd = &cobra.Command{
	Use:   "call [method]",
	Short: "Call a unary method",
	Long: `Call a unary method in the selected environment and print the response.

The request body comes from --data (JSON5: // and /* */ comments, trailing
commas and unquoted keys; @file reads a file, - reads stdin). Without --data
the synthesized example is sent.
Without a method an interactive picker opens, followed by an editor
prefilled with the example request.

Wrapper fields (google.protobuf.*Value) are wrapped automatically: send
"campaign_id": "61974" or "campaign_id": {"value": "61974"}.

There is no deadline unless --timeout is given. Interrupting cancels the call.`,
	Example: `  grpcprobe call GetProduct --env qa
  grpcprobe call shop.v1.ProductService.GetProduct -d '{product_variant_id: "pv-1"}'
  grpcprobe call GetProduct -d @req.json5 -H authorization:"Bearer $TOKEN"
  grpcprobe call GetProduct --query '$.price.units'`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCall,
}

func runCall(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	res, cat, err := current.load(ctx)
	if err != nil {
		return err
	}
	synth, err := current.synthesizer(res.Tree)
	if err != nil {
		return err
	}
	adapter, err := current.adapter(ctx)
	if err != nil {
		return err
	}

	env := callEnv
	if env == "" {
		env = current.cfg.DefaultEnvironment
	}

	var method string
	var body any
	if len(args) == 1 {
		method = args[0]
		body, err = requestBody(cmd, cat, synth, method)
		if err != nil {
			return err
		}
	} else {
		if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
			return ErrNotTerminal
		}
		method, env, body, err = pickCall(cat, synth, env)
		if err != nil {
			return err
		}
	}

	entries := make([]invoke.MetadataEntry, 0, len(callHeaders))
	for _, h := range callHeaders {
		e, err := invoke.ParseMetadataEntry(h)
		if err != nil {
			return err
		}
		entries = append(entries, e)
	}

	req := invoke.Request{
		Method:      method,
		Service:     callService,
		Environment: env,
		Message:     body,
		Metadata:    entries,
	}

	if callDryRun {
		p, err := adapter.Prepare(req)
		if err != nil {
			return reportFault(cmd, err)
		}
		return output.JSON(cmd.OutOrStdout(), map[string]any{
			"method":      p.Method.FullName,
			"path":        p.Method.Path,
			"environment": p.Environment.Name,
			"address":     p.Environment.Address,
			"metadata":    p.Metadata,
			"request":     p.Shaped,
		})
	}

	if callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, callTimeout)
		defer cancel()
	}

	resp, err := adapter.Invoke(ctx, req)
	if err != nil {
		return reportFault(cmd, err)
	}
	return printResponse(cmd, resp)
}

// requestBody reads --data, or synthesizes the example request when no data
// was given.
func requestBody(cmd *cobra.Command, cat *catalog.Catalog, synth *example.Synthesizer, method string) (any, error) {
	if callData == "" {
		m, err := cat.Lookup(callService, method)
		if err != nil {
			// Let the adapter report the lookup failure as a fault.
			return nil, nil //nolint:nilerr
		}
		return synth.Synthesize(m.Request), nil
	}

	var raw []byte
	var err error
	switch {
	case callData == "-":
		raw, err = io.ReadAll(cmd.InOrStdin())
	case strings.HasPrefix(callData, "@"):
		raw, err = os.ReadFile(callData[1:])
	default:
		raw = []byte(callData)
	}
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	return parseBody(raw)
}

// parseBody accepts JSON5: comments, trailing commas and unquoted keys.
// Numbers keep their literal text so 64-bit integers survive decoding.
func parseBody(raw []byte) (any, error) {
	if strings.TrimSpace(string(raw)) == "" {
		return nil, ErrEmptyRequest
	}
	text, err := stripBlockComments(raw)
	if err == nil {
		dec := json5.NewDecoder(bytes.NewReader(text))
		dec.UseNumber()
		var v, extra any
		if err = dec.Decode(&v); err == nil {
			if dec.Decode(&extra) == io.EOF {
				return jsonNumbers(v), nil
			}
			err = errors.New("unexpected data after the request body")
		}
	}
	return nil, &invoke.Fault{
		Category: invoke.CategoryInvalidMessage,
		Message:  "request body is not valid JSON: " + err.Error(),
		Err:      err,
	}
}

// stripBlockComments blanks out /* */ comments outside string literals. The
// json5 decoder only understands // comments.
func stripBlockComments(raw []byte) ([]byte, error) {
	out := make([]byte, 0, len(raw))
	var quote byte
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case quote != 0:
			out = append(out, c)
			if c == '\\' && i+1 < len(raw) {
				i++
				out = append(out, raw[i])
			} else if c == quote {
				quote = 0
			}
		case c == '"':
			quote = c
			out = append(out, c)
		case c == '/' && i+1 < len(raw) && raw[i+1] == '/':
			end := bytes.IndexByte(raw[i:], '\n')
			if end < 0 {
				end = len(raw) - i
			}
			out = append(out, raw[i:i+end]...)
			i += end - 1
		case c == '/' && i+1 < len(raw) && raw[i+1] == '*':
			end := bytes.Index(raw[i+2:], []byte("*/"))
			if end < 0 {
				return nil, errors.New("unterminated /* comment")
			}
			out = append(out, ' ')
			i += end + 3
		default:
			out = append(out, c)
		}
	}
	return out, nil
}

// jsonNumbers swaps json5 numbers for json.Number, which the codec reads.
func jsonNumbers(v any) any {
	switch t := v.(type) {
	case json5.Number:
		return json.Number(t)
	case map[string]any:
		for k, item := range t {
			t[k] = jsonNumbers(item)
		}
	case []any:
		for i, item := range t {
			t[i] = jsonNumbers(item)
		}
	}
	return v
}

// pickCall asks for a method and environment, then opens an editor with the
// example request.
func pickCall(cat *catalog.Catalog, synth *example.Synthesizer, env string) (string, string, any, error) {
	var methodOpts []huh.Option[string]
	for _, m := range cat.List() {
		if m.IsUnary() && m.Linked() && !m.Unresolved() {
			methodOpts = append(methodOpts, huh.NewOption(m.ID, m.FullName))
		}
	}
	if len(methodOpts) == 0 {
		return "", "", nil, errors.New("no callable methods in the proto tree")
	}
	envs, err := current.cfg.EnvironmentTable()
	if err != nil {
		return "", "", nil, err
	}
	var envOpts []huh.Option[string]
	for _, name := range envs.Names() {
		envOpts = append(envOpts, huh.NewOption(name, name))
	}

	var method string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which method?").
				Options(methodOpts...).
				Filtering(true).
				Value(&method),
			huh.NewSelect[string]().
				Title("Which environment?").
				Options(envOpts...).
				Value(&env),
		),
	)
	if err := form.Run(); err != nil {
		return "", "", nil, err
	}

	m, err := cat.Get(method)
	if err != nil {
		return "", "", nil, err
	}
	prefill, err := json.MarshalIndent(synth.Synthesize(m.Request), "", "  ")
	if err != nil {
		return "", "", nil, err
	}
	text := string(prefill)
	editor := huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title("Request body for " + m.ID).
				Description("JSON; comments and trailing commas are allowed").
				Lines(16).
				Value(&text),
		),
	)
	if err := editor.Run(); err != nil {
		return "", "", nil, err
	}
	body, err := parseBody([]byte(text))
	if err != nil {
		return "", "", nil, err
	}
	return method, env, body, nil
}

// reportFault prints faults as JSON in --json mode so scripts can read the
// category and remote detail from stdout.
func reportFault(cmd *cobra.Command, err error) error {
	var fault *invoke.Fault
	if !jsonOutput || !errors.As(err, &fault) {
		return err
	}
	_ = output.JSON(cmd.OutOrStdout(), map[string]any{"error": fault})
	return &exitError{code: 1, err: err, reported: true}
}

type callOutput struct {
	CallID      string      `json:"callId"`
	Method      string      `json:"method"`
	Environment string      `json:"environment"`
	Address     string      `json:"address"`
	DurationMs  float64     `json:"durationMs"`
	Header      metadata.MD `json:"header,omitempty"`
	Trailer     metadata.MD `json:"trailer,omitempty"`
	Response    any         `json:"response"`
}

func printResponse(cmd *cobra.Command, resp *invoke.Response) error {
	var body any = resp.Message
	if callQuery != "" {
		v, err := query(resp.Message, callQuery)
		if err != nil {
			return err
		}
		body = v
	}

	out := callOutput{
		CallID:      resp.CallID,
		Method:      resp.Method,
		Environment: resp.Environment,
		Address:     resp.Address,
		DurationMs:  float64(resp.Duration.Microseconds()) / 1000,
		Response:    body,
	}
	if callShowHeaders {
		out.Header = resp.Header
		out.Trailer = resp.Trailer
	}
	if jsonOutput {
		return output.JSON(cmd.OutOrStdout(), out)
	}

	if callShowHeaders {
		printMetadata(cmd.ErrOrStderr(), "header", resp.Header)
		printMetadata(cmd.ErrOrStderr(), "trailer", resp.Trailer)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %s in %s (call %s)\n", resp.Environment, resp.Method, resp.Duration.Round(time.Millisecond), resp.CallID)
	return output.JSON(cmd.OutOrStdout(), body)
}

// query evaluates a JSONPath expression against the response. A single match
// is returned bare; several come back as a list.
func query(msg *invoke.Object, expr string) (any, error) {
	path, err := jp.ParseString(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid --query %q: %w", expr, err)
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	data, err := oj.Parse(raw)
	if err != nil {
		return nil, err
	}
	matches := path.Get(data)
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("--query %q matched nothing", expr)
	case 1:
		return matches[0], nil
	default:
		return matches, nil
	}
}

func printMetadata(w io.Writer, label string, md metadata.MD) {
	for k, vals := range md {
		for _, v := range vals {
			fmt.Fprintf(w, "%s %s: %s\n", label, k, v)
		}
	}
}

func init() {
	rootCmd.AddCommand(callCmd)

	f := callCmd.Flags()
	f.StringVarP(&callEnv, "env", "e", "", "Environment to call (default from config)")
	f.StringVarP(&callData, "data", "d", "", "Request body: JSON/JSON5 text, @file, or - for stdin")
	f.VarP(&callHeaders, "header", "H", "Metadata entry key:value (repeatable)")
	f.StringVar(&callService, "service", "", "Service that declares the method, when the name is ambiguous")
	f.DurationVar(&callTimeout, "timeout", 0, "Call deadline, e.g. 5s (default: none)")
	f.StringVar(&callQuery, "query", "", "JSONPath applied to the response, e.g. $.price.units")
	f.BoolVar(&callDryRun, "dry-run", false, "Print the shaped request and metadata without dialing")
	f.BoolVar(&callShowHeaders, "show-headers", false, "Include response header and trailer metadata")
}

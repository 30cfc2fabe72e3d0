package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/getmockd/grpcprobe/pkg/cli/internal/output"
	"github.com/getmockd/grpcprobe/pkg/invoke"
)

// printResult outputs a single operation result.
//
// Contract: when --json is active, ONLY the JSON encoding of data is written
// to stdout. Human-readable prose (progress messages, hints) must go to stderr
// or be omitted entirely. textFn is called only in text mode.
func printResult(cmd *cobra.Command, data any, textFn func(w io.Writer)) error {
	if jsonOutput {
		return output.JSON(cmd.OutOrStdout(), data)
	}
	textFn(cmd.OutOrStdout())
	return nil
}

// printError writes err to w unless the command already reported it.
func printError(w io.Writer, err error) {
	var ee *exitError
	if errors.As(err, &ee) && ee.reported {
		return
	}
	var fault *invoke.Fault
	if errors.As(err, &fault) {
		printFault(w, fault)
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}

// printFault renders a fault for people. The remote detail is printed
// verbatim on its own line.
func printFault(w io.Writer, f *invoke.Fault) {
	fmt.Fprintf(w, "Error [%s]: %s\n", f.Category, f.Message)
	if f.Code != "" {
		fmt.Fprintf(w, "  code:   %s\n", f.Code)
	}
	if f.Detail != "" && f.Detail != f.Message {
		fmt.Fprintf(w, "  detail: %s\n", f.Detail)
	}
	for _, d := range f.Details {
		line := d.Type
		if d.Summary != "" {
			line += ": " + d.Summary
		}
		fmt.Fprintf(w, "  %s\n", strings.TrimSpace(line))
	}
}

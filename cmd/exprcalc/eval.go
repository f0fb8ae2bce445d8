package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lemonberrylabs/exprcalc/pkg/expr"
	"github.com/lemonberrylabs/exprcalc/pkg/runtime"
	"github.com/lemonberrylabs/exprcalc/pkg/types"
)

var (
	warnColor  = color.New(color.FgYellow)
	errorColor = color.New(color.FgRed, color.Bold)
	dimColor   = color.New(color.Faint)
)

func newEvalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval [file]",
		Short: "Evaluate a script in one session, reading stdin when no file is given",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runEval,
	}
	cmd.Flags().String("seed", "", "YAML file of initial bindings")
	cmd.Flags().Int("max-line-length", 0, "Longest accepted line (default 400)")
	cmd.Flags().Bool("vars", false, "Print the final bindings as YAML")
	return cmd
}

func newTokensCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tokens <line>",
		Short: "Print the token stream of a line",
		Args:  cobra.ExactArgs(1),
		RunE:  runTokens,
	}
}

func applyColorFlag(cmd *cobra.Command) {
	if v, _ := cmd.Flags().GetBool("no-color"); v {
		color.NoColor = true
	}
}

func runEval(cmd *cobra.Command, args []string) error {
	applyColorFlag(cmd)

	var src []byte
	var err error
	if len(args) == 1 {
		src, err = os.ReadFile(args[0])
	} else {
		src, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return fmt.Errorf("reading script: %w", err)
	}

	var seed map[string]types.Value
	if path, _ := cmd.Flags().GetString("seed"); path != "" {
		if seed, err = runtime.LoadBindingsFile(path); err != nil {
			return fmt.Errorf("loading seed bindings: %w", err)
		}
	}

	sess := runtime.NewSession(seed)
	if n, _ := cmd.Flags().GetInt("max-line-length"); n != 0 {
		sess.SetMaxLineLength(n)
	}

	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	results, evalErr := sess.EvalScript(cmd.Context(), runtime.SplitLines(string(src)))

	diagnostics := 0
	for _, res := range results {
		for _, d := range res.Diagnostics() {
			diagnostics++
			warnColor.Fprintf(errOut, "line %d:%d: %s: %s\n", res.Line, d.Pos+1, d.Kind, d.Message)
		}
		if !res.Value.IsAbsent() {
			fmt.Fprintln(out, res.Value.String())
		}
	}

	if showVars, _ := cmd.Flags().GetBool("vars"); showVars && evalErr == nil {
		data, err := runtime.MarshalBindings(sess.Variables())
		if err != nil {
			return err
		}
		dimColor.Fprint(out, string(data))
	}

	if evalErr != nil {
		return evalErr
	}
	if diagnostics > 0 {
		dimColor.Fprintf(errOut, "%d diagnostic(s)\n", diagnostics)
	}
	return nil
}

func runTokens(cmd *cobra.Command, args []string) error {
	applyColorFlag(cmd)
	out := cmd.OutOrStdout()

	lexer := expr.NewLexer()
	for tok := range lexer.Tokenize(args[0]) {
		if tok.Type == expr.TokenNumber {
			fmt.Fprintf(out, "%-7s %-10s %d\n", tok.Type, tok.Value, tok.IntVal)
			continue
		}
		fmt.Fprintf(out, "%-7s %s\n", tok.Type, tok.Value)
	}

	res := runtime.Result{LexErrors: lexer.Errors()}
	for _, d := range res.Diagnostics() {
		warnColor.Fprintf(cmd.ErrOrStderr(), "%d: %s\n", d.Pos+1, d.Message)
	}
	return nil
}

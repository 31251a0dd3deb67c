package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/roomstore/internal/harness"
)

// TestOutput is the JSON payload of the test command.
type TestOutput struct {
	Passed  int              `json:"passed"`
	Failed  int              `json:"failed"`
	Results []ScenarioResult `json:"results"`
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	File   string   `json:"file"`
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "test <scenario.yaml>...",
		Short: "Run scenario files against an in-memory store",
		Long: `Run scripted client sessions through the engine and check the
packets each client receives. Every scenario gets a fresh in-memory
database; the configured storage is never touched.

Examples:
  roomstore test scenarios/lobby.yaml
  roomstore test scenarios/*.yaml --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(rootOpts, cmd, args)
		},
	}
}

func runTest(opts *RootOptions, cmd *cobra.Command, files []string) error {
	f := opts.formatter(cmd)
	out := TestOutput{Results: make([]ScenarioResult, 0, len(files))}

	for _, file := range files {
		sc, err := harness.LoadScenario(file)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load "+file, err)
		}
		f.VerboseLog("running %s from %s (%d steps)", sc.Name, file, len(sc.Steps))
		res, err := harness.Run(sc)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to run "+file, err)
		}

		out.Results = append(out.Results, ScenarioResult{
			File:   file,
			Name:   sc.Name,
			Pass:   res.Pass,
			Errors: res.Errors,
		})
		if res.Pass {
			out.Passed++
		} else {
			out.Failed++
		}
	}

	if opts.Format == "json" {
		if err := f.Success(out); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for _, r := range out.Results {
			status := "PASS"
			if !r.Pass {
				status = "FAIL"
			}
			fmt.Fprintf(w, "%s  %s (%s)\n", status, r.Name, r.File)
			for _, msg := range r.Errors {
				fmt.Fprintf(w, "      %s\n", msg)
			}
		}
		fmt.Fprintf(w, "\n%d passed, %d failed\n", out.Passed, out.Failed)
	}

	if out.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", out.Failed))
	}
	return nil
}

package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kevinxiao27/crdt-engine/internal/harness"
	"github.com/kevinxiao27/crdt-engine/util"
)

// ScenarioReport is the payload of the scenario command.
type ScenarioReport struct {
	Results []*harness.Result `json:"results"`
	Passed  int               `json:"passed"`
	Failed  []string          `json:"failed,omitempty"`
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scenario <file.yaml>...",
		Short: "Run multi-replica YAML scenarios",
		Long: `Run each scenario against fresh replicas and report whether the
replicas converged and matched the expected state.

Exits 1 if any scenario fails, 2 if a scenario cannot be loaded or a step
cannot be executed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(rootOpts, args, cmd)
		},
	}
}

func runScenarios(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	h := harness.New(opts.logger(cmd))

	var results []*harness.Result
	for _, path := range paths {
		scenario, err := harness.LoadScenario(path)
		if err != nil {
			return WrapExitError(ExitCommandError, path, err)
		}
		f.VerboseLog("running %s (%d replicas, %d steps)", scenario.Name, len(scenario.Replicas), len(scenario.Steps))
		result, err := h.Run(scenario)
		if err != nil {
			return WrapExitError(ExitCommandError, scenario.Name, err)
		}
		results = append(results, result)
	}

	failed := util.Filter(results, func(r *harness.Result) bool { return !r.Pass })
	report := ScenarioReport{
		Results: results,
		Passed:  len(results) - len(failed),
		Failed:  util.Map(failed, func(r *harness.Result) string { return r.Name }),
	}

	err := f.Success(report, func(w io.Writer) error {
		for _, r := range results {
			status := "PASS"
			if !r.Pass {
				status = "FAIL"
			}
			fmt.Fprintf(w, "%s %s\n", status, r.Name)
			for _, e := range r.Errors {
				fmt.Fprintf(w, "    %s\n", e)
			}
		}
		_, err := fmt.Fprintf(w, "%d passed, %d failed\n", report.Passed, len(failed))
		return err
	})
	if err != nil {
		return err
	}
	if len(failed) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenario(s) failed", len(failed), len(results)))
	}
	return nil
}

package cli

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/roomstore/internal/engine"
)

// NewProjectCommand creates the project command group. Its writes go
// through the engine, so the room policy and feature flags apply.
func NewProjectCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Change stored project variables",
		Long: `Set, rename or delete a stored project variable.

Values are parsed as JSON; anything that is not valid JSON is stored as a
string.

Examples:
  roomstore project set 1234 score 10
  roomstore project rename 1234 score points
  roomstore project delete 1234 points`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "set <project-id> <name> <value>",
		Short:         "Create or overwrite a variable",
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ev := engine.ProjectVariableSet{ProjectID: args[0], Name: args[1], Value: parseValue(args[2])}
			return runProjectEvent(rootOpts, cmd, ev, fmt.Sprintf("Set %s in %s", args[1], args[0]))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "rename <project-id> <name> <new-name>",
		Short:         "Rename a variable",
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ev := engine.ProjectVariableRename{ProjectID: args[0], Name: args[1], NewName: args[2]}
			return runProjectEvent(rootOpts, cmd, ev, fmt.Sprintf("Renamed %s to %s in %s", args[1], args[2], args[0]))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "delete <project-id> <name>",
		Short:         "Delete a variable",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ev := engine.ProjectVariableDelete{ProjectID: args[0], Name: args[1]}
			return runProjectEvent(rootOpts, cmd, ev, fmt.Sprintf("Deleted %s from %s", args[1], args[0]))
		},
	})

	return cmd
}

func runProjectEvent(opts *RootOptions, cmd *cobra.Command, ev engine.Event, done string) error {
	ctx := cmd.Context()
	rt, err := openRuntime(ctx, opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.engine.Handle(ctx, operator{}, ev); err != nil {
		return wrapOpError(engine.EventName(ev)+" failed", err)
	}

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(map[string]string{"event": engine.EventName(ev)})
	}
	fmt.Fprintln(cmd.OutOrStdout(), done)
	return nil
}

// parseValue decodes raw as JSON, keeping numbers exact, and falls back
// to the raw string.
func parseValue(raw string) any {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return raw
	}
	return v
}

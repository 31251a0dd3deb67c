package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/roomstore/internal/admin"
	"github.com/roach88/roomstore/internal/engine"
	"github.com/roach88/roomstore/internal/record"
)

// NewInspectCommand creates the inspect command group.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show stored records",
		Long: `Show every record stored for a room or project, private records included.

Examples:
  roomstore inspect room lobby --db ./roomstore.db
  roomstore inspect project 1234 --format json`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "room <room>",
		Short:         "Show stored messages and variables of a room",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspectRoom(rootOpts, cmd, args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "project <project-id>",
		Short:         "Show stored variables of a project",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspectProject(rootOpts, cmd, args[0])
		},
	})

	return cmd
}

func runInspectRoom(opts *RootOptions, cmd *cobra.Command, room string) error {
	ctx := cmd.Context()
	rt, err := openRuntime(ctx, opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	room = engine.Normalize(room)
	resp, err := admin.LoadRoom(ctx, rt.store, room, rt.engine.Replayer().Enabled(room))
	if err != nil {
		return wrapOpError("failed to read room", err)
	}

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(resp)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Room: %s (%s)\n", resp.Room, enabledLabel(resp.Enabled))
	fmt.Fprintf(w, "Messages (%d):\n", len(resp.Messages))
	for _, m := range resp.Messages {
		fmt.Fprintf(w, "  %-20s %s%s\n", targetLabel(m.Target), formatValue(m.Value), originLabel(m.Origin))
	}
	fmt.Fprintf(w, "Variables (%d):\n", len(resp.Variables))
	for _, v := range resp.Variables {
		fmt.Fprintf(w, "  %-20s %s = %s%s\n", targetLabel(v.Target), v.Name, formatValue(v.Value), originLabel(v.Origin))
	}
	printSkipped(w, resp.Skipped)
	return nil
}

func runInspectProject(opts *RootOptions, cmd *cobra.Command, projectID string) error {
	ctx := cmd.Context()
	rt, err := openRuntime(ctx, opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	projectID = engine.Normalize(projectID)
	resp, err := admin.LoadProject(ctx, rt.store, projectID, rt.engine.Replayer().Enabled(projectID))
	if err != nil {
		return wrapOpError("failed to read project", err)
	}

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(resp)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Project: %s (%s)\n", resp.ProjectID, enabledLabel(resp.Enabled))
	fmt.Fprintf(w, "Variables (%d):\n", len(resp.Variables))
	names := make([]string, 0, len(resp.Variables))
	for name := range resp.Variables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s = %s\n", name, formatValue(resp.Variables[name]))
	}
	printSkipped(w, resp.Skipped)
	return nil
}

func enabledLabel(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled by policy"
}

func targetLabel(target string) string {
	if target == "" {
		return "[broadcast]"
	}
	return "[to " + target + "]"
}

func originLabel(origin *record.Identity) string {
	if origin == nil {
		return ""
	}
	return " (from " + origin.Username + ")"
}

func printSkipped(w io.Writer, n int) {
	if n > 0 {
		fmt.Fprintf(w, "Skipped %d undecodable record(s)\n", n)
	}
}

// formatValue renders a stored value as compact JSON.
func formatValue(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

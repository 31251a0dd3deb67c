package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/roomstore/internal/engine"
	"github.com/roach88/roomstore/internal/replay"
)

// ReplayOptions holds flags for the replay commands.
type ReplayOptions struct {
	*RootOptions
	User string
}

// ReplayOutput is the JSON payload of the replay commands.
type ReplayOutput struct {
	Packets []map[string]any `json:"packets"`
	Skipped []string         `json:"skipped,omitempty"`
}

// NewReplayCommand creates the replay command group.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Show the packets a client would receive",
		Long: `Build a replay from the store without sending it anywhere.

"connect" shows what a user receives when it subscribes to a room.
"project" shows the "set" packets of a project handshake, as if no
client were connected to the project yet.

Examples:
  roomstore replay connect lobby --user bob
  roomstore replay project 1234 --format json`,
	}

	connect := &cobra.Command{
		Use:           "connect <room>",
		Short:         "Replay a room to a user",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplayConnect(opts, cmd, args[0])
		},
	}
	connect.Flags().StringVarP(&opts.User, "user", "u", "", "username receiving the replay")
	cmd.AddCommand(connect)

	cmd.AddCommand(&cobra.Command{
		Use:           "project <project-id>",
		Short:         "Replay a project's variables",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplayProject(opts, cmd, args[0])
		},
	})

	return cmd
}

func runReplayConnect(opts *ReplayOptions, cmd *cobra.Command, room string) error {
	ctx := cmd.Context()
	rt, err := openRuntime(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := rt.engine.Replayer().ConnectReplay(ctx, engine.Normalize(room), engine.Normalize(opts.User))
	if err != nil {
		return wrapOpError("replay failed", err)
	}
	return printReplay(opts.RootOptions, cmd, res)
}

func runReplayProject(opts *ReplayOptions, cmd *cobra.Command, projectID string) error {
	ctx := cmd.Context()
	rt, err := openRuntime(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := rt.engine.Replayer().ProjectReplay(ctx, engine.Normalize(projectID), nil, false)
	if err != nil {
		return wrapOpError("replay failed", err)
	}
	return printReplay(opts.RootOptions, cmd, res)
}

func printReplay(opts *RootOptions, cmd *cobra.Command, res replay.Result) error {
	out := ReplayOutput{Packets: make([]map[string]any, 0, len(res.Events))}
	for _, ev := range res.Events {
		out.Packets = append(out.Packets, ev.Packet())
	}
	for _, err := range res.Skipped {
		out.Skipped = append(out.Skipped, err.Error())
	}

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(out)
	}

	w := cmd.OutOrStdout()
	if len(out.Packets) == 0 {
		fmt.Fprintln(w, "Nothing to replay.")
	}
	for _, p := range out.Packets {
		line, err := json.Marshal(p)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to encode packet", err)
		}
		fmt.Fprintln(w, string(line))
	}
	printSkipped(w, len(out.Skipped))
	return nil
}

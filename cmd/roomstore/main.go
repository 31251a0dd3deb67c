// Command roomstore inspects, edits and serves a roomstore record store.
package main

import (
	"os"

	"github.com/roach88/roomstore/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		format, _ := cmd.PersistentFlags().GetString("format")
		if format != "json" {
			format = "text"
		}
		f := &cli.OutputFormatter{Format: format, Writer: os.Stderr}
		_ = f.Error(cli.ErrorCode(err), err.Error(), nil)
		os.Exit(cli.GetExitCode(err))
	}
}

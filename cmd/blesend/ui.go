package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/srg/blesend/internal/session"
	"github.com/srg/blesend/internal/tui"
	"golang.org/x/term"
)

// newUICmd represents the ui command
func newUICmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ui",
		Short: "Pick a device from a list and send the payload",
		Long: `Starts the interactive picker:

  s      scan for devices
  enter  connect to the highlighted device and pick a characteristic
  w      send the payload
  d      disconnect
  q      quit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUI(cmd, global)
		},
	}
}

func runUI(cmd *cobra.Command, global *globalOptions) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return errNotTerminal
	}

	opts, err := global.cfg.SessionOptions()
	if err != nil {
		return err
	}

	cmd.SilenceUsage = true

	// Log lines would tear the alternate screen apart unless asked for explicitly
	logger := global.logger
	if global.logLevel == "" && !global.verbose {
		logger.SetOutput(io.Discard)
	}

	ctrl, err := session.New(opts, logger)
	if err != nil {
		return err
	}
	return tui.Run(cmd.Context(), ctrl)
}

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/srg/blesend/internal/session"
)

type sendFlags struct {
	payload         string
	hex             bool
	serviceUUID     string
	charUUID        string
	withoutResponse bool
	preferWritable  bool
	timeout         time.Duration
}

// newSendCmd represents the send command
func newSendCmd(global *globalOptions) *cobra.Command {
	flags := &sendFlags{}

	cmd := &cobra.Command{
		Use:   "send <device-address>",
		Short: "Connect to a device and write the payload",
		Long: fmt.Sprintf(`Connects to a BLE device, picks the characteristic to write to and sends the payload.

Without --service/--char the first advertised service found on the device is
used, and its first characteristic (or first writable one with --prefer-writable).

Examples:
  # Send the default payload
  blesend send %s

  # Send a hex payload to an explicit characteristic
  blesend send %s --char 6e400002-b5a3-f393-e0a9-e50e24dcca9e --payload 0102ff --hex

  # Write without response (faster, no ACK)
  blesend send %s --payload ping --without-response

%s`, exampleDeviceAddress, exampleDeviceAddress, exampleDeviceAddress, deviceAddressNote),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd, global, flags, args[0])
		},
	}

	cmd.Flags().StringVar(&flags.payload, "payload", "", "Payload to send (default from config, or \"Hello from blesend\")")
	cmd.Flags().BoolVar(&flags.hex, "hex", false, "Parse the payload as a hex string (e.g., 'FF01'); raw text by default")
	cmd.Flags().StringVar(&flags.serviceUUID, "service", "", "Service UUID of the target characteristic")
	cmd.Flags().StringVar(&flags.charUUID, "char", "", "Characteristic UUID to write to")
	cmd.Flags().BoolVar(&flags.withoutResponse, "without-response", false, "Write without response when the characteristic supports it")
	cmd.Flags().BoolVar(&flags.preferWritable, "prefer-writable", false, "Auto-select the first writable characteristic")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "Write timeout (default from config, 5s)")

	return cmd
}

func runSend(cmd *cobra.Command, global *globalOptions, flags *sendFlags, address string) error {
	if flags.serviceUUID != "" && flags.charUUID == "" {
		return fmt.Errorf("--service requires --char")
	}

	cfg := *global.cfg
	if cmd.Flags().Changed("payload") {
		cfg.Payload = flags.payload
	}
	if cmd.Flags().Changed("hex") {
		cfg.PayloadHex = flags.hex
	}
	if cmd.Flags().Changed("without-response") {
		cfg.WithoutResponse = flags.withoutResponse
	}
	if cmd.Flags().Changed("prefer-writable") {
		cfg.PreferWritable = flags.preferWritable
	}
	if cmd.Flags().Changed("timeout") {
		cfg.WriteTimeout = flags.timeout
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	opts, err := cfg.SessionOptions()
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctrl, err := session.New(opts, global.logger)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	progress := startProgress(cmd.ErrOrStderr(), func(w io.Writer) *ProgressPrinter {
		return NewProgressPrinter(w, fmt.Sprintf("Sending %d bytes to %s", len(opts.Payload), address), "Connecting")
	})
	result, err := send(cmd, ctrl, flags, address, progress.Callback())
	progress.Stop()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	mode := "without response"
	if result.WithResponse {
		mode = "with response"
	}
	fmt.Fprintf(out, "Target: %s\n", result.Target)
	color.New(color.FgGreen).Fprintf(out, "Sent %d bytes %s in %v\n", result.Bytes, mode, result.Elapsed.Round(time.Millisecond))
	return nil
}

func send(cmd *cobra.Command, ctrl *session.Controller, flags *sendFlags, address string, progress func(string)) (session.SendResult, error) {
	ctx := cmd.Context()

	if err := ctrl.Connect(ctx, address); err != nil {
		return session.SendResult{}, err
	}

	progress("Selecting")
	var err error
	if flags.charUUID != "" {
		_, err = ctrl.Select(flags.serviceUUID, flags.charUUID)
	} else {
		_, err = ctrl.AutoSelect()
	}
	if err != nil {
		return session.SendResult{}, err
	}

	progress("Writing")
	return ctrl.Send(ctx)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"unicode"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/blesend/pkg/config"
	"golang.org/x/term"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// globalOptions holds the persistent flags and what they resolve to
type globalOptions struct {
	configPath string
	logLevel   string
	backend    string
	verbose    bool

	cfg    *config.Config
	logger *logrus.Logger
}

// load reads the config file and applies the global flags on top of it
func (o *globalOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("backend") {
		cfg.Backend = o.backend
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := configureLogger(o.logLevel, o.verbose, cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.SetOutput(cmd.ErrOrStderr())

	o.cfg = cfg
	o.logger = logger
	return nil
}

// newRootCmd builds the command tree
func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "blesend",
		Short: "Send a payload to a Bluetooth Low Energy device",
		Long: `Bluetooth Low Energy (BLE) tool that finds a nearby device and writes a payload to it:

- Scan for nearby BLE devices
- Pick a device in the interactive list, connect and send with one key each
- Send from scripts with 'blesend send <address>'

Without a subcommand the interactive picker starts.`,
		Version: formatVersion(version),
		// Silence Cobra's "Error:" prefix - main() prints clean errors
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUI(cmd, opts)
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "Debug logging, same as --log-level debug")
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default $"+config.EnvConfigPath+")")
	rootCmd.PersistentFlags().StringVar(&opts.backend, "backend", "", "BLE backend (goble, tinygo)")
	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
	rootCmd.SetVersionTemplate(fmt.Sprintf("blesend {{.Version}} (commit %s, built %s)\n", commit, date))

	rootCmd.AddCommand(newScanCmd(opts))
	rootCmd.AddCommand(newSendCmd(opts))
	rootCmd.AddCommand(newUICmd(opts))

	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	color.NoColor = !term.IsTerminal(int(os.Stderr.Fd()))

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		printError(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func printError(w io.Writer, err error) {
	label := color.New(color.FgRed, color.Bold).Sprint("ERROR:")
	fmt.Fprintf(w, "%s %s\n", label, FormatUserError(err))
}

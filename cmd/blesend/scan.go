package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/blesend/internal/device"
	"github.com/srg/blesend/internal/devicefactory"
	"github.com/srg/blesend/pkg/config"
	"github.com/srg/blesend/scanner"
)

type scanFlags struct {
	duration     time.Duration
	format       string
	services     []string
	allowList    []string
	blockList    []string
	namePrefix   string
	noDuplicates bool
}

// newScanCmd represents the scan command
func newScanCmd(global *globalOptions) *cobra.Command {
	flags := &scanFlags{}

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan for BLE devices",
		Long: `Scan for and display Bluetooth Low Energy devices in the vicinity.

Devices are listed strongest signal first with their names, addresses,
RSSI values and advertised services.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScan(cmd, global, flags)
		},
	}

	cmd.Flags().DurationVarP(&flags.duration, "duration", "d", 0, "Scan duration (default from config, 10s)")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "", "Output format (table, json)")
	cmd.Flags().StringSliceVarP(&flags.services, "services", "s", nil, "Filter by service UUIDs")
	cmd.Flags().StringSliceVar(&flags.allowList, "allow", nil, "Only show devices with these addresses")
	cmd.Flags().StringSliceVar(&flags.blockList, "block", nil, "Hide devices with these addresses")
	cmd.Flags().StringVar(&flags.namePrefix, "name-prefix", "", "Only show devices whose name starts with this prefix")
	cmd.Flags().BoolVar(&flags.noDuplicates, "no-duplicates", true, "Filter duplicate advertisements")

	return cmd
}

func runScan(cmd *cobra.Command, global *globalOptions, flags *scanFlags) error {
	cfg := global.cfg
	format := cfg.OutputFormat
	if flags.format != "" {
		format = flags.format
	}
	if format != config.FormatTable && format != config.FormatJSON {
		return fmt.Errorf("invalid format '%s': must be one of [table json]", format)
	}

	duration := cfg.ScanTimeout
	if cmd.Flags().Changed("duration") {
		duration = flags.duration
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	backend, err := devicefactory.ParseBackend(cfg.Backend)
	if err != nil {
		return err
	}
	logger := global.logger

	s, err := scanner.NewScanner(logger, backend)
	if err != nil {
		return fmt.Errorf("failed to create BLE scanner: %w", err)
	}
	defer s.Close()
	defer func() {
		if err := devicefactory.Release(backend); err != nil {
			logger.WithError(err).Warn("Failed to release BLE manager")
		}
	}()

	opts := &scanner.ScanOptions{
		Duration:        duration,
		DuplicateFilter: flags.noDuplicates,
		ServiceUUIDs:    flags.services,
		AllowList:       flags.allowList,
		BlockList:       flags.blockList,
		NamePrefix:      flags.namePrefix,
	}

	progress := startProgress(cmd.ErrOrStderr(), func(w io.Writer) *ProgressPrinter {
		return NewCountdownProgressPrinter(w, "Scanning for BLE devices", "Scanning", duration, "Processing results")
	})
	devices, err := s.Scan(cmd.Context(), opts, progress.Callback())
	progress.Stop()
	if err != nil {
		logger.WithError(err).Error("Scan failed")
		return err
	}

	logger.WithFields(logrus.Fields{"device_count": len(devices)}).Debug("Printing scan results")
	return displayDevices(cmd.OutOrStdout(), sortDevices(devices), format)
}

// sortDevices orders devices strongest signal first, then by address
func sortDevices(devices map[string]device.DeviceInfo) []device.DeviceInfo {
	list := make([]device.DeviceInfo, 0, len(devices))
	for _, d := range devices {
		list = append(list, d)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].RSSI() != list[j].RSSI() {
			return list[i].RSSI() > list[j].RSSI()
		}
		return list[i].Address() < list[j].Address()
	})
	return list
}

func displayDevices(w io.Writer, devices []device.DeviceInfo, format string) error {
	if format == config.FormatJSON {
		return displayDevicesJSON(w, devices)
	}
	if len(devices) == 0 {
		fmt.Fprintln(w, "No devices discovered")
		return nil
	}
	return displayDevicesTable(w, devices)
}

func displayDevicesTable(out io.Writer, devices []device.DeviceInfo) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tRSSI\tSERVICES")
	fmt.Fprintln(w, strings.Repeat("-", 72))

	for _, dev := range devices {
		name := dev.Name()
		if name == "" {
			name = "(unknown)"
		}
		if len(name) > 20 {
			name = name[:17] + "..."
		}

		services := strings.Join(dev.AdvertisedServices(), ",")
		if len(services) > 30 {
			services = services[:27] + "..."
		}

		fmt.Fprintf(w, "%s\t%s\t%d dBm\t%s\n", name, dev.Address(), dev.RSSI(), services)
	}

	return w.Flush()
}

// deviceJSON is the scan output record of one device
type deviceJSON struct {
	Name             string   `json:"name"`
	Address          string   `json:"address"`
	RSSI             int      `json:"rssi"`
	TxPower          *int     `json:"tx_power,omitempty"`
	Connectable      bool     `json:"connectable"`
	Services         []string `json:"services"`
	ManufacturerData string   `json:"manufacturer_data,omitempty"`
}

func displayDevicesJSON(w io.Writer, devices []device.DeviceInfo) error {
	out := make([]deviceJSON, 0, len(devices))
	for _, d := range devices {
		out = append(out, deviceJSON{
			Name:             d.Name(),
			Address:          d.Address(),
			RSSI:             d.RSSI(),
			TxPower:          d.TxPower(),
			Connectable:      d.IsConnectable(),
			Services:         d.AdvertisedServices(),
			ManufacturerData: hex.EncodeToString(d.ManufacturerData()),
		})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

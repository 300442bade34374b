package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/blesend/internal/device"
	"github.com/srg/blesend/internal/devicefactory"
	"github.com/srg/blesend/internal/ringchan"
)

// ErrScanInProgress is returned when a scan is started while another one runs
var ErrScanInProgress = errors.New("scan already in progress")

// eventBufferSize bounds the event channel; the oldest event is dropped when full
const eventBufferSize = 100

// ProgressCallback is called when the scan phase changes
type ProgressCallback func(phase string)

// DeviceEventType marks if the device was newly discovered or updated
type DeviceEventType int

const (
	EventNew DeviceEventType = iota
	EventUpdated
)

func (t DeviceEventType) String() string {
	if t == EventNew {
		return "new"
	}
	return "updated"
}

type DeviceEvent struct {
	Type       DeviceEventType
	DeviceInfo device.DeviceInfo
}

// ScanOptions configures scanning behavior
type ScanOptions struct {
	// Duration bounds the scan window, zero scans until the context is done
	Duration time.Duration `default:"10s"`
	// DuplicateFilter asks the controller to report each peripheral once
	DuplicateFilter bool `default:"true"`
	// ServiceUUIDs keeps only peripherals advertising at least one of them
	ServiceUUIDs []string
	AllowList    []string
	BlockList    []string
	// NamePrefix keeps only peripherals whose name starts with it, case-insensitively
	NamePrefix string
}

// DefaultScanOptions returns default scanning options
func DefaultScanOptions() *ScanOptions {
	opts := &ScanOptions{}
	defaults.SetDefaults(opts)
	return opts
}

// Scanner handles BLE device discovery
type Scanner struct {
	backend  devicefactory.Backend
	logger   *logrus.Logger
	events   *ringchan.RingChannel[DeviceEvent]
	scanning atomic.Bool
}

// NewScanner creates a new BLE scanner on the given backend
func NewScanner(logger *logrus.Logger, backend devicefactory.Backend) (*Scanner, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if backend == "" {
		backend = devicefactory.DefaultBackend
	}

	return &Scanner{
		backend: backend,
		events:  ringchan.New[DeviceEvent](eventBufferSize),
		logger:  logger,
	}, nil
}

// Scan performs one BLE discovery window and returns the discovered devices keyed by address.
// Reaching the end of the window or cancelling ctx ends the scan normally.
// The BLE manager stays open afterwards, release it through devicefactory.Release.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions, progressCallback ProgressCallback) (map[string]device.DeviceInfo, error) {
	if !s.scanning.CompareAndSwap(false, true) {
		return nil, ErrScanInProgress
	}
	defer s.scanning.Store(false)

	if opts == nil {
		opts = DefaultScanOptions()
	}
	if progressCallback == nil {
		progressCallback = func(string) {}
	}

	filter, err := newFilter(opts)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"duration": opts.Duration,
		"backend":  s.backend,
	}).Info("Starting BLE scan...")

	progressCallback("Scanning")

	bleScanner, err := devicefactory.NewScanner(s.backend, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create BLE device: %w", err)
	}

	scanCtx := ctx
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	devices := hashmap.New[string, device.Device]()
	err = bleScanner.Scan(scanCtx, !opts.DuplicateFilter, func(adv device.Advertisement) {
		s.handleAdvertisement(devices, filter, adv)
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	s.logger.WithField("device_count", devices.Len()).Info("BLE scan completed")

	progressCallback("Processing results")

	result := make(map[string]device.DeviceInfo, devices.Len())
	devices.Range(func(key string, value device.Device) bool {
		result[key] = value
		return true
	})

	return result, nil
}

// Scanning reports whether a scan window is open
func (s *Scanner) Scanning() bool {
	return s.scanning.Load()
}

// handleAdvertisement updates existing or adds a new device
func (s *Scanner) handleAdvertisement(devices *hashmap.Map[string, device.Device], f *filter, adv device.Advertisement) {
	deviceID := adv.Addr()

	dev, existing := devices.Get(deviceID)
	if !existing {
		if !f.accepts(adv) {
			return
		}
		// GetOrInsert indexes an element it never links in hashmap v1.0.8, so a
		// later Get misses. Insert indexes the element it links.
		newDev := devicefactory.NewDeviceFromAdvertisement(s.backend, adv, s.logger)
		if devices.Insert(deviceID, newDev) {
			dev = newDev
		} else if dev, existing = devices.Get(deviceID); !existing {
			return
		}
	}

	event := DeviceEvent{
		DeviceInfo: dev,
	}

	if existing {
		dev.Update(adv)
		event.Type = EventUpdated
	} else {
		s.logger.WithFields(logrus.Fields{
			"device":  dev.Name(),
			"address": dev.Address(),
			"rssi":    dev.RSSI(),
		}).Info("Discovered new device")
		event.Type = EventNew
	}

	if s.events.Send(event) {
		s.logger.Debug("Device event buffer full, dropped the oldest event")
	}
}

// Events returns device events from every scan of this scanner.
// The channel is bounded and drops the oldest event when the reader falls behind.
func (s *Scanner) Events() <-chan DeviceEvent {
	return s.events.C()
}

// Close closes the Events channel
func (s *Scanner) Close() {
	s.events.Close()
}

// filter applies the allow, block, service and name rules to a first advertisement
type filter struct {
	allow    []string
	block    []string
	services []string
	prefix   string
}

func newFilter(opts *ScanOptions) (*filter, error) {
	f := &filter{
		allow:  opts.AllowList,
		block:  opts.BlockList,
		prefix: strings.ToLower(opts.NamePrefix),
	}
	if len(opts.ServiceUUIDs) > 0 {
		svcs, err := device.ValidateUUID(opts.ServiceUUIDs...)
		if err != nil {
			return nil, fmt.Errorf("invalid service filter: %w", err)
		}
		f.services = svcs
	}
	return f, nil
}

func (f *filter) accepts(adv device.Advertisement) bool {
	addr := adv.Addr()

	for _, blocked := range f.block {
		if strings.EqualFold(addr, blocked) {
			return false
		}
	}

	if len(f.allow) > 0 {
		allowed := false
		for _, a := range f.allow {
			if strings.EqualFold(addr, a) {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	if len(f.services) > 0 {
		advertised := device.NormalizeUUIDs(adv.Services())
		hasRequired := false
		for _, required := range f.services {
			for _, advUUID := range advertised {
				if required == advUUID {
					hasRequired = true
					break
				}
			}
			if hasRequired {
				break
			}
		}
		if !hasRequired {
			return false
		}
	}

	// A peripheral often sends its name only in the scan response, so a nameless
	// advertisement is skipped here and the next one gets another chance
	if f.prefix != "" && !strings.HasPrefix(strings.ToLower(adv.LocalName()), f.prefix) {
		return false
	}

	return true
}

// Package session holds the controller behind the interactive picker: scan,
// connect, auto-select and send, with at most one connected device at a time.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/blesend/internal/device"
	"github.com/srg/blesend/internal/devicefactory"
	"github.com/srg/blesend/internal/groutine"
	"github.com/srg/blesend/scanner"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// DefaultPayload is written by Send unless Options.Payload says otherwise
var DefaultPayload = []byte("Hello from blesend")

var (
	ErrNoTarget = errors.New("no characteristic selected")
	ErrClosed   = errors.New("session closed")
)

// ScanFilter narrows which peripherals show up in the device list
type ScanFilter struct {
	ServiceUUIDs []string
	AllowList    []string
	BlockList    []string
	NamePrefix   string
}

type Options struct {
	Backend        devicefactory.Backend
	ScanTimeout    time.Duration `default:"10s"`
	ConnectTimeout time.Duration `default:"30s"`
	WriteTimeout   time.Duration `default:"5s"`
	Payload        []byte
	// PreferWritable makes AutoSelect skip characteristics that accept no writes
	PreferWritable bool
	// WithoutResponse sends with write commands when the characteristic supports them
	WithoutResponse bool
	ActivitySize    uint32 `default:"64"`
	Filter          ScanFilter
}

// DefaultOptions returns the options used when none are given
func DefaultOptions() Options {
	var opts Options
	defaults.SetDefaults(&opts)
	opts.Backend = devicefactory.DefaultBackend
	opts.Payload = DefaultPayload
	return opts
}

// Target addresses the characteristic Send writes to
type Target struct {
	DeviceID           string
	ServiceUUID        string
	CharacteristicUUID string
	ServiceName        string
	CharacteristicName string
}

func (t Target) String() string {
	svc, char := t.ServiceUUID, t.CharacteristicUUID
	if t.ServiceName != "" {
		svc = fmt.Sprintf("%s (%s)", t.ServiceName, t.ServiceUUID)
	}
	if t.CharacteristicName != "" {
		char = fmt.Sprintf("%s (%s)", t.CharacteristicName, t.CharacteristicUUID)
	}
	return fmt.Sprintf("%s / %s", svc, char)
}

// SendResult describes a completed write
type SendResult struct {
	Target       Target
	Bytes        int
	WithResponse bool
	Elapsed      time.Duration
}

// Controller drives one BLE session. All methods are safe for concurrent use.
type Controller struct {
	opts    Options
	logger  *logrus.Logger
	scanner *scanner.Scanner

	// opMu serializes connect, send and disconnect; mu guards the state below
	opMu sync.Mutex
	mu   sync.Mutex

	devices    *orderedmap.OrderedMap[string, device.DeviceInfo]
	scanCancel context.CancelFunc
	scanDone   chan struct{}
	connected  device.Device
	target     *Target
	lastSend   *SendResult
	alert      *Alert
	closed     bool

	activity *activityLog
	updates  chan struct{}
}

// New creates a controller. Zero option fields take their defaults.
func New(opts Options, logger *logrus.Logger) (*Controller, error) {
	if logger == nil {
		logger = logrus.New()
	}
	defaults.SetDefaults(&opts)
	if opts.Backend == "" {
		opts.Backend = devicefactory.DefaultBackend
	}
	if opts.Payload == nil {
		opts.Payload = DefaultPayload
	}

	sc, err := scanner.NewScanner(logger, opts.Backend)
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	close(done)

	return &Controller{
		opts:     opts,
		logger:   logger,
		scanner:  sc,
		devices:  orderedmap.New[string, device.DeviceInfo](),
		scanDone: done,
		activity: newActivityLog(opts.ActivitySize),
		updates:  make(chan struct{}, 1),
	}, nil
}

// Updates signals that the device list or the session state changed.
// Signals coalesce; read the state through the accessors.
func (c *Controller) Updates() <-chan struct{} {
	return c.updates
}

func (c *Controller) notify() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}

// StartScan clears the device list and starts one scan window in the background.
// Discovered devices stream into Devices; ScanDone closes when the window ends.
func (c *Controller) StartScan(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.scanCancel != nil {
		return scanner.ErrScanInProgress
	}

	c.devices = orderedmap.New[string, device.DeviceInfo]()
	c.drainEvents()

	scanCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.scanCancel = cancel
	c.scanDone = done

	opts := &scanner.ScanOptions{
		Duration:        c.opts.ScanTimeout,
		DuplicateFilter: true,
		ServiceUUIDs:    c.opts.Filter.ServiceUUIDs,
		AllowList:       c.opts.Filter.AllowList,
		BlockList:       c.opts.Filter.BlockList,
		NamePrefix:      c.opts.Filter.NamePrefix,
	}

	c.activity.add(KindScan, "Scanning for %v", c.opts.ScanTimeout)
	c.logger.WithField("timeout", c.opts.ScanTimeout).Info("Session scan started")

	groutine.Go(scanCtx, "session-scan", func(ctx context.Context) {
		c.runScan(ctx, opts, done)
	})
	c.notify()
	return nil
}

// runScan forwards scanner events into the device list until the scan returns
func (c *Controller) runScan(ctx context.Context, opts *scanner.ScanOptions, done chan struct{}) {
	type scanResult struct {
		devices map[string]device.DeviceInfo
		err     error
	}
	result := make(chan scanResult, 1)
	groutine.Go(ctx, "session-scan-window", func(ctx context.Context) {
		devices, err := c.scanner.Scan(ctx, opts, nil)
		result <- scanResult{devices: devices, err: err}
	})

	events := c.scanner.Events()
	var final scanResult
forward:
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			c.addDevice(ev.DeviceInfo)
		case final = <-result:
			break forward
		}
	}
	for {
		select {
		case ev, ok := <-events:
			if ok {
				c.addDevice(ev.DeviceInfo)
				continue
			}
		default:
		}
		break
	}

	c.mu.Lock()
	c.mergeDevices(final.devices)
	if c.scanCancel != nil {
		c.scanCancel()
		c.scanCancel = nil
	}
	count := c.devices.Len()
	if final.err != nil {
		c.raise(OpScan, final.err)
	} else {
		c.activity.add(KindScan, "Scan finished, %d device(s) found", count)
	}
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"device_count": count,
		"goroutine":    groutine.Name(ctx),
	}).Info("Session scan finished")
	close(done)
	c.notify()
}

// mergeDevices adds devices the scan found but whose events were dropped from
// the bounded event channel. Callers hold mu.
func (c *Controller) mergeDevices(found map[string]device.DeviceInfo) {
	missing := make([]string, 0, len(found))
	for addr := range found {
		if _, known := c.devices.Get(addr); !known {
			missing = append(missing, addr)
		}
	}
	sort.Strings(missing)

	for _, addr := range missing {
		info := found[addr]
		c.devices.Set(addr, info)
		c.activity.add(KindScan, "Found %s (%s)", info.Name(), info.Address())
	}
}

func (c *Controller) addDevice(info device.DeviceInfo) {
	c.mu.Lock()
	if _, known := c.devices.Get(info.Address()); !known {
		c.activity.add(KindScan, "Found %s (%s)", info.Name(), info.Address())
	}
	c.devices.Set(info.Address(), info)
	c.mu.Unlock()
	c.notify()
}

// drainEvents drops events left over from a previous scan. Callers hold mu.
func (c *Controller) drainEvents() {
	for {
		select {
		case _, ok := <-c.scanner.Events():
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// Scanning reports whether a scan window is open
func (c *Controller) Scanning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scanCancel != nil
}

// ScanDone is closed when the current or last scan ends. Without a scan it is already closed.
func (c *Controller) ScanDone() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scanDone
}

// StopScan ends a running scan early and waits for it to finish
func (c *Controller) StopScan() {
	c.mu.Lock()
	cancel := c.scanCancel
	done := c.scanDone
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Devices returns the discovered devices in first-seen order
func (c *Controller) Devices() []device.DeviceInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]device.DeviceInfo, 0, c.devices.Len())
	for pair := c.devices.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Connect connects to the device with the given id, dropping any current connection first.
// Ids that were not scanned are treated as addresses.
func (c *Controller) Connect(ctx context.Context, id string) error {
	c.StopScan()

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	previous := c.connected
	c.connected = nil
	c.target = nil
	c.lastSend = nil
	var dev device.Device
	if info, ok := c.devices.Get(id); ok {
		dev, _ = info.(device.Device)
	}
	c.mu.Unlock()

	if previous != nil {
		if err := previous.Disconnect(); err != nil {
			c.logger.WithField("error", err).Warn("Failed to disconnect previous device")
		}
		c.activity.add(KindDisconnect, "Disconnected from %s", previous.Name())
	}
	if dev == nil {
		dev = devicefactory.NewDevice(c.opts.Backend, id, c.logger)
	}

	c.logger.WithFields(logrus.Fields{
		"address": dev.Address(),
		"timeout": c.opts.ConnectTimeout,
	}).Info("Session connecting")

	if err := dev.Connect(ctx, &device.ConnectOptions{ConnectTimeout: c.opts.ConnectTimeout}); err != nil {
		c.mu.Lock()
		c.raise(OpConnect, err)
		c.mu.Unlock()
		c.notify()
		return fmt.Errorf("connect to %s: %w", id, err)
	}

	c.mu.Lock()
	c.connected = dev
	c.activity.add(KindConnect, "Connected to %s (%s), %d service(s)", dev.Name(), dev.Address(), len(dev.GetConnection().Services()))
	c.mu.Unlock()
	c.notify()
	return nil
}

// Connected returns the connected device, or nil
func (c *Controller) Connected() device.Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// AutoSelect picks the first advertised service present in the discovered
// profile, falling back to the first discovered service, and its first
// characteristic. With PreferWritable the first writable characteristic is
// taken instead, searching later services when the chosen one has none.
func (c *Controller) AutoSelect() (Target, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	target, err := c.autoSelect()
	if err != nil {
		c.raise(OpSelect, err)
		return Target{}, err
	}
	c.target = &target
	c.activity.add(KindSelect, "Selected %s", target)
	c.notify()
	return target, nil
}

func (c *Controller) autoSelect() (Target, error) {
	dev := c.connected
	if dev == nil || !dev.IsConnected() {
		return Target{}, device.ErrNotConnected
	}

	conn := dev.GetConnection()
	services := conn.Services()
	if len(services) == 0 {
		return Target{}, device.ErrNoServices
	}

	chosen := services[0]
	for _, uuid := range dev.AdvertisedServices() {
		if svc, err := conn.GetService(uuid); err == nil {
			chosen = svc
			break
		}
	}

	// chosen service first, then the rest in discovery order
	ordered := []device.Service{chosen}
	for _, svc := range services {
		if svc.UUID() != chosen.UUID() {
			ordered = append(ordered, svc)
		}
	}

	if c.opts.PreferWritable {
		for _, svc := range ordered {
			for _, char := range svc.GetCharacteristics() {
				if w, wnr := device.CanWrite(char); w || wnr {
					return newTarget(dev, svc, char), nil
				}
			}
		}
	}

	chars := chosen.GetCharacteristics()
	if len(chars) == 0 {
		return Target{}, fmt.Errorf("service %s: %w", chosen.UUID(), device.ErrNoCharacteristics)
	}
	return newTarget(dev, chosen, chars[0]), nil
}

func newTarget(dev device.Device, svc device.Service, char device.Characteristic) Target {
	return Target{
		DeviceID:           dev.ID(),
		ServiceUUID:        svc.UUID(),
		CharacteristicUUID: char.UUID(),
		ServiceName:        svc.KnownName(),
		CharacteristicName: char.KnownName(),
	}
}

// Select targets an explicit characteristic of the connected device.
// An empty serviceUUID selects the first service holding the characteristic.
func (c *Controller) Select(serviceUUID, charUUID string) (Target, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	target, err := c.selectCharacteristic(serviceUUID, charUUID)
	if err != nil {
		c.raise(OpSelect, err)
		return Target{}, err
	}
	c.target = &target
	c.activity.add(KindSelect, "Selected %s", target)
	c.notify()
	return target, nil
}

func (c *Controller) selectCharacteristic(serviceUUID, charUUID string) (Target, error) {
	dev := c.connected
	if dev == nil {
		return Target{}, device.ErrNotConnected
	}
	conn := dev.GetConnection()

	if serviceUUID == "" {
		want := device.NormalizeUUID(charUUID)
		for _, svc := range conn.Services() {
			for _, char := range svc.GetCharacteristics() {
				if char.UUID() == want {
					return newTarget(dev, svc, char), nil
				}
			}
		}
		return Target{}, &device.NotFoundError{Resource: "characteristic", UUIDs: []string{want}}
	}

	svc, err := conn.GetService(serviceUUID)
	if err != nil {
		return Target{}, err
	}
	char, err := conn.GetCharacteristic(serviceUUID, charUUID)
	if err != nil {
		return Target{}, err
	}
	return newTarget(dev, svc, char), nil
}

// Target returns the selected target
func (c *Controller) Target() (Target, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.target == nil {
		return Target{}, false
	}
	return *c.target, true
}

// Send writes the payload to the selected target, with response when the
// characteristic supports it.
func (c *Controller) Send(ctx context.Context) (SendResult, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	result, err := c.send(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.raise(OpSend, err)
		c.notify()
		return SendResult{}, err
	}
	c.lastSend = &result
	c.activity.add(KindSend, "Sent %d byte(s) to %s in %v", result.Bytes, result.Target.CharacteristicUUID, result.Elapsed.Round(time.Millisecond))
	c.notify()
	return result, nil
}

func (c *Controller) send(ctx context.Context) (SendResult, error) {
	if err := ctx.Err(); err != nil {
		return SendResult{}, err
	}

	c.mu.Lock()
	dev := c.connected
	target := c.target
	c.mu.Unlock()

	if dev == nil || !dev.IsConnected() {
		return SendResult{}, device.ErrNotConnected
	}
	if target == nil {
		return SendResult{}, ErrNoTarget
	}

	char, err := dev.GetConnection().GetCharacteristic(target.ServiceUUID, target.CharacteristicUUID)
	if err != nil {
		return SendResult{}, err
	}

	w, wnr := device.CanWrite(char)
	if !w && !wnr {
		return SendResult{}, fmt.Errorf("characteristic %s: %w", target.CharacteristicUUID, device.ErrUnsupported)
	}
	withResponse := w && !(c.opts.WithoutResponse && wnr)

	c.logger.WithFields(logrus.Fields{
		"service":       target.ServiceUUID,
		"char":          target.CharacteristicUUID,
		"bytes":         len(c.opts.Payload),
		"with_response": withResponse,
	}).Info("Writing payload")

	start := time.Now()
	if err := char.Write(c.opts.Payload, withResponse, c.opts.WriteTimeout); err != nil {
		return SendResult{}, err
	}
	return SendResult{
		Target:       *target,
		Bytes:        len(c.opts.Payload),
		WithResponse: withResponse,
		Elapsed:      time.Since(start),
	}, nil
}

// LastSend returns the result of the last successful Send on the current connection
func (c *Controller) LastSend() (SendResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastSend == nil {
		return SendResult{}, false
	}
	return *c.lastSend, true
}

// Disconnect drops the current connection. Without one it is a no-op.
func (c *Controller) Disconnect() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.disconnect()
}

func (c *Controller) disconnect() error {
	c.mu.Lock()
	dev := c.connected
	c.connected = nil
	c.target = nil
	c.lastSend = nil
	c.mu.Unlock()

	if dev == nil {
		return nil
	}
	err := dev.Disconnect()

	c.mu.Lock()
	if err != nil {
		c.raise(OpDisconnect, err)
	} else {
		c.activity.add(KindDisconnect, "Disconnected from %s", dev.Name())
	}
	c.mu.Unlock()
	c.notify()
	return err
}

// Close stops scanning, disconnects and releases the BLE manager. Safe to call twice.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.StopScan()

	c.opMu.Lock()
	disconnectErr := c.disconnect()
	c.opMu.Unlock()

	c.scanner.Close()
	releaseErr := devicefactory.Release(c.opts.Backend)
	c.logger.Info("Session closed")
	return errors.Join(disconnectErr, releaseErr)
}

// raise records err as the pending alert. Callers hold mu.
func (c *Controller) raise(op Op, err error) {
	alert := AlertFromError(op, err)
	c.alert = alert
	c.activity.add(KindAlert, "%s", alert.Error())
	c.logger.WithFields(logrus.Fields{
		"op":    op,
		"error": err,
	}).Warn("Session operation failed")
}

// TakeAlert returns the pending alert and clears it, so each alert is shown once
func (c *Controller) TakeAlert() *Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	a := c.alert
	c.alert = nil
	return a
}

// Activity removes and returns the activity entries recorded since the last call
func (c *Controller) Activity() []Event {
	return c.activity.drain()
}

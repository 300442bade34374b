package goble

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blesend/internal/device"
)

const (
	// DefaultConnectTimeout applies when Connect is called without options
	DefaultConnectTimeout = 30 * time.Second

	// txPowerUnavailable is what go-ble reports when the advertisement carries no TX power
	txPowerUnavailable = 127

	gapServiceUUID    = "1800"
	gapDeviceNameChar = "2a00"
	gapNameReadTime   = 2 * time.Second
)

// BLEDevice implements the device.Device interface on top of go-ble
type BLEDevice struct {
	id                 string
	name               string
	address            string
	rssi               int
	txPower            *int
	connectable        bool
	lastSeen           time.Time
	advertisedServices []string
	manufData          []byte
	serviceData        map[string][]byte
	connection         *BLEConnection
	logger             *logrus.Logger
	mu                 sync.RWMutex
}

// NewBLEDevice creates a BLEDevice known only by its address
func NewBLEDevice(address string, logger *logrus.Logger) *BLEDevice {
	if logger == nil {
		logger = logrus.New()
	}

	return &BLEDevice{
		id:                 address,
		address:            address,
		advertisedServices: make([]string, 0),
		serviceData:        make(map[string][]byte),
		lastSeen:           time.Now(),
		connection:         NewBLEConnection(logger),
		logger:             logger,
	}
}

// NewBLEDeviceFromAdvertisement creates a BLEDevice from a device.Advertisement
func NewBLEDeviceFromAdvertisement(adv device.Advertisement, logger *logrus.Logger) *BLEDevice {
	dev := NewBLEDevice(adv.Addr(), logger)
	dev.connectable = adv.Connectable()
	dev.Update(adv)
	return dev
}

func (d *BLEDevice) ID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.id
}

// Name returns the best known name, falling back to the address
func (d *BLEDevice) Name() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.name == "" {
		return d.address
	}
	return d.name
}

func (d *BLEDevice) Address() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.address
}

func (d *BLEDevice) RSSI() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.rssi
}

func (d *BLEDevice) TxPower() *int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.txPower
}

func (d *BLEDevice) IsConnectable() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connectable
}

func (d *BLEDevice) AdvertisedServices() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, len(d.advertisedServices))
	copy(out, d.advertisedServices)
	return out
}

func (d *BLEDevice) ManufacturerData() []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.manufData
}

func (d *BLEDevice) ServiceData() map[string][]byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string][]byte, len(d.serviceData))
	for k, v := range d.serviceData {
		out[k] = v
	}
	return out
}

func (d *BLEDevice) LastSeen() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastSeen
}

// Connect establishes a BLE connection, discovers the profile and resolves the GAP device name
func (d *BLEDevice) Connect(ctx context.Context, opts *device.ConnectOptions) error {
	if opts == nil {
		opts = &device.ConnectOptions{ConnectTimeout: DefaultConnectTimeout}
	}

	d.mu.RLock()
	address := d.address
	d.mu.RUnlock()

	if err := d.connection.Connect(ctx, address, opts); err != nil {
		return err
	}

	// GAP Device Name is more authoritative than the advertised one
	char, err := d.connection.GetCharacteristic(gapServiceUUID, gapDeviceNameChar)
	if err != nil {
		return nil
	}
	if props := char.GetProperties(); props == nil || props.Read() == nil {
		return nil
	}
	data, err := char.Read(gapNameReadTime)
	if err != nil {
		d.logger.WithFields(logrus.Fields{
			"address": address,
			"error":   err,
		}).Debug("Failed to read GAP device name")
		return nil
	}

	name := strings.TrimSpace(strings.TrimRight(string(data), "\x00"))
	if device.IsValidDeviceName(name) {
		d.mu.Lock()
		d.name = name
		d.mu.Unlock()
		d.logger.WithFields(logrus.Fields{
			"address": address,
			"name":    name,
		}).Debug("Resolved device name from GAP")
	}
	return nil
}

// Disconnect closes the connection
func (d *BLEDevice) Disconnect() error {
	return d.connection.Disconnect()
}

func (d *BLEDevice) IsConnected() bool {
	return d.connection.IsConnected()
}

// Update refreshes device information from a new advertisement
func (d *BLEDevice) Update(adv device.Advertisement) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.rssi = adv.RSSI()
	d.lastSeen = time.Now()
	if adv.Connectable() {
		d.connectable = true
	}

	if name := adv.LocalName(); name != "" {
		d.name = name
	} else if d.name == "" {
		if extractedName := device.NameFromManufacturerData(adv.ManufacturerData()); extractedName != "" {
			d.name = extractedName
		}
	}

	if manufData := adv.ManufacturerData(); len(manufData) > 0 {
		d.manufData = manufData
	}

	// First-seen order matters: the first advertised service drives auto-selection
	for _, svc := range adv.Services() {
		normalizedSvc := device.NormalizeUUID(svc)
		if !d.hasServiceUUID(normalizedSvc) {
			d.advertisedServices = append(d.advertisedServices, normalizedSvc)
		}
	}

	for _, svcData := range adv.ServiceData() {
		d.serviceData[device.NormalizeUUID(svcData.UUID)] = svcData.Data
	}

	if tx := adv.TxPowerLevel(); tx != txPowerUnavailable {
		d.txPower = &tx
	}
}

// GetConnection returns the BLE connection interface
func (d *BLEDevice) GetConnection() device.Connection {
	return d.connection
}

func (d *BLEDevice) hasServiceUUID(uuid string) bool {
	for _, s := range d.advertisedServices {
		if strings.EqualFold(s, uuid) {
			return true
		}
	}
	return false
}

// Package tinygoble implements the device interfaces over tinygo.org/x/bluetooth,
// which talks to BlueZ over D-Bus on Linux, CoreBluetooth on macOS and WinRT on
// Windows. It needs no raw HCI access.
package tinygoble

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blesend/internal/device"
)

const (
	DefaultConnectTimeout = 30 * time.Second

	gapServiceUUID    = "1800"
	gapDeviceNameChar = "2a00"
)

// Device implements device.Device
type Device struct {
	mu                 sync.RWMutex
	address            string
	name               string
	rssi               int
	connectable        bool
	lastSeen           time.Time
	advertisedServices []string
	manufData          []byte
	serviceData        map[string][]byte

	conn   *Connection
	logger *logrus.Logger
}

// NewDevice creates a device for a known address
func NewDevice(address string, logger *logrus.Logger) *Device {
	return newDevice(DefaultRadio, address, logger)
}

func newDevice(radio Radio, address string, logger *logrus.Logger) *Device {
	if logger == nil {
		logger = logrus.New()
	}
	return &Device{
		address:            address,
		advertisedServices: []string{},
		serviceData:        make(map[string][]byte),
		conn:               newConnection(radio, logger),
		logger:             logger,
	}
}

// NewDeviceFromAdvertisement creates a device from its first advertisement
func NewDeviceFromAdvertisement(adv device.Advertisement, logger *logrus.Logger) *Device {
	d := NewDevice(adv.Addr(), logger)
	d.Update(adv)
	return d
}

func (d *Device) ID() string      { return d.address }
func (d *Device) Address() string { return d.address }

func (d *Device) Name() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.name == "" {
		return d.address
	}
	return d.name
}

func (d *Device) RSSI() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.rssi
}

// TxPower is always nil, the host stacks do not report it
func (d *Device) TxPower() *int { return nil }

func (d *Device) IsConnectable() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connectable
}

func (d *Device) AdvertisedServices() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.advertisedServices...)
}

func (d *Device) ManufacturerData() []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.manufData
}

func (d *Device) ServiceData() map[string][]byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string][]byte, len(d.serviceData))
	for k, v := range d.serviceData {
		out[k] = v
	}
	return out
}

func (d *Device) LastSeen() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastSeen
}

// Update refreshes advertisement data; services keep first-seen order
func (d *Device) Update(adv device.Advertisement) {
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
		d.name = device.NameFromManufacturerData(adv.ManufacturerData())
	}

	if md := adv.ManufacturerData(); len(md) > 0 {
		d.manufData = md
	}

	for _, svc := range adv.Services() {
		uuid := device.NormalizeUUID(svc)
		known := false
		for _, s := range d.advertisedServices {
			if s == uuid {
				known = true
				break
			}
		}
		if !known {
			d.advertisedServices = append(d.advertisedServices, uuid)
		}
	}

	for _, sd := range adv.ServiceData() {
		d.serviceData[device.NormalizeUUID(sd.UUID)] = sd.Data
	}
}

// Connect links to the device and resolves the GAP device name when readable
func (d *Device) Connect(ctx context.Context, opts *device.ConnectOptions) error {
	if opts == nil {
		opts = &device.ConnectOptions{ConnectTimeout: DefaultConnectTimeout}
	}
	if err := d.conn.Connect(ctx, d.address, opts); err != nil {
		return err
	}

	char, err := d.conn.GetCharacteristic(gapServiceUUID, gapDeviceNameChar)
	if err != nil || char.GetProperties().Read() == nil {
		return nil
	}
	data, err := char.Read(2 * time.Second)
	if err != nil {
		d.logger.WithField("error", err).Debug("GAP device name is not readable")
		return nil
	}
	if name := strings.TrimSpace(strings.TrimRight(string(data), "\x00")); device.IsValidDeviceName(name) {
		d.mu.Lock()
		d.name = name
		d.mu.Unlock()
	}
	return nil
}

func (d *Device) Disconnect() error                { return d.conn.Disconnect() }
func (d *Device) IsConnected() bool                { return d.conn.IsConnected() }
func (d *Device) GetConnection() device.Connection { return d.conn }

var _ device.Device = (*Device)(nil)

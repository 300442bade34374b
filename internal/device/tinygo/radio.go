package tinygoble

import (
	"sync"

	"github.com/srg/blesend/internal/device"
	"tinygo.org/x/bluetooth"
)

// Radio is the part of the host adapter the backend drives.
type Radio interface {
	Enable() error
	// Scan blocks, reporting every advertisement, until StopScan is called.
	Scan(handler func(device.Advertisement)) error
	StopScan() error
	Connect(address string) (Link, error)
}

// Link is an established connection to a peripheral.
type Link interface {
	DiscoverServices() ([]RemoteService, error)
	Disconnect() error
}

type RemoteService interface {
	UUID() string
	DiscoverCharacteristics() ([]RemoteCharacteristic, error)
}

type RemoteCharacteristic interface {
	UUID() string
	// Properties returns the GATT property bits (device.PropRead, ...).
	Properties() int
	Read(buf []byte) (int, error)
	Write(p []byte) (int, error)
	WriteWithoutResponse(p []byte) (int, error)
}

// DefaultRadio is the host adapter (BlueZ, CoreBluetooth or WinRT). Tests replace it.
var DefaultRadio Radio = newHostRadio(bluetooth.DefaultAdapter)

type hostRadio struct {
	adapter *bluetooth.Adapter

	enableOnce sync.Once
	enableErr  error
}

func newHostRadio(adapter *bluetooth.Adapter) *hostRadio {
	return &hostRadio{adapter: adapter}
}

// Enable powers the adapter up once per process.
func (r *hostRadio) Enable() error {
	r.enableOnce.Do(func() {
		r.enableErr = r.adapter.Enable()
	})
	return r.enableErr
}

func (r *hostRadio) Scan(handler func(device.Advertisement)) error {
	return r.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
		handler(newAdvertisement(result))
	})
}

func (r *hostRadio) StopScan() error {
	return r.adapter.StopScan()
}

func (r *hostRadio) Connect(address string) (Link, error) {
	var addr bluetooth.Address
	addr.Set(address)

	dev, err := r.adapter.Connect(addr, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, err
	}
	return &hostLink{dev: dev}, nil
}

type hostLink struct {
	dev bluetooth.Device
}

func (l *hostLink) DiscoverServices() ([]RemoteService, error) {
	svcs, err := l.dev.DiscoverServices(nil)
	if err != nil {
		return nil, err
	}
	out := make([]RemoteService, len(svcs))
	for i := range svcs {
		out[i] = &hostService{svc: svcs[i]}
	}
	return out, nil
}

func (l *hostLink) Disconnect() error {
	return l.dev.Disconnect()
}

type hostService struct {
	svc bluetooth.DeviceService
}

func (s *hostService) UUID() string {
	return s.svc.UUID().String()
}

func (s *hostService) DiscoverCharacteristics() ([]RemoteCharacteristic, error) {
	chars, err := s.svc.DiscoverCharacteristics(nil)
	if err != nil {
		return nil, err
	}
	out := make([]RemoteCharacteristic, len(chars))
	for i := range chars {
		out[i] = &hostCharacteristic{char: chars[i]}
	}
	return out, nil
}

// hostCharacteristic wraps a discovered characteristic. tinygo exposes a
// different method set per host, so its I/O and property bits live in the
// per-OS files.
type hostCharacteristic struct {
	char bluetooth.DeviceCharacteristic
}

func (c *hostCharacteristic) UUID() string { return c.char.UUID().String() }

func (c *hostCharacteristic) WriteWithoutResponse(p []byte) (int, error) {
	return c.char.WriteWithoutResponse(p)
}

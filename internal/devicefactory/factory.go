// Package devicefactory selects the BLE backend the rest of the tool runs on.
package devicefactory

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/srg/blesend/internal/device"
	goble "github.com/srg/blesend/internal/device/go-ble"
	tinygoble "github.com/srg/blesend/internal/device/tinygo"
)

// Backend names a BLE stack implementation
type Backend string

const (
	// GoBLE drives the controller through go-ble (HCI socket on Linux, CoreBluetooth on macOS)
	GoBLE Backend = "goble"
	// TinyGo drives the host stack through tinygo bluetooth (BlueZ D-Bus, CoreBluetooth, WinRT)
	TinyGo Backend = "tinygo"

	DefaultBackend = GoBLE
)

// Backends lists the accepted backend names
var Backends = []Backend{GoBLE, TinyGo}

// ParseBackend accepts a backend name case-insensitively; empty selects the default.
func ParseBackend(s string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultBackend, nil
	case GoBLE, "go-ble":
		return GoBLE, nil
	case TinyGo, "tinygo-ble":
		return TinyGo, nil
	default:
		return "", fmt.Errorf("unknown BLE backend %q (expected one of %v)", s, Backends)
	}
}

func (b Backend) String() string { return string(b) }

// NewScanner opens the BLE manager of the backend for scanning
func NewScanner(b Backend, logger *logrus.Logger) (device.Scanner, error) {
	switch b {
	case TinyGo:
		return tinygoble.NewScanner(logger)
	case GoBLE, "":
		return goble.NewScanner()
	default:
		return nil, fmt.Errorf("%w: backend %q", device.ErrUnsupported, b)
	}
}

// NewDevice creates a device for a known address.
// Connecting it opens the BLE manager of the backend if nothing did yet.
func NewDevice(b Backend, address string, logger *logrus.Logger) device.Device {
	if b == TinyGo {
		return tinygoble.NewDevice(address, logger)
	}
	return goble.NewBLEDevice(address, logger)
}

// NewDeviceFromAdvertisement creates a device from a scanned advertisement
func NewDeviceFromAdvertisement(b Backend, adv device.Advertisement, logger *logrus.Logger) device.Device {
	if b == TinyGo {
		return tinygoble.NewDeviceFromAdvertisement(adv, logger)
	}
	return goble.NewBLEDeviceFromAdvertisement(adv, logger)
}

// Release frees the process-wide BLE manager of the backend
func Release(b Backend) error {
	if b == TinyGo {
		// The tinygo adapter has no teardown, it lives as long as the process
		return nil
	}
	return goble.Release()
}

package goble

import (
	"sync"

	"github.com/go-ble/ble"
)

// DeviceFactory creates ble.Device instances (can be overridden in tests)
//
//nolint:revive // DeviceFactory name is intentional for test mocking as goble.DeviceFactory
var DeviceFactory = func() (ble.Device, error) {
	return newPlatformDevice()
}

// The host BLE manager is a process-wide resource: go-ble keeps a default device
// and CoreBluetooth allows a single central manager per process.
var (
	sharedMu  sync.Mutex
	sharedDev ble.Device
)

// acquireDevice returns the shared ble.Device, creating it on first use.
func acquireDevice() (ble.Device, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if sharedDev != nil {
		return sharedDev, nil
	}

	dev, err := DeviceFactory()
	if err != nil {
		return nil, NormalizeError(err)
	}
	ble.SetDefaultDevice(dev)
	sharedDev = dev
	return dev, nil
}

// Release stops the shared ble.Device and forgets it. The next scan or connect
// creates a fresh one. Safe to call when nothing was acquired.
func Release() error {
	sharedMu.Lock()
	dev := sharedDev
	sharedDev = nil
	sharedMu.Unlock()

	if dev == nil {
		return nil
	}
	return NormalizeError(dev.Stop())
}

// Package device provides the Bluetooth Low Energy (BLE) abstractions the rest
// of the tool is written against.
//
// The package defines:
//   - Scanner, Advertisement and DeviceInfo for discovery
//   - Device and Connection for the connect/discover lifecycle
//   - Service, Characteristic and Properties for GATT addressing and writes
//   - a typed error taxonomy (ConnectionError, NotFoundError and sentinels)
//
// Concrete implementations live in the go-ble and tinygo sub-packages.
package device

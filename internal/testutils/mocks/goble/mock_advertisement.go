package mocks

import (
	ble "github.com/go-ble/ble"
	mock "github.com/stretchr/testify/mock"
)

// MockAdvertisement is a mock type for the ble.Advertisement type
type MockAdvertisement struct {
	mock.Mock
}

// LocalName provides a mock function with no fields
func (_m *MockAdvertisement) LocalName() string {
	ret := _m.Called()
	return ret.String(0)
}

// ManufacturerData provides a mock function with no fields
func (_m *MockAdvertisement) ManufacturerData() []byte {
	ret := _m.Called()
	var r0 []byte
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]byte)
	}
	return r0
}

// ServiceData provides a mock function with no fields
func (_m *MockAdvertisement) ServiceData() []ble.ServiceData {
	ret := _m.Called()
	var r0 []ble.ServiceData
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]ble.ServiceData)
	}
	return r0
}

// Services provides a mock function with no fields
func (_m *MockAdvertisement) Services() []ble.UUID {
	ret := _m.Called()
	var r0 []ble.UUID
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]ble.UUID)
	}
	return r0
}

// OverflowService provides a mock function with no fields
func (_m *MockAdvertisement) OverflowService() []ble.UUID {
	ret := _m.Called()
	var r0 []ble.UUID
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]ble.UUID)
	}
	return r0
}

// TxPowerLevel provides a mock function with no fields
func (_m *MockAdvertisement) TxPowerLevel() int {
	ret := _m.Called()
	return ret.Int(0)
}

// Connectable provides a mock function with no fields
func (_m *MockAdvertisement) Connectable() bool {
	ret := _m.Called()
	return ret.Bool(0)
}

// SolicitedService provides a mock function with no fields
func (_m *MockAdvertisement) SolicitedService() []ble.UUID {
	ret := _m.Called()
	var r0 []ble.UUID
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]ble.UUID)
	}
	return r0
}

// RSSI provides a mock function with no fields
func (_m *MockAdvertisement) RSSI() int {
	ret := _m.Called()
	return ret.Int(0)
}

// Addr provides a mock function with no fields
func (_m *MockAdvertisement) Addr() ble.Addr {
	ret := _m.Called()
	var r0 ble.Addr
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(ble.Addr)
	}
	return r0
}

// MockAddr is a mock type for the ble.Addr type
type MockAddr struct {
	mock.Mock
}

// String provides a mock function with no fields
func (_m *MockAddr) String() string {
	ret := _m.Called()
	return ret.String(0)
}

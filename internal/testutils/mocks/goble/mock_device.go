package mocks

import (
	"context"

	ble "github.com/go-ble/ble"
	mock "github.com/stretchr/testify/mock"
)

// MockDevice is a mock type for the ble.Device type
type MockDevice struct {
	mock.Mock
}

// AddService provides a mock function with given fields: svc
func (_m *MockDevice) AddService(svc *ble.Service) error {
	ret := _m.Called(svc)
	return ret.Error(0)
}

// RemoveAllServices provides a mock function with no fields
func (_m *MockDevice) RemoveAllServices() error {
	ret := _m.Called()
	return ret.Error(0)
}

// SetServices provides a mock function with given fields: svcs
func (_m *MockDevice) SetServices(svcs []*ble.Service) error {
	ret := _m.Called(svcs)
	return ret.Error(0)
}

// Stop provides a mock function with no fields
func (_m *MockDevice) Stop() error {
	ret := _m.Called()
	return ret.Error(0)
}

// Advertise provides a mock function with given fields: ctx, adv
func (_m *MockDevice) Advertise(ctx context.Context, adv ble.Advertisement) error {
	ret := _m.Called(ctx, adv)
	return ret.Error(0)
}

// AdvertiseNameAndServices provides a mock function with given fields: ctx, name, ss
func (_m *MockDevice) AdvertiseNameAndServices(ctx context.Context, name string, ss ...ble.UUID) error {
	ret := _m.Called(ctx, name, ss)
	return ret.Error(0)
}

// AdvertiseMfgData provides a mock function with given fields: ctx, id, b
func (_m *MockDevice) AdvertiseMfgData(ctx context.Context, id uint16, b []byte) error {
	ret := _m.Called(ctx, id, b)
	return ret.Error(0)
}

// AdvertiseServiceData16 provides a mock function with given fields: ctx, id, b
func (_m *MockDevice) AdvertiseServiceData16(ctx context.Context, id uint16, b []byte) error {
	ret := _m.Called(ctx, id, b)
	return ret.Error(0)
}

// AdvertiseIBeaconData provides a mock function with given fields: ctx, b
func (_m *MockDevice) AdvertiseIBeaconData(ctx context.Context, b []byte) error {
	ret := _m.Called(ctx, b)
	return ret.Error(0)
}

// AdvertiseIBeacon provides a mock function with given fields: ctx, u, major, minor, pwr
func (_m *MockDevice) AdvertiseIBeacon(ctx context.Context, u ble.UUID, major uint16, minor uint16, pwr int8) error {
	ret := _m.Called(ctx, u, major, minor, pwr)
	return ret.Error(0)
}

// Scan provides a mock function with given fields: ctx, allowDup, h
func (_m *MockDevice) Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error {
	ret := _m.Called(ctx, allowDup, h)

	if rf, ok := ret.Get(0).(func(context.Context, bool, ble.AdvHandler) error); ok {
		return rf(ctx, allowDup, h)
	}
	return ret.Error(0)
}

// Dial provides a mock function with given fields: ctx, a
func (_m *MockDevice) Dial(ctx context.Context, a ble.Addr) (ble.Client, error) {
	ret := _m.Called(ctx, a)

	if rf, ok := ret.Get(0).(func(context.Context, ble.Addr) (ble.Client, error)); ok {
		return rf(ctx, a)
	}

	var r0 ble.Client
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(ble.Client)
	}
	return r0, ret.Error(1)
}

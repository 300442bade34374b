package mocks

import (
	ble "github.com/go-ble/ble"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the ble.Client type
type MockClient struct {
	mock.Mock
}

// Addr provides a mock function with no fields
func (_m *MockClient) Addr() ble.Addr {
	ret := _m.Called()
	var r0 ble.Addr
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(ble.Addr)
	}
	return r0
}

// Name provides a mock function with no fields
func (_m *MockClient) Name() string {
	ret := _m.Called()
	return ret.String(0)
}

// Profile provides a mock function with no fields
func (_m *MockClient) Profile() *ble.Profile {
	ret := _m.Called()
	var r0 *ble.Profile
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*ble.Profile)
	}
	return r0
}

// DiscoverProfile provides a mock function with given fields: force
func (_m *MockClient) DiscoverProfile(force bool) (*ble.Profile, error) {
	ret := _m.Called(force)
	var r0 *ble.Profile
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*ble.Profile)
	}
	return r0, ret.Error(1)
}

// DiscoverServices provides a mock function with given fields: filter
func (_m *MockClient) DiscoverServices(filter []ble.UUID) ([]*ble.Service, error) {
	ret := _m.Called(filter)
	var r0 []*ble.Service
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]*ble.Service)
	}
	return r0, ret.Error(1)
}

// DiscoverIncludedServices provides a mock function with given fields: filter, s
func (_m *MockClient) DiscoverIncludedServices(filter []ble.UUID, s *ble.Service) ([]*ble.Service, error) {
	ret := _m.Called(filter, s)
	var r0 []*ble.Service
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]*ble.Service)
	}
	return r0, ret.Error(1)
}

// DiscoverCharacteristics provides a mock function with given fields: filter, s
func (_m *MockClient) DiscoverCharacteristics(filter []ble.UUID, s *ble.Service) ([]*ble.Characteristic, error) {
	ret := _m.Called(filter, s)
	var r0 []*ble.Characteristic
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]*ble.Characteristic)
	}
	return r0, ret.Error(1)
}

// DiscoverDescriptors provides a mock function with given fields: filter, c
func (_m *MockClient) DiscoverDescriptors(filter []ble.UUID, c *ble.Characteristic) ([]*ble.Descriptor, error) {
	ret := _m.Called(filter, c)
	var r0 []*ble.Descriptor
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]*ble.Descriptor)
	}
	return r0, ret.Error(1)
}

// ReadCharacteristic provides a mock function with given fields: c
func (_m *MockClient) ReadCharacteristic(c *ble.Characteristic) ([]byte, error) {
	ret := _m.Called(c)
	var r0 []byte
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]byte)
	}
	return r0, ret.Error(1)
}

// ReadLongCharacteristic provides a mock function with given fields: c
func (_m *MockClient) ReadLongCharacteristic(c *ble.Characteristic) ([]byte, error) {
	ret := _m.Called(c)
	var r0 []byte
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]byte)
	}
	return r0, ret.Error(1)
}

// WriteCharacteristic provides a mock function with given fields: c, value, noRsp
func (_m *MockClient) WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error {
	ret := _m.Called(c, value, noRsp)
	return ret.Error(0)
}

// ReadDescriptor provides a mock function with given fields: d
func (_m *MockClient) ReadDescriptor(d *ble.Descriptor) ([]byte, error) {
	ret := _m.Called(d)
	var r0 []byte
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]byte)
	}
	return r0, ret.Error(1)
}

// WriteDescriptor provides a mock function with given fields: d, v
func (_m *MockClient) WriteDescriptor(d *ble.Descriptor, v []byte) error {
	ret := _m.Called(d, v)
	return ret.Error(0)
}

// ReadRSSI provides a mock function with no fields
func (_m *MockClient) ReadRSSI() int {
	ret := _m.Called()
	return ret.Int(0)
}

// ExchangeMTU provides a mock function with given fields: rxMTU
func (_m *MockClient) ExchangeMTU(rxMTU int) (int, error) {
	ret := _m.Called(rxMTU)
	return ret.Int(0), ret.Error(1)
}

// Subscribe provides a mock function with given fields: c, ind, h
func (_m *MockClient) Subscribe(c *ble.Characteristic, ind bool, h ble.NotificationHandler) error {
	ret := _m.Called(c, ind, h)
	return ret.Error(0)
}

// Unsubscribe provides a mock function with given fields: c, ind
func (_m *MockClient) Unsubscribe(c *ble.Characteristic, ind bool) error {
	ret := _m.Called(c, ind)
	return ret.Error(0)
}

// ClearSubscriptions provides a mock function with no fields
func (_m *MockClient) ClearSubscriptions() error {
	ret := _m.Called()
	return ret.Error(0)
}

// CancelConnection provides a mock function with no fields
func (_m *MockClient) CancelConnection() error {
	ret := _m.Called()
	return ret.Error(0)
}

// Disconnected provides a mock function with no fields
func (_m *MockClient) Disconnected() <-chan struct{} {
	ret := _m.Called()
	var r0 <-chan struct{}
	if ret.Get(0) != nil {
		switch v := ret.Get(0).(type) {
		case chan struct{}:
			r0 = v
		case <-chan struct{}:
			r0 = v
		}
	}
	return r0
}

// Conn provides a mock function with no fields
func (_m *MockClient) Conn() ble.Conn {
	ret := _m.Called()
	var r0 ble.Conn
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(ble.Conn)
	}
	return r0
}

package tinygoble

import (
	"github.com/srg/blesend/internal/device"
	"github.com/stretchr/testify/mock"
)

type MockRadio struct {
	mock.Mock
}

func (m *MockRadio) Enable() error {
	return m.Called().Error(0)
}

func (m *MockRadio) Scan(handler func(device.Advertisement)) error {
	return m.Called(handler).Error(0)
}

func (m *MockRadio) StopScan() error {
	return m.Called().Error(0)
}

func (m *MockRadio) Connect(address string) (Link, error) {
	ret := m.Called(address)
	if fn, ok := ret.Get(0).(func(string) (Link, error)); ok {
		return fn(address)
	}
	link, _ := ret.Get(0).(Link)
	return link, ret.Error(1)
}

type MockLink struct {
	mock.Mock
}

func (m *MockLink) DiscoverServices() ([]RemoteService, error) {
	ret := m.Called()
	svcs, _ := ret.Get(0).([]RemoteService)
	return svcs, ret.Error(1)
}

func (m *MockLink) Disconnect() error {
	return m.Called().Error(0)
}

type MockService struct {
	mock.Mock
}

func (m *MockService) UUID() string {
	return m.Called().String(0)
}

func (m *MockService) DiscoverCharacteristics() ([]RemoteCharacteristic, error) {
	ret := m.Called()
	chars, _ := ret.Get(0).([]RemoteCharacteristic)
	return chars, ret.Error(1)
}

type MockCharacteristic struct {
	mock.Mock
}

func (m *MockCharacteristic) UUID() string {
	return m.Called().String(0)
}

func (m *MockCharacteristic) Properties() int {
	return m.Called().Int(0)
}

func (m *MockCharacteristic) Read(buf []byte) (int, error) {
	ret := m.Called(buf)
	return ret.Int(0), ret.Error(1)
}

func (m *MockCharacteristic) Write(p []byte) (int, error) {
	ret := m.Called(p)
	return ret.Int(0), ret.Error(1)
}

func (m *MockCharacteristic) WriteWithoutResponse(p []byte) (int, error) {
	ret := m.Called(p)
	return ret.Int(0), ret.Error(1)
}

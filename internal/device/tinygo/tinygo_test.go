package tinygoble

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blesend/internal/device"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type TinygoBackendSuite struct {
	suite.Suite
	logger *logrus.Logger
	radio  *MockRadio
	link   *MockLink

	mu     sync.Mutex
	writes [][]byte
	noRsp  []bool
}

func (s *TinygoBackendSuite) SetupTest() {
	s.logger = logrus.New()
	s.logger.SetLevel(logrus.DebugLevel)
	s.radio = &MockRadio{}
	s.radio.On("Enable").Return(nil).Maybe()
	s.link = &MockLink{}
	s.link.On("Disconnect").Return(nil).Maybe()
	s.writes = nil
	s.noRsp = nil
}

func (s *TinygoBackendSuite) recorder(noRsp bool) func(mock.Arguments) {
	return func(args mock.Arguments) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.writes = append(s.writes, append([]byte(nil), args.Get(0).([]byte)...))
		s.noRsp = append(s.noRsp, noRsp)
	}
}

func (s *TinygoBackendSuite) characteristic(uuid string, props int) *MockCharacteristic {
	c := &MockCharacteristic{}
	c.On("UUID").Return(uuid)
	c.On("Properties").Return(props)
	c.On("Write", mock.Anything).Run(s.recorder(false)).Return(0, nil).Maybe()
	c.On("WriteWithoutResponse", mock.Anything).Run(s.recorder(true)).Return(0, nil).Maybe()
	return c
}

func (s *TinygoBackendSuite) service(uuid string, chars ...RemoteCharacteristic) *MockService {
	svc := &MockService{}
	svc.On("UUID").Return(uuid)
	svc.On("DiscoverCharacteristics").Return(chars, nil)
	return svc
}

// useProfile makes the radio connect to a link exposing a GAP service and a Nordic UART service
func (s *TinygoBackendSuite) useProfile() {
	name := s.characteristic("00002a00-0000-1000-8000-00805f9b34fb", device.PropRead)
	name.On("Read", mock.Anything).Run(func(args mock.Arguments) {
		copy(args.Get(0).([]byte), "Thermo-42\x00")
	}).Return(10, nil)

	s.link.On("DiscoverServices").Return([]RemoteService{
		s.service("00001800-0000-1000-8000-00805f9b34fb", name),
		s.service("6e400001-b5a3-f393-e0a9-e50e24dcca9e",
			s.characteristic("6e400002-b5a3-f393-e0a9-e50e24dcca9e", device.PropWrite|device.PropWriteWithoutResponse),
			s.characteristic("6e400003-b5a3-f393-e0a9-e50e24dcca9e", device.PropNotify)),
	}, nil)
	s.radio.On("Connect", "AA:BB:CC:DD:EE:FF").Return(s.link, nil)
}

func (s *TinygoBackendSuite) TestScan_DeduplicatesAndStopsOnCancel() {
	// GOAL: Verify the blocking host scan is stopped when the context ends and duplicates are dropped
	//
	// TEST SCENARIO: radio reports A, A, B → handler sees A, B → ctx canceled → StopScan called → context error returned

	stop := make(chan struct{})
	s.radio.On("Scan", mock.Anything).Run(func(args mock.Arguments) {
		h := args.Get(0).(func(device.Advertisement))
		h(&Advertisement{Address: "A", Signal: -40})
		h(&Advertisement{Address: "A", Signal: -41})
		h(&Advertisement{Address: "B", Signal: -70})
		<-stop
	}).Return(nil)
	var once sync.Once
	s.radio.On("StopScan").Run(func(mock.Arguments) { once.Do(func() { close(stop) }) }).Return(nil)

	scanner, err := newScanner(s.radio, s.logger)
	s.Require().NoError(err)

	var seen []string
	var mu sync.Mutex
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err = scanner.Scan(ctx, false, func(adv device.Advertisement) {
		mu.Lock()
		seen = append(seen, adv.Addr())
		mu.Unlock()
	})

	s.ErrorIs(err, context.DeadlineExceeded)
	s.Equal([]string{"A", "B"}, seen, "duplicate advertisements MUST be dropped")
	s.radio.AssertCalled(s.T(), "StopScan")
	s.NoError(scanner.Close())
}

// lateRadio registers its host scan some time after Scan is called and
// rejects StopScan until then, as BlueZ and CoreBluetooth do.
type lateRadio struct {
	MockRadio
	startDelay time.Duration
	entered    chan struct{}
	registered atomic.Bool
	stop       chan struct{}
	stopOnce   sync.Once
	stopCalls  atomic.Int32
}

func newLateRadio(startDelay time.Duration) *lateRadio {
	return &lateRadio{startDelay: startDelay, entered: make(chan struct{}), stop: make(chan struct{})}
}

func (r *lateRadio) Enable() error { return nil }

func (r *lateRadio) Scan(func(device.Advertisement)) error {
	close(r.entered)
	time.Sleep(r.startDelay)
	r.registered.Store(true)
	<-r.stop
	return nil
}

func (r *lateRadio) StopScan() error {
	r.stopCalls.Add(1)
	if !r.registered.Load() {
		return errors.New("no scan in progress")
	}
	r.stopOnce.Do(func() { close(r.stop) })
	return nil
}

func (s *TinygoBackendSuite) TestScan_CancelBeforeHostScanRegisters() {
	// GOAL: Verify a scan cancelled while the host scan is still starting returns instead of hanging
	//
	// TEST SCENARIO: host scan registers 30ms late → ctx cancelled at once → first StopScan rejected → retried → Scan returns

	radio := newLateRadio(30 * time.Millisecond)
	scanner, err := newScanner(radio, s.logger)
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-radio.entered
		cancel()
	}()

	result := make(chan error, 1)
	go func() { result <- scanner.Scan(ctx, false, func(device.Advertisement) {}) }()

	select {
	case err := <-result:
		s.ErrorIs(err, context.Canceled)
	case <-time.After(2 * time.Second):
		s.FailNow("Scan MUST return after cancellation even when the host scan starts late")
	}
	s.Greater(radio.stopCalls.Load(), int32(1), "StopScan MUST be retried until the host scan stops")
}

func (s *TinygoBackendSuite) TestScan_AlreadyCancelled() {
	s.radio.On("StopScan").Return(nil).Maybe()
	scanner, err := newScanner(s.radio, s.logger)
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = scanner.Scan(ctx, false, func(device.Advertisement) {})

	s.ErrorIs(err, context.Canceled)
	s.radio.AssertNotCalled(s.T(), "Scan", mock.Anything)
}

func (s *TinygoBackendSuite) TestScan_EnableFailure() {
	radio := &MockRadio{}
	radio.On("Enable").Return(errors.New("bluetooth adapter is powered off"))

	_, err := newScanner(radio, s.logger)

	s.ErrorIs(err, device.ErrBluetoothOff, "adapter power errors MUST normalize to ErrBluetoothOff")
}

func (s *TinygoBackendSuite) TestConnect_DiscoversProfileAndName() {
	s.useProfile()
	dev := newDevice(s.radio, "AA:BB:CC:DD:EE:FF", s.logger)

	s.Require().NoError(dev.Connect(context.Background(), nil))

	s.True(dev.IsConnected())
	s.Equal("Thermo-42", dev.Name(), "GAP device name MUST be resolved")

	services := dev.GetConnection().Services()
	s.Require().Len(services, 2)
	s.Equal("1800", services[0].UUID(), "SIG UUIDs MUST collapse to the 16-bit form")
	s.Equal("Nordic UART Service", services[1].KnownName())
	chars := services[1].GetCharacteristics()
	s.Require().Len(chars, 2)
	s.Equal("6e400002b5a3f393e0a9e50e24dcca9e", chars[0].UUID(), "characteristics MUST keep discovery order")

	s.ErrorIs(dev.Connect(context.Background(), nil), device.ErrAlreadyConnected)

	s.Require().NoError(dev.Disconnect())
	s.False(dev.IsConnected())
	s.NoError(dev.Disconnect(), "second disconnect MUST be a no-op")
}

func (s *TinygoBackendSuite) TestConnect_ReportsHostProperties() {
	// GOAL: Verify characteristics carry the property bits the host reports
	//
	// TEST SCENARIO: UART RX write+write-no-rsp, UART TX notify only → CanWrite follows the bits

	s.useProfile()
	dev := newDevice(s.radio, "AA:BB:CC:DD:EE:FF", s.logger)
	s.Require().NoError(dev.Connect(context.Background(), nil))

	rx, err := dev.GetConnection().GetCharacteristic("6e400001-b5a3-f393-e0a9-e50e24dcca9e", "6e400002-b5a3-f393-e0a9-e50e24dcca9e")
	s.Require().NoError(err)
	w, wnr := device.CanWrite(rx)
	s.True(w)
	s.True(wnr)

	tx, err := dev.GetConnection().GetCharacteristic("6e400001-b5a3-f393-e0a9-e50e24dcca9e", "6e400003-b5a3-f393-e0a9-e50e24dcca9e")
	s.Require().NoError(err)
	w, wnr = device.CanWrite(tx)
	s.False(w, "notify-only characteristic MUST NOT report write")
	s.False(wnr, "notify-only characteristic MUST NOT report write without response")
	s.Equal([]string{"Notify"}, device.PropertyNames(tx.GetProperties()))
}

func (s *TinygoBackendSuite) TestConnect_SkipsUnreadableDeviceName() {
	name := s.characteristic("00002a00-0000-1000-8000-00805f9b34fb", device.PropWrite)
	s.link.On("DiscoverServices").Return([]RemoteService{
		s.service("00001800-0000-1000-8000-00805f9b34fb", name),
	}, nil)
	s.radio.On("Connect", "AA:BB:CC:DD:EE:FF").Return(s.link, nil)
	dev := newDevice(s.radio, "AA:BB:CC:DD:EE:FF", s.logger)

	s.Require().NoError(dev.Connect(context.Background(), nil))

	name.AssertNotCalled(s.T(), "Read", mock.Anything)
	s.Equal("AA:BB:CC:DD:EE:FF", dev.Name(), "name MUST stay unresolved when 2a00 is not readable")
}

func (s *TinygoBackendSuite) TestConnect_Timeout() {
	release := make(chan struct{})
	defer close(release)
	link := s.link
	s.radio.On("Connect", mock.Anything).Return(func(string) (Link, error) {
		<-release
		return link, nil
	})
	dev := newDevice(s.radio, "AA:BB:CC:DD:EE:FF", s.logger)

	err := dev.Connect(context.Background(), &device.ConnectOptions{ConnectTimeout: 20 * time.Millisecond})

	s.ErrorIs(err, device.ErrTimeout)
	s.False(dev.IsConnected())
}

func (s *TinygoBackendSuite) TestConnect_DiscoveryFailureDropsLink() {
	s.link.On("DiscoverServices").Return(nil, errors.New("org.bluez.Error.Failed"))
	s.radio.On("Connect", "AA:BB:CC:DD:EE:FF").Return(s.link, nil)
	dev := newDevice(s.radio, "AA:BB:CC:DD:EE:FF", s.logger)

	err := dev.Connect(context.Background(), nil)

	s.Require().Error(err)
	s.Contains(err.Error(), "failed to discover profile")
	s.False(dev.IsConnected())
	s.link.AssertCalled(s.T(), "Disconnect")
}

func (s *TinygoBackendSuite) TestWrite_ChunksAndResponseMode() {
	s.useProfile()
	dev := newDevice(s.radio, "AA:BB:CC:DD:EE:FF", s.logger)
	s.Require().NoError(dev.Connect(context.Background(), nil))

	char, err := dev.GetConnection().GetCharacteristic("6e400001-b5a3-f393-e0a9-e50e24dcca9e", "6e400002-b5a3-f393-e0a9-e50e24dcca9e")
	s.Require().NoError(err)

	payload := make([]byte, 41)
	s.Require().NoError(char.Write(payload, false, time.Second))
	s.Require().NoError(char.Write([]byte("ok"), true, time.Second))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.Require().Len(s.writes, 4)
	s.Len(s.writes[0], 20)
	s.Len(s.writes[1], 20)
	s.Len(s.writes[2], 1)
	s.Equal([]bool{true, true, true, false}, s.noRsp, "response mode MUST follow withResponse")
	s.Equal([]byte("ok"), s.writes[3])
}

func (s *TinygoBackendSuite) TestWrite_NotConnected() {
	s.useProfile()
	dev := newDevice(s.radio, "AA:BB:CC:DD:EE:FF", s.logger)
	s.Require().NoError(dev.Connect(context.Background(), nil))
	char, err := dev.GetConnection().GetCharacteristic("1800", "2a00")
	s.Require().NoError(err)
	s.Require().NoError(dev.Disconnect())

	err = char.Write([]byte{1}, true, time.Second)

	s.ErrorIs(err, device.ErrNotConnected)
	s.Contains(err.Error(), "2a00")
}

func (s *TinygoBackendSuite) TestGetCharacteristic_NotFound() {
	s.useProfile()
	dev := newDevice(s.radio, "AA:BB:CC:DD:EE:FF", s.logger)
	s.Require().NoError(dev.Connect(context.Background(), nil))

	_, err := dev.GetConnection().GetCharacteristic("1800", "2a01")

	var nf *device.NotFoundError
	s.Require().ErrorAs(err, &nf)
	s.Equal("characteristic", nf.Resource)
}

func (s *TinygoBackendSuite) TestDeviceUpdate() {
	dev := newDevice(s.radio, "11:22:33:44:55:66", s.logger)
	dev.Update(&Advertisement{
		Address:      "11:22:33:44:55:66",
		Signal:       -60,
		ServiceUUIDs: []string{"0000180f-0000-1000-8000-00805f9b34fb"},
		Manufacturer: []byte{0x59, 0x00, 'N', 'o', 'r', 'd', 'i', 'c'},
	})
	dev.Update(&Advertisement{
		Address:      "11:22:33:44:55:66",
		Signal:       -55,
		ServiceUUIDs: []string{"0000180d-0000-1000-8000-00805f9b34fb", "0000180f-0000-1000-8000-00805f9b34fb"},
	})

	s.Equal("Nordic", dev.Name(), "name MUST be recovered from manufacturer data")
	s.Equal(-55, dev.RSSI())
	s.Equal([]string{"180f", "180d"}, dev.AdvertisedServices(), "services MUST keep first-seen order")
	s.Nil(dev.TxPower())
	s.True(dev.IsConnectable())
}

func TestTinygoBackendSuite(t *testing.T) {
	suite.Run(t, new(TinygoBackendSuite))
}

func TestNormalizeError(t *testing.T) {
	tests := []struct {
		in     error
		expect error
	}{
		{errors.New("org.bluez.Error.NotReady: Resource Not Ready"), device.ErrBluetoothOff},
		{errors.New("org.bluez.Error.NotConnected"), device.ErrNotConnected},
		{errors.New("org.bluez.Error.AlreadyConnected"), device.ErrAlreadyConnected},
	}
	for _, tt := range tests {
		t.Run(tt.in.Error(), func(t *testing.T) {
			if err := NormalizeError(tt.in); !errors.Is(err, tt.expect) {
				t.Fatalf("NormalizeError(%v) = %v, MUST wrap %v", tt.in, err, tt.expect)
			}
		})
	}
	if NormalizeError(nil) != nil {
		t.Fatal("nil MUST stay nil")
	}
}

package scanner_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-ble/ble"
	"github.com/srg/blesend/internal/device"
	"github.com/srg/blesend/internal/devicefactory"
	"github.com/srg/blesend/internal/testutils"
	"github.com/srg/blesend/scanner"
	suitelib "github.com/stretchr/testify/suite"
)

type ScannerTestSuite struct {
	testutils.MockBLEPeripheralSuite
}

func (suite *ScannerTestSuite) SetupTest() {
	adv1 := testutils.NewAdvertisementBuilder().
		WithAddress("AA:BB:CC:DD:EE:FF").
		WithName("Thermo 1").
		WithRSSI(-45).
		WithServices("180F", "1800").
		WithConnectable(true).
		WithTxPower(11).
		Build()

	adv2 := testutils.NewAdvertisementBuilder().
		WithAddress("11:22:33:44:55:66").
		WithName("Band").
		WithRSSI(-67).
		WithServices("1801").
		WithConnectable(true).
		Build()

	adv3 := testutils.NewAdvertisementBuilder().
		WithAddress("99:88:77:66:55:44").
		WithName("Thermo 3").
		WithRSSI(-80).
		WithServices("6e400001-b5a3-f393-e0a9-e50e24dcca9e").
		WithConnectable(true).
		Build()

	// Second sighting of the first device with a stronger signal
	adv1Again := testutils.NewAdvertisementBuilder().
		WithAddress("AA:BB:CC:DD:EE:FF").
		WithName("Thermo 1").
		WithRSSI(-40).
		WithServices("180F").
		Build()

	suite.WithPeripheral().WithScanAdvertisements(adv1, adv2, adv3, adv1Again)
	suite.MockBLEPeripheralSuite.SetupTest()
}

// scanAddresses runs one scan and returns the sorted discovered addresses
func (suite *ScannerTestSuite) scanAddresses(opts *scanner.ScanOptions) []string {
	s, err := scanner.NewScanner(suite.Logger, devicefactory.GoBLE)
	suite.Require().NoError(err)

	devices, err := s.Scan(context.Background(), opts, nil)
	suite.Require().NoError(err, "scan MUST complete without error")

	addrs := make([]string, 0, len(devices))
	for addr := range devices {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs
}

func (suite *ScannerTestSuite) TestDefaultScanOptions() {
	opts := scanner.DefaultScanOptions()

	suite.Equal(10*time.Second, opts.Duration)
	suite.True(opts.DuplicateFilter)
	suite.Nil(opts.ServiceUUIDs)
	suite.Nil(opts.AllowList)
	suite.Nil(opts.BlockList)
	suite.Empty(opts.NamePrefix)
}

func (suite *ScannerTestSuite) TestScannerFiltering() {
	tests := []struct {
		name     string
		opts     scanner.ScanOptions
		expected []string
	}{
		{
			name:     "includes all devices with no filters",
			expected: []string{"11:22:33:44:55:66", "99:88:77:66:55:44", "AA:BB:CC:DD:EE:FF"},
		},
		{
			name:     "excludes device on block list",
			opts:     scanner.ScanOptions{BlockList: []string{"aa:bb:cc:dd:ee:ff"}},
			expected: []string{"11:22:33:44:55:66", "99:88:77:66:55:44"},
		},
		{
			name:     "includes device with matching 16-bit service UUID",
			opts:     scanner.ScanOptions{ServiceUUIDs: []string{"0x180F"}},
			expected: []string{"AA:BB:CC:DD:EE:FF"},
		},
		{
			name:     "includes device with matching 128-bit service UUID",
			opts:     scanner.ScanOptions{ServiceUUIDs: []string{"6E400001-B5A3-F393-E0A9-E50E24DCCA9E"}},
			expected: []string{"99:88:77:66:55:44"},
		},
		{
			name:     "excludes device without matching service UUID",
			opts:     scanner.ScanOptions{ServiceUUIDs: []string{"1234"}},
			expected: []string{},
		},
		{
			name:     "includes device on allow list",
			opts:     scanner.ScanOptions{AllowList: []string{"AA:BB:CC:DD:EE:FF"}},
			expected: []string{"AA:BB:CC:DD:EE:FF"},
		},
		{
			name:     "excludes device not on allow list",
			opts:     scanner.ScanOptions{AllowList: []string{"FF:EE:DD:CC:BB:AA"}},
			expected: []string{},
		},
		{
			name:     "includes devices with name prefix",
			opts:     scanner.ScanOptions{NamePrefix: "thermo"},
			expected: []string{"99:88:77:66:55:44", "AA:BB:CC:DD:EE:FF"},
		},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			opts := tt.opts
			opts.Duration = 100 * time.Millisecond

			suite.Equal(tt.expected, suite.scanAddresses(&opts))
		})
	}
}

func (suite *ScannerTestSuite) TestScan_UpdatesKnownDevice() {
	// GOAL: Verify a repeated advertisement updates the existing device instead of adding a new one
	//
	// TEST SCENARIO: device AA advertised twice → one entry → RSSI from the latest advertisement → events new, new, new, updated

	s, err := scanner.NewScanner(suite.Logger, devicefactory.GoBLE)
	suite.Require().NoError(err)

	devices, err := s.Scan(context.Background(), &scanner.ScanOptions{Duration: 100 * time.Millisecond}, nil)
	suite.Require().NoError(err)
	suite.Require().Len(devices, 3)

	testutils.NewJSONAsserter(suite.T()).
		WithOptions(testutils.WithIgnoredFields("last_seen")).
		AssertDevice(devices["AA:BB:CC:DD:EE:FF"], `{
			"id": "AA:BB:CC:DD:EE:FF",
			"name": "Thermo 1",
			"rssi": -40,
			"tx_power": 11,
			"connectable": true,
			"services": ["180f", "1800"]
		}`)

	var types []string
	for i := 0; i < 4; i++ {
		select {
		case ev := <-s.Events():
			types = append(types, ev.Type.String())
		case <-time.After(time.Second):
			suite.FailNow("MUST receive 4 device events")
		}
	}
	suite.Equal([]string{"new", "new", "new", "updated"}, types)
}

func (suite *ScannerTestSuite) TestScan_ReportsProgress() {
	s, err := scanner.NewScanner(nil, "")
	suite.Require().NoError(err)

	var phases []string
	_, err = s.Scan(context.Background(), &scanner.ScanOptions{Duration: 50 * time.Millisecond}, func(phase string) {
		phases = append(phases, phase)
	})

	suite.Require().NoError(err)
	suite.Equal([]string{"Scanning", "Processing results"}, phases)
}

func (suite *ScannerTestSuite) TestScan_InvalidServiceFilter() {
	s, err := scanner.NewScanner(suite.Logger, devicefactory.GoBLE)
	suite.Require().NoError(err)

	_, err = s.Scan(context.Background(), &scanner.ScanOptions{ServiceUUIDs: []string{""}}, nil)

	suite.Require().Error(err)
	suite.Contains(err.Error(), "invalid service filter")
}

func TestScannerTestSuite(t *testing.T) {
	suitelib.Run(t, new(ScannerTestSuite))
}

type ScannerLifecycleSuite struct {
	testutils.MockBLEPeripheralSuite
}

func (suite *ScannerLifecycleSuite) SetupTest() {
	suite.WithPeripheral().
		WithScanAdvertisements(testutils.CreateMockAdvertisement("Thermo", "AA:BB:CC:DD:EE:FF", -50).Build()).
		WithBlockingScan()
	suite.MockBLEPeripheralSuite.SetupTest()
}

func (suite *ScannerLifecycleSuite) TestScan_DurationBoundsWindow() {
	s, err := scanner.NewScanner(suite.Logger, devicefactory.GoBLE)
	suite.Require().NoError(err)

	start := time.Now()
	devices, err := s.Scan(context.Background(), &scanner.ScanOptions{Duration: 150 * time.Millisecond}, nil)

	suite.Require().NoError(err, "end of the scan window MUST NOT be an error")
	suite.Len(devices, 1)
	suite.GreaterOrEqual(time.Since(start), 150*time.Millisecond)
	suite.Less(time.Since(start), 2*time.Second, "scan MUST stop when the window ends")
}

func (suite *ScannerLifecycleSuite) TestScan_ContextCancelIsNotAnError() {
	s, err := scanner.NewScanner(suite.Logger, devicefactory.GoBLE)
	suite.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	devices, err := s.Scan(ctx, &scanner.ScanOptions{Duration: 0}, nil)

	suite.NoError(err)
	suite.Len(devices, 1)
}

func (suite *ScannerLifecycleSuite) TestScan_SecondScanIsRejected() {
	// GOAL: Verify only one scan runs per scanner at a time
	//
	// TEST SCENARIO: start a long scan → start another → ErrScanInProgress → first scan ends normally

	s, err := scanner.NewScanner(suite.Logger, devicefactory.GoBLE)
	suite.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = s.Scan(ctx, &scanner.ScanOptions{Duration: 0}, nil)
	}()

	suite.Eventually(s.Scanning, time.Second, 5*time.Millisecond, "first scan MUST be running")

	_, err = s.Scan(context.Background(), nil, nil)
	suite.ErrorIs(err, scanner.ErrScanInProgress)

	cancel()
	wg.Wait()
	suite.NoError(firstErr)
	suite.False(s.Scanning())
}

type ScannerRepeatSuite struct {
	testutils.MockBLEPeripheralSuite
}

func (suite *ScannerRepeatSuite) SetupTest() {
	var advs []ble.Advertisement
	for i := 0; i < 5; i++ {
		advs = append(advs, testutils.CreateMockAdvertisement("Thermo", "AA:BB:CC:DD:EE:FF", -70+i*5).Build())
	}
	advs = append(advs, testutils.CreateMockAdvertisement("Band", "11:22:33:44:55:66", -60).Build())
	suite.WithPeripheral().WithScanAdvertisements(advs...)
	suite.MockBLEPeripheralSuite.SetupTest()
}

func (suite *ScannerRepeatSuite) TestScan_RepeatedAddressIsOneDevice() {
	// GOAL: Verify every sighting of an address after the first updates the same device
	//
	// TEST SCENARIO: AA advertised five times, then BB → two devices → AA has the last RSSI → events new, updated x4, new

	s, err := scanner.NewScanner(suite.Logger, devicefactory.GoBLE)
	suite.Require().NoError(err)

	devices, err := s.Scan(context.Background(), &scanner.ScanOptions{Duration: 100 * time.Millisecond}, nil)
	suite.Require().NoError(err)
	suite.Require().Len(devices, 2, "a repeated address MUST NOT add a device")
	suite.Equal(-50, devices["AA:BB:CC:DD:EE:FF"].RSSI(), "RSSI MUST come from the latest sighting")

	var types []string
	var first device.DeviceInfo
	for i := 0; i < 6; i++ {
		select {
		case ev := <-s.Events():
			types = append(types, ev.Type.String())
			if ev.DeviceInfo.Address() != "AA:BB:CC:DD:EE:FF" {
				continue
			}
			if first == nil {
				first = ev.DeviceInfo
			}
			suite.Same(first, ev.DeviceInfo, "every event for an address MUST carry the same device")
		case <-time.After(time.Second):
			suite.FailNow("MUST receive 6 device events")
		}
	}
	suite.Equal([]string{"new", "updated", "updated", "updated", "updated", "new"}, types)
}

func TestScannerRepeatSuite(t *testing.T) {
	suitelib.Run(t, new(ScannerRepeatSuite))
}

func TestScannerLifecycleSuite(t *testing.T) {
	suitelib.Run(t, new(ScannerLifecycleSuite))
}

type ScannerErrorSuite struct {
	testutils.MockBLEPeripheralSuite
}

func (suite *ScannerErrorSuite) SetupTest() {
	suite.WithPeripheral().WithScanError(errors.New("central manager has invalid state: have=4 want=5"))
	suite.MockBLEPeripheralSuite.SetupTest()
}

func (suite *ScannerErrorSuite) TestScan_BluetoothOff() {
	s, err := scanner.NewScanner(suite.Logger, devicefactory.GoBLE)
	suite.Require().NoError(err)

	_, err = s.Scan(context.Background(), &scanner.ScanOptions{Duration: time.Second}, nil)

	suite.ErrorIs(err, device.ErrBluetoothOff)
	suite.True(strings.HasPrefix(err.Error(), "scan failed"))
}

func TestScannerErrorSuite(t *testing.T) {
	suitelib.Run(t, new(ScannerErrorSuite))
}

package testutils

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	blelib "github.com/go-ble/ble"
	blemocks "github.com/srg/blesend/internal/testutils/mocks/goble"
	"github.com/stretchr/testify/mock"
)

// CharacteristicConfig represents a BLE characteristic configuration for mocking
type CharacteristicConfig struct {
	UUID       string `json:"uuid"`
	Properties string `json:"properties,omitempty"` // e.g. "read,write,write-without-response"
	Value      []int  `json:"value,omitempty"`
}

// ServiceConfig represents a BLE service configuration for mocking
type ServiceConfig struct {
	UUID            string                 `json:"uuid"`
	Characteristics []CharacteristicConfig `json:"characteristics,omitempty"`
}

// DeviceProfileConfig represents the complete GATT profile of a mocked peripheral
type DeviceProfileConfig struct {
	Services []ServiceConfig `json:"services"`
}

// WriteRecord is one WriteCharacteristic call seen by the mocked client
type WriteRecord struct {
	CharUUID string
	Data     []byte
	NoRsp    bool
}

// PeripheralDeviceBuilder builds a mocked ble.Device that scans the configured
// advertisements and, once dialed, exposes the configured GATT profile.
type PeripheralDeviceBuilder struct {
	profile            DeviceProfileConfig
	scanAdvertisements []blelib.Advertisement
	blockScan          bool
	scanErr            error
	dialErr            error
	discoverErr        error
	writeErrs          map[string]error
	writeDelay         time.Duration

	mu     sync.Mutex
	writes []WriteRecord
	client *blemocks.MockClient
	dials  int
}

func NewPeripheralDeviceBuilder() *PeripheralDeviceBuilder {
	return &PeripheralDeviceBuilder{
		profile:   DeviceProfileConfig{Services: []ServiceConfig{}},
		writeErrs: make(map[string]error),
	}
}

// WithService adds a service to the device profile
func (b *PeripheralDeviceBuilder) WithService(uuid string) *PeripheralDeviceBuilder {
	b.profile.Services = append(b.profile.Services, ServiceConfig{UUID: uuid})
	return b
}

// WithCharacteristic adds a characteristic to the last added service
func (b *PeripheralDeviceBuilder) WithCharacteristic(uuid, properties string, value []byte) *PeripheralDeviceBuilder {
	if len(b.profile.Services) == 0 {
		panic("WithCharacteristic: no service added yet, call WithService first")
	}
	last := len(b.profile.Services) - 1
	vals := make([]int, len(value))
	for i, v := range value {
		vals[i] = int(v)
	}
	b.profile.Services[last].Characteristics = append(b.profile.Services[last].Characteristics,
		CharacteristicConfig{UUID: uuid, Properties: properties, Value: vals})
	return b
}

// FromJSON replaces the device profile
func (b *PeripheralDeviceBuilder) FromJSON(jsonStrFmt string, args ...interface{}) *PeripheralDeviceBuilder {
	jsonStr := fmt.Sprintf(jsonStrFmt, args...)

	var config DeviceProfileConfig
	if err := json.Unmarshal([]byte(jsonStr), &config); err != nil {
		panic(fmt.Sprintf("PeripheralDeviceBuilder.FromJSON: failed to unmarshal: %v", err))
	}
	b.profile = config
	return b
}

// WithScanAdvertisements sets what the mocked Scan reports, in order
func (b *PeripheralDeviceBuilder) WithScanAdvertisements(ads ...blelib.Advertisement) *PeripheralDeviceBuilder {
	b.scanAdvertisements = append(b.scanAdvertisements, ads...)
	return b
}

// WithBlockingScan keeps Scan running until its context is done, like a real radio
func (b *PeripheralDeviceBuilder) WithBlockingScan() *PeripheralDeviceBuilder {
	b.blockScan = true
	return b
}

func (b *PeripheralDeviceBuilder) WithScanError(err error) *PeripheralDeviceBuilder {
	b.scanErr = err
	return b
}

func (b *PeripheralDeviceBuilder) WithDialError(err error) *PeripheralDeviceBuilder {
	b.dialErr = err
	return b
}

func (b *PeripheralDeviceBuilder) WithDiscoverError(err error) *PeripheralDeviceBuilder {
	b.discoverErr = err
	return b
}

// WithWriteError makes every write to the characteristic fail
func (b *PeripheralDeviceBuilder) WithWriteError(charUUID string, err error) *PeripheralDeviceBuilder {
	b.writeErrs[strings.ToLower(charUUID)] = err
	return b
}

// WithWriteDelay delays every write, for exercising write timeouts
func (b *PeripheralDeviceBuilder) WithWriteDelay(d time.Duration) *PeripheralDeviceBuilder {
	b.writeDelay = d
	return b
}

// Writes returns a copy of the writes received so far
func (b *PeripheralDeviceBuilder) Writes() []WriteRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]WriteRecord, len(b.writes))
	copy(out, b.writes)
	return out
}

// Dials returns how many times the device was dialed
func (b *PeripheralDeviceBuilder) Dials() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dials
}

// Client returns the mocked client of the last Build
func (b *PeripheralDeviceBuilder) Client() *blemocks.MockClient {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.client
}

// GetServices returns the configured services
func (b *PeripheralDeviceBuilder) GetServices() []ServiceConfig {
	return b.profile.Services
}

// parseCharacteristicProperties converts a comma separated property list to ble.Property flags
func parseCharacteristicProperties(props string) blelib.Property {
	if props == "" {
		return blelib.CharRead | blelib.CharWrite | blelib.CharNotify
	}

	var property blelib.Property
	for _, p := range strings.Split(props, ",") {
		switch strings.TrimSpace(strings.ToLower(p)) {
		case "broadcast":
			property |= blelib.CharBroadcast
		case "read":
			property |= blelib.CharRead
		case "write":
			property |= blelib.CharWrite
		case "write-without-response", "wnr":
			property |= blelib.CharWriteNR
		case "notify":
			property |= blelib.CharNotify
		case "indicate":
			property |= blelib.CharIndicate
		default:
			panic(fmt.Sprintf("unknown characteristic property %q", p))
		}
	}
	return property
}

// Build creates a mocked ble.Device with the configured profile
func (b *PeripheralDeviceBuilder) Build() blelib.Device {
	mockDevice := &blemocks.MockDevice{}
	mockClient := &blemocks.MockClient{}

	var bleServices []*blelib.Service
	for _, svcConfig := range b.profile.Services {
		bleService := &blelib.Service{UUID: blelib.MustParse(svcConfig.UUID)}
		for _, charConfig := range svcConfig.Characteristics {
			bleService.Characteristics = append(bleService.Characteristics, &blelib.Characteristic{
				UUID:     blelib.MustParse(charConfig.UUID),
				Property: parseCharacteristicProperties(charConfig.Properties),
				Value:    intsToBytes(charConfig.Value),
			})
		}
		bleServices = append(bleServices, bleService)
	}
	profile := &blelib.Profile{Services: bleServices}

	// Dial
	mockDevice.On("Dial", mock.Anything, mock.Anything).Return(func(ctx context.Context, _ blelib.Addr) (blelib.Client, error) {
		b.mu.Lock()
		b.dials++
		b.mu.Unlock()
		if b.dialErr != nil {
			return nil, b.dialErr
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return mockClient, nil
	}).Maybe()
	mockDevice.On("Stop").Return(nil).Maybe()

	// Client
	if b.discoverErr != nil {
		mockClient.On("DiscoverProfile", true).Return(nil, b.discoverErr).Maybe()
	} else {
		mockClient.On("DiscoverProfile", true).Return(profile, nil).Maybe()
	}
	mockClient.On("CancelConnection").Return(nil).Maybe()
	mockClient.On("Disconnected").Return(make(chan struct{})).Maybe()

	for _, svc := range bleServices {
		for _, char := range svc.Characteristics {
			if char.Property&blelib.CharRead != 0 {
				mockClient.On("ReadCharacteristic", char).Return(char.Value, nil).Maybe()
			} else {
				mockClient.On("ReadCharacteristic", char).Return(nil, fmt.Errorf("characteristic does not support read")).Maybe()
			}

			uuid := strings.ToLower(char.UUID.String())
			writeErr := b.writeErrs[uuid]
			mockClient.On("WriteCharacteristic", char, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
				if b.writeDelay > 0 {
					time.Sleep(b.writeDelay)
				}
				data := append([]byte(nil), args.Get(1).([]byte)...)
				b.mu.Lock()
				b.writes = append(b.writes, WriteRecord{CharUUID: uuid, Data: data, NoRsp: args.Bool(2)})
				b.mu.Unlock()
			}).Return(writeErr).Maybe()
		}
	}

	// Scan reports every configured advertisement, then optionally waits like a real radio
	mockDevice.On("Scan", mock.Anything, mock.Anything, mock.Anything).Return(func(ctx context.Context, _ bool, h blelib.AdvHandler) error {
		for _, adv := range b.scanAdvertisements {
			h(adv)
		}
		if b.scanErr != nil {
			return b.scanErr
		}
		if b.blockScan {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	}).Maybe()

	b.mu.Lock()
	b.client = mockClient
	b.mu.Unlock()

	return mockDevice
}

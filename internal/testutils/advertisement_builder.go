package testutils

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/blesend/internal/device"
	goble "github.com/srg/blesend/internal/device/go-ble"
	blemocks "github.com/srg/blesend/internal/testutils/mocks/goble"
)

// txPowerUnavailable is the value go-ble reports when no TX power was advertised
const txPowerUnavailable = 127

// AdvertisementBuilder builds mocked ble.Advertisement values.
//
// Explicitly configured fields become strict expectations (verified by
// AssertExpectations); everything else answers with a zero value and is optional.
type AdvertisementBuilder struct {
	name        string
	address     string
	rssi        int
	services    []string
	manufData   []byte
	serviceData map[string][]byte
	txPower     *int
	connectable bool

	set map[string]bool
}

// NewAdvertisementBuilder creates a builder for a connectable advertisement with no data.
func NewAdvertisementBuilder() *AdvertisementBuilder {
	return &AdvertisementBuilder{
		serviceData: make(map[string][]byte),
		connectable: true,
		set:         make(map[string]bool),
	}
}

func (b *AdvertisementBuilder) WithName(name string) *AdvertisementBuilder {
	b.name = name
	b.set["name"] = true
	return b
}

func (b *AdvertisementBuilder) WithAddress(addr string) *AdvertisementBuilder {
	b.address = addr
	b.set["address"] = true
	return b
}

func (b *AdvertisementBuilder) WithRSSI(rssi int) *AdvertisementBuilder {
	b.rssi = rssi
	b.set["rssi"] = true
	return b
}

// WithServices adds service UUIDs in short ("180D") or full form.
func (b *AdvertisementBuilder) WithServices(uuids ...string) *AdvertisementBuilder {
	b.services = append(b.services, uuids...)
	b.set["services"] = true
	return b
}

func (b *AdvertisementBuilder) WithManufacturerData(data []byte) *AdvertisementBuilder {
	b.manufData = data
	b.set["manufacturerData"] = true
	return b
}

func (b *AdvertisementBuilder) WithServiceData(uuid string, data []byte) *AdvertisementBuilder {
	b.serviceData[uuid] = data
	b.set["serviceData"] = true
	return b
}

func (b *AdvertisementBuilder) WithTxPower(power int) *AdvertisementBuilder {
	b.txPower = &power
	b.set["txPower"] = true
	return b
}

func (b *AdvertisementBuilder) WithConnectable(c bool) *AdvertisementBuilder {
	b.connectable = c
	b.set["connectable"] = true
	return b
}

// FromJSON fills builder fields from JSON. A key that is present, even as null, is
// treated as explicitly set. Panics on invalid JSON since it is meant for test setup.
func (b *AdvertisementBuilder) FromJSON(jsonStrFmt string, args ...interface{}) *AdvertisementBuilder {
	jsonStr := fmt.Sprintf(jsonStrFmt, args...)

	var presence map[string]json.RawMessage
	if err := json.Unmarshal([]byte(jsonStr), &presence); err != nil {
		panic(fmt.Sprintf("FromJSON: failed to unmarshal: %v", err))
	}

	var data struct {
		Name             *string          `json:"name"`
		Address          *string          `json:"address"`
		RSSI             *int             `json:"rssi"`
		Services         []string         `json:"services"`
		ManufacturerData []int            `json:"manufacturerData"`
		ServiceData      map[string][]int `json:"serviceData"`
		TxPower          *int             `json:"txPower"`
		Connectable      *bool            `json:"connectable"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &data); err != nil {
		panic(fmt.Sprintf("FromJSON: failed to unmarshal: %v", err))
	}

	for key := range presence {
		b.set[key] = true
	}
	if data.Name != nil {
		b.name = *data.Name
	}
	if data.Address != nil {
		b.address = *data.Address
	}
	if data.RSSI != nil {
		b.rssi = *data.RSSI
	}
	b.services = data.Services
	b.manufData = intsToBytes(data.ManufacturerData)
	for k, v := range data.ServiceData {
		b.serviceData[k] = intsToBytes(v)
	}
	b.txPower = data.TxPower
	if data.Connectable != nil {
		b.connectable = *data.Connectable
	}
	return b
}

func intsToBytes(in []int) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	for i, v := range in {
		out[i] = byte(v)
	}
	return out
}

// Build creates a MockAdvertisement implementing ble.Advertisement.
func (b *AdvertisementBuilder) Build() *blemocks.MockAdvertisement {
	adv := &blemocks.MockAdvertisement{}

	var bleServices []ble.UUID
	for _, s := range b.services {
		bleServices = append(bleServices, ble.MustParse(s))
	}

	// Stable order keeps scans reproducible
	keys := make([]string, 0, len(b.serviceData))
	for k := range b.serviceData {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var bleServiceData []ble.ServiceData
	for _, k := range keys {
		bleServiceData = append(bleServiceData, ble.ServiceData{UUID: ble.MustParse(k), Data: b.serviceData[k]})
	}

	txPower := txPowerUnavailable
	if b.txPower != nil {
		txPower = *b.txPower
	}

	addr := &blemocks.MockAddr{}
	addr.On("String").Return(b.address)

	expect := func(key, method string, value interface{}) {
		call := adv.On(method).Return(value)
		if !b.set[key] {
			call.Maybe()
		}
	}
	expect("address", "Addr", addr)
	expect("name", "LocalName", b.name)
	expect("rssi", "RSSI", b.rssi)
	expect("manufacturerData", "ManufacturerData", b.manufData)
	expect("serviceData", "ServiceData", bleServiceData)
	expect("services", "Services", bleServices)
	expect("connectable", "Connectable", b.connectable)
	expect("txPower", "TxPowerLevel", txPower)
	adv.On("OverflowService").Return(nil).Maybe()
	adv.On("SolicitedService").Return(nil).Maybe()

	return adv
}

// BuildAdvertisement returns the advertisement as seen through the device layer.
func (b *AdvertisementBuilder) BuildAdvertisement() device.Advertisement {
	return goble.NewBLEAdvertisement(b.Build())
}

// BuildDevice creates a goble device from the built advertisement.
func (b *AdvertisementBuilder) BuildDevice(logger *logrus.Logger) device.Device {
	return goble.NewBLEDeviceFromAdvertisement(b.BuildAdvertisement(), logger)
}

package testutils

import (
	"encoding/json"

	"github.com/srg/blesend/internal/device"
)

type DeviceJSON struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Address          string           `json:"address"`
	RSSI             int              `json:"rssi"`
	TxPower          *int             `json:"tx_power"`
	Connectable      bool             `json:"connectable"`
	LastSeen         int64            `json:"last_seen"`
	Services         []string         `json:"services"`
	ManufacturerData []int            `json:"manufacturer_data"`
	ServiceData      map[string][]int `json:"service_data"`
}

type ServiceJSON struct {
	UUID            string               `json:"uuid"`
	Name            string               `json:"name,omitempty"`
	Characteristics []CharacteristicJSON `json:"characteristics"`
}

type CharacteristicJSON struct {
	UUID       string   `json:"uuid"`
	Name       string   `json:"name,omitempty"`
	Properties []string `json:"properties"`
}

// bytes as ints keep the JSON readable instead of base64
func bytesToInts(b []byte) []int {
	if b == nil {
		return nil
	}
	out := make([]int, len(b))
	for i, v := range b {
		out[i] = int(v)
	}
	return out
}

// DeviceToJSON renders a device snapshot as JSON
func DeviceToJSON(d device.DeviceInfo) string {
	var serviceData map[string][]int
	if sd := d.ServiceData(); len(sd) > 0 {
		serviceData = make(map[string][]int, len(sd))
		for k, v := range sd {
			serviceData[k] = bytesToInts(v)
		}
	}

	services := d.AdvertisedServices()
	if services == nil {
		services = []string{}
	}

	return MustJSON(DeviceJSON{
		ID:               d.ID(),
		Name:             d.Name(),
		Address:          d.Address(),
		RSSI:             d.RSSI(),
		TxPower:          d.TxPower(),
		Connectable:      d.IsConnectable(),
		LastSeen:         d.LastSeen().Unix(),
		Services:         services,
		ManufacturerData: bytesToInts(d.ManufacturerData()),
		ServiceData:      serviceData,
	})
}

// ConnectionToJSON renders the discovered GATT profile, in discovery order
func ConnectionToJSON(conn device.Connection) string {
	services := make([]ServiceJSON, 0)
	for _, svc := range conn.Services() {
		sj := ServiceJSON{UUID: svc.UUID(), Name: svc.KnownName(), Characteristics: []CharacteristicJSON{}}
		for _, c := range svc.GetCharacteristics() {
			props := device.PropertyNames(c.GetProperties())
			if props == nil {
				props = []string{}
			}
			sj.Characteristics = append(sj.Characteristics, CharacteristicJSON{
				UUID:       c.UUID(),
				Name:       c.KnownName(),
				Properties: props,
			})
		}
		services = append(services, sj)
	}

	b, err := json.Marshal(map[string]interface{}{"services": services})
	if err != nil {
		panic(err)
	}
	return string(b)
}

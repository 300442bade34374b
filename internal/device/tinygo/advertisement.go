package tinygoble

import (
	"encoding/binary"

	"github.com/srg/blesend/internal/device"
	"tinygo.org/x/bluetooth"
)

// txPowerUnknown mirrors the HCI "not available" value; the host stacks behind
// tinygo bluetooth do not surface the advertised TX power.
const txPowerUnknown = 127

// Advertisement is a scan result flattened into device.Advertisement
type Advertisement struct {
	Address      string
	Name         string
	Signal       int
	ServiceUUIDs []string
	Manufacturer []byte
	Data         []struct {
		UUID string
		Data []byte
	}
}

func newAdvertisement(result bluetooth.ScanResult) *Advertisement {
	adv := &Advertisement{
		Address: result.Address.String(),
		Name:    result.LocalName(),
		Signal:  int(result.RSSI),
	}

	for _, uuid := range result.AdvertisementPayload.ServiceUUIDs() {
		adv.ServiceUUIDs = append(adv.ServiceUUIDs, uuid.String())
	}

	// Only the first manufacturer element is kept, re-encoded as on the air: company ID little-endian then payload
	if md := result.ManufacturerData(); len(md) > 0 {
		raw := make([]byte, 2, 2+len(md[0].Data))
		binary.LittleEndian.PutUint16(raw, md[0].CompanyID)
		adv.Manufacturer = append(raw, md[0].Data...)
	}

	for _, sd := range result.ServiceData() {
		adv.Data = append(adv.Data, struct {
			UUID string
			Data []byte
		}{UUID: sd.UUID.String(), Data: sd.Data})
	}
	return adv
}

func (a *Advertisement) LocalName() string        { return a.Name }
func (a *Advertisement) ManufacturerData() []byte { return a.Manufacturer }
func (a *Advertisement) Services() []string       { return a.ServiceUUIDs }
func (a *Advertisement) TxPowerLevel() int        { return txPowerUnknown }
func (a *Advertisement) RSSI() int                { return a.Signal }
func (a *Advertisement) Addr() string             { return a.Address }

// Connectable is always true, tinygo bluetooth does not expose the advertising PDU type.
func (a *Advertisement) Connectable() bool { return true }

func (a *Advertisement) ServiceData() []struct {
	UUID string
	Data []byte
} {
	return a.Data
}

var _ device.Advertisement = (*Advertisement)(nil)

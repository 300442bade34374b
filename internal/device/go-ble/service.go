package goble

import (
	"github.com/srg/blesend/internal/device"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// BLEService represents a GATT service and its characteristics in discovery order
type BLEService struct {
	uuid            string
	knownName       string
	Characteristics *orderedmap.OrderedMap[string, *BLECharacteristic]
}

func newService(uuid, knownName string) *BLEService {
	return &BLEService{
		uuid:            uuid,
		knownName:       knownName,
		Characteristics: orderedmap.New[string, *BLECharacteristic](),
	}
}

func (s *BLEService) UUID() string {
	return s.uuid
}

func (s *BLEService) KnownName() string {
	return s.knownName
}

func (s *BLEService) GetCharacteristics() []device.Characteristic {
	result := make([]device.Characteristic, 0, s.Characteristics.Len())
	for pair := s.Characteristics.Oldest(); pair != nil; pair = pair.Next() {
		result = append(result, pair.Value)
	}
	return result
}

package tinygoble

import (
	"fmt"

	"github.com/srg/blesend/internal/device"
)

// CoreBluetooth through tinygo offers no read and no property bits.
const hostProperties = device.PropWrite | device.PropWriteWithoutResponse

func (c *hostCharacteristic) Properties() int { return hostProperties }

func (c *hostCharacteristic) Read([]byte) (int, error) {
	return 0, fmt.Errorf("read on CoreBluetooth: %w", device.ErrUnsupported)
}

func (c *hostCharacteristic) Write(p []byte) (int, error) { return c.char.Write(p) }

package tinygoble

import (
	"fmt"

	"github.com/srg/blesend/internal/device"
)

// BlueZ through tinygo offers no write with response and no property bits.
const hostProperties = device.PropRead | device.PropWriteWithoutResponse

func (c *hostCharacteristic) Properties() int { return hostProperties }

func (c *hostCharacteristic) Read(buf []byte) (int, error) { return c.char.Read(buf) }

func (c *hostCharacteristic) Write([]byte) (int, error) {
	return 0, fmt.Errorf("write with response on BlueZ: %w", device.ErrUnsupported)
}

//go:build !linux && !darwin && !windows

package tinygoble

import (
	"fmt"

	"github.com/srg/blesend/internal/device"
)

// The HCI and SoftDevice stacks match BlueZ: no write with response.
const hostProperties = device.PropRead | device.PropWriteWithoutResponse

func (c *hostCharacteristic) Properties() int { return hostProperties }

func (c *hostCharacteristic) Read(buf []byte) (int, error) { return c.char.Read(buf) }

func (c *hostCharacteristic) Write([]byte) (int, error) {
	return 0, fmt.Errorf("write with response: %w", device.ErrUnsupported)
}

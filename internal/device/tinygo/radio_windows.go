package tinygoble

// WinRT reports GattCharacteristicProperties, whose low byte matches the GATT property bits.
func (c *hostCharacteristic) Properties() int { return int(c.char.Properties() & 0xff) }

func (c *hostCharacteristic) Read(buf []byte) (int, error) { return c.char.Read(buf) }

func (c *hostCharacteristic) Write(p []byte) (int, error) { return c.char.Write(p) }

package goble

import (
	"fmt"
	"time"

	"github.com/go-ble/ble"
	"github.com/srg/blesend/internal/device"
)

const (
	// DefaultBLEWriteChunkSize is the maximum number of bytes to write in a single BLE operation.
	// BLE 4.0/4.1 defines ATT_MTU of 23 bytes (20 bytes payload after ATT header overhead).
	// Keeping chunks at 20 bytes ensures compatibility with all BLE versions.
	DefaultBLEWriteChunkSize = 20

	// DefaultBLEWriteDelay is the delay between consecutive write chunks.
	DefaultBLEWriteDelay = 10 * time.Millisecond

	// DefaultReadTimeout is the default timeout for characteristic read operations.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is used when Write is called with a zero timeout.
	DefaultWriteTimeout = 5 * time.Second
)

// BLECharacteristic is a discovered GATT characteristic bound to its parent connection.
type BLECharacteristic struct {
	uuid        string
	serviceUUID string
	knownName   string
	properties  device.Properties
	BLEChar     *ble.Characteristic
	connection  *BLEConnection // reference to parent connection for reads and writes
}

func NewCharacteristic(c *ble.Characteristic, serviceUUID string, conn *BLEConnection) *BLECharacteristic {
	rawUUID := c.UUID.String()

	return &BLECharacteristic{
		uuid:        device.NormalizeUUID(rawUUID),
		serviceUUID: serviceUUID,
		knownName:   device.LookupCharacteristic(rawUUID),
		BLEChar:     c,
		properties:  device.NewProperties(int(c.Property)),
		connection:  conn,
	}
}

func (c *BLECharacteristic) UUID() string {
	return c.uuid
}

func (c *BLECharacteristic) KnownName() string {
	return c.knownName
}

func (c *BLECharacteristic) GetProperties() device.Properties {
	return c.properties
}

// liveClient returns the connected client or ErrNotConnected.
func (c *BLECharacteristic) liveClient() (ble.Client, error) {
	if c.connection == nil {
		return nil, fmt.Errorf("no connection available for characteristic %s: %w", c.uuid, device.ErrNotInitialized)
	}
	if c.BLEChar == nil {
		return nil, fmt.Errorf("characteristic %s not initialized: %w", c.uuid, device.ErrNotInitialized)
	}

	c.connection.connMutex.RLock()
	defer c.connection.connMutex.RUnlock()
	if !c.connection.isConnectedInternal() {
		return nil, fmt.Errorf("characteristic %s: %w", c.uuid, device.ErrNotConnected)
	}
	return c.connection.client, nil
}

// Read reads the current value of the characteristic from the device.
// A zero timeout uses DefaultReadTimeout.
func (c *BLECharacteristic) Read(timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}

	client, err := c.liveClient()
	if err != nil {
		return nil, err
	}

	type readResult struct {
		data []byte
		err  error
	}
	resultCh := make(chan readResult, 1)

	go func() {
		data, err := client.ReadCharacteristic(c.BLEChar)
		resultCh <- readResult{data: data, err: err}
	}()

	select {
	case result := <-resultCh:
		if result.err != nil {
			return nil, fmt.Errorf("failed to read characteristic %s: %w", c.uuid, NormalizeError(result.err))
		}
		return result.data, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("reading characteristic %s after %v: %w", c.uuid, timeout, device.ErrTimeout)
	}
}

// Write sends data to the characteristic in DefaultBLEWriteChunkSize chunks.
// withResponse selects ATT Write Request (acknowledged) over Write Command.
// The whole write, all chunks included, is bounded by timeout.
func (c *BLECharacteristic) Write(data []byte, withResponse bool, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}

	client, err := c.liveClient()
	if err != nil {
		return err
	}

	doneCh := make(chan error, 1)
	go func() {
		// Serialize writes on the connection
		c.connection.writeMutex.Lock()
		defer c.connection.writeMutex.Unlock()
		doneCh <- writeChunks(client, c.BLEChar, data, !withResponse)
	}()

	select {
	case err := <-doneCh:
		if err != nil {
			return fmt.Errorf("failed to write characteristic %s in service %s: %w", c.uuid, c.serviceUUID, NormalizeError(err))
		}
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("writing characteristic %s after %v: %w", c.uuid, timeout, device.ErrTimeout)
	}
}

func writeChunks(client ble.Client, char *ble.Characteristic, data []byte, noRsp bool) error {
	// An empty payload is still a valid (zero-length) write
	if len(data) == 0 {
		return client.WriteCharacteristic(char, data, noRsp)
	}

	for len(data) > 0 {
		n := len(data)
		if n > DefaultBLEWriteChunkSize {
			n = DefaultBLEWriteChunkSize
		}
		if err := client.WriteCharacteristic(char, data[:n], noRsp); err != nil {
			return err
		}
		data = data[n:]
		if len(data) > 0 {
			time.Sleep(DefaultBLEWriteDelay)
		}
	}
	return nil
}

package goble

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/blesend/internal/device"
	"github.com/srg/blesend/internal/groutine"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// BLEConnection represents a live BLE connection with its discovered GATT profile
type BLEConnection struct {
	client      ble.Client
	logger      *logrus.Logger
	writeMutex  sync.Mutex
	connMutex   sync.RWMutex
	isConnected bool

	services *orderedmap.OrderedMap[string, *BLEService]

	ctx    context.Context
	cancel context.CancelCauseFunc
}

func NewBLEConnection(logger *logrus.Logger) *BLEConnection {
	if logger == nil {
		logger = logrus.New()
	}
	return &BLEConnection{
		services: orderedmap.New[string, *BLEService](),
		ctx:      context.Background(),
		logger:   logger,
	}
}

// GetCharacteristic retrieves a characteristic by service and characteristic UUID.
// Both UUIDs are normalized for lookup.
// Returns a NotFoundError if the service or characteristic is not found.
func (c *BLEConnection) GetCharacteristic(service, uuid string) (device.Characteristic, error) {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()

	svc, ok := c.services.Get(device.NormalizeUUID(service))
	if !ok {
		return nil, &device.NotFoundError{Resource: "service", UUIDs: []string{service}}
	}

	char, ok := svc.Characteristics.Get(device.NormalizeUUID(uuid))
	if !ok {
		return nil, &device.NotFoundError{Resource: "characteristic", UUIDs: []string{service, uuid}}
	}

	return char, nil
}

// Services returns all discovered services in discovery order.
func (c *BLEConnection) Services() []device.Service {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()

	result := make([]device.Service, 0, c.services.Len())
	for pair := c.services.Oldest(); pair != nil; pair = pair.Next() {
		result = append(result, pair.Value)
	}
	return result
}

// GetService retrieves a specific service by its UUID.
// Returns a NotFoundError if the service is not found.
func (c *BLEConnection) GetService(uuid string) (device.Service, error) {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()

	svc, ok := c.services.Get(device.NormalizeUUID(uuid))
	if !ok {
		return nil, &device.NotFoundError{Resource: "service", UUIDs: []string{uuid}}
	}
	return svc, nil
}

// Connect dials the peripheral through the shared BLE manager and discovers its profile
func (c *BLEConnection) Connect(ctx context.Context, address string, opts *device.ConnectOptions) error {
	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if strings.TrimSpace(address) == "" {
		c.logger.Error("Connection attempt with empty address")
		return fmt.Errorf("device address is empty")
	}

	if c.isConnectedInternal() {
		c.logger.WithField("address", address).Warn("Connection attempt while already connected")
		return device.ErrAlreadyConnected
	}

	c.logger.WithFields(logrus.Fields{
		"address": address,
		"timeout": opts.ConnectTimeout,
	}).Info("Connecting to BLE device...")

	dev, err := acquireDevice()
	if err != nil {
		c.logger.WithField("error", err).Error("Failed to create BLE device")
		return fmt.Errorf("failed to create BLE device: %w", err)
	}

	connCtx := ctx
	if opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connCtx, cancel = context.WithTimeout(ctx, opts.ConnectTimeout)
		defer cancel()
	}

	c.logger.WithField("address", address).Debug("Dialing BLE device...")
	client, err := dev.Dial(connCtx, ble.NewAddr(address))
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"address": address,
			"error":   err,
		}).Error("Failed to dial BLE device")
		if connCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return fmt.Errorf("connecting to %q after %v: %w", address, opts.ConnectTimeout, device.ErrTimeout)
		}
		return fmt.Errorf("failed to connect to device with address %q: %w", address, NormalizeError(err))
	}

	c.logger.WithField("address", address).Debug("Discovering services and characteristics...")
	bleProfile, err := client.DiscoverProfile(true)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"address": address,
			"error":   err,
		}).Error("Failed to discover profile")
		if cancelErr := client.CancelConnection(); cancelErr != nil {
			c.logger.WithField("cancel_error", cancelErr).Warn("Failed to cancel connection during profile discovery failure")
		}
		return fmt.Errorf("failed to discover profile: %w", NormalizeError(err))
	}

	// A reconnect rebuilds the profile from scratch, handles from the previous link are stale
	c.services = orderedmap.New[string, *BLEService]()
	totalChars := 0
	for _, bleSvc := range bleProfile.Services {
		svcRawUUID := bleSvc.UUID.String()
		svcUUID := device.NormalizeUUID(svcRawUUID)
		c.logger.WithField("service_uuid", svcRawUUID).Debug("Found service UUID")

		svc, ok := c.services.Get(svcUUID)
		if !ok {
			svc = newService(svcUUID, device.LookupService(svcRawUUID))
			c.services.Set(svcUUID, svc)
		}

		for _, bleChar := range bleSvc.Characteristics {
			charUUID := device.NormalizeUUID(bleChar.UUID.String())
			c.logger.WithFields(logrus.Fields{
				"service_uuid": svcUUID,
				"char_uuid":    charUUID,
				"properties":   device.PropertyNames(device.NewProperties(int(bleChar.Property))),
			}).Debug("Found characteristic UUID")
			if _, exists := svc.Characteristics.Get(charUUID); !exists {
				svc.Characteristics.Set(charUUID, NewCharacteristic(bleChar, svcUUID, c))
				totalChars++
			}
		}
	}

	c.client = client
	c.isConnected = true
	c.ctx, c.cancel = context.WithCancelCause(context.Background())

	// Darwin clients expose Disconnected(); the link can drop without Disconnect being called
	if monitored, ok := client.(interface{ Disconnected() <-chan struct{} }); ok {
		linkCtx := c.ctx
		groutine.Go(context.Background(), "ble-connection-monitor", func(context.Context) {
			select {
			case <-monitored.Disconnected():
				c.logger.WithField("address", address).Warn("Peripheral reported disconnection")
				c.markDropped(client)
			case <-linkCtx.Done():
			}
		})
	} else {
		c.logger.Debug("Client does not support Disconnected() channel")
	}

	c.logger.WithFields(logrus.Fields{
		"address":         address,
		"services":        c.services.Len(),
		"characteristics": totalChars,
	}).Info("BLE device connected successfully")
	return nil
}

// markDropped transitions to disconnected when the peripheral drops the link on its own
func (c *BLEConnection) markDropped(client ble.Client) {
	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if c.client != client {
		return
	}
	if c.cancel != nil {
		c.cancel(device.ErrNotConnected)
	}
	c.client = nil
	c.cancel = nil
	c.isConnected = false
}

// Disconnect cancels the BLE link. Calling it while disconnected is a no-op.
func (c *BLEConnection) Disconnect() error {
	c.connMutex.Lock()
	if !c.isConnectedInternal() {
		c.connMutex.Unlock()
		c.logger.Debug("Disconnect called but already disconnected")
		return nil
	}

	c.logger.WithField("services", c.services.Len()).Info("Disconnecting BLE device...")

	client := c.client
	cancel := c.cancel
	c.client = nil
	c.cancel = nil
	c.isConnected = false
	c.connMutex.Unlock()

	if cancel != nil {
		cancel(nil)
	}

	disconnectErr := client.CancelConnection()
	if disconnectErr != nil {
		c.logger.WithField("error", disconnectErr).Warn("BLE device disconnected with errors")
		return NormalizeError(disconnectErr)
	}
	c.logger.Info("BLE device disconnected successfully")
	return nil
}

// IsConnected reports whether the link is up
func (c *BLEConnection) IsConnected() bool {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()
	return c.isConnectedInternal()
}

// Done is closed when the link goes down, whether by Disconnect or by the peripheral.
func (c *BLEConnection) Done() <-chan struct{} {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()
	return c.ctx.Done()
}

// isConnectedInternal checks the connection status without acquiring locks.
// Should only be called when the caller already holds connMutex.
func (c *BLEConnection) isConnectedInternal() bool {
	return c.client != nil && c.isConnected
}

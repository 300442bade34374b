package tinygoble

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blesend/internal/device"
	"github.com/srg/blesend/internal/groutine"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const (
	chunkSize  = 20
	chunkDelay = 10 * time.Millisecond

	defaultTimeout = 5 * time.Second
	readBufferSize = 512
)

// Connection is a tinygo link with its discovered profile
type Connection struct {
	radio  Radio
	logger *logrus.Logger

	mu       sync.RWMutex
	writeMu  sync.Mutex
	link     Link
	services *orderedmap.OrderedMap[string, *Service]
}

func newConnection(radio Radio, logger *logrus.Logger) *Connection {
	return &Connection{
		radio:    radio,
		logger:   logger,
		services: orderedmap.New[string, *Service](),
	}
}

// Connect links to the peripheral and discovers every service and characteristic
func (c *Connection) Connect(ctx context.Context, address string, opts *device.ConnectOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if strings.TrimSpace(address) == "" {
		return fmt.Errorf("device address is empty")
	}
	if c.link != nil {
		return device.ErrAlreadyConnected
	}
	if err := c.radio.Enable(); err != nil {
		return fmt.Errorf("failed to enable bluetooth adapter: %w", NormalizeError(err))
	}

	connCtx := ctx
	if opts != nil && opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connCtx, cancel = context.WithTimeout(ctx, opts.ConnectTimeout)
		defer cancel()
	}

	c.logger.WithField("address", address).Info("Connecting to BLE device...")
	link, err := c.dial(connCtx, address)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("connecting to %q: %w", address, device.ErrTimeout)
		}
		return fmt.Errorf("failed to connect to device with address %q: %w", address, err)
	}

	services, err := discover(link, c)
	if err != nil {
		if dErr := link.Disconnect(); dErr != nil {
			c.logger.WithField("error", dErr).Warn("Failed to drop link after discovery failure")
		}
		return fmt.Errorf("failed to discover profile: %w", NormalizeError(err))
	}

	c.link = link
	c.services = services
	c.logger.WithFields(logrus.Fields{
		"address":  address,
		"services": services.Len(),
	}).Info("BLE device connected successfully")
	return nil
}

// dial runs the blocking host connect and gives up when ctx is done.
// A link that arrives after giving up is dropped.
func (c *Connection) dial(ctx context.Context, address string) (Link, error) {
	type result struct {
		link Link
		err  error
	}
	done := make(chan result, 1)

	groutine.Go(ctx, "tinygo-connect", func(context.Context) {
		link, err := c.radio.Connect(address)
		done <- result{link: link, err: err}
	})

	select {
	case r := <-done:
		return r.link, NormalizeError(r.err)
	case <-ctx.Done():
		groutine.Go(context.Background(), "tinygo-connect-abandon", func(context.Context) {
			if r := <-done; r.link != nil {
				_ = r.link.Disconnect()
			}
		})
		return nil, ctx.Err()
	}
}

func discover(link Link, conn *Connection) (*orderedmap.OrderedMap[string, *Service], error) {
	remotes, err := link.DiscoverServices()
	if err != nil {
		return nil, err
	}

	services := orderedmap.New[string, *Service]()
	for _, remote := range remotes {
		svcUUID := device.NormalizeUUID(remote.UUID())
		svc, ok := services.Get(svcUUID)
		if !ok {
			svc = &Service{
				uuid:            svcUUID,
				knownName:       device.LookupService(svcUUID),
				characteristics: orderedmap.New[string, *Characteristic](),
			}
			services.Set(svcUUID, svc)
		}

		chars, err := remote.DiscoverCharacteristics()
		if err != nil {
			return nil, fmt.Errorf("service %s: %w", svcUUID, err)
		}
		for _, rc := range chars {
			charUUID := device.NormalizeUUID(rc.UUID())
			if _, exists := svc.characteristics.Get(charUUID); exists {
				continue
			}
			svc.characteristics.Set(charUUID, &Characteristic{
				uuid:        charUUID,
				serviceUUID: svcUUID,
				knownName:   device.LookupCharacteristic(charUUID),
				props:       device.NewProperties(rc.Properties()),
				remote:      rc,
				conn:        conn,
			})
		}
	}
	return services, nil
}

// Disconnect drops the link. Calling it while disconnected is a no-op.
func (c *Connection) Disconnect() error {
	c.mu.Lock()
	link := c.link
	c.link = nil
	c.mu.Unlock()

	if link == nil {
		return nil
	}
	return NormalizeError(link.Disconnect())
}

func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.link != nil
}

func (c *Connection) Services() []device.Service {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]device.Service, 0, c.services.Len())
	for pair := c.services.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

func (c *Connection) GetService(uuid string) (device.Service, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	svc, ok := c.services.Get(device.NormalizeUUID(uuid))
	if !ok {
		return nil, &device.NotFoundError{Resource: "service", UUIDs: []string{uuid}}
	}
	return svc, nil
}

func (c *Connection) GetCharacteristic(service, uuid string) (device.Characteristic, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	svc, ok := c.services.Get(device.NormalizeUUID(service))
	if !ok {
		return nil, &device.NotFoundError{Resource: "service", UUIDs: []string{service}}
	}
	char, ok := svc.characteristics.Get(device.NormalizeUUID(uuid))
	if !ok {
		return nil, &device.NotFoundError{Resource: "characteristic", UUIDs: []string{service, uuid}}
	}
	return char, nil
}

// Service is a discovered GATT service
type Service struct {
	uuid            string
	knownName       string
	characteristics *orderedmap.OrderedMap[string, *Characteristic]
}

func (s *Service) UUID() string      { return s.uuid }
func (s *Service) KnownName() string { return s.knownName }

func (s *Service) GetCharacteristics() []device.Characteristic {
	out := make([]device.Characteristic, 0, s.characteristics.Len())
	for pair := s.characteristics.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Characteristic is a discovered GATT characteristic
type Characteristic struct {
	uuid        string
	serviceUUID string
	knownName   string
	props       device.Properties
	remote      RemoteCharacteristic
	conn        *Connection
}

func (c *Characteristic) UUID() string                     { return c.uuid }
func (c *Characteristic) KnownName() string                { return c.knownName }
func (c *Characteristic) GetProperties() device.Properties { return c.props }

func (c *Characteristic) Read(timeout time.Duration) ([]byte, error) {
	if !c.conn.IsConnected() {
		return nil, fmt.Errorf("characteristic %s: %w", c.uuid, device.ErrNotConnected)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		buf := make([]byte, readBufferSize)
		n, err := c.remote.Read(buf)
		done <- result{data: buf[:n], err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("failed to read characteristic %s: %w", c.uuid, NormalizeError(r.err))
		}
		return r.data, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("reading characteristic %s after %v: %w", c.uuid, timeout, device.ErrTimeout)
	}
}

// Write sends data in 20-byte chunks, with or without ATT response.
func (c *Characteristic) Write(data []byte, withResponse bool, timeout time.Duration) error {
	if !c.conn.IsConnected() {
		return fmt.Errorf("characteristic %s: %w", c.uuid, device.ErrNotConnected)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	write := c.remote.WriteWithoutResponse
	if withResponse {
		write = c.remote.Write
	}

	done := make(chan error, 1)
	go func() {
		c.conn.writeMu.Lock()
		defer c.conn.writeMu.Unlock()
		done <- writeChunks(write, data)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to write characteristic %s in service %s: %w", c.uuid, c.serviceUUID, NormalizeError(err))
		}
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("writing characteristic %s after %v: %w", c.uuid, timeout, device.ErrTimeout)
	}
}

func writeChunks(write func([]byte) (int, error), data []byte) error {
	if len(data) == 0 {
		_, err := write(data)
		return err
	}
	for off := 0; off < len(data); off += chunkSize {
		end := off + chunkSize
		if end > len(data) {
			end = len(data)
		}
		if _, err := write(data[off:end]); err != nil {
			return err
		}
		if end < len(data) {
			time.Sleep(chunkDelay)
		}
	}
	return nil
}

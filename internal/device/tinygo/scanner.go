package tinygoble

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blesend/internal/device"
	"github.com/srg/blesend/internal/groutine"
)

// Scanner implements device.Scanner over a Radio
type Scanner struct {
	radio  Radio
	logger *logrus.Logger
}

// NewScanner powers the default radio up and returns a scanner for it.
func NewScanner(logger *logrus.Logger) (device.Scanner, error) {
	return newScanner(DefaultRadio, logger)
}

func newScanner(radio Radio, logger *logrus.Logger) (*Scanner, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if err := radio.Enable(); err != nil {
		return nil, fmt.Errorf("failed to enable bluetooth adapter: %w", NormalizeError(err))
	}
	return &Scanner{radio: radio, logger: logger}, nil
}

// stopRetryInterval paces StopScan retries while the host scan is still starting
const stopRetryInterval = 10 * time.Millisecond

// Scan reports advertisements until ctx is done. The host scan blocks until
// StopScan, so it runs in its own goroutine and is stopped on cancellation.
func (s *Scanner) Scan(ctx context.Context, allowDup bool, handler func(device.Advertisement)) error {
	var (
		mu   sync.Mutex
		seen = make(map[string]struct{})
	)
	done := make(chan error, 1)

	groutine.Go(ctx, "tinygo-scan", func(ctx context.Context) {
		if err := ctx.Err(); err != nil {
			done <- err
			return
		}
		done <- s.radio.Scan(func(adv device.Advertisement) {
			if !allowDup {
				mu.Lock()
				_, dup := seen[adv.Addr()]
				seen[adv.Addr()] = struct{}{}
				mu.Unlock()
				if dup {
					return
				}
			}
			handler(adv)
		})
	})

	select {
	case err := <-done:
		return NormalizeError(err)
	case <-ctx.Done():
		s.stopScan(done)
		return ctx.Err()
	}
}

// stopScan asks the radio to stop until the host scan returns. The host
// rejects StopScan until its scan is registered, which may happen after ctx ends.
func (s *Scanner) stopScan(done <-chan error) {
	ticker := time.NewTicker(stopRetryInterval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		if err := s.radio.StopScan(); err != nil {
			s.logger.WithFields(logrus.Fields{
				"error":   err,
				"attempt": attempt,
			}).Debug("Scan not stopped yet, retrying")
		}
		select {
		case <-done:
			return
		case <-ticker.C:
		}
	}
}

// Close is a no-op, the host adapter stays enabled for the life of the process.
func (s *Scanner) Close() error {
	return nil
}

// NormalizeError maps BlueZ and CoreBluetooth error text to device errors
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "powered off"),
		strings.Contains(msg, "not powered"),
		strings.Contains(msg, "org.bluez.error.notready"),
		strings.Contains(msg, "no bluetooth adapter"):
		return fmt.Errorf("%w: %v", device.ErrBluetoothOff, err)
	case strings.Contains(msg, "org.bluez.error.notconnected"),
		strings.Contains(msg, "not connected"):
		return fmt.Errorf("%w: %v", device.ErrNotConnected, err)
	case strings.Contains(msg, "org.bluez.error.alreadyconnected"):
		return fmt.Errorf("%w: %v", device.ErrAlreadyConnected, err)
	default:
		return err
	}
}

package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/srg/blesend/internal/device"
	"github.com/srg/blesend/scanner"
)

// Op names the controller operation an alert came from
type Op string

const (
	OpScan       Op = "scan"
	OpConnect    Op = "connect"
	OpSelect     Op = "select"
	OpSend       Op = "send"
	OpDisconnect Op = "disconnect"
)

var opTitles = map[Op]string{
	OpScan:       "Scan failed",
	OpConnect:    "Connection failed",
	OpSelect:     "Nothing to write to",
	OpSend:       "Send failed",
	OpDisconnect: "Disconnect failed",
}

// Alert is a one-shot message for the user. Nothing is retried.
type Alert struct {
	Op      Op
	Title   string
	Message string
	Err     error
}

func (a *Alert) Error() string {
	return fmt.Sprintf("%s: %s", a.Title, a.Message)
}

func (a *Alert) Unwrap() error { return a.Err }

// AlertFromError turns an operation error into a user-facing alert, or nil for nil.
func AlertFromError(op Op, err error) *Alert {
	if err == nil {
		return nil
	}
	title, ok := opTitles[op]
	if !ok {
		title = "Error"
	}
	return &Alert{Op: op, Title: title, Message: FriendlyMessage(err), Err: err}
}

// FriendlyMessage describes err in terms of what the user can do about it
func FriendlyMessage(err error) string {
	var notFound *device.NotFoundError
	switch {
	case errors.Is(err, device.ErrBluetoothOff):
		return "Bluetooth is turned off. Turn it on and try again."
	case errors.Is(err, device.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "The device did not respond in time. Move closer and try again."
	case errors.Is(err, device.ErrNotConnected):
		return "No device is connected. Pick a device first."
	case errors.Is(err, device.ErrAlreadyConnected):
		return "The device is already connected."
	case errors.Is(err, device.ErrNoServices):
		return "The device exposes no GATT services."
	case errors.Is(err, device.ErrNoCharacteristics):
		return "The selected service has no characteristics."
	case errors.Is(err, device.ErrUnsupported):
		return "The selected characteristic does not accept writes."
	case errors.Is(err, ErrNoTarget):
		return "No characteristic is selected. Connect to a device first."
	case errors.Is(err, scanner.ErrScanInProgress):
		return "A scan is already running."
	case errors.Is(err, ErrClosed):
		return "The session is closed."
	case errors.As(err, &notFound) && len(notFound.UUIDs) > 0:
		return fmt.Sprintf("The device has no such %s (%s).", notFound.Resource, notFound.UUIDs[len(notFound.UUIDs)-1])
	default:
		return err.Error()
	}
}

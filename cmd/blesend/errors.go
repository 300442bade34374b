package main

import (
	"errors"

	"github.com/srg/blesend/internal/session"
)

// errNotTerminal is returned when the picker is started without an interactive terminal
var errNotTerminal = errors.New("the interactive picker needs a terminal, use 'blesend scan' and 'blesend send' instead")

// FormatUserError turns err into the one line printed after "ERROR:".
// Known BLE failures get a hint on what to do, anything else keeps its own text.
func FormatUserError(err error) string {
	var alert *session.Alert
	if errors.As(err, &alert) {
		return alert.Message
	}

	return session.FriendlyMessage(err)
}

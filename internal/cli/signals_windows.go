//go:build windows

package cli

import (
	"os"
	"os/signal"
	"syscall"
)

func notifySignals(ch chan<- os.Signal) {
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
}

func actionFor(os.Signal) signalAction {
	return actionCancel
}

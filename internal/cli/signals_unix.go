//go:build !windows

package cli

import (
	"os"
	"os/signal"
	"syscall"
)

func notifySignals(ch chan<- os.Signal) {
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGUSR1, syscall.SIGUSR2)
}

// SIGUSR1 pauses and SIGUSR2 resumes; everything else cancels.
func actionFor(sig os.Signal) signalAction {
	switch sig {
	case syscall.SIGUSR1:
		return actionPause
	case syscall.SIGUSR2:
		return actionResume
	default:
		return actionCancel
	}
}

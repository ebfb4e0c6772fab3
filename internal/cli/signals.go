package cli

import (
	"context"
	"os"
	"os/signal"
)

type signalAction int

const (
	actionCancel signalAction = iota
	actionPause
	actionResume
)

// initSignalHandler routes OS signals to the current run until the
// returned stop function is called.
func (a *App) initSignalHandler(cancelFunc context.CancelFunc) func() {
	sigs := make(chan os.Signal, 1)
	notifySignals(sigs)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-sigs:
				switch actionFor(sig) {
				case actionPause:
					a.pause()
				case actionResume:
					a.resume()
				default:
					a.logger.Info(context.Background(), "Received signal, cancelling downloads", "signal", sig.String())
					a.cancel()
					cancelFunc()
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

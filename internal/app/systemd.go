package app

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "hllstatus/pkg/logx"
)

// notifier speaks the sd_notify protocol. Outside systemd every call is a
// no-op because NOTIFY_SOCKET is unset.
type notifier struct {
	enabled bool
	log     logx.Logger
	notify  func(state string) (bool, error)
}

func newNotifier(enabled bool, log logx.Logger) *notifier {
	return &notifier{
		enabled: enabled,
		log:     log,
		notify: func(state string) (bool, error) {
			return daemon.SdNotify(false, state)
		},
	}
}

func (n *notifier) send(state string) {
	if !n.enabled {
		return
	}
	sent, err := n.notify(state)
	if err != nil {
		n.log.Warn("systemd notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		n.log.Debug("systemd notified", logx.String("state", state))
	}
}

func (n *notifier) Ready()    { n.send(daemon.SdNotifyReady) }
func (n *notifier) Stopping() { n.send(daemon.SdNotifyStopping) }

// Watchdog pings at half the configured WatchdogSec until ctx ends. It
// returns at once when the unit has no watchdog.
func (n *notifier) Watchdog(ctx context.Context) {
	if !n.enabled {
		return
	}
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		n.log.Warn("systemd watchdog unavailable", logx.Err(err))
		return
	}
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n.send(daemon.SdNotifyWatchdog)
		}
	}
}

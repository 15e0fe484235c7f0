package main

import (
	"log/slog"
	"sync/atomic"

	"github.com/gen2brain/beeep"
)

const noticeTitle = "Distributor"

// shellNotifier shows transient notices. While the page is visible they are
// rendered in-page; otherwise they become system notifications.
type shellNotifier struct {
	rt      shellRuntime
	log     *slog.Logger
	toast   func(title, message string) error
	visible atomic.Bool
}

func newShellNotifier(rt shellRuntime, log *slog.Logger) *shellNotifier {
	n := &shellNotifier{
		rt:  rt,
		log: log,
		toast: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
	n.visible.Store(true)
	return n
}

func (n *shellNotifier) setVisible(v bool) {
	n.visible.Store(v)
}

func (n *shellNotifier) Notify(msg string) {
	n.log.Info("notice", "msg", msg)
	if n.visible.Load() {
		n.rt.Emit(eventNotice, msg)
		return
	}
	if err := n.toast(noticeTitle, msg); err != nil {
		n.log.Debug("system notification failed", "err", err)
		n.rt.Emit(eventNotice, msg)
	}
}

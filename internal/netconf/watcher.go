package netconf

import (
	"context"
	"time"

	"github.com/vishvananda/netlink"

	"github.com/kgroner/enisyncd/internal/log"
)

// Subscriber abstracts the kernel notification subscriptions so the
// watcher can be tested without a netlink socket.
type Subscriber interface {
	LinkSubscribe(ch chan<- netlink.LinkUpdate, done <-chan struct{}) error
	AddrSubscribe(ch chan<- netlink.AddrUpdate, done <-chan struct{}) error
}

type netlinkSubscriber struct{}

// NewSubscriber returns the production Subscriber backed by rtnetlink
// notification groups.
func NewSubscriber() Subscriber {
	return &netlinkSubscriber{}
}

func (s *netlinkSubscriber) LinkSubscribe(ch chan<- netlink.LinkUpdate, done <-chan struct{}) error {
	return netlink.LinkSubscribe(ch, done)
}

func (s *netlinkSubscriber) AddrSubscribe(ch chan<- netlink.AddrUpdate, done <-chan struct{}) error {
	return netlink.AddrSubscribe(ch, done)
}

// Watcher listens for asynchronous link/address notifications and fires a
// coalesced trigger when the kernel state changes behind the daemon's back.
//
// Losing the subscription is not fatal: the watcher resubscribes forever
// with backoff, and the loop's periodic timer covers the gap meanwhile.
type Watcher struct {
	sub      Subscriber
	notify   func()
	debounce time.Duration

	resubscribeBase time.Duration
	resubscribeMax  time.Duration
	onResubscribe   func()
}

// NewWatcher creates a watcher that calls notify once per debounce window
// in which at least one link or address event arrived.
func NewWatcher(sub Subscriber, debounce time.Duration, notify func()) *Watcher {
	return &Watcher{
		sub:             sub,
		notify:          notify,
		debounce:        debounce,
		resubscribeBase: 1 * time.Second,
		resubscribeMax:  30 * time.Second,
	}
}

// SetResubscribeHook registers a callback invoked every time the
// subscription is lost and re-established. Used for metrics.
func (w *Watcher) SetResubscribeHook(f func()) {
	w.onResubscribe = f
}

// Run blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	backoff := w.resubscribeBase

	for ctx.Err() == nil {
		done := make(chan struct{})
		linkCh := make(chan netlink.LinkUpdate, 16)
		addrCh := make(chan netlink.AddrUpdate, 16)

		err := w.sub.LinkSubscribe(linkCh, done)
		if err == nil {
			err = w.sub.AddrSubscribe(addrCh, done)
		}
		if err != nil {
			close(done)
			log.Warnf("Failed to subscribe to kernel notifications: %v (retrying in %v)", err, backoff)
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = bumpBackoff(backoff, w.resubscribeMax)
			continue
		}

		started := time.Now()
		w.pump(ctx, linkCh, addrCh)
		close(done)

		if ctx.Err() != nil {
			return
		}

		// A subscription that held for a while earns a fresh backoff.
		if time.Since(started) > w.resubscribeMax {
			backoff = w.resubscribeBase
		}

		log.Warnf("Kernel notification stream closed, resubscribing in %v", backoff)
		if w.onResubscribe != nil {
			w.onResubscribe()
		}
		if !sleepCtx(ctx, backoff) {
			return
		}
		backoff = bumpBackoff(backoff, w.resubscribeMax)
	}
}

// pump consumes events until the context is cancelled or a channel closes.
// Events within one debounce window collapse to a single notify.
func (w *Watcher) pump(ctx context.Context, linkCh <-chan netlink.LinkUpdate, addrCh <-chan netlink.AddrUpdate) {
	var timer *time.Timer
	var timerC <-chan time.Time

	arm := func() {
		if timer == nil {
			timer = time.NewTimer(w.debounce)
			timerC = timer.C
		}
	}
	defer func() {
		if timer != nil {
			timer.Stop()
			// Events were pending when the stream went away; do not lose
			// them to the resubscribe gap.
			w.notify()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
				timer = nil
			}
			return

		case _, ok := <-linkCh:
			if !ok {
				return
			}
			arm()

		case _, ok := <-addrCh:
			if !ok {
				return
			}
			arm()

		case <-timerC:
			timer = nil
			timerC = nil
			log.Debugf("Kernel state changed, triggering reconciliation")
			w.notify()
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func bumpBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		next = max
	}
	return next
}

package reconcile

import (
	"fmt"
	"os"
	"syscall"

	"github.com/vishvananda/netlink"

	"github.com/kgroner/enisyncd/internal/errors"
	"github.com/kgroner/enisyncd/internal/log"
	"github.com/kgroner/enisyncd/internal/netconf"
)

// ApplyResult reports the outcome of one interface's action sequence.
type ApplyResult struct {
	ID      string
	Applied int
	Failed  *Action
	Err     error
}

// Applier executes reconciliation actions against the kernel, one
// interface's ordered sequence at a time. The first failing action halts
// that interface's sequence for the pass; partial application is expected
// and retried from the start next pass, which is why every ensure
// operation succeeds as a no-op when the kernel is already in the target
// condition.
type Applier struct {
	nl netconf.Netlinker
}

func NewApplier(nl netconf.Netlinker) *Applier {
	return &Applier{nl: nl}
}

// Apply runs one interface's actions in order and returns either success
// or the first failure with enough context for the loop's retry decision.
func (a *Applier) Apply(id string, actions []Action) ApplyResult {
	result := ApplyResult{ID: id}

	for i := range actions {
		action := actions[i]
		if err := a.applyOne(action); err != nil {
			log.Warnf("[%s] Action failed: %v: %v", id, action, err)
			result.Failed = &action
			result.Err = errors.NewActionError(fmt.Sprintf("%v", action), err)
			return result
		}
		log.Debugf("[%s] Applied: %v", id, action)
		result.Applied++
	}

	return result
}

func (a *Applier) applyOne(action Action) error {
	switch action.Kind {
	case KindAddress:
		if action.Op == OpEnsurePresent {
			return a.ensureAddrPresent(action)
		}
		return a.ensureAddrAbsent(action)
	case KindRoute:
		if action.Op == OpEnsurePresent {
			return a.ensureRoutePresent(action)
		}
		return a.ensureRouteAbsent(action)
	default:
		if action.Op == OpEnsurePresent {
			return a.ensureRulePresent(action)
		}
		return a.ensureRuleAbsent(action)
	}
}

func (a *Applier) ensureAddrPresent(action Action) error {
	link, err := a.nl.LinkByIndex(action.LinkIndex)
	if err != nil {
		return err
	}
	err = a.nl.AddrAdd(link, netconf.BuildAddr(action.Addr))
	if isExist(err) {
		return nil
	}
	return err
}

func (a *Applier) ensureAddrAbsent(action Action) error {
	link, err := a.nl.LinkByIndex(action.LinkIndex)
	if err != nil {
		// Link gone means the address is gone with it.
		return nil
	}
	err = a.nl.AddrDel(link, netconf.BuildAddr(action.Addr))
	if isNotExist(err) {
		return nil
	}
	return err
}

// ensureRoutePresent relies on RouteReplace semantics: adding a route that
// already exists, or whose gateway changed, converges in one idempotent call.
func (a *Applier) ensureRoutePresent(action Action) error {
	return a.nl.RouteReplace(action.Route)
}

func (a *Applier) ensureRouteAbsent(action Action) error {
	err := a.nl.RouteDel(action.Route)
	if isNotExist(err) {
		return nil
	}
	return err
}

func (a *Applier) ensureRulePresent(action Action) error {
	rules, err := a.nl.RuleList(netlink.FAMILY_V4)
	if err != nil {
		return err
	}
	for i := range rules {
		if netconf.RuleEqual(&rules[i], action.Rule) {
			return nil
		}
	}
	err = a.nl.RuleAdd(action.Rule)
	if isExist(err) {
		return nil
	}
	return err
}

func (a *Applier) ensureRuleAbsent(action Action) error {
	err := a.nl.RuleDel(action.Rule)
	if isNotExist(err) {
		return nil
	}
	return err
}

func isExist(err error) bool {
	return err != nil && os.IsExist(err)
}

func isNotExist(err error) bool {
	if err == nil {
		return false
	}
	if os.IsNotExist(err) {
		return true
	}
	// Route and address deletes report absence with their own errnos.
	return err == syscall.ESRCH || err == syscall.EADDRNOTAVAIL
}

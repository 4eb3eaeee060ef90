package reconcile

import (
	"fmt"
	"net"

	"github.com/vishvananda/netlink"

	"github.com/kgroner/enisyncd/internal/netconf"
)

// ActionOp is what an action does to its target.
type ActionOp int

const (
	OpEnsurePresent ActionOp = iota
	OpEnsureAbsent
)

func (op ActionOp) String() string {
	if op == OpEnsurePresent {
		return "ensure-present"
	}
	return "ensure-absent"
}

// ActionKind is the kernel object class an action targets.
type ActionKind int

const (
	KindAddress ActionKind = iota
	KindRoute
	KindRule
)

func (k ActionKind) String() string {
	switch k {
	case KindAddress:
		return "address"
	case KindRoute:
		return "route"
	default:
		return "rule"
	}
}

// Action is one kernel mutation. Exactly one of Addr/Route/Rule is set,
// matching Kind.
type Action struct {
	Op   ActionOp
	Kind ActionKind

	LinkIndex int
	LinkName  string

	Addr  *net.IPNet
	Route *netlink.Route
	Rule  *netlink.Rule
}

func (a Action) String() string {
	switch a.Kind {
	case KindAddress:
		return fmt.Sprintf("%s address %s on %s", a.Op, a.Addr, a.LinkName)
	case KindRoute:
		return fmt.Sprintf("%s %s", a.Op, netconf.RouteString(a.Route))
	default:
		return fmt.Sprintf("%s %s", a.Op, netconf.RuleString(a.Rule))
	}
}

// Observed is the kernel's current take on one managed interface, grouped
// by its route table id.
type Observed struct {
	Table  int
	Link   *netconf.Link
	Addrs  []net.IPNet
	Routes []netlink.Route
	Rules  []netlink.Rule
}

// Diff compares desired and observed state for one interface and returns
// the ordered actions needed to converge. It is a pure function: calling
// it twice on the same inputs yields the same list.
//
// Build order is address, route, rule, so a policy rule never points at a
// half-built table. Teardown is the exact reverse. Within the address
// step, the desired address is ensured before any stale one is removed,
// so the link never has a window without a usable address.
func Diff(desired *DesiredState, observed *Observed) []Action {
	if desired == nil {
		return teardownActions(observed)
	}
	if observed == nil || observed.Link == nil {
		// Nothing to attach to; the loop reports this interface Pending.
		return nil
	}

	var actions []Action
	actions = append(actions, addressActions(desired, observed)...)
	actions = append(actions, routeActions(desired, observed)...)
	actions = append(actions, ruleActions(desired, observed)...)
	return actions
}

func addressActions(desired *DesiredState, observed *Observed) []Action {
	var actions []Action

	present := false
	for i := range observed.Addrs {
		if netconf.IPNetEqual(&observed.Addrs[i], desired.Addr) {
			present = true
			break
		}
	}
	if !present {
		actions = append(actions, Action{
			Op:        OpEnsurePresent,
			Kind:      KindAddress,
			LinkIndex: observed.Link.Index,
			LinkName:  observed.Link.Name,
			Addr:      desired.Addr,
		})
	}

	// The manifest owns global IPv4 addressing on managed links: anything
	// else goes, but only after the desired address is in place.
	for i := range observed.Addrs {
		if netconf.IPNetEqual(&observed.Addrs[i], desired.Addr) {
			continue
		}
		stale := observed.Addrs[i]
		actions = append(actions, Action{
			Op:        OpEnsureAbsent,
			Kind:      KindAddress,
			LinkIndex: observed.Link.Index,
			LinkName:  observed.Link.Name,
			Addr:      &stale,
		})
	}

	return actions
}

func routeActions(desired *DesiredState, observed *Observed) []Action {
	var actions []Action

	want := netconf.BuildDefaultRoute(observed.Link.Index, desired.Gateway, desired.Addr.IP, desired.Table)

	present := false
	for i := range observed.Routes {
		if netconf.RouteEqual(&observed.Routes[i], want) {
			present = true
			break
		}
	}
	if !present {
		actions = append(actions, Action{
			Op:        OpEnsurePresent,
			Kind:      KindRoute,
			LinkIndex: observed.Link.Index,
			LinkName:  observed.Link.Name,
			Route:     want,
		})
	}

	// Leftovers in the table (old gateway, old link) are removed after the
	// replacement is in place. RouteReplace already swallows the same-
	// destination case, so these are routes with a different destination.
	for i := range observed.Routes {
		if netconf.RouteEqual(&observed.Routes[i], want) {
			continue
		}
		if netconf.IsDefaultDst(observed.Routes[i].Dst) {
			// Same destination as the desired route; RouteReplace
			// overwrites it in one step, no separate delete needed.
			continue
		}
		stale := observed.Routes[i]
		actions = append(actions, Action{
			Op:       OpEnsureAbsent,
			Kind:     KindRoute,
			LinkName: observed.Link.Name,
			Route:    &stale,
		})
	}

	return actions
}

func ruleActions(desired *DesiredState, observed *Observed) []Action {
	var actions []Action

	want := netconf.BuildSourceRule(desired.SourceNetwork(), desired.Table, desired.RulePriority)

	present := false
	for i := range observed.Rules {
		if netconf.RuleEqual(&observed.Rules[i], want) {
			present = true
			break
		}
	}
	if !present {
		actions = append(actions, Action{
			Op:       OpEnsurePresent,
			Kind:     KindRule,
			LinkName: observed.Link.Name,
			Rule:     want,
		})
	}

	for i := range observed.Rules {
		if netconf.RuleEqual(&observed.Rules[i], want) {
			continue
		}
		stale := observed.Rules[i]
		actions = append(actions, Action{
			Op:       OpEnsureAbsent,
			Kind:     KindRule,
			LinkName: observed.Link.Name,
			Rule:     &stale,
		})
	}

	return actions
}

// teardownActions removes everything attributed to a detached interface,
// in reverse build order: rule first so no traffic selects the table,
// then the table's routes, then the address if the link still exists.
func teardownActions(observed *Observed) []Action {
	if observed == nil {
		return nil
	}

	var actions []Action
	linkName := ""
	linkIndex := 0
	if observed.Link != nil {
		linkName = observed.Link.Name
		linkIndex = observed.Link.Index
	}

	for i := range observed.Rules {
		stale := observed.Rules[i]
		actions = append(actions, Action{
			Op:       OpEnsureAbsent,
			Kind:     KindRule,
			LinkName: linkName,
			Rule:     &stale,
		})
	}

	for i := range observed.Routes {
		stale := observed.Routes[i]
		actions = append(actions, Action{
			Op:       OpEnsureAbsent,
			Kind:     KindRoute,
			LinkName: linkName,
			Route:    &stale,
		})
	}

	// Only addresses attributable to this interface's policy rules are
	// removed; without a rule to vouch for it, an address is left alone.
	if observed.Link != nil {
		for i := range observed.Addrs {
			addr := observed.Addrs[i]
			if !coveredByRule(&addr, observed.Rules) {
				continue
			}
			actions = append(actions, Action{
				Op:        OpEnsureAbsent,
				Kind:      KindAddress,
				LinkIndex: linkIndex,
				LinkName:  linkName,
				Addr:      &addr,
			})
		}
	}

	return actions
}

func coveredByRule(addr *net.IPNet, rules []netlink.Rule) bool {
	for i := range rules {
		if rules[i].Src != nil && rules[i].Src.Contains(addr.IP) {
			return true
		}
	}
	return false
}

package netconf

import (
	"bytes"
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
)

// BuildAddr constructs the netlink address object for a host address with
// prefix, e.g. 10.0.1.5/24.
func BuildAddr(ipnet *net.IPNet) *netlink.Addr {
	return &netlink.Addr{IPNet: ipnet}
}

// BuildDefaultRoute constructs the default route installed into a managed
// table: via the subnet gateway, out of the given link, with the interface
// address as preferred source so reply traffic keeps its source address.
func BuildDefaultRoute(linkIndex int, gw net.IP, src net.IP, table int) *netlink.Route {
	return &netlink.Route{
		Family:    netlink.FAMILY_V4,
		Table:     table,
		LinkIndex: linkIndex,
		Gw:        gw,
		Src:       src,
		Dst:       DefaultDst(),
	}
}

// BuildSourceRule constructs the policy rule that sends traffic sourced
// from the interface's subnet through its dedicated table.
func BuildSourceRule(src *net.IPNet, table int, priority int) *netlink.Rule {
	rule := netlink.NewRule()
	rule.Family = netlink.FAMILY_V4
	rule.Src = src
	rule.Table = table
	rule.Priority = priority
	return rule
}

// DefaultDst returns the explicit 0.0.0.0/0 destination.
func DefaultDst() *net.IPNet {
	return &net.IPNet{IP: net.IPv4zero, Mask: net.CIDRMask(0, 32)}
}

// IsDefaultDst reports whether dst is the default destination. The kernel
// reports default routes with a nil destination.
func IsDefaultDst(dst *net.IPNet) bool {
	if dst == nil {
		return true
	}
	ones, _ := dst.Mask.Size()
	return ones == 0
}

// IPNetEqual compares two prefixes by address and mask.
func IPNetEqual(a, b *net.IPNet) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.IP.Equal(b.IP) && bytes.Equal(a.Mask, b.Mask)
}

// RouteEqual reports whether two routes describe the same managed route:
// same table, destination, gateway, output link and preferred source.
func RouteEqual(a, b *netlink.Route) bool {
	if a.Table != b.Table || a.LinkIndex != b.LinkIndex {
		return false
	}
	if !a.Gw.Equal(b.Gw) || !a.Src.Equal(b.Src) {
		return false
	}
	if IsDefaultDst(a.Dst) != IsDefaultDst(b.Dst) {
		return false
	}
	if !IsDefaultDst(a.Dst) && !IPNetEqual(a.Dst, b.Dst) {
		return false
	}
	return true
}

// RuleEqual reports whether two policy rules match on priority, source
// selector and target table.
func RuleEqual(a, b *netlink.Rule) bool {
	return a.Priority == b.Priority && a.Table == b.Table && IPNetEqual(a.Src, b.Src)
}

// RouteString renders a route for logs.
func RouteString(r *netlink.Route) string {
	dst := "default"
	if !IsDefaultDst(r.Dst) {
		dst = r.Dst.String()
	}
	return fmt.Sprintf("table %d: %s via %s dev idx %d src %s",
		r.Table, dst, r.Gw, r.LinkIndex, r.Src)
}

// RuleString renders a policy rule for logs.
func RuleString(r *netlink.Rule) string {
	from := "all"
	if r.Src != nil {
		from = r.Src.String()
	}
	return fmt.Sprintf("rule %d: from %s -> table %d", r.Priority, from, r.Table)
}

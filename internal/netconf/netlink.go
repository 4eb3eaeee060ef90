package netconf

import (
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// Netlinker abstracts the rtnetlink operations the daemon needs, so the
// reconciliation engine can run against a fake in tests.
type Netlinker interface {
	LinkList() ([]netlink.Link, error)
	LinkByIndex(index int) (netlink.Link, error)

	AddrList(link netlink.Link, family int) ([]netlink.Addr, error)
	AddrAdd(link netlink.Link, addr *netlink.Addr) error
	AddrDel(link netlink.Link, addr *netlink.Addr) error

	RouteListAll(family int) ([]netlink.Route, error)
	RouteReplace(route *netlink.Route) error
	RouteDel(route *netlink.Route) error

	RuleList(family int) ([]netlink.Rule, error)
	RuleAdd(rule *netlink.Rule) error
	RuleDel(rule *netlink.Rule) error
}

type realNetlinker struct{}

// NewNetlinker returns the production Netlinker backed by vishvananda/netlink.
func NewNetlinker() Netlinker {
	return &realNetlinker{}
}

func (r *realNetlinker) LinkList() ([]netlink.Link, error) {
	return netlink.LinkList()
}

func (r *realNetlinker) LinkByIndex(index int) (netlink.Link, error) {
	return netlink.LinkByIndex(index)
}

func (r *realNetlinker) AddrList(link netlink.Link, family int) ([]netlink.Addr, error) {
	return netlink.AddrList(link, family)
}

func (r *realNetlinker) AddrAdd(link netlink.Link, addr *netlink.Addr) error {
	return netlink.AddrAdd(link, addr)
}

func (r *realNetlinker) AddrDel(link netlink.Link, addr *netlink.Addr) error {
	return netlink.AddrDel(link, addr)
}

// RouteListAll lists routes from every table. Filtering on RT_TABLE_UNSPEC
// is the rtnetlink idiom for "all tables"; a plain RouteList would only
// return the main table.
func (r *realNetlinker) RouteListAll(family int) ([]netlink.Route, error) {
	filter := &netlink.Route{Table: unix.RT_TABLE_UNSPEC}
	return netlink.RouteListFiltered(family, filter, netlink.RT_FILTER_TABLE)
}

func (r *realNetlinker) RouteReplace(route *netlink.Route) error {
	return netlink.RouteReplace(route)
}

func (r *realNetlinker) RouteDel(route *netlink.Route) error {
	return netlink.RouteDel(route)
}

func (r *realNetlinker) RuleList(family int) ([]netlink.Rule, error) {
	return netlink.RuleList(family)
}

func (r *realNetlinker) RuleAdd(rule *netlink.Rule) error {
	return netlink.RuleAdd(rule)
}

func (r *realNetlinker) RuleDel(rule *netlink.Rule) error {
	return netlink.RuleDel(rule)
}

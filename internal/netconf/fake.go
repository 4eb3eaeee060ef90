package netconf

import (
	"fmt"
	"net"
	"sort"
	"sync"
	"syscall"

	"github.com/vishvananda/netlink"
)

// FakeNetlinker is an in-memory kernel networking state used by tests
// across packages. Mutating operations behave like the kernel does:
// duplicate adds fail with EEXIST, deletes of absent objects fail with
// ESRCH/ENOENT, and every mutation is recorded in order.
type FakeNetlinker struct {
	mu     sync.Mutex
	links  map[int]netlink.Link
	addrs  map[int][]netlink.Addr
	routes []netlink.Route
	rules  []netlink.Rule

	// Mutation log, e.g. "RouteReplace table=10001".
	Calls []string

	// List error injection.
	LinkListErr  error
	AddrListErr  error
	RouteListErr error
	RuleListErr  error

	// Mutation error injection. A nil hook or a nil return falls through
	// to the normal in-memory behavior.
	AddrAddErr      func(link netlink.Link, addr *netlink.Addr) error
	AddrDelErr      func(link netlink.Link, addr *netlink.Addr) error
	RouteReplaceErr func(route *netlink.Route) error
	RouteDelErr     func(route *netlink.Route) error
	RuleAddErr      func(rule *netlink.Rule) error
	RuleDelErr      func(rule *netlink.Rule) error
}

func NewFakeNetlinker() *FakeNetlinker {
	return &FakeNetlinker{
		links: make(map[int]netlink.Link),
		addrs: make(map[int][]netlink.Addr),
	}
}

// AddLink seeds a link into the fake kernel.
func (f *FakeNetlinker) AddLink(name string, index int, mac string, up bool) netlink.Link {
	f.mu.Lock()
	defer f.mu.Unlock()

	attrs := netlink.NewLinkAttrs()
	attrs.Name = name
	attrs.Index = index
	if mac != "" {
		hw, err := net.ParseMAC(mac)
		if err == nil {
			attrs.HardwareAddr = hw
		}
	}
	if up {
		attrs.Flags |= net.FlagUp
	}
	link := &netlink.Dummy{LinkAttrs: attrs}
	f.links[index] = link
	return link
}

// AddLoopback seeds the loopback device.
func (f *FakeNetlinker) AddLoopback(index int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	attrs := netlink.NewLinkAttrs()
	attrs.Name = "lo"
	attrs.Index = index
	attrs.Flags |= net.FlagLoopback | net.FlagUp
	f.links[index] = &netlink.Dummy{LinkAttrs: attrs}
}

// RemoveLink drops a link and its addresses, as a hot-detach would.
func (f *FakeNetlinker) RemoveLink(index int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.links, index)
	delete(f.addrs, index)
}

// SeedAddr seeds an address without going through AddrAdd bookkeeping.
func (f *FakeNetlinker) SeedAddr(index int, cidr string) error {
	addr, err := netlink.ParseAddr(cidr)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addrs[index] = append(f.addrs[index], *addr)
	return nil
}

// SeedRoute seeds a route without going through RouteReplace bookkeeping.
func (f *FakeNetlinker) SeedRoute(route netlink.Route) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes = append(f.routes, route)
}

// SeedRule seeds a policy rule without going through RuleAdd bookkeeping.
func (f *FakeNetlinker) SeedRule(rule netlink.Rule) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, rule)
}

func (f *FakeNetlinker) record(format string, args ...interface{}) {
	f.Calls = append(f.Calls, fmt.Sprintf(format, args...))
}

// CallOps returns just the operation names from the mutation log.
func (f *FakeNetlinker) CallOps() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ops := make([]string, 0, len(f.Calls))
	for _, call := range f.Calls {
		op := call
		for i := 0; i < len(call); i++ {
			if call[i] == ' ' {
				op = call[:i]
				break
			}
		}
		ops = append(ops, op)
	}
	return ops
}

// ResetCalls clears the mutation log between test phases.
func (f *FakeNetlinker) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = nil
}

func (f *FakeNetlinker) LinkList() ([]netlink.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LinkListErr != nil {
		return nil, f.LinkListErr
	}
	indexes := make([]int, 0, len(f.links))
	for idx := range f.links {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	links := make([]netlink.Link, 0, len(indexes))
	for _, idx := range indexes {
		links = append(links, f.links[idx])
	}
	return links, nil
}

func (f *FakeNetlinker) LinkByIndex(index int) (netlink.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	link, ok := f.links[index]
	if !ok {
		return nil, fmt.Errorf("link with index %d not found", index)
	}
	return link, nil
}

func (f *FakeNetlinker) AddrList(link netlink.Link, family int) ([]netlink.Addr, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.AddrListErr != nil {
		return nil, f.AddrListErr
	}
	return append([]netlink.Addr(nil), f.addrs[link.Attrs().Index]...), nil
}

func (f *FakeNetlinker) AddrAdd(link netlink.Link, addr *netlink.Addr) error {
	if f.AddrAddErr != nil {
		if err := f.AddrAddErr(link, addr); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	index := link.Attrs().Index
	if _, ok := f.links[index]; !ok {
		return fmt.Errorf("link with index %d not found", index)
	}
	for _, existing := range f.addrs[index] {
		if IPNetEqual(existing.IPNet, addr.IPNet) {
			return syscall.EEXIST
		}
	}
	f.addrs[index] = append(f.addrs[index], *addr)
	f.record("AddrAdd dev=%s addr=%s", link.Attrs().Name, addr.IPNet)
	return nil
}

func (f *FakeNetlinker) AddrDel(link netlink.Link, addr *netlink.Addr) error {
	if f.AddrDelErr != nil {
		if err := f.AddrDelErr(link, addr); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	index := link.Attrs().Index
	for i, existing := range f.addrs[index] {
		if IPNetEqual(existing.IPNet, addr.IPNet) {
			f.addrs[index] = append(f.addrs[index][:i], f.addrs[index][i+1:]...)
			f.record("AddrDel dev=%s addr=%s", link.Attrs().Name, addr.IPNet)
			return nil
		}
	}
	return syscall.EADDRNOTAVAIL
}

func (f *FakeNetlinker) RouteListAll(family int) ([]netlink.Route, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RouteListErr != nil {
		return nil, f.RouteListErr
	}
	return append([]netlink.Route(nil), f.routes...), nil
}

func (f *FakeNetlinker) RouteReplace(route *netlink.Route) error {
	if f.RouteReplaceErr != nil {
		if err := f.RouteReplaceErr(route); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("RouteReplace table=%d", route.Table)
	for i := range f.routes {
		if f.routes[i].Table == route.Table && sameDst(f.routes[i].Dst, route.Dst) {
			f.routes[i] = *route
			return nil
		}
	}
	f.routes = append(f.routes, *route)
	return nil
}

func (f *FakeNetlinker) RouteDel(route *netlink.Route) error {
	if f.RouteDelErr != nil {
		if err := f.RouteDelErr(route); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.routes {
		if f.routes[i].Table == route.Table && sameDst(f.routes[i].Dst, route.Dst) {
			f.routes = append(f.routes[:i], f.routes[i+1:]...)
			f.record("RouteDel table=%d", route.Table)
			return nil
		}
	}
	return syscall.ESRCH
}

func (f *FakeNetlinker) RuleList(family int) ([]netlink.Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RuleListErr != nil {
		return nil, f.RuleListErr
	}
	return append([]netlink.Rule(nil), f.rules...), nil
}

func (f *FakeNetlinker) RuleAdd(rule *netlink.Rule) error {
	if f.RuleAddErr != nil {
		if err := f.RuleAddErr(rule); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rules {
		if RuleEqual(&f.rules[i], rule) {
			return syscall.EEXIST
		}
	}
	f.rules = append(f.rules, *rule)
	f.record("RuleAdd priority=%d table=%d", rule.Priority, rule.Table)
	return nil
}

func (f *FakeNetlinker) RuleDel(rule *netlink.Rule) error {
	if f.RuleDelErr != nil {
		if err := f.RuleDelErr(rule); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rules {
		if RuleEqual(&f.rules[i], rule) {
			f.rules = append(f.rules[:i], f.rules[i+1:]...)
			f.record("RuleDel priority=%d table=%d", rule.Priority, rule.Table)
			return nil
		}
	}
	return syscall.ENOENT
}

// AddrsOn returns the addresses currently present on a link, as strings.
func (f *FakeNetlinker) AddrsOn(index int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, addr := range f.addrs[index] {
		out = append(out, addr.IPNet.String())
	}
	return out
}

// RoutesInTable returns the routes currently in the given table.
func (f *FakeNetlinker) RoutesInTable(table int) []netlink.Route {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []netlink.Route
	for _, route := range f.routes {
		if route.Table == table {
			out = append(out, route)
		}
	}
	return out
}

// RulesAtPriority returns the rules currently at the given priority.
func (f *FakeNetlinker) RulesAtPriority(priority int) []netlink.Rule {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []netlink.Rule
	for _, rule := range f.rules {
		if rule.Priority == priority {
			out = append(out, rule)
		}
	}
	return out
}

func sameDst(a, b *net.IPNet) bool {
	if IsDefaultDst(a) || IsDefaultDst(b) {
		return IsDefaultDst(a) && IsDefaultDst(b)
	}
	return IPNetEqual(a, b)
}

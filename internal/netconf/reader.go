package netconf

import (
	"net"

	"github.com/vishvananda/netlink"

	"github.com/kgroner/enisyncd/internal/errors"
	"github.com/kgroner/enisyncd/internal/log"
)

// Reader enumerates current kernel state. Pure read, no side effects.
type Reader struct {
	nl     Netlinker
	ranges Ranges
}

func NewReader(nl Netlinker, ranges Ranges) *Reader {
	return &Reader{nl: nl, ranges: ranges}
}

// Read returns a snapshot of links, addresses, managed routes and managed
// rules. If any category fails to enumerate, the whole read fails: callers
// must never mistake "we failed to read routes" for "there are no routes".
func (r *Reader) Read() (*Snapshot, error) {
	links, err := r.nl.LinkList()
	if err != nil {
		return nil, errors.NewReadError("failed to list links", err)
	}

	snap := &Snapshot{
		Addrs:  make(map[int][]net.IPNet),
		Routes: make(map[int][]netlink.Route),
	}

	for _, link := range links {
		attrs := link.Attrs()
		if attrs.Flags&net.FlagLoopback != 0 {
			continue
		}

		snap.Links = append(snap.Links, Link{
			Name:  attrs.Name,
			Index: attrs.Index,
			MAC:   attrs.HardwareAddr.String(),
			Up:    attrs.Flags&net.FlagUp != 0,
		})

		addrs, err := r.nl.AddrList(link, netlink.FAMILY_V4)
		if err != nil {
			return nil, errors.NewReadError("failed to list addresses for "+attrs.Name, err)
		}
		for _, addr := range addrs {
			if addr.IPNet == nil || addr.IP.IsLinkLocalUnicast() {
				continue
			}
			snap.Addrs[attrs.Index] = append(snap.Addrs[attrs.Index], *addr.IPNet)
		}
	}

	routes, err := r.nl.RouteListAll(netlink.FAMILY_V4)
	if err != nil {
		return nil, errors.NewReadError("failed to list routes", err)
	}
	for _, route := range routes {
		if r.ranges.ManagesTable(route.Table) {
			snap.Routes[route.Table] = append(snap.Routes[route.Table], route)
		}
	}

	rules, err := r.nl.RuleList(netlink.FAMILY_V4)
	if err != nil {
		return nil, errors.NewReadError("failed to list policy rules", err)
	}
	for _, rule := range rules {
		if r.ranges.ManagesPriority(rule.Priority) {
			snap.Rules = append(snap.Rules, rule)
		}
	}

	log.Debugf("Kernel snapshot: %d link(s), %d managed table(s), %d managed rule(s)",
		len(snap.Links), len(snap.Routes), len(snap.Rules))

	return snap, nil
}

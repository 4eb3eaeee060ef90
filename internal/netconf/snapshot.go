package netconf

import (
	"net"
	"strings"

	"github.com/vishvananda/netlink"
)

// Link is the slice of kernel link state the reconciler cares about.
type Link struct {
	Name  string
	Index int
	MAC   string
	Up    bool
}

// Snapshot is a point-in-time view of the kernel state the daemon manages:
// all links, their global IPv4 addresses, every route inside the managed
// table range and every policy rule inside the managed priority range.
type Snapshot struct {
	Links  []Link
	Addrs  map[int][]net.IPNet     // link index -> global IPv4 addresses
	Routes map[int][]netlink.Route // managed table -> routes
	Rules  []netlink.Rule          // rules in the managed priority range
}

// LinkByName returns the link with the given device name, or nil.
func (s *Snapshot) LinkByName(name string) *Link {
	for i := range s.Links {
		if s.Links[i].Name == name {
			return &s.Links[i]
		}
	}
	return nil
}

// LinkByMAC returns the link with the given hardware address, or nil.
func (s *Snapshot) LinkByMAC(mac string) *Link {
	if mac == "" {
		return nil
	}
	for i := range s.Links {
		if strings.EqualFold(s.Links[i].MAC, mac) {
			return &s.Links[i]
		}
	}
	return nil
}

// LinkByIndex returns the link with the given kernel index, or nil.
func (s *Snapshot) LinkByIndex(index int) *Link {
	for i := range s.Links {
		if s.Links[i].Index == index {
			return &s.Links[i]
		}
	}
	return nil
}

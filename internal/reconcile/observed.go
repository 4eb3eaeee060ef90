package reconcile

import (
	"github.com/kgroner/enisyncd/internal/netconf"
)

// BuildObserved groups a kernel snapshot into per-interface observed
// state, keyed by managed table id. Desired interfaces claim their table
// and contribute their resolved link; leftover tables with content are
// orphans awaiting teardown, attributed to a link through their stale
// routes' output interface.
func BuildObserved(snap *netconf.Snapshot, ranges netconf.Ranges, desired map[string]*DesiredState) map[int]*Observed {
	observed := make(map[int]*Observed)
	get := func(table int) *Observed {
		if o, ok := observed[table]; ok {
			return o
		}
		o := &Observed{Table: table}
		observed[table] = o
		return o
	}

	for table, routes := range snap.Routes {
		o := get(table)
		o.Routes = append(o.Routes, routes...)
	}

	for _, rule := range snap.Rules {
		table := rule.Table
		if !ranges.ManagesTable(table) {
			// A rule in our priority range pointing at a foreign table is
			// still ours to clean up; its priority names the table slot.
			table = ranges.TableFor(rule.Priority)
		}
		o := get(table)
		o.Rules = append(o.Rules, rule)
	}

	for _, d := range desired {
		o := get(d.Table)
		if link := ResolveLink(snap, d); link != nil {
			o.Link = link
			o.Addrs = snap.Addrs[link.Index]
		}
	}

	for _, o := range observed {
		if o.Link != nil {
			continue
		}
		for i := range o.Routes {
			if link := snap.LinkByIndex(o.Routes[i].LinkIndex); link != nil {
				o.Link = link
				o.Addrs = snap.Addrs[link.Index]
				break
			}
		}
	}

	return observed
}

// ResolveLink finds the kernel link a desired interface refers to, by
// device name first and hardware address second.
func ResolveLink(snap *netconf.Snapshot, d *DesiredState) *netconf.Link {
	if d.LinkName != "" {
		if link := snap.LinkByName(d.LinkName); link != nil {
			return link
		}
	}
	return snap.LinkByMAC(d.MAC)
}

// IsEmpty reports whether nothing managed remains for this table.
func (o *Observed) IsEmpty() bool {
	return len(o.Routes) == 0 && len(o.Rules) == 0
}

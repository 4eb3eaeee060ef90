package reconcile

import (
	"sort"

	"github.com/kgroner/enisyncd/internal/netconf"
)

// ResetActions builds the flat teardown sequence for every managed table
// found in the snapshot, ordered by table id. Addresses are left in
// place: an address still carries traffic through the main table, and a
// later sync pass reclaims or removes it under manifest control.
func ResetActions(snap *netconf.Snapshot, ranges netconf.Ranges) []Action {
	observed := BuildObserved(snap, ranges, nil)

	tables := make([]int, 0, len(observed))
	for table, obs := range observed {
		if obs.IsEmpty() {
			continue
		}
		tables = append(tables, table)
	}
	sort.Ints(tables)

	var actions []Action
	for _, table := range tables {
		for _, action := range Diff(nil, observed[table]) {
			if action.Kind == KindAddress {
				continue
			}
			actions = append(actions, action)
		}
	}
	return actions
}

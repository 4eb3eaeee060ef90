package netconf

// Ranges describes the route table and rule priority space owned by the
// daemon. The rule range is exactly as wide as the table range: table
// base+N always pairs with priority base+N, so either id recovers the other.
type Ranges struct {
	TableBase    int
	TableSpan    int
	PriorityBase int
}

// ManagesTable reports whether the given route table id is ours.
func (r Ranges) ManagesTable(table int) bool {
	return table >= r.TableBase && table < r.TableBase+r.TableSpan
}

// ManagesPriority reports whether the given rule priority is ours.
func (r Ranges) ManagesPriority(priority int) bool {
	return priority >= r.PriorityBase && priority < r.PriorityBase+r.TableSpan
}

// PriorityFor returns the rule priority paired with a managed table id.
func (r Ranges) PriorityFor(table int) int {
	return r.PriorityBase + (table - r.TableBase)
}

// TableFor returns the table id paired with a managed rule priority.
func (r Ranges) TableFor(priority int) int {
	return r.TableBase + (priority - r.PriorityBase)
}

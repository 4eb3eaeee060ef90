package reconcile

import (
	"fmt"
	"hash/fnv"
	"net"

	"github.com/kgroner/enisyncd/internal/errors"
	"github.com/kgroner/enisyncd/internal/manifest"
	"github.com/kgroner/enisyncd/internal/netconf"
)

// DesiredState is the per-interface configuration the kernel should
// converge to: the primary address on the link, a default route in the
// interface's dedicated table, and a policy rule selecting that table for
// traffic sourced from the interface's subnet.
type DesiredState struct {
	ID           string
	LinkName     string
	MAC          string
	Addr         *net.IPNet // host address with prefix mask
	Gateway      net.IP
	Table        int
	RulePriority int
}

// SourceNetwork returns the masked subnet of the interface address, used
// as the policy rule's source selector.
func (d *DesiredState) SourceNetwork() *net.IPNet {
	return &net.IPNet{
		IP:   d.Addr.IP.Mask(d.Addr.Mask),
		Mask: d.Addr.Mask,
	}
}

// Builder transforms a manifest into desired per-interface state.
//
// Table-id assignment is deterministic so table numbers never churn
// across passes: a manifest-supplied device index anchors the table
// directly, otherwise the identifier is hashed (FNV-1a) into the managed
// span. Any collision means two interfaces would share a table, which is
// a correctness hazard, so the whole pass fails instead.
type Builder struct {
	ranges netconf.Ranges
}

func NewBuilder(ranges netconf.Ranges) *Builder {
	return &Builder{ranges: ranges}
}

// Build validates the manifest and derives desired state keyed by
// interface identifier. Duplicate identifiers and table collisions fail
// the pass with BUILD_ERROR; no kernel mutation happens on a failed build.
func (b *Builder) Build(descriptors []manifest.InterfaceDescriptor) (map[string]*DesiredState, error) {
	desired := make(map[string]*DesiredState, len(descriptors))
	tableOwner := make(map[int]string, len(descriptors))

	for _, desc := range descriptors {
		if desc.ID == "" {
			return nil, errors.NewBuildError("manifest contains an interface without an identifier", nil)
		}
		if _, dup := desired[desc.ID]; dup {
			return nil, errors.NewBuildError(
				fmt.Sprintf("duplicate interface identifier %q in manifest", desc.ID), nil)
		}

		state, err := b.buildOne(desc)
		if err != nil {
			return nil, err
		}

		if owner, taken := tableOwner[state.Table]; taken {
			return nil, errors.NewBuildError(
				fmt.Sprintf("table id collision: %q and %q both derive table %d", owner, desc.ID, state.Table), nil)
		}
		tableOwner[state.Table] = desc.ID
		desired[desc.ID] = state
	}

	return desired, nil
}

func (b *Builder) buildOne(desc manifest.InterfaceDescriptor) (*DesiredState, error) {
	ip, ipnet, err := net.ParseCIDR(desc.Address)
	if err != nil {
		return nil, errors.NewBuildError(
			fmt.Sprintf("interface %q has invalid address %q", desc.ID, desc.Address), err)
	}
	if ip.To4() == nil {
		return nil, errors.NewBuildError(
			fmt.Sprintf("interface %q address %q is not IPv4", desc.ID, desc.Address), nil)
	}

	gw := net.ParseIP(desc.Gateway)
	if gw == nil || gw.To4() == nil {
		return nil, errors.NewBuildError(
			fmt.Sprintf("interface %q has invalid gateway %q", desc.ID, desc.Gateway), nil)
	}

	table, err := b.deriveTable(desc)
	if err != nil {
		return nil, err
	}

	state := &DesiredState{
		ID:           desc.ID,
		MAC:          desc.MAC,
		Addr:         &net.IPNet{IP: ip.To4(), Mask: ipnet.Mask},
		Gateway:      gw.To4(),
		Table:        table,
		RulePriority: b.ranges.PriorityFor(table),
	}

	// An identifier that parses as a hardware address matches kernel links
	// by MAC; anything else is taken as the device name.
	if _, err := net.ParseMAC(desc.ID); err == nil {
		if state.MAC == "" {
			state.MAC = desc.ID
		}
	} else {
		state.LinkName = desc.ID
	}

	return state, nil
}

// deriveTable maps a descriptor to its route table id. The device index
// from the control plane is preferred: attachment indexes are small,
// stable across reboots and unique per attachment. Without one, the
// identifier is hashed into the managed span.
func (b *Builder) deriveTable(desc manifest.InterfaceDescriptor) (int, error) {
	if desc.DeviceIndex != nil {
		idx := *desc.DeviceIndex
		if idx < 0 || idx >= b.ranges.TableSpan {
			return 0, errors.NewBuildError(
				fmt.Sprintf("interface %q device index %d outside table span %d", desc.ID, idx, b.ranges.TableSpan), nil)
		}
		return b.ranges.TableBase + idx, nil
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(desc.ID))
	return b.ranges.TableBase + int(h.Sum32()%uint32(b.ranges.TableSpan)), nil
}

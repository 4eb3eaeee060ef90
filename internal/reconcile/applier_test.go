package reconcile

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vishvananda/netlink"

	"github.com/kgroner/enisyncd/internal/errors"
	"github.com/kgroner/enisyncd/internal/netconf"
)

func TestApplyBuildSequence(t *testing.T) {
	fake := netconf.NewFakeNetlinker()
	fake.AddLink("eth1", 7, "0a:1b:2c:3d:4e:5f", true)

	d := testDesired(t)
	obs := bareObserved()
	result := NewApplier(fake).Apply("eth1", Diff(d, obs))

	require.NoError(t, result.Err)
	require.Equal(t, 3, result.Applied)
	require.Equal(t, []string{"AddrAdd", "RouteReplace", "RuleAdd"}, fake.CallOps())
	require.Equal(t, []string{"10.0.1.5/24"}, fake.AddrsOn(7))
	require.Len(t, fake.RoutesInTable(10001), 1)
	require.Len(t, fake.RulesAtPriority(1001), 1)
}

func TestApplyToleratesAlreadyPresent(t *testing.T) {
	fake := netconf.NewFakeNetlinker()
	fake.AddLink("eth1", 7, "", true)
	require.NoError(t, fake.SeedAddr(7, "10.0.1.5/24"))

	d := testDesired(t)
	actions := []Action{
		{Op: OpEnsurePresent, Kind: KindAddress, LinkIndex: 7, LinkName: "eth1", Addr: d.Addr},
		{Op: OpEnsurePresent, Kind: KindRule, LinkName: "eth1",
			Rule: netconf.BuildSourceRule(d.SourceNetwork(), d.Table, d.RulePriority)},
	}
	fake.SeedRule(*actions[1].Rule)

	result := NewApplier(fake).Apply("eth1", actions)

	require.NoError(t, result.Err)
	require.Equal(t, 2, result.Applied)
	// Both targets already existed; nothing was mutated.
	require.Empty(t, fake.CallOps())
}

func TestApplyToleratesAlreadyAbsent(t *testing.T) {
	fake := netconf.NewFakeNetlinker()
	fake.AddLink("eth1", 7, "", true)

	d := testDesired(t)
	actions := []Action{
		{Op: OpEnsureAbsent, Kind: KindRule, LinkName: "eth1",
			Rule: netconf.BuildSourceRule(d.SourceNetwork(), d.Table, d.RulePriority)},
		{Op: OpEnsureAbsent, Kind: KindRoute, LinkName: "eth1",
			Route: netconf.BuildDefaultRoute(7, d.Gateway, d.Addr.IP, d.Table)},
		{Op: OpEnsureAbsent, Kind: KindAddress, LinkIndex: 7, LinkName: "eth1", Addr: d.Addr},
	}

	result := NewApplier(fake).Apply("eth1", actions)

	require.NoError(t, result.Err)
	require.Equal(t, 3, result.Applied)
}

func TestApplyAddressRemovalSurvivesLinkDisappearing(t *testing.T) {
	fake := netconf.NewFakeNetlinker()

	d := testDesired(t)
	result := NewApplier(fake).Apply("eth1", []Action{
		{Op: OpEnsureAbsent, Kind: KindAddress, LinkIndex: 7, LinkName: "eth1", Addr: d.Addr},
	})

	require.NoError(t, result.Err)
	require.Equal(t, 1, result.Applied)
}

func TestApplyHaltsOnFirstFailure(t *testing.T) {
	fake := netconf.NewFakeNetlinker()
	fake.AddLink("eth1", 7, "", true)
	fake.AddrAddErr = func(link netlink.Link, addr *netlink.Addr) error {
		return syscall.EPERM
	}

	d := testDesired(t)
	result := NewApplier(fake).Apply("eth1", Diff(d, bareObserved()))

	require.Error(t, result.Err)
	require.True(t, errors.IsCode(result.Err, errors.ErrCodeAction), "want ACTION_ERROR, got %v", result.Err)
	require.Equal(t, 0, result.Applied)
	require.NotNil(t, result.Failed)
	require.Equal(t, KindAddress, result.Failed.Kind)
	// The route and rule actions after the failing one were never attempted.
	require.Empty(t, fake.CallOps())
}

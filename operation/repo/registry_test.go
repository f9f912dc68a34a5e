package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projecteru2/parcel/observer"
	"github.com/projecteru2/parcel/types"
)

type fakeSyncer struct {
	disabled bool
	synced   int
	changed  bool
}

func (s *fakeSyncer) Sync(context.Context) (bool, error) {
	s.synced++
	return s.changed, nil
}

func (s *fakeSyncer) Disabled() bool { return s.disabled }

func fullOps(calls *[]string) Ops {
	record := func(name string) func(context.Context, types.Package, observer.Observer) (bool, error) {
		return func(_ context.Context, _ types.Package, obs observer.Observer) (bool, error) {
			*calls = append(*calls, name)
			if obs == nil {
				*calls = append(*calls, name+":nil-observer")
			}
			return true, nil
		}
	}
	return Ops{
		Install:   record(CmdInstall),
		Uninstall: record(CmdUninstall),
		Replace: func(_ context.Context, _, _ types.Package, obs observer.Observer) (bool, error) {
			*calls = append(*calls, CmdReplace)
			return true, nil
		},
		Configure: record(CmdConfigure),
	}
}

func TestRegistrySupportedSet(t *testing.T) {
	var trace []string
	var calls []string
	repository := newFakeRepo(&trace)

	reg := NewRegistry(repository, fullOps(&calls))
	assert.Equal(t, []string{CmdConfigure, CmdInstall, CmdReplace, CmdUninstall}, reg.Supported())
	assert.True(t, reg.Supports(CmdInstall))
	assert.False(t, reg.Supports(CmdSync))
}

func TestRegistryFrozenDisablesMutation(t *testing.T) {
	var trace []string
	var calls []string
	repository := newFakeRepo(&trace)
	repository.frozen = true

	reg := NewRegistry(repository, fullOps(&calls))
	assert.Equal(t, []string{CmdConfigure}, reg.Supported())

	// Structural definition is unaffected by the frozen filter.
	assert.Equal(t, []string{CmdConfigure, CmdInstall, CmdReplace, CmdUninstall}, reg.RawCommands())
	assert.True(t, reg.SupportsRaw(CmdInstall))

	ok, err := reg.Install(context.Background(), &types.Atom{Name: "foo"}, observer.Nop)
	require.ErrorIs(t, err, ErrUnsupported)
	assert.False(t, ok)
	assert.Empty(t, calls)
}

func TestRegistryEnableOverridesFrozen(t *testing.T) {
	var trace []string
	var calls []string
	repository := newFakeRepo(&trace)
	repository.frozen = true

	reg := NewRegistry(repository, fullOps(&calls), WithEnable(CmdInstall))
	assert.True(t, reg.Supports(CmdInstall))
	assert.False(t, reg.Supports(CmdUninstall))

	ok, err := reg.Install(context.Background(), &types.Atom{Name: "foo"}, observer.Nop)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{CmdInstall}, calls)
}

func TestRegistryDisableWins(t *testing.T) {
	var trace []string
	var calls []string
	repository := newFakeRepo(&trace)

	reg := NewRegistry(repository, fullOps(&calls), WithEnable(CmdConfigure), WithDisable(CmdConfigure))
	assert.False(t, reg.Supports(CmdConfigure))

	ok, err := reg.Configure(context.Background(), &types.Atom{Name: "foo"}, observer.Nop)
	require.ErrorIs(t, err, ErrUnsupported)
	assert.False(t, ok)
}

func TestRegistrySyncPredicate(t *testing.T) {
	tests := []struct {
		name      string
		syncer    Syncer
		supported bool
	}{
		{name: "no syncer", syncer: nil, supported: false},
		{name: "disabled syncer", syncer: &fakeSyncer{disabled: true}, supported: false},
		{name: "enabled syncer", syncer: &fakeSyncer{}, supported: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var trace []string
			var calls []string
			repository := newFakeRepo(&trace)
			repository.syncer = tt.syncer

			reg := NewRegistry(repository, fullOps(&calls))
			assert.Equal(t, tt.supported, reg.Supports(CmdSync))
		})
	}
}

func TestRegistrySyncDelegatesToSyncer(t *testing.T) {
	var trace []string
	var calls []string
	repository := newFakeRepo(&trace)
	syncer := &fakeSyncer{changed: true}
	repository.syncer = syncer

	reg := NewRegistry(repository, fullOps(&calls))
	changed, err := reg.Sync(context.Background(), observer.Nop)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, syncer.synced)
}

func TestRegistryDefaultObserverBuiltOnce(t *testing.T) {
	var trace []string
	var calls []string
	repository := newFakeRepo(&trace)

	built := 0
	reg := NewRegistry(repository, fullOps(&calls), WithDefaultObserver(func() observer.Observer {
		built++
		return observer.Nop
	}))

	_, err := reg.Install(context.Background(), &types.Atom{Name: "a"}, nil)
	require.NoError(t, err)
	_, err = reg.Uninstall(context.Background(), &types.Atom{Name: "a"}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, built)
	// The ops always receive a non-nil observer.
	assert.Equal(t, []string{CmdInstall, CmdUninstall}, calls)
}

func TestRegistryProxyUsesOuterState(t *testing.T) {
	var trace []string
	var calls []string
	inner := newFakeRepo(&trace)
	target := NewRegistry(inner, fullOps(&calls))
	require.True(t, target.Supports(CmdInstall))

	outer := newFakeRepo(&trace)
	outer.frozen = true
	proxy := NewRegistryProxy(outer, target)

	// Same structural commands, filtered by the outer repository's state.
	assert.Equal(t, target.RawCommands(), proxy.RawCommands())
	assert.False(t, proxy.Supports(CmdInstall))
	assert.True(t, proxy.Supports(CmdConfigure))

	ok, err := proxy.Configure(context.Background(), &types.Atom{Name: "foo"}, observer.Nop)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{CmdConfigure}, calls)
}

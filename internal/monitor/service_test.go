package monitor

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmdmdm-nz/dhcpleasemon/internal/lease"
)

// mockRunner records trigger invocations in order.
type mockRunner struct {
	mu    sync.Mutex
	order []string
	runs  []lease.Params
	runs6 []lease.Params6
}

func (m *mockRunner) Run(p lease.Params) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.order = append(m.order, "v4:"+p.Interface)
	m.runs = append(m.runs, p)
}

func (m *mockRunner) Run6(p lease.Params6) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.order = append(m.order, "v6:"+p.Interface)
	m.runs6 = append(m.runs6, p)
}

// stubResolver serves a fixed routing table and counts queries.
type stubResolver struct {
	mu     sync.Mutex
	routes map[lease.Family]string
	calls  int
}

func (r *stubResolver) DefaultRoute(iface string, family lease.Family) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.routes[family]
}

func (r *stubResolver) queries() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type testEnv struct {
	svc       *Service
	runner    *mockRunner
	resolver  *stubResolver
	leaseDir  string
	lease6Dir string
}

func newTestEnv(t *testing.T, ipv6 bool) *testEnv {
	t.Helper()
	env := &testEnv{
		runner: &mockRunner{},
		resolver: &stubResolver{routes: map[lease.Family]string{
			lease.FamilyInet:  "192.0.2.1",
			lease.FamilyInet6: "fe80::1%em0",
		}},
		leaseDir:  t.TempDir(),
		lease6Dir: t.TempDir(),
	}
	env.svc = NewService(Config{
		Interval:   time.Hour, // tests drive cycles by hand
		Interfaces: []string{"em0"},
		LeaseDir:   env.leaseDir,
		Lease6Dir:  env.lease6Dir,
		IPv6:       ipv6,
	}, env.resolver, env.runner)
	return env
}

func (e *testEnv) writeLease(t *testing.T, content string, at time.Time) {
	t.Helper()
	path := filepath.Join(e.leaseDir, "em0")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(path, at, at))
}

func (e *testEnv) writeLease6(t *testing.T, content string, at time.Time) {
	t.Helper()
	path := filepath.Join(e.lease6Dir, "em0")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(path, at, at))
}

func TestService_ColdStartFiresTrigger(t *testing.T) {
	env := newTestEnv(t, false)
	defer env.svc.Close()

	env.writeLease(t, "ip: 192.0.2.10\n", time.Now())

	require.NoError(t, env.svc.runCycle())

	require.Len(t, env.runner.runs, 1)
	want := lease.Params{Interface: "em0", Addr: "192.0.2.10", Route: "192.0.2.1"}
	assert.Equal(t, want, env.runner.runs[0])
	assert.Equal(t, want, env.svc.params["em0"], "cache holds the acted-upon record")
}

func TestService_SecondCycleWithoutChangesIsIdle(t *testing.T) {
	env := newTestEnv(t, false)
	defer env.svc.Close()

	env.writeLease(t, "ip: 192.0.2.10\n", time.Now())
	require.NoError(t, env.svc.runCycle())

	queriesAfterFirst := env.resolver.queries()

	require.NoError(t, env.svc.runCycle())

	assert.Len(t, env.runner.runs, 1, "no second trigger")
	assert.Equal(t, queriesAfterFirst, env.resolver.queries(),
		"unmodified file must not reach the route resolver")
}

func TestService_MtimeAdvanceWithEqualParamsDoesNotFire(t *testing.T) {
	env := newTestEnv(t, false)
	defer env.svc.Close()

	base := time.Now()
	env.writeLease(t, "ip: 192.0.2.10\n", base)
	require.NoError(t, env.svc.runCycle())

	// Touch the file without changing its effective parameters.
	env.writeLease(t, "ip: 192.0.2.10\n", base.Add(2*time.Second))
	require.NoError(t, env.svc.runCycle())

	assert.Len(t, env.runner.runs, 1)
}

func TestService_ChangedAddressFiresAgain(t *testing.T) {
	env := newTestEnv(t, false)
	defer env.svc.Close()

	base := time.Now()
	env.writeLease(t, "ip: 192.0.2.10\n", base)
	require.NoError(t, env.svc.runCycle())

	env.writeLease(t, "ip: 192.0.2.20\n", base.Add(2*time.Second))
	require.NoError(t, env.svc.runCycle())

	require.Len(t, env.runner.runs, 2)
	assert.Equal(t, "192.0.2.20", env.runner.runs[1].Addr)
}

func TestService_ChangedRouteFiresAgain(t *testing.T) {
	env := newTestEnv(t, false)
	defer env.svc.Close()

	base := time.Now()
	env.writeLease(t, "ip: 192.0.2.10\n", base)
	require.NoError(t, env.svc.runCycle())

	env.resolver.mu.Lock()
	env.resolver.routes[lease.FamilyInet] = "192.0.2.254"
	env.resolver.mu.Unlock()
	env.writeLease(t, "ip: 192.0.2.10\n", base.Add(2*time.Second))

	require.NoError(t, env.svc.runCycle())

	require.Len(t, env.runner.runs, 2)
	assert.Equal(t, "192.0.2.254", env.runner.runs[1].Route)
}

func TestService_MissingLeaseFileIsFatal(t *testing.T) {
	env := newTestEnv(t, false)
	defer env.svc.Close()

	err := env.svc.runCycle()
	assert.ErrorIs(t, err, ErrLeaseStat)
	assert.Empty(t, env.runner.runs)
}

func TestService_EmptyLeaseFileStillFires(t *testing.T) {
	env := newTestEnv(t, false)
	defer env.svc.Close()

	env.writeLease(t, "", time.Now())

	require.NoError(t, env.svc.runCycle())

	require.Len(t, env.runner.runs, 1)
	assert.Equal(t, "", env.runner.runs[0].Addr, "unresolvable address degrades to empty")
}

func TestService_IPv6CycleChecksBothFamilies(t *testing.T) {
	env := newTestEnv(t, true)
	defer env.svc.Close()

	now := time.Now()
	env.writeLease(t, "ip: 192.0.2.10\n", now)
	env.writeLease6(t, "ia_pd 0 2001:db8::/56 56\n", now)

	require.NoError(t, env.svc.runCycle())

	require.Len(t, env.runner.runs, 1)
	require.Len(t, env.runner.runs6, 1)
	assert.Equal(t, lease.Params6{
		Interface: "em0",
		Prefix:    "2001:db8::/56",
		PrefixLen: "56",
		Route:     "fe80::1%em0",
	}, env.runner.runs6[0])
	assert.Equal(t, []string{"v4:em0", "v6:em0"}, env.runner.order, "IPv4 is checked before IPv6")
}

func TestService_CheckPathMapsFamilies(t *testing.T) {
	env := newTestEnv(t, true)
	defer env.svc.Close()

	now := time.Now()
	env.writeLease(t, "ip: 192.0.2.10\n", now)
	env.writeLease6(t, "ia_pd 0 2001:db8::/56 56\n", now)

	require.NoError(t, env.svc.checkPath(filepath.Join(env.leaseDir, "em0")))
	assert.Equal(t, []string{"v4:em0"}, env.runner.order)

	require.NoError(t, env.svc.checkPath(filepath.Join(env.lease6Dir, "em0")))
	assert.Equal(t, []string{"v4:em0", "v6:em0"}, env.runner.order)
}

func TestService_CheckPathIgnoresUnknownInterface(t *testing.T) {
	env := newTestEnv(t, true)
	defer env.svc.Close()

	require.NoError(t, env.svc.checkPath(filepath.Join(env.leaseDir, "vlan5")))
	assert.Empty(t, env.runner.order)
}

func TestService_Subscribe_SnapshotAndLive(t *testing.T) {
	env := newTestEnv(t, false)
	defer env.svc.Close()

	base := time.Now()
	env.writeLease(t, "ip: 192.0.2.10\n", base)
	require.NoError(t, env.svc.runCycle())

	ch, unsub := env.svc.Subscribe()
	defer unsub()

	// Snapshot of the cached record comes first.
	select {
	case ev := <-ch:
		assert.Equal(t, LeaseChanged, ev.Type)
		assert.Equal(t, "192.0.2.10", ev.Params.Addr)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for snapshot event")
	}

	// A subsequent change arrives live.
	env.writeLease(t, "ip: 192.0.2.20\n", base.Add(2*time.Second))
	require.NoError(t, env.svc.runCycle())

	select {
	case ev := <-ch:
		assert.Equal(t, LeaseChanged, ev.Type)
		assert.Equal(t, "192.0.2.20", ev.Params.Addr)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for live event")
	}
}

func TestService_Subscribe_Unsubscribe(t *testing.T) {
	env := newTestEnv(t, false)
	defer env.svc.Close()

	ch, unsub := env.svc.Subscribe()
	unsub()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed")
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}
}

func TestService_Close_Idempotent(t *testing.T) {
	env := newTestEnv(t, false)

	require.NotPanics(t, func() {
		_ = env.svc.Close()
		_ = env.svc.Close()
	})
}

func TestService_Start_ContextCancellation(t *testing.T) {
	env := newTestEnv(t, false)
	defer env.svc.Close()

	env.writeLease(t, "ip: 192.0.2.10\n", time.Now())

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- env.svc.Start(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for Start to return")
	}
}

func TestService_Start_SurfacesFatalError(t *testing.T) {
	env := newTestEnv(t, false)
	defer env.svc.Close()

	// No lease file exists, so the very first cycle must fail.
	err := env.svc.Start(context.Background())
	assert.ErrorIs(t, err, ErrLeaseStat)
}

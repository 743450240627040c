package guard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowtrack/flowgate/pkg/identity"
)

type recordingNavigator struct {
	mu    sync.Mutex
	paths []string
}

func (n *recordingNavigator) Replace(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

func (n *recordingNavigator) Paths() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

type gatedFetcher struct {
	release chan struct{}
	user    *identity.User
	err     error
}

func (f *gatedFetcher) FetchCurrentUser(ctx context.Context) (*identity.User, error) {
	<-f.release
	if f.err != nil {
		return nil, f.err
	}
	u := *f.user
	return &u, nil
}

type harness struct {
	store     *identity.Store
	nav       *recordingNavigator
	guard     *Guard
	fetcher   *gatedFetcher
	decisions chan Decision
	cancel    context.CancelFunc
	done      chan struct{}
}

func start(t *testing.T, user *identity.User, err error, permitted RolePolicy, opts ...Option) *harness {
	t.Helper()
	f := &gatedFetcher{release: make(chan struct{}), user: user, err: err}
	h := &harness{
		store:     identity.NewStore(f, nil),
		nav:       &recordingNavigator{},
		fetcher:   f,
		decisions: make(chan Decision, 32),
		done:      make(chan struct{}),
	}
	h.guard = New(h.store, h.nav, permitted, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() {
		defer close(h.done)
		_ = h.guard.Run(ctx, func(d Decision) { h.decisions <- d })
	}()
	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	return h
}

func (h *harness) next(t *testing.T) Decision {
	t.Helper()
	select {
	case d := <-h.decisions:
		return d
	case <-time.After(time.Second):
		t.Fatal("no decision rendered")
		return Decision{}
	}
}

func (h *harness) assertNoMoreDecisions(t *testing.T) {
	t.Helper()
	select {
	case d := <-h.decisions:
		t.Fatalf("unexpected decision %+v", d)
	case <-time.After(30 * time.Millisecond):
	}
}

func admin() *identity.User {
	return &identity.User{ID: "u_1", Email: "ada@flowtrack.io", Role: identity.RoleAdmin}
}

func TestDecide(t *testing.T) {
	permitted := Roles(identity.RoleOwner, identity.RoleAdmin)
	user := admin()
	viewer := &identity.User{ID: "u_2", Role: identity.RoleViewer}

	assert.Equal(t, StateLoading, Decide(identity.Snapshot{Status: identity.StatusIdle}, permitted))
	assert.Equal(t, StateLoading, Decide(identity.Snapshot{Status: identity.StatusLoading}, permitted))
	assert.Equal(t, StateUnauthenticated, Decide(identity.Snapshot{Status: identity.StatusAbsent}, permitted))
	assert.Equal(t, StateAuthorized, Decide(identity.Snapshot{Status: identity.StatusLoaded, User: user}, permitted))
	assert.Equal(t, StateUnauthorized, Decide(identity.Snapshot{Status: identity.StatusLoaded, User: viewer}, permitted))
	assert.Equal(t, StateUnauthorized, Decide(identity.Snapshot{Status: identity.StatusLoaded, User: user}, nil))
}

func TestGuardPendingRendersPlaceholderOnly(t *testing.T) {
	h := start(t, admin(), nil, Roles(identity.RoleAdmin))

	d := h.next(t)
	assert.Equal(t, StateLoading, d.State)
	assert.Nil(t, d.User)
	assert.Empty(t, d.Redirect)
	h.assertNoMoreDecisions(t)
	assert.Empty(t, h.nav.Paths())
}

func TestGuardAuthorizedRendersContent(t *testing.T) {
	h := start(t, admin(), nil, Roles(identity.RoleOwner, identity.RoleAdmin))
	assert.Equal(t, StateLoading, h.next(t).State)

	close(h.fetcher.release)
	d := h.next(t)
	assert.Equal(t, StateAuthorized, d.State)
	require.NotNil(t, d.User)
	assert.Equal(t, "u_1", d.User.ID)
	assert.Empty(t, h.nav.Paths())
}

func TestGuardUnauthorizedRedirectsExactlyOnce(t *testing.T) {
	viewer := &identity.User{ID: "u_2", Role: identity.RoleViewer}
	h := start(t, viewer, nil, Roles(identity.RoleOwner, identity.RoleAdmin))
	h.next(t)

	close(h.fetcher.release)
	d := h.next(t)
	assert.Equal(t, StateUnauthorized, d.State)
	assert.Nil(t, d.User)
	assert.Equal(t, "/unauthorized", d.Redirect)

	// Further store changes that keep the same decision must not redirect again.
	h.store.SetUser(&identity.User{ID: "u_3", Role: identity.RoleMember})
	h.assertNoMoreDecisions(t)
	assert.Equal(t, []string{"/unauthorized"}, h.nav.Paths())
}

func TestGuardUnauthenticatedUsesFallback(t *testing.T) {
	h := start(t, nil, identity.ErrUnauthenticated, Roles(identity.RoleAdmin), WithFallbackRoute("/sign-in"))
	h.next(t)

	close(h.fetcher.release)
	d := h.next(t)
	assert.Equal(t, StateUnauthenticated, d.State)
	assert.Equal(t, "/sign-in", d.Redirect)
	assert.Equal(t, []string{"/sign-in"}, h.nav.Paths())
}

func TestGuardDefaultFallbackIsLogin(t *testing.T) {
	h := start(t, nil, identity.ErrTransient, Roles(identity.RoleAdmin))
	h.next(t)
	close(h.fetcher.release)

	assert.Equal(t, "/login", h.next(t).Redirect)
}

func TestGuardReevaluatesOnLogout(t *testing.T) {
	h := start(t, admin(), nil, Roles(identity.RoleAdmin))
	h.next(t)
	close(h.fetcher.release)
	require.Equal(t, StateAuthorized, h.next(t).State)

	h.store.Logout()
	d := h.next(t)
	assert.Equal(t, StateUnauthenticated, d.State)
	assert.Equal(t, []string{"/login"}, h.nav.Paths())
}

func TestGuardReloadsAfterInvalidate(t *testing.T) {
	h := start(t, admin(), nil, Roles(identity.RoleAdmin))
	h.next(t)
	close(h.fetcher.release)
	require.Equal(t, StateAuthorized, h.next(t).State)

	h.store.Invalidate()

	// No one but the guard calls Load; it must not stay on the placeholder.
	deadline := time.After(time.Second)
	for {
		select {
		case d := <-h.decisions:
			if d.State != StateAuthorized {
				assert.Equal(t, StateLoading, d.State)
				continue
			}
			require.NotNil(t, d.User)
			assert.Equal(t, "u_1", d.User.ID)
			assert.Equal(t, identity.StatusLoaded, h.store.Snapshot().Status)
			assert.Empty(t, h.nav.Paths())
			return
		case <-deadline:
			t.Fatalf("guard still %s after invalidate, store %s",
				h.guard.Evaluate().State, h.store.Snapshot().Status)
		}
	}
}

func TestGuardReevaluatesOnPermittedChange(t *testing.T) {
	h := start(t, admin(), nil, Roles(identity.RoleAdmin))
	h.next(t)
	close(h.fetcher.release)
	require.Equal(t, StateAuthorized, h.next(t).State)

	h.guard.SetPermitted(Roles(identity.RoleOwner))
	d := h.next(t)
	assert.Equal(t, StateUnauthorized, d.State)
	assert.Equal(t, "/unauthorized", d.Redirect)

	h.guard.SetPermitted(RolePolicyFunc(func(r identity.Role) bool { return true }))
	assert.Equal(t, StateAuthorized, h.next(t).State)
	assert.Equal(t, []string{"/unauthorized"}, h.nav.Paths())
}

func TestGuardUnmountDoesNotCancelFetch(t *testing.T) {
	h := start(t, admin(), nil, Roles(identity.RoleAdmin))
	h.next(t)

	h.cancel()
	<-h.done
	close(h.fetcher.release)

	require.Eventually(t, func() bool {
		return h.store.Snapshot().Status == identity.StatusLoaded
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, h.nav.Paths())
}

func TestGuardNeverWritesStore(t *testing.T) {
	h := start(t, &identity.User{ID: "u_2", Role: identity.RoleViewer}, nil, Roles(identity.RoleAdmin))
	h.next(t)
	close(h.fetcher.release)
	h.next(t)

	snap := h.store.Snapshot()
	assert.Equal(t, identity.StatusLoaded, snap.Status)
	assert.Equal(t, "u_2", snap.User.ID)
}

func TestParseRoles(t *testing.T) {
	set := ParseRoles(" owner, admin ,,")
	assert.Equal(t, RoleSet{identity.RoleOwner, identity.RoleAdmin}, set)
	assert.True(t, set.Permits(identity.RoleAdmin))
	assert.False(t, set.Permits(identity.RoleViewer))
	assert.False(t, set.Permits(""))
	assert.Equal(t, "owner,admin", set.String())
	assert.False(t, ParseRoles("").Permits(identity.RoleOwner))
}

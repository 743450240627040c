// Package guard implements the client role guard: after a page mounts it
// watches the identity Store and decides whether to render, wait or redirect.
package guard

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flowtrack/flowgate/pkg/identity"
)

// State is the guard's view of the current navigation.
type State int

const (
	StateLoading State = iota
	StateAuthorized
	StateUnauthorized
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAuthorized:
		return "authorized"
	case StateUnauthorized:
		return "unauthorized"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Default redirect routes.
const (
	DefaultFallbackRoute     = "/login"
	DefaultUnauthorizedRoute = "/unauthorized"
)

// Decide maps an identity snapshot to a guard state. It is pure.
func Decide(snap identity.Snapshot, permitted RolePolicy) State {
	switch {
	case snap.Pending():
		return StateLoading
	case snap.User == nil:
		return StateUnauthenticated
	case permitted != nil && permitted.Permits(snap.User.Role):
		return StateAuthorized
	default:
		return StateUnauthorized
	}
}

// Decision is what a render pass receives. User is set only when authorized.
type Decision struct {
	State    State
	User     *identity.User
	Redirect string // set on the pass that issued a redirect
}

// Navigator performs client-side redirects.
type Navigator interface {
	Replace(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

func (f NavigatorFunc) Replace(path string) { f(path) }

// Option configures a Guard.
type Option func(*Guard)

// WithFallbackRoute sets where unauthenticated visitors are sent.
func WithFallbackRoute(path string) Option {
	return func(g *Guard) {
		if path != "" {
			g.fallback = path
		}
	}
}

// WithUnauthorizedRoute sets where visitors with a non-permitted role are sent.
func WithUnauthorizedRoute(path string) Option {
	return func(g *Guard) {
		if path != "" {
			g.unauthorized = path
		}
	}
}

// WithLogger sets the guard logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Guard) { g.logger = l }
}

// Guard is one mounted role guard. It asks the Store to load but never sets the user.
type Guard struct {
	id           uuid.UUID
	store        *identity.Store
	nav          Navigator
	fallback     string
	unauthorized string
	logger       *zap.Logger

	mu        sync.Mutex
	permitted RolePolicy
	changed   chan struct{}
	last      State
	rendered  bool
	lastVer   uint64
}

// New mounts a guard over store with the given permitted roles.
func New(store *identity.Store, nav Navigator, permitted RolePolicy, opts ...Option) *Guard {
	g := &Guard{
		id:           uuid.New(),
		store:        store,
		nav:          nav,
		fallback:     DefaultFallbackRoute,
		unauthorized: DefaultUnauthorizedRoute,
		logger:       zap.NewNop(),
		permitted:    permitted,
		changed:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With(zap.String("guard_id", g.id.String()))
	return g
}

// ID identifies this guard instance in logs.
func (g *Guard) ID() uuid.UUID { return g.id }

// SetPermitted replaces the permitted role policy and triggers re-evaluation.
func (g *Guard) SetPermitted(p RolePolicy) {
	g.mu.Lock()
	g.permitted = p
	g.mu.Unlock()

	select {
	case g.changed <- struct{}{}:
	default:
	}
}

// Run asks the store to load the user, then evaluates on mount and after
// every store or policy change until ctx is done. render is called whenever
// the decision changes. Cancelling ctx unmounts the guard; an in-flight fetch
// keeps running and its result is simply not observed here.
func (g *Guard) Run(ctx context.Context, render func(Decision)) error {
	updates, unsubscribe := g.store.Subscribe()
	defer unsubscribe()

	g.store.Load(ctx)
	g.step(ctx, render)

	for {
		select {
		case <-ctx.Done():
			g.logger.Debug("guard_unmounted")
			return nil
		case <-updates:
			g.step(ctx, render)
		case <-g.changed:
			g.step(ctx, render)
		}
	}
}

// Evaluate returns the current decision without side effects.
func (g *Guard) Evaluate() Decision {
	g.mu.Lock()
	permitted := g.permitted
	g.mu.Unlock()
	return g.decision(g.store.Snapshot(), permitted)
}

func (g *Guard) decision(snap identity.Snapshot, permitted RolePolicy) Decision {
	d := Decision{State: Decide(snap, permitted)}
	if d.State == StateAuthorized {
		d.User = snap.User
	}
	return d
}

func (g *Guard) step(ctx context.Context, render func(Decision)) {
	// An invalidated store is idle; a mounted guard asks for the user again.
	if g.store.Snapshot().Status == identity.StatusIdle {
		g.store.Load(ctx)
	}

	g.mu.Lock()
	snap := g.store.Snapshot()
	d := g.decision(snap, g.permitted)

	transition := !g.rendered || d.State != g.last
	if !transition && (d.State != StateAuthorized || snap.Version == g.lastVer) {
		g.mu.Unlock()
		return
	}
	g.rendered = true
	g.last = d.State
	g.lastVer = snap.Version

	if transition {
		switch d.State {
		case StateUnauthenticated:
			d.Redirect = g.fallback
		case StateUnauthorized:
			d.Redirect = g.unauthorized
		}
	}
	g.mu.Unlock()

	g.logger.Debug("guard_decision",
		zap.Stringer("state", d.State),
		zap.String("redirect", d.Redirect),
	)
	if d.Redirect != "" {
		g.nav.Replace(d.Redirect)
	}
	if render != nil {
		render(d)
	}
}

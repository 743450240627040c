package identity

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Status is the lifecycle state of the Current User in a Store.
type Status int

const (
	StatusIdle    Status = iota // nothing fetched yet, or invalidated
	StatusLoading               // a fetch is in flight
	StatusLoaded                // a user is cached
	StatusAbsent                // the last fetch failed, or the user logged out
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	case StatusAbsent:
		return "absent"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Snapshot is an immutable view of the Store. User is non-nil iff Status is StatusLoaded.
type Snapshot struct {
	Status  Status
	User    *User
	Err     error  // why the user is absent, if a fetch failed
	Version uint64 // increases on every change
}

// Pending reports whether the user is not yet known either way.
func (s Snapshot) Pending() bool {
	return s.Status == StatusIdle || s.Status == StatusLoading
}

// Store is the shared Current User state. Guards read it; only fetch
// results, SetUser, Logout and Invalidate write it. Safe for concurrent use.
type Store struct {
	fetcher Fetcher
	logger  *zap.Logger
	group   singleflight.Group

	mu      sync.Mutex
	snap    Snapshot
	gen     uint64 // bumped by writes that must discard in-flight results
	subs    map[uint64]chan struct{}
	nextSub uint64
}

// NewStore returns an idle Store backed by fetcher.
func NewStore(fetcher Fetcher, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		fetcher: fetcher,
		logger:  logger,
		subs:    make(map[uint64]chan struct{}),
	}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snap
	snap.User = snap.User.clone()
	return snap
}

// Subscribe returns a channel that receives a signal after each change, and
// a function to stop receiving. Signals coalesce; read Snapshot for the state.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan struct{}, 1)
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Load starts a fetch unless a user is cached or a fetch is already in flight.
// It does not wait. The fetch outlives ctx's cancellation: a caller that goes
// away does not abort it, the result is still stored.
func (s *Store) Load(ctx context.Context) {
	s.mu.Lock()
	if s.snap.Status == StatusLoaded || s.snap.Status == StatusLoading {
		s.mu.Unlock()
		return
	}
	gen := s.gen
	s.setLocked(Snapshot{Status: StatusLoading})
	s.mu.Unlock()

	s.fetch(ctx, gen)
}

// Refresh fetches the user and waits for the result, joining any fetch
// already in flight. A cached user is returned without fetching.
func (s *Store) Refresh(ctx context.Context) (*User, error) {
	s.mu.Lock()
	if s.snap.Status == StatusLoaded {
		u := s.snap.User.clone()
		s.mu.Unlock()
		return u, nil
	}
	gen := s.gen
	if s.snap.Status != StatusLoading {
		s.setLocked(Snapshot{Status: StatusLoading})
	}
	s.mu.Unlock()

	select {
	case res := <-s.fetch(ctx, gen):
		if res.stale {
			return s.current()
		}
		if res.err != nil {
			return nil, res.err
		}
		return res.user.clone(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// current reports the cached user after a fetch lost to SetUser, Logout or Invalidate.
func (s *Store) current() (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.Status != StatusLoaded {
		return nil, ErrUnauthenticated
	}
	return s.snap.User.clone(), nil
}

type fetchResult struct {
	user  *User
	err   error
	stale bool
}

func (s *Store) fetch(ctx context.Context, gen uint64) <-chan fetchResult {
	detached := context.WithoutCancel(ctx)
	ch := s.group.DoChan(fmt.Sprintf("me:%d", gen), func() (any, error) {
		return s.fetcher.FetchCurrentUser(detached)
	})

	out := make(chan fetchResult, 1)
	go func() {
		res := <-ch
		user, _ := res.Val.(*User)
		if res.Err != nil || user == nil {
			err := res.Err
			if err == nil {
				err = ErrInvalidPayload
			}
			out <- fetchResult{err: err, stale: !s.apply(gen, nil, err)}
			return
		}
		out <- fetchResult{user: user, stale: !s.apply(gen, user, nil)}
	}()
	return out
}

// apply stores a fetch result and reports false when gen is no longer current.
func (s *Store) apply(gen uint64, user *User, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		s.logger.Debug("identity_fetch_discarded", zap.Uint64("generation", gen))
		return false
	}
	if err != nil {
		s.logger.Info("identity_fetch_failed", zap.Error(err))
		s.setLocked(Snapshot{Status: StatusAbsent, Err: err})
		return true
	}
	s.setLocked(Snapshot{Status: StatusLoaded, User: user.clone()})
	return true
}

// SetUser caches u directly, as after a login response. Any in-flight fetch is discarded.
func (s *Store) SetUser(u *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if u == nil {
		s.setLocked(Snapshot{Status: StatusAbsent})
		return
	}
	s.setLocked(Snapshot{Status: StatusLoaded, User: u.clone()})
}

// Logout clears the user. Guards observe an absent user.
func (s *Store) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.setLocked(Snapshot{Status: StatusAbsent})
}

// Invalidate clears the user so the next Load fetches again.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.setLocked(Snapshot{Status: StatusIdle})
}

func (s *Store) setLocked(next Snapshot) {
	next.Version = s.snap.Version + 1
	s.snap = next
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

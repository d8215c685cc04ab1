package web

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"mychat/internal/session"
	"mychat/pkg/chattypes"
)

// Entry is one browser's conversation. Its mutex serializes every access to the
// session; chat submissions take it with TryLock so only one completion is outstanding.
type Entry struct {
	mu          sync.Mutex
	session     *session.Session
	limiter     *rate.Limiter
	tier        chattypes.Tier
	temperature float64
	lastSeen    time.Time
}

// Session returns the entry's conversation. Callers must hold the entry lock.
func (e *Entry) Session() *session.Session {
	return e.session
}

// StoreOptions configure a Store.
type StoreOptions struct {
	SystemPrompt string
	// TTL is how long an idle entry survives a sweep. Zero keeps entries forever.
	TTL time.Duration
	// Tier and Temperature seed the selector of a new entry.
	Tier        chattypes.Tier
	Temperature float64
	// RatePerMinute limits chat submissions per entry. Zero disables limiting.
	RatePerMinute float64
	Burst         int

	Now   func() time.Time
	NewID func() string
}

// Store keeps one Entry per session cookie.
type Store struct {
	opts    StoreOptions
	mu      sync.Mutex
	entries map[string]*Entry
}

// NewStore creates an empty store.
func NewStore(opts StoreOptions) *Store {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.NewString() }
	}
	if opts.Tier == "" {
		opts.Tier = chattypes.TierFast
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	return &Store{opts: opts, entries: make(map[string]*Entry)}
}

// Get returns the entry for id, creating a fresh one when id is unknown or not a UUID.
// The returned id is the one the cookie should carry.
func (s *Store) Get(id string) (*Entry, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.Now()
	if entry, ok := s.lookupLocked(id, now); ok {
		return entry, id
	}

	id = s.opts.NewID()
	entry := s.newEntry(now)
	s.entries[id] = entry
	return entry, id
}

// Lookup returns the stored entry for id without creating one.
func (s *Store) Lookup(id string) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookupLocked(id, s.opts.Now())
}

func (s *Store) lookupLocked(id string, now time.Time) (*Entry, bool) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, false
	}
	entry, ok := s.entries[id]
	if ok {
		entry.lastSeen = now
	}
	return entry, ok
}

// Blank returns a fresh entry that is not stored. It backs page views from
// browsers that have not chatted yet.
func (s *Store) Blank() *Entry {
	return s.newEntry(s.opts.Now())
}

func (s *Store) newEntry(now time.Time) *Entry {
	return &Entry{
		session:     session.New(s.opts.SystemPrompt),
		limiter:     s.newLimiter(),
		tier:        s.opts.Tier,
		temperature: s.opts.Temperature,
		lastSeen:    now,
	}
}

func (s *Store) newLimiter() *rate.Limiter {
	if s.opts.RatePerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(s.opts.RatePerMinute/60), s.opts.Burst)
}

// Len returns the number of live entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep drops entries idle longer than the TTL. Entries with a completion in
// flight are kept. It returns the number removed.
func (s *Store) Sweep() int {
	if s.opts.TTL <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.opts.Now().Add(-s.opts.TTL)
	removed := 0
	for id, entry := range s.entries {
		if !entry.lastSeen.Before(cutoff) {
			continue
		}
		if !entry.mu.TryLock() {
			continue
		}
		delete(s.entries, id)
		entry.mu.Unlock()
		removed++
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	if s.opts.TTL <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

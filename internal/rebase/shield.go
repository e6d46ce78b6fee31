package rebase

import "time"

// #region shield
// Shield suppresses overlap invalidation for mutations the engine
// inflicted on itself (an accept applying its own proposed text). It is
// counted and time-boxed: each accept arms one consumption, and the whole
// guard decays at its deadline so a lost downstream notification can never
// permanently disable invalidation. The zero state, and a nil Shield, are
// not shielded.
type Shield struct {
	remaining int
	deadline  time.Time
	now       func() time.Time
}

// DefaultShieldTTL bounds how long a self-inflicted mutation may lag the
// accept that caused it.
const DefaultShieldTTL = 1500 * time.Millisecond

// NewShield arms a guard for count mutations within ttl.
func NewShield(count int, ttl time.Duration) *Shield {
	s := &Shield{now: time.Now}
	s.Extend(count, ttl)
	return s
}

// Extend arms additional consumptions and pushes the deadline out. Used
// when several accepts fire before the previous shield elapsed.
func (s *Shield) Extend(count int, ttl time.Duration) {
	if s.now == nil {
		s.now = time.Now
	}
	if !s.Active() {
		s.remaining = 0
	}
	s.remaining += count
	s.deadline = s.now().Add(ttl)
}

// Active reports whether the guard still applies.
func (s *Shield) Active() bool {
	if s == nil {
		return false
	}
	return s.remaining > 0 && s.now().Before(s.deadline)
}

// Consume spends one shielded mutation. Returns whether the mutation was
// in fact shielded.
func (s *Shield) Consume() bool {
	if !s.Active() {
		return false
	}
	s.remaining--
	return true
}
// #endregion shield

package session

import "sync"

// State is the mutable session. The zero value is not usable; call NewState.
type State struct {
	mu      sync.RWMutex
	cur     Snapshot
	ranking Ranking
}

func NewState(ranking Ranking) *State {
	s := &State{ranking: ranking}
	s.cur.PrimaryRole = ranking.Primary(nil)
	return s
}

// Ranking returns the role ranking the state derives primary roles with.
func (s *State) Ranking() Ranking {
	return s.ranking
}

// Snapshot returns a consistent copy of the session.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Generation returns the current generation.
func (s *State) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.Generation
}

// Begin replaces whatever session was held with a new one and returns its
// generation. profile may be nil when the login did not return one.
func (s *State) Begin(t Tokens, profile *UserInfo) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	gen := s.cur.Generation + 1
	s.cur = Snapshot{Tokens: t, Generation: gen}
	s.cur.UserInfo = profile
	s.derive()
	return gen
}

// ApplyTokens stores refreshed tokens and returns the resulting snapshot.
// An empty refresh credential keeps the one already held, since providers
// may not rotate it. It reports false and changes nothing when gen is stale.
func (s *State) ApplyTokens(gen uint64, t Tokens) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.cur.Generation || s.cur.Token == "" {
		return Snapshot{}, false
	}
	if t.RefreshCredential == "" {
		t.RefreshCredential = s.cur.RefreshCredential
	}
	s.cur.Tokens = t
	return s.cur, true
}

// ApplyUserData stores a fetched identity in one step. Collections that did
// not load keep their previous value so a degraded fetch never erases data
// a previous fetch obtained.
func (s *State) ApplyUserData(gen uint64, d UserData) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.cur.Generation || s.cur.Token == "" {
		return false
	}

	if d.UserInfo != nil {
		s.cur.UserInfo = d.UserInfo
	}
	if d.RolesLoaded {
		s.cur.Roles = d.Roles
		s.cur.RolesLoaded = true
	}
	if d.PermissionsLoaded {
		s.cur.Permissions = d.Permissions
		s.cur.PermissionsLoaded = true
	}
	if d.Menus != nil {
		s.cur.Menus = d.Menus
	}
	if d.DashboardPath != "" {
		s.cur.DashboardPath = d.DashboardPath
	}
	s.derive()
	return true
}

// ApplyUserInfo replaces only the profile.
func (s *State) ApplyUserInfo(gen uint64, u *UserInfo) bool {
	return s.ApplyUserData(gen, UserData{UserInfo: u})
}

// Clear wipes the session and moves to a new generation.
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cur = Snapshot{Generation: s.cur.Generation + 1}
	s.derive()
}

func (s *State) derive() {
	s.cur.PrimaryRole = s.ranking.Primary(s.cur.EffectiveRoles())
}

package session

import (
	"log"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"
)

// codeMintAttempts caps rejection sampling when minting a room code, so a
// raised session limit can never turn code generation into an unbounded
// loop against the fixed four-digit space.
const codeMintAttempts = 1000

// Session pairs at most two connections under one short numeric code.
// White is the creating side and Black the joining side; an empty ID means
// the side is vacant.
type Session struct {
	Code         string
	White        string
	Black        string
	LastActivity time.Time
}

// Vacant reports whether both sides are unoccupied.
func (s *Session) Vacant() bool {
	return s.White == "" && s.Black == ""
}

// Registry owns every live session, keyed by room code. All mutation goes
// through one mutex: occupants join and disconnect concurrently, and code
// minting must observe a consistent key set.
type Registry struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	maxSessions int
}

// NewRegistry creates a registry capped at maxSessions live sessions.
func NewRegistry(maxSessions int) *Registry {
	return &Registry{
		sessions:    make(map[string]*Session),
		maxSessions: maxSessions,
	}
}

// Create mints a code unique among live sessions and seats occupantID on
// the white side. Fails with ErrServerFull at the session cap.
func (r *Registry) Create(occupantID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.sessions) >= r.maxSessions {
		return "", ErrServerFull
	}

	code, err := r.mintCode()
	if err != nil {
		return "", err
	}

	r.sessions[code] = &Session{
		Code:         code,
		White:        occupantID,
		LastActivity: time.Now(),
	}
	return code, nil
}

// Join seats occupantID on the black side of the session with the given
// code and returns the white occupant's identity so both sides can be told
// the pairing is complete. Failed joins never mutate the session. A room
// whose creator already left is reported as not found; vacated sides are
// never reoccupied.
func (r *Registry) Join(code, occupantID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[code]
	if !ok || s.White == "" {
		return "", ErrRoomNotFound
	}
	if s.Black != "" {
		return "", ErrRoomFull
	}

	s.Black = occupantID
	s.LastActivity = time.Now()
	return s.White, nil
}

// Touch stamps the session's activity time. No-op if the code is absent.
func (r *Registry) Touch(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[code]; ok {
		s.LastActivity = time.Now()
	}
}

// Vacate clears whichever side occupantID holds and stamps activity. The
// record stays in place; only the reaper deletes sessions, so a fully
// vacated room lingers for the grace period.
func (r *Registry) Vacate(code, occupantID string) {
	if occupantID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[code]
	if !ok {
		return
	}

	switch occupantID {
	case s.White:
		s.White = ""
	case s.Black:
		s.Black = ""
	default:
		return
	}
	s.LastActivity = time.Now()
}

// Opponent returns the identity seated opposite occupantID, or false if the
// session is absent, occupantID is not seated in it, or the other side is
// vacant.
func (r *Registry) Opponent(code, occupantID string) (string, bool) {
	if occupantID == "" {
		return "", false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[code]
	if !ok {
		return "", false
	}

	var other string
	switch occupantID {
	case s.White:
		other = s.Black
	case s.Black:
		other = s.White
	default:
		return "", false
	}

	if other == "" {
		return "", false
	}
	return other, true
}

// Len returns the live-session count.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// mintCode draws four-digit codes until one misses the live key set.
// Uniqueness is probabilistic rather than deterministic: with at most 100
// live sessions in a 9000-value space a free code turns up almost
// immediately, and the attempt cap keeps the worst case bounded.
// Callers must hold r.mu.
func (r *Registry) mintCode() (string, error) {
	for i := 0; i < codeMintAttempts; i++ {
		code := strconv.Itoa(rand.IntN(9000) + 1000)
		if _, taken := r.sessions[code]; !taken {
			return code, nil
		}
	}
	log.Printf("room code minting exhausted %d attempts with %d live sessions", codeMintAttempts, len(r.sessions))
	return "", ErrNoFreeCode
}

// reap deletes sessions that have sat fully vacant longer than grace and
// returns how many were removed.
func (r *Registry) reap(grace time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-grace)
	reaped := 0
	for code, s := range r.sessions {
		if s.Vacant() && s.LastActivity.Before(cutoff) {
			delete(r.sessions, code)
			reaped++
		}
	}
	return reaped
}

package burst

import (
	"fmt"
	"sync"
	"time"
)

// Session accumulates keystrokes from one input source and resolves each
// burst exactly once: either early, when a keystroke arrives with an
// implausible gap, or when the flush timer fires after FlushDelay of
// idle time.
//
// A session is either idle (empty buffer, no pending timer) or
// accumulating (non-empty buffer, timer armed). Every resolution returns
// it to idle. All entry points serialize on one mutex, including the
// timer callback, so no two transitions ever overlap. Independent
// sessions share no state.
type Session struct {
	settings Settings

	mu    sync.Mutex
	buf   []Keystroke
	last  time.Time
	timer *time.Timer
	gen   uint64 // bumped on every reset; a stale timer fire must not resolve
}

// NewSession creates a session with the given settings merged over
// defaults.
func NewSession(s Settings) *Session {
	return &Session{settings: s.withDefaults()}
}

// Settings returns the resolved settings the session runs with.
func (s *Session) Settings() Settings {
	return s.settings
}

// OnKeystroke feeds one decoded key event into the session. The
// timestamp comes from the event source and is expected to be
// monotonically increasing across calls.
func (s *Session) OnKeystroke(r rune, at time.Time) {
	s.mu.Lock()

	if s.timer == nil {
		gen := s.gen
		s.timer = time.AfterFunc(FlushDelay, func() { s.flush(gen) })
	}

	// Early invalidation fast path. The comparison is previous minus
	// current, so under forward-moving time it only trips on clock
	// irregularities or non-monotonic timestamps; the validator's own
	// current-minus-previous delay is the primary timing gate.
	if !s.last.IsZero() && s.last.Sub(at) > s.settings.WaitTolerance {
		if len(s.buf) <= 1 {
			s.resetLocked()
			s.mu.Unlock()
			return
		}
		code, n, mean, ok := s.resolveLocked()
		s.mu.Unlock()
		s.dispatch(code, n, mean, ok)
		return
	}

	s.buf = append(s.buf, Keystroke{Rune: r, At: at})
	s.last = at
	s.mu.Unlock()
}

// Reset abandons the current burst: the timer is cancelled, the buffer
// cleared, nothing dispatched. Safe to call at any time, including when
// the session is already idle.
func (s *Session) Reset() {
	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()
}

// Buffered returns the number of keystrokes in the current burst.
func (s *Session) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// flush is the timer resolution path.
func (s *Session) flush(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		// A reset won the race; the buffer this timer was armed against
		// no longer exists.
		s.mu.Unlock()
		return
	}
	code, n, mean, ok := s.resolveLocked()
	s.mu.Unlock()
	s.dispatch(code, n, mean, ok)
}

// resolveLocked runs the validator against the current buffer and
// returns the session to idle. Callers must hold mu and dispatch the
// result after releasing it. The mean delay covers only the accepted
// prefix, which on a wait-tolerance overrun is shorter than the buffer.
func (s *Session) resolveLocked() (code string, n int, mean time.Duration, ok bool) {
	buf := s.buf
	s.resetLocked()
	code, ok = Validate(buf, s.settings)
	if ok {
		mean = MeanDelay(buf[:len([]rune(code))])
	}
	return code, len(buf), mean, ok
}

func (s *Session) resetLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.buf = nil
	s.last = time.Time{}
	s.gen++
}

func (s *Session) dispatch(code string, n int, mean time.Duration, ok bool) {
	if ok {
		s.settings.OnScan(code, mean)
		return
	}
	s.settings.OnDebug(fmt.Sprintf("burst of %d keystrokes rejected", n))
}

package session

import "sync"

// ResumeGuard makes sure the lifter is asked about stale progress at
// most once per process lifetime. Leaving the workout mid-session and
// coming back must not re-prompt; only a successful save arms the
// prompt again.
type ResumeGuard struct {
	mu       sync.Mutex
	prompted bool
}

// TryPrompt reports whether the resume prompt may be shown, consuming
// the one allowance on first call.
func (g *ResumeGuard) TryPrompt() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.prompted {
		return false
	}
	g.prompted = true
	return true
}

func (g *ResumeGuard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompted = false
}

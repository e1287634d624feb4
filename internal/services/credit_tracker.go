package services

import (
	"errors"
	"sync"
	"time"
)

// ErrNoCredits is returned when a user has exhausted their free
// generations for the current week.
var ErrNoCredits = errors.New("no generation credits remaining")

// DefaultWeeklyCredits is the free-tier generation allowance.
const DefaultWeeklyCredits = 10

type creditWindow struct {
	used    int
	resetAt time.Time
}

// CreditTracker enforces the free-generation quota server-side: a
// per-user counter that refills weekly. State is in-memory and
// per-instance; a shared store would be needed for a multi-instance
// deployment.
type CreditTracker struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	users  map[string]*creditWindow
	now    func() time.Time
}

// NewCreditTracker creates a tracker allowing limit generations per week.
func NewCreditTracker(limit int) *CreditTracker {
	return &CreditTracker{
		limit:  limit,
		window: 7 * 24 * time.Hour,
		users:  make(map[string]*creditWindow),
		now:    time.Now,
	}
}

func (t *CreditTracker) windowFor(userID string) *creditWindow {
	w, ok := t.users[userID]
	if !ok || t.now().After(w.resetAt) {
		w = &creditWindow{resetAt: t.now().Add(t.window)}
		t.users[userID] = w
	}
	return w
}

// Remaining reports how many free generations the user has left this week.
func (t *CreditTracker) Remaining(userID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.limit - t.windowFor(userID).used
}

// Check returns ErrNoCredits when the user's allowance is exhausted.
// It does not consume anything; call Consume after a successful
// generation.
func (t *CreditTracker) Check(userID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.windowFor(userID).used >= t.limit {
		return ErrNoCredits
	}
	return nil
}

// Consume records one successful generation.
func (t *CreditTracker) Consume(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.windowFor(userID).used++
}

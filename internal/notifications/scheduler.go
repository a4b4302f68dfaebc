package notifications

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Notifier delivers a user-facing notification.
type Notifier interface {
	Notify(title, message string)
}

// LogNotifier is the default sink when no push delivery is wired up.
type LogNotifier struct{}

func (LogNotifier) Notify(title, message string) {
	log.Infof("notification: %s: %s", title, message)
}

// Scheduler arms a single one-shot "rest over" notification. There is
// at most one pending at a time: scheduling supersedes whatever was
// armed before, so a rest timer restarted mid-countdown never fires
// the stale notification.
type Scheduler struct {
	notifier Notifier

	mu    sync.Mutex
	timer *time.Timer
}

func NewScheduler(notifier Notifier) *Scheduler {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Scheduler{notifier: notifier}
}

func (s *Scheduler) ScheduleRestOver(in time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	if in <= 0 {
		s.timer = nil
		s.notifier.Notify("Rest over", "Time for your next set")
		return
	}
	s.timer = time.AfterFunc(in, func() {
		s.notifier.Notify("Rest over", "Time for your next set")
	})
}

func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

package session

import (
	"fmt"
	"time"

	"github.com/wtracker/wtracker/internal/catalog"
)

var ErrSetOutOfRange = fmt.Errorf("set number out of range")

// Sequencer drives one exercise through its prescribed sets. The
// current set is 1-indexed; once it passes the last set the exercise is
// complete but not yet confirmed. Rest timing is wall clock based: the
// start moment is stored as epoch milliseconds and the remaining time
// is always derived from it, so a suspended or restarted process
// resumes the countdown mid-flight instead of restarting it.
type Sequencer struct {
	workoutExercise catalog.WorkoutExercise
	currentSet      int
	sets            []ExerciseSet
	restTimerReset  int
	timerStartedAt  *int64

	now func() time.Time
}

// NewSequencer seeds set values by priority: a snapshot of the same
// in-flight exercise wins, then an earlier completed record of it
// (re-entering a done exercise starts an edit pass over the actual
// values), then the prescription.
func NewSequencer(
	we catalog.WorkoutExercise,
	inFlight *CurrentExerciseProgress,
	completed *CompletedWorkoutExercise,
) *Sequencer {
	s := &Sequencer{
		workoutExercise: we,
		currentSet:      1,
		now:             time.Now,
	}

	switch {
	case inFlight != nil && inFlight.WorkoutExerciseID == we.ID:
		s.currentSet = inFlight.CurrentSet
		s.sets = append([]ExerciseSet(nil), inFlight.Sets...)
		s.restTimerReset = inFlight.RestTimerReset
		if inFlight.TimerStartedAt != nil {
			startedAt := *inFlight.TimerStartedAt
			s.timerStartedAt = &startedAt
		}
	case completed != nil && completed.ID == we.ID:
		s.sets = append([]ExerciseSet(nil), completed.Sets...)
	default:
		s.sets = prescribedSets(we)
	}
	if s.currentSet < 1 {
		s.currentSet = 1
	}
	return s
}

// prescribedSets pre-populates every set with the prescribed weight and
// reps so logs reflect the plan even when the lifter never touches the
// inputs. The drop set, when prescribed, is always the last set.
func prescribedSets(we catalog.WorkoutExercise) []ExerciseSet {
	sets := make([]ExerciseSet, we.NumSets)
	for i := range sets {
		sets[i] = ExerciseSet{
			Num:           i + 1,
			Weight:        we.Weight,
			RepsCompleted: we.NumRepsPerSet,
			IsDropSet:     we.EndWithDropSet && i == we.NumSets-1,
		}
	}
	return sets
}

func (s *Sequencer) WorkoutExercise() catalog.WorkoutExercise { return s.workoutExercise }

func (s *Sequencer) CurrentSet() int { return s.currentSet }

func (s *Sequencer) TotalSets() int { return len(s.sets) }

// IsComplete reports whether every prescribed set has been completed.
func (s *Sequencer) IsComplete() bool { return s.currentSet > len(s.sets) }

func (s *Sequencer) CompletedSetsCount() int {
	if s.IsComplete() {
		return len(s.sets)
	}
	return s.currentSet - 1
}

// CompleteSet marks the current set done and advances. After any set
// except the last one the rest timer restarts: the reset counter is
// bumped and the start moment is stamped. After the last set only the
// start moment is cleared, there is nothing left to rest for.
func (s *Sequencer) CompleteSet() error {
	if s.IsComplete() {
		return fmt.Errorf("exercise already complete")
	}

	wasLast := s.currentSet == len(s.sets)
	s.currentSet++

	if wasLast {
		s.timerStartedAt = nil
		return nil
	}

	s.restTimerReset++
	startedAt := s.now().UnixMilli()
	s.timerStartedAt = &startedAt
	return nil
}

// EditSet overwrites the recorded weight and reps of any set, done or
// not. It never moves the current set pointer.
func (s *Sequencer) EditSet(num int, weight float64, reps int) error {
	if num < 1 || num > len(s.sets) {
		return fmt.Errorf("%w: %d of %d", ErrSetOutOfRange, num, len(s.sets))
	}
	s.sets[num-1].Weight = weight
	s.sets[num-1].RepsCompleted = reps
	return nil
}

// SkipSet zeroes a set out. Skipped sets still count as completed when
// the pointer passes them and still produce a log row.
func (s *Sequencer) SkipSet(num int) error {
	return s.EditSet(num, 0, 0)
}

// RestRemaining derives the rest countdown from wall clock. Zero means
// no rest is running.
func (s *Sequencer) RestRemaining(now time.Time) time.Duration {
	if s.timerStartedAt == nil {
		return 0
	}
	elapsed := now.Sub(time.UnixMilli(*s.timerStartedAt))
	remaining := time.Duration(s.workoutExercise.RestTimeSeconds)*time.Second - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Progress snapshots the sequencer into the persistable shape.
func (s *Sequencer) Progress() CurrentExerciseProgress {
	progress := CurrentExerciseProgress{
		WorkoutExerciseID: s.workoutExercise.ID,
		ExerciseID:        s.workoutExercise.ExerciseID,
		CurrentSet:        s.currentSet,
		Sets:              append([]ExerciseSet(nil), s.sets...),
		RestTimerReset:    s.restTimerReset,
	}
	if s.timerStartedAt != nil {
		startedAt := *s.timerStartedAt
		progress.TimerStartedAt = &startedAt
	}
	return progress
}

// Result converts a finished exercise into its completed record.
func (s *Sequencer) Result() (CompletedWorkoutExercise, error) {
	if !s.IsComplete() {
		return CompletedWorkoutExercise{}, fmt.Errorf(
			"exercise not complete: set %d of %d", s.currentSet, len(s.sets),
		)
	}
	return CompletedWorkoutExercise{
		ID:         s.workoutExercise.ID,
		ExerciseID: s.workoutExercise.ExerciseID,
		Sets:       append([]ExerciseSet(nil), s.sets...),
	}, nil
}

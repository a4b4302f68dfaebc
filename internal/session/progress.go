package session

import (
	"time"

	"github.com/wtracker/wtracker/internal/catalog"
)

// ExerciseSet is one performed (or prescribed) unit of an exercise.
// Weight 0 means skipped or bodyweight.
type ExerciseSet struct {
	Num           int     `json:"num"`
	Weight        float64 `json:"weight"`
	IsDropSet     bool    `json:"isDropSet"`
	RepsCompleted int     `json:"repsCompleted"`
}

type CompletedWorkoutExercise struct {
	ID         int64         `json:"id"`
	ExerciseID int64         `json:"exerciseId"`
	Sets       []ExerciseSet `json:"sets"`
}

// CurrentExerciseProgress is the in-flight exercise. CurrentSet may
// exceed the number of sets, meaning "all sets done, completion not
// confirmed yet". TimerStartedAt is epoch milliseconds so remaining
// rest time can be derived from wall clock after app suspension.
type CurrentExerciseProgress struct {
	WorkoutExerciseID int64         `json:"workoutExerciseId"`
	ExerciseID        int64         `json:"exerciseId"`
	CurrentSet        int           `json:"currentSet"`
	Sets              []ExerciseSet `json:"sets"`
	RestTimerReset    int           `json:"restTimerReset"`
	TimerStartedAt    *int64        `json:"timerStartedAt,omitempty"`
}

// WorkoutProgress is the single persisted root record of an in-progress
// workout session. CompletedExercises keeps completion order. An
// exercise is either in CompletedExercises or referenced by
// CurrentExercise, not both.
type WorkoutProgress struct {
	WorkoutID          int64                      `json:"workoutId"`
	CompletedExercises []CompletedWorkoutExercise `json:"completedExercises"`
	CurrentExercise    *CurrentExerciseProgress   `json:"currentExercise,omitempty"`
	StartedAt          time.Time                  `json:"startedAt"`
}

func NewWorkoutProgress(workoutID int64, startedAt time.Time) *WorkoutProgress {
	return &WorkoutProgress{
		WorkoutID:          workoutID,
		CompletedExercises: []CompletedWorkoutExercise{},
		StartedAt:          startedAt,
	}
}

func (wp *WorkoutProgress) completedIndex(workoutExerciseID int64) int {
	for i := range wp.CompletedExercises {
		if wp.CompletedExercises[i].ID == workoutExerciseID {
			return i
		}
	}
	return -1
}

// UpsertCompleted replaces the completed record with the same workout
// exercise id, keeping its original position, or appends. Re-completing
// an edited exercise never produces a second entry.
func (wp *WorkoutProgress) UpsertCompleted(completed CompletedWorkoutExercise) {
	if i := wp.completedIndex(completed.ID); i >= 0 {
		wp.CompletedExercises[i] = completed
		return
	}
	wp.CompletedExercises = append(wp.CompletedExercises, completed)
}

func (wp *WorkoutProgress) CompletedByID(workoutExerciseID int64) (CompletedWorkoutExercise, bool) {
	if i := wp.completedIndex(workoutExerciseID); i >= 0 {
		return wp.CompletedExercises[i], true
	}
	return CompletedWorkoutExercise{}, false
}

// FlattenLogs projects every completed set into one exercise log row,
// the shape the remote log store accepts.
func (wp *WorkoutProgress) FlattenLogs() []catalog.ExerciseLog {
	var logs []catalog.ExerciseLog
	for _, completed := range wp.CompletedExercises {
		for _, set := range completed.Sets {
			logs = append(logs, catalog.ExerciseLog{
				ExerciseID:        completed.ExerciseID,
				WorkoutExerciseID: completed.ID,
				SetNumber:         set.Num,
				RepsCompleted:     set.RepsCompleted,
				WeightUsed:        set.Weight,
			})
		}
	}
	return logs
}

// Clone returns a deep copy, safe to hand out while the session keeps
// mutating the original.
func (wp *WorkoutProgress) Clone() *WorkoutProgress {
	if wp == nil {
		return nil
	}
	clone := &WorkoutProgress{
		WorkoutID:          wp.WorkoutID,
		CompletedExercises: make([]CompletedWorkoutExercise, len(wp.CompletedExercises)),
		StartedAt:          wp.StartedAt,
	}
	for i, completed := range wp.CompletedExercises {
		clone.CompletedExercises[i] = CompletedWorkoutExercise{
			ID:         completed.ID,
			ExerciseID: completed.ExerciseID,
			Sets:       append([]ExerciseSet(nil), completed.Sets...),
		}
	}
	if wp.CurrentExercise != nil {
		current := *wp.CurrentExercise
		current.Sets = append([]ExerciseSet(nil), wp.CurrentExercise.Sets...)
		if wp.CurrentExercise.TimerStartedAt != nil {
			startedAt := *wp.CurrentExercise.TimerStartedAt
			current.TimerStartedAt = &startedAt
		}
		clone.CurrentExercise = &current
	}
	return clone
}

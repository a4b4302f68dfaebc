package catalog

import (
	"context"
	"errors"
	"time"
)

var (
	ErrWorkoutNotFound         = errors.New("workout not found")
	ErrWorkoutExerciseNotFound = errors.New("workout exercise not found")
)

type Exercise struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type,omitempty"`
	URL       string    `json:"url,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Workout is an ordered, named collection of workout exercises within
// one meso cycle of the training program.
type Workout struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	MesoCycle int       `json:"meso_cycle"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// WorkoutExercise binds an exercise to a workout, with the prescription
// the set sequencer is seeded from.
type WorkoutExercise struct {
	ID              int64     `json:"id"`
	WorkoutID       int64     `json:"workout_id"`
	ExerciseID      int64     `json:"exercise_id"`
	Order           int       `json:"order"`
	NumSets         int       `json:"num_sets"`
	NumRepsPerSet   int       `json:"num_reps_per_set"`
	Weight          float64   `json:"weight"`
	RestTimeSeconds int       `json:"rest_time_seconds"`
	EndWithDropSet  bool      `json:"end_with_drop_set"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
}

// ExerciseLog is one permanent history row, one per performed set.
// Written on workout save, never read back into the session model.
type ExerciseLog struct {
	ID                int64     `json:"id,omitempty"`
	ExerciseID        int64     `json:"exercise_id"`
	WorkoutExerciseID int64     `json:"workout_exercise_id"`
	SetNumber         int       `json:"set_number"`
	RepsCompleted     int       `json:"reps_completed"`
	WeightUsed        float64   `json:"weight_used"`
	CreatedAt         time.Time `json:"created_at,omitempty"`
}

// Store is the program catalog plus the permanent exercise log store.
// AddExerciseLogs is all-or-nothing: either every log row is accepted
// or the whole batch is considered failed.
type Store interface {
	ListExercises(ctx context.Context) ([]Exercise, error)
	ListWorkouts(ctx context.Context) ([]Workout, error)
	GetWorkoutExercise(ctx context.Context, id int64) (*WorkoutExercise, error)
	ListWorkoutExercises(ctx context.Context, workoutID int64) ([]WorkoutExercise, error)
	ListExerciseLogs(ctx context.Context, exerciseID int64) ([]ExerciseLog, error)
	AddExerciseLogs(ctx context.Context, logs []ExerciseLog) error
}

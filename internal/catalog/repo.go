package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/wtracker/wtracker/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

// Repo is the postgres-backed catalog store, for deployments where the
// tracker core owns the database instead of talking to the hosted REST
// store.
type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) ListExercises(ctx context.Context) (_ []Exercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.catalog.listExercises")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT id, name, COALESCE(type, ''), COALESCE(url, ''), created_at FROM exercises ORDER BY id;`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exercises []Exercise
	for rows.Next() {
		var e Exercise
		if err := rows.Scan(&e.ID, &e.Name, &e.Type, &e.URL, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		exercises = append(exercises, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return exercises, nil
}

func (r *Repo) ListWorkouts(ctx context.Context) (_ []Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.catalog.listWorkouts")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT id, name, meso_cycle, "order", created_at FROM workouts ORDER BY meso_cycle, "order";`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workouts []Workout
	for rows.Next() {
		var w Workout
		if err := rows.Scan(&w.ID, &w.Name, &w.MesoCycle, &w.Order, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		workouts = append(workouts, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return workouts, nil
}

func (r *Repo) GetWorkoutExercise(ctx context.Context, id int64) (_ *WorkoutExercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.catalog.getWorkoutExercise")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("workout_exercise.id", id))

	var we WorkoutExercise
	err = r.db.QueryRow(
		ctx,
		`SELECT id, workout_id, exercise_id, "order", num_sets, num_reps_per_set, weight, rest_time_seconds, end_with_drop_set, created_at
			FROM workout_exercises WHERE id = $1;`,
		id,
	).Scan(
		&we.ID, &we.WorkoutID, &we.ExerciseID, &we.Order, &we.NumSets,
		&we.NumRepsPerSet, &we.Weight, &we.RestTimeSeconds, &we.EndWithDropSet, &we.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrWorkoutExerciseNotFound
	}
	if err != nil {
		return nil, err
	}

	return &we, nil
}

func (r *Repo) ListWorkoutExercises(ctx context.Context, workoutID int64) (_ []WorkoutExercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.catalog.listWorkoutExercises")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("workout.id", workoutID))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, workout_id, exercise_id, "order", num_sets, num_reps_per_set, weight, rest_time_seconds, end_with_drop_set, created_at
			FROM workout_exercises WHERE workout_id = $1 ORDER BY "order";`,
		workoutID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workoutExercises []WorkoutExercise
	for rows.Next() {
		var we WorkoutExercise
		if err := rows.Scan(
			&we.ID, &we.WorkoutID, &we.ExerciseID, &we.Order, &we.NumSets,
			&we.NumRepsPerSet, &we.Weight, &we.RestTimeSeconds, &we.EndWithDropSet, &we.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		workoutExercises = append(workoutExercises, we)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return workoutExercises, nil
}

func (r *Repo) ListExerciseLogs(ctx context.Context, exerciseID int64) (_ []ExerciseLog, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.catalog.listExerciseLogs")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("exercise.id", exerciseID))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, exercise_id, workout_exercise_id, set_number, reps_completed, weight_used, created_at
			FROM exercise_logs WHERE exercise_id = $1 ORDER BY created_at DESC, set_number;`,
		exerciseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []ExerciseLog
	for rows.Next() {
		var l ExerciseLog
		if err := rows.Scan(
			&l.ID, &l.ExerciseID, &l.WorkoutExerciseID, &l.SetNumber,
			&l.RepsCompleted, &l.WeightUsed, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return logs, nil
}

// AddExerciseLogs inserts all given logs in a single transaction. No
// partial commit: any insert failing rolls the whole batch back.
func (r *Repo) AddExerciseLogs(ctx context.Context, logs []ExerciseLog) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.catalog.addExerciseLogs")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("logs.count", len(logs)))

	if len(logs) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = fmt.Errorf("%w (rollback failed: %s)", err, rbErr)
			}
		}
	}()

	// insertion stays deterministic for a stable log history
	sorted := make([]ExerciseLog, len(logs))
	copy(sorted, logs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].WorkoutExerciseID != sorted[j].WorkoutExerciseID {
			return sorted[i].WorkoutExerciseID < sorted[j].WorkoutExerciseID
		}
		return sorted[i].SetNumber < sorted[j].SetNumber
	})

	for _, l := range sorted {
		if _, err = tx.Exec(
			ctx,
			`INSERT INTO exercise_logs
				(exercise_id, workout_exercise_id, set_number, reps_completed, weight_used, created_at)
				VALUES ($1, $2, $3, $4, $5, now());`,
			l.ExerciseID, l.WorkoutExerciseID, l.SetNumber, l.RepsCompleted, l.WeightUsed,
		); err != nil {
			return fmt.Errorf("insert exercise log: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

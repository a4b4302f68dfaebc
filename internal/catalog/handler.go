package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/wtracker/wtracker/internal/telemetry/tracing"
	"github.com/wtracker/wtracker/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=catalog_test

type store interface {
	ListExercises(ctx context.Context) ([]Exercise, error)
	ListWorkouts(ctx context.Context) ([]Workout, error)
	ListWorkoutExercises(ctx context.Context, workoutID int64) ([]WorkoutExercise, error)
	ListExerciseLogs(ctx context.Context, exerciseID int64) ([]ExerciseLog, error)
}

type ExercisesListResponse struct {
	Exercises []Exercise `json:"exercises"`
	Total     int        `json:"total"`
}

type WorkoutsListResponse struct {
	Workouts []Workout `json:"workouts"`
	Total    int       `json:"total"`
}

type WorkoutExercisesListResponse struct {
	WorkoutExercises []WorkoutExercise `json:"workoutExercises"`
	Total            int               `json:"total"`
}

type Handler struct {
	store store
}

func NewHandler(store store) *Handler {
	return &Handler{
		store: store,
	}
}

func (handler *Handler) HandleListExercises(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.catalog.exercises")
	defer span.End()

	exercises, err := handler.store.ListExercises(ctx)
	if err != nil {
		log.Errorf("failed to list exercises: %s", err)
		http.Error(w, "failed to list exercises", http.StatusInternalServerError)
		return
	}

	respJson, err := json.Marshal(ExercisesListResponse{
		Exercises: exercises,
		Total:     len(exercises),
	})
	if err != nil {
		log.Errorf("failed to marshal exercises: %s", err)
		http.Error(w, "failed to list exercises", http.StatusInternalServerError)
		return
	}
	pkg.WriteJSONResponseOK(w, respJson)
}

func (handler *Handler) HandleListWorkouts(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.catalog.workouts")
	defer span.End()

	workouts, err := handler.store.ListWorkouts(ctx)
	if err != nil {
		log.Errorf("failed to list workouts: %s", err)
		http.Error(w, "failed to list workouts", http.StatusInternalServerError)
		return
	}

	respJson, err := json.Marshal(WorkoutsListResponse{
		Workouts: workouts,
		Total:    len(workouts),
	})
	if err != nil {
		log.Errorf("failed to marshal workouts: %s", err)
		http.Error(w, "failed to list workouts", http.StatusInternalServerError)
		return
	}
	pkg.WriteJSONResponseOK(w, respJson)
}

func (handler *Handler) HandleWorkoutExercises(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.catalog.workoutExercises")
	defer span.End()

	workoutID, err := pathVarInt64(r, "id")
	if err != nil {
		http.Error(w, "error, workout id invalid", http.StatusBadRequest)
		return
	}

	workoutExercises, err := handler.store.ListWorkoutExercises(ctx, workoutID)
	if err != nil {
		log.Errorf("failed to list workout exercises for workout %d: %s", workoutID, err)
		http.Error(w, "failed to list workout exercises", http.StatusInternalServerError)
		return
	}

	respJson, err := json.Marshal(WorkoutExercisesListResponse{
		WorkoutExercises: workoutExercises,
		Total:            len(workoutExercises),
	})
	if err != nil {
		log.Errorf("failed to marshal workout exercises: %s", err)
		http.Error(w, "failed to list workout exercises", http.StatusInternalServerError)
		return
	}
	pkg.WriteJSONResponseOK(w, respJson)
}

func (handler *Handler) HandleExerciseHistory(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.catalog.exerciseHistory")
	defer span.End()

	exerciseID, err := pathVarInt64(r, "id")
	if err != nil {
		http.Error(w, "error, exercise id invalid", http.StatusBadRequest)
		return
	}

	logs, err := handler.store.ListExerciseLogs(ctx, exerciseID)
	if err != nil {
		log.Errorf("failed to list exercise logs for exercise %d: %s", exerciseID, err)
		http.Error(w, "failed to get exercise history", http.StatusInternalServerError)
		return
	}

	historyJson, err := json.Marshal(NewExerciseHistory(logs))
	if err != nil {
		log.Errorf("failed to marshal exercise history: %s", err)
		http.Error(w, "failed to get exercise history", http.StatusInternalServerError)
		return
	}
	pkg.WriteJSONResponseOK(w, historyJson)
}

func pathVarInt64(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)[name], 10, 64)
}

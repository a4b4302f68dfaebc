package catalog_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wtracker/wtracker/internal/catalog"
)

func TestApi_ListWorkoutExercises(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "test-key", r.Header.Get("apikey"))
		assert.Equal(t, "/workout_exercises", r.URL.Path)
		assert.Equal(t, "eq.3", r.URL.Query().Get("workout_id"))

		// out of order on purpose, the client sorts
		err := json.NewEncoder(w).Encode([]catalog.WorkoutExercise{
			{ID: 12, WorkoutID: 3, ExerciseID: 9, Order: 2, NumSets: 2},
			{ID: 11, WorkoutID: 3, ExerciseID: 7, Order: 1, NumSets: 3},
		})
		assert.NoError(t, err)
	}))
	defer server.Close()

	api := catalog.NewApi(server.URL, "test-key", server.Client())

	workoutExercises, err := api.ListWorkoutExercises(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, workoutExercises, 2)
	assert.Equal(t, int64(11), workoutExercises[0].ID)
	assert.Equal(t, int64(12), workoutExercises[1].ID)

	// second read is served from cache
	_, err = api.ListWorkoutExercises(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
}

func TestApi_GetWorkoutExercise(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("id") {
		case "eq.11":
			err := json.NewEncoder(w).Encode([]catalog.WorkoutExercise{
				{ID: 11, WorkoutID: 3, ExerciseID: 7, NumSets: 3, Weight: 80},
			})
			assert.NoError(t, err)
		default:
			_, err := w.Write([]byte(`[]`))
			assert.NoError(t, err)
		}
	}))
	defer server.Close()

	api := catalog.NewApi(server.URL, "test-key", server.Client())

	we, err := api.GetWorkoutExercise(context.Background(), 11)
	require.NoError(t, err)
	assert.Equal(t, int64(11), we.ID)
	assert.Equal(t, float64(80), we.Weight)

	_, err = api.GetWorkoutExercise(context.Background(), 404)
	assert.ErrorIs(t, err, catalog.ErrWorkoutExerciseNotFound)
}

func TestApi_AddExerciseLogs(t *testing.T) {
	var received []catalog.ExerciseLog
	var status int32 = http.StatusCreated
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/exercise_logs", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		code := int(atomic.LoadInt32(&status))
		if code != http.StatusCreated {
			http.Error(w, "nope", code)
			return
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(code)
	}))
	defer server.Close()

	api := catalog.NewApi(server.URL, "test-key", server.Client())

	logs := []catalog.ExerciseLog{
		{ExerciseID: 7, WorkoutExerciseID: 11, SetNumber: 1, RepsCompleted: 8, WeightUsed: 80},
		{ExerciseID: 7, WorkoutExerciseID: 11, SetNumber: 2, RepsCompleted: 7, WeightUsed: 80},
	}
	require.NoError(t, api.AddExerciseLogs(context.Background(), logs))
	assert.Equal(t, logs, received)

	require.NoError(t, api.AddExerciseLogs(context.Background(), nil), "empty batch is a no-op")

	atomic.StoreInt32(&status, http.StatusInternalServerError)
	err := api.AddExerciseLogs(context.Background(), logs)
	require.Error(t, err, "non-2xx fails the whole batch")
	assert.Contains(t, err.Error(), "status 500")
}

func TestApi_ListWorkoutsSorted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		err := json.NewEncoder(w).Encode([]catalog.Workout{
			{ID: 5, Name: "Pull B", MesoCycle: 2, Order: 1},
			{ID: 2, Name: "Push A", MesoCycle: 1, Order: 2},
			{ID: 1, Name: "Pull A", MesoCycle: 1, Order: 1},
		})
		assert.NoError(t, err)
	}))
	defer server.Close()

	api := catalog.NewApi(server.URL, "test-key", server.Client())

	workouts, err := api.ListWorkouts(context.Background())
	require.NoError(t, err)
	require.Len(t, workouts, 3)
	assert.Equal(t, []int64{1, 2, 5}, []int64{workouts[0].ID, workouts[1].ID, workouts[2].ID})
}

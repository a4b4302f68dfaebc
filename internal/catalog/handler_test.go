package catalog_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wtracker/wtracker/internal/catalog"
)

func TestHandler_HandleListExercises(t *testing.T) {
	ctrl := gomock.NewController(t)
	storeMock := NewMockstore(ctrl)
	h := catalog.NewHandler(storeMock)

	storeMock.EXPECT().
		ListExercises(gomock.Any()).
		Return([]catalog.Exercise{
			{ID: 7, Name: "Bench Press", Type: "barbell"},
			{ID: 9, Name: "Lat Pulldown", Type: "cable"},
		}, nil).
		Times(1)

	req, err := http.NewRequest("GET", "/catalog/exercises", nil)
	require.NoError(t, err)
	rec := httptest.NewRecorder()

	h.HandleListExercises(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp catalog.ExercisesListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	require.Len(t, resp.Exercises, 2)
	assert.Equal(t, "Bench Press", resp.Exercises[0].Name)
}

func TestHandler_HandleListExercises_StoreError(t *testing.T) {
	ctrl := gomock.NewController(t)
	storeMock := NewMockstore(ctrl)
	h := catalog.NewHandler(storeMock)

	storeMock.EXPECT().
		ListExercises(gomock.Any()).
		Return(nil, assert.AnError).
		Times(1)

	req, err := http.NewRequest("GET", "/catalog/exercises", nil)
	require.NoError(t, err)
	rec := httptest.NewRecorder()

	h.HandleListExercises(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandler_HandleWorkoutExercises(t *testing.T) {
	ctrl := gomock.NewController(t)
	storeMock := NewMockstore(ctrl)
	h := catalog.NewHandler(storeMock)

	storeMock.EXPECT().
		ListWorkoutExercises(gomock.Any(), int64(3)).
		Return([]catalog.WorkoutExercise{
			{ID: 11, WorkoutID: 3, ExerciseID: 7, Order: 1, NumSets: 3},
			{ID: 12, WorkoutID: 3, ExerciseID: 9, Order: 2, NumSets: 2},
		}, nil).
		Times(1)

	r := mux.NewRouter()
	r.HandleFunc("/catalog/workouts/{id}/exercises", h.HandleWorkoutExercises).Methods("GET")

	req, err := http.NewRequest("GET", "/catalog/workouts/3/exercises", nil)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp catalog.WorkoutExercisesListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, int64(11), resp.WorkoutExercises[0].ID)

	// invalid id never reaches the store
	req, err = http.NewRequest("GET", "/catalog/workouts/nope/exercises", nil)
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_HandleExerciseHistory(t *testing.T) {
	ctrl := gomock.NewController(t)
	storeMock := NewMockstore(ctrl)
	h := catalog.NewHandler(storeMock)

	day := time.Date(2024, 7, 4, 18, 0, 0, 0, time.UTC)
	storeMock.EXPECT().
		ListExerciseLogs(gomock.Any(), int64(7)).
		Return([]catalog.ExerciseLog{
			{ID: 1, ExerciseID: 7, SetNumber: 1, RepsCompleted: 8, WeightUsed: 80, CreatedAt: day},
			{ID: 2, ExerciseID: 7, SetNumber: 2, RepsCompleted: 8, WeightUsed: 80, CreatedAt: day.Add(3 * time.Minute)},
		}, nil).
		Times(1)

	r := mux.NewRouter()
	r.HandleFunc("/catalog/exercises/{id}/history", h.HandleExerciseHistory).Methods("GET")

	req, err := http.NewRequest("GET", "/catalog/exercises/7/history", nil)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var history catalog.ExerciseHistory
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Equal(t, 2, history.Total)
	require.Len(t, history.Days, 1)
	assert.Equal(t, "Jul 4, 2024", history.Days[0].Date)
	require.NotNil(t, history.Stats)
	assert.Equal(t, 80.0, history.Stats.BestWeight)
}

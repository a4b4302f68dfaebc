package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/wtracker/wtracker/internal/telemetry/tracing"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	catalogCacheExpireSeconds = 60 * 5
)

// Api is the client for the hosted REST data store (postgrest-style
// filters: /workout_exercises?workout_id=eq.3). Catalog reads are
// cached, log writes are not.
type Api struct {
	cache      *freecache.Cache
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewApi(baseURL, apiKey string, httpClient *http.Client) *Api {
	megabyte := 1024 * 1024
	return &Api{
		cache:      freecache.NewCache(10 * megabyte),
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

func (api *Api) ListExercises(ctx context.Context) (_ []Exercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "catalogapi.listExercises")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var exercises []Exercise
	if err := api.getCached(ctx, "/exercises", "exercises", &exercises); err != nil {
		return nil, err
	}
	return exercises, nil
}

func (api *Api) ListWorkouts(ctx context.Context) (_ []Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "catalogapi.listWorkouts")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var workouts []Workout
	if err := api.getCached(ctx, "/workouts", "workouts", &workouts); err != nil {
		return nil, err
	}
	sort.SliceStable(workouts, func(i, j int) bool {
		if workouts[i].MesoCycle != workouts[j].MesoCycle {
			return workouts[i].MesoCycle < workouts[j].MesoCycle
		}
		return workouts[i].Order < workouts[j].Order
	})
	return workouts, nil
}

func (api *Api) GetWorkoutExercise(ctx context.Context, id int64) (_ *WorkoutExercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "catalogapi.getWorkoutExercise")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("workout_exercise.id", id))

	var workoutExercises []WorkoutExercise
	path := fmt.Sprintf("/workout_exercises?id=eq.%d", id)
	if err := api.get(ctx, path, &workoutExercises); err != nil {
		return nil, err
	}
	if len(workoutExercises) == 0 {
		return nil, ErrWorkoutExerciseNotFound
	}
	return &workoutExercises[0], nil
}

func (api *Api) ListWorkoutExercises(ctx context.Context, workoutID int64) (_ []WorkoutExercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "catalogapi.listWorkoutExercises")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("workout.id", workoutID))

	var workoutExercises []WorkoutExercise
	path := fmt.Sprintf("/workout_exercises?workout_id=eq.%d", workoutID)
	cacheKey := fmt.Sprintf("workout_exercises::%d", workoutID)
	if err := api.getCached(ctx, path, cacheKey, &workoutExercises); err != nil {
		return nil, err
	}
	sort.SliceStable(workoutExercises, func(i, j int) bool {
		return workoutExercises[i].Order < workoutExercises[j].Order
	})
	return workoutExercises, nil
}

func (api *Api) ListExerciseLogs(ctx context.Context, exerciseID int64) (_ []ExerciseLog, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "catalogapi.listExerciseLogs")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("exercise.id", exerciseID))

	// history is not cached, a freshly saved workout must show up
	var logs []ExerciseLog
	path := fmt.Sprintf("/exercise_logs?exercise_id=eq.%d", exerciseID)
	if err := api.get(ctx, path, &logs); err != nil {
		return nil, err
	}
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].CreatedAt.After(logs[j].CreatedAt)
	})
	return logs, nil
}

// AddExerciseLogs submits the whole batch as one POST. The store either
// accepts the full array or rejects the request, so there is no partial
// submission to recover from.
func (api *Api) AddExerciseLogs(ctx context.Context, logs []ExerciseLog) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "catalogapi.addExerciseLogs")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("logs.count", len(logs)))

	if len(logs) == 0 {
		return nil
	}

	logsJson, err := json.Marshal(logs)
	if err != nil {
		return fmt.Errorf("marshal exercise logs: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost,
		api.baseURL+"/exercise_logs",
		bytes.NewReader(logsJson),
	)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	api.setAuthHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := api.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("add exercise logs: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Warnf("add exercise logs: close response body: %s", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBytes, _ := io.ReadAll(resp.Body)
		span.SetStatus(codes.Error, fmt.Sprintf("unexpected status %d", resp.StatusCode))
		return fmt.Errorf("add exercise logs: status %d: %s", resp.StatusCode, respBytes)
	}

	return nil
}

func (api *Api) getCached(ctx context.Context, path, cacheKey string, dest any) error {
	if cached, err := api.cache.Get([]byte(cacheKey)); err == nil {
		if err := json.Unmarshal(cached, dest); err == nil {
			log.Tracef("catalog api: cache hit for [%s]", cacheKey)
			return nil
		}
		log.Errorf("catalog api: failed to unmarshal cached [%s], falling through", cacheKey)
	}

	raw, err := api.getRaw(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal %s response: %w", path, err)
	}

	if err := api.cache.Set([]byte(cacheKey), raw, catalogCacheExpireSeconds); err != nil {
		log.Errorf("catalog api: failed to cache [%s]: %s", cacheKey, err)
	}
	return nil
}

func (api *Api) get(ctx context.Context, path string, dest any) error {
	raw, err := api.getRaw(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal %s response: %w", path, err)
	}
	return nil
}

func (api *Api) getRaw(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, api.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	api.setAuthHeaders(req)

	resp, err := api.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Warnf("get %s: close response body: %s", path, closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		respBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("get %s: status %d: %s", path, resp.StatusCode, respBytes)
	}

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}
	return respBytes, nil
}

func (api *Api) setAuthHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+api.apiKey)
	req.Header.Set("apikey", api.apiKey)
}

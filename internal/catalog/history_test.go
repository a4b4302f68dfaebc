package catalog_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wtracker/wtracker/internal/catalog"
)

func TestNewExerciseHistory(t *testing.T) {
	day1 := time.Date(2024, 7, 1, 18, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 7, 4, 18, 0, 0, 0, time.UTC)

	logs := []catalog.ExerciseLog{
		{ID: 1, ExerciseID: 7, SetNumber: 1, RepsCompleted: 8, WeightUsed: 80, CreatedAt: day1},
		{ID: 2, ExerciseID: 7, SetNumber: 2, RepsCompleted: 8, WeightUsed: 82.5, CreatedAt: day1.Add(3 * time.Minute)},
		{ID: 3, ExerciseID: 7, SetNumber: 1, RepsCompleted: 6, WeightUsed: 85, CreatedAt: day2},
		// skipped set, ignored by the stats but kept in the day
		{ID: 4, ExerciseID: 7, SetNumber: 2, RepsCompleted: 0, WeightUsed: 0, CreatedAt: day2.Add(3 * time.Minute)},
	}

	history := catalog.NewExerciseHistory(logs)

	assert.Equal(t, 4, history.Total)
	require.Len(t, history.Days, 2)
	assert.Equal(t, "Jul 4, 2024", history.Days[0].Date, "newest day first")
	assert.Equal(t, "Jul 1, 2024", history.Days[1].Date)
	assert.Len(t, history.Days[0].Logs, 2)
	assert.Len(t, history.Days[1].Logs, 2)
	assert.Equal(t, int64(4), history.Days[0].Logs[0].ID, "newest log first within a day")

	require.NotNil(t, history.Stats)
	assert.Equal(t, 85.0, history.Stats.BestWeight)
	// (80 + 82.5 + 85) / 3 rounded
	assert.Equal(t, 83.0, history.Stats.AvgWeight)
}

func TestNewExerciseHistory_Bodyweight(t *testing.T) {
	logs := []catalog.ExerciseLog{
		{ID: 1, ExerciseID: 3, SetNumber: 1, RepsCompleted: 12, CreatedAt: time.Now()},
		{ID: 2, ExerciseID: 3, SetNumber: 2, RepsCompleted: 10, CreatedAt: time.Now()},
	}

	history := catalog.NewExerciseHistory(logs)

	assert.Equal(t, 2, history.Total)
	assert.Nil(t, history.Stats, "no weight stats for bodyweight only history")
}

func TestNewExerciseHistory_Empty(t *testing.T) {
	history := catalog.NewExerciseHistory(nil)
	assert.Equal(t, 0, history.Total)
	assert.Empty(t, history.Days)
	assert.Nil(t, history.Stats)
}

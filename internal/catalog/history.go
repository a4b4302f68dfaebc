package catalog

import (
	"math"
	"sort"
)

type HistoryDay struct {
	Date string        `json:"date"`
	Logs []ExerciseLog `json:"logs"`
}

type HistoryStats struct {
	BestWeight float64 `json:"bestWeight"`
	AvgWeight  float64 `json:"avgWeight"`
}

type ExerciseHistory struct {
	Days  []HistoryDay  `json:"days"`
	Stats *HistoryStats `json:"stats,omitempty"`
	Total int           `json:"total"`
}

// NewExerciseHistory groups logs by calendar day, newest day first,
// and computes best/average weight over the non-bodyweight entries.
// Stats is nil when every logged set was bodyweight.
func NewExerciseHistory(logs []ExerciseLog) ExerciseHistory {
	sorted := make([]ExerciseLog, len(logs))
	copy(sorted, logs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	history := ExerciseHistory{Total: len(sorted)}

	var currentDate string
	for _, l := range sorted {
		logDate := l.CreatedAt.Format("Jan 2, 2006")
		if logDate != currentDate {
			history.Days = append(history.Days, HistoryDay{Date: logDate})
			currentDate = logDate
		}
		lastDay := &history.Days[len(history.Days)-1]
		lastDay.Logs = append(lastDay.Logs, l)
	}

	var weightsSum float64
	var best float64
	weighted := 0
	for _, l := range sorted {
		if l.WeightUsed <= 0 {
			continue
		}
		weighted++
		weightsSum += l.WeightUsed
		if l.WeightUsed > best {
			best = l.WeightUsed
		}
	}
	if weighted > 0 {
		history.Stats = &HistoryStats{
			BestWeight: best,
			AvgWeight:  math.Round(weightsSum / float64(weighted)),
		}
	}

	return history
}

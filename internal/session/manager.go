package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/wtracker/wtracker/internal/catalog"
	"github.com/wtracker/wtracker/internal/companion"
	"github.com/wtracker/wtracker/internal/notifications"
	"github.com/wtracker/wtracker/internal/telemetry/metrics"
	"github.com/wtracker/wtracker/internal/telemetry/tracing"
)

type State string

const (
	StateUninitialized         State = "uninitialized"
	StateInitializing          State = "initializing"
	StatePendingResumeDecision State = "pendingResumeDecision"
	StateActive                State = "active"
	StateSaving                State = "saving"
	StateSaved                 State = "saved"
	StateDiscarded             State = "discarded"
)

var (
	ErrSessionActive        = errors.New("another workout session is active")
	ErrSaveInProgress       = errors.New("workout save in progress")
	ErrNoActiveSession      = errors.New("no active workout session")
	ErrNoActiveExercise     = errors.New("no exercise in progress")
	ErrNoPendingDecision    = errors.New("no resume decision pending")
	ErrNothingToSave        = errors.New("no completed exercises to save")
	ErrExerciseNotInWorkout = errors.New("workout exercise belongs to another workout")
)

// Manager is the single writer of workout session state. All
// mutations, from HTTP handlers and from the companion channel alike,
// serialize through its mutex; every mutation persists the progress
// record and mirrors the new state to the companion before returning.
type Manager struct {
	store     ProgressStore
	catalog   catalog.Store
	companion *companion.Channel
	rest      *notifications.Scheduler
	metrics   *metrics.Manager
	guard     *ResumeGuard

	// guarded by the session lock
	state    State
	progress *WorkoutProgress
	pending  *WorkoutProgress
	seq      *Sequencer

	exerciseNames map[int64]catalog.Exercise

	mu  sync.Mutex
	now func() time.Time
}

func NewManager(
	store ProgressStore,
	catalogStore catalog.Store,
	companionChannel *companion.Channel,
	rest *notifications.Scheduler,
	metricsManager *metrics.Manager,
) *Manager {
	m := &Manager{
		store:     store,
		catalog:   catalogStore,
		companion: companionChannel,
		rest:      rest,
		metrics:   metricsManager,
		guard:     &ResumeGuard{},
		state:     StateUninitialized,
		now:       time.Now,
	}
	companionChannel.OnSetCompleted(func(ev companion.SetCompletedEvent) {
		m.OnCompanionSetCompleted(context.Background(), ev)
	})
	return m
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Progress returns a deep copy of the current record, nil when no
// session holds one.
func (m *Manager) Progress() *WorkoutProgress {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StatePendingResumeDecision {
		return m.pending.Clone()
	}
	return m.progress.Clone()
}

func (m *Manager) RestRemaining() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seq == nil {
		return 0
	}
	return m.seq.RestRemaining(m.now())
}

// StartSession opens a session for the given workout. Stored progress
// for the same workout triggers the resume decision, but only once per
// process: afterwards the session resumes silently. Stored progress
// for a different workout is stale and gets overwritten.
func (m *Manager) StartSession(ctx context.Context, workoutID int64) (state State, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "session.manager.start")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateSaving:
		return m.state, ErrSaveInProgress
	case StateActive:
		if m.progress != nil && m.progress.WorkoutID == workoutID {
			return m.state, nil
		}
		return m.state, ErrSessionActive
	case StatePendingResumeDecision:
		if m.pending != nil && m.pending.WorkoutID == workoutID {
			return m.state, nil
		}
		return m.state, ErrSessionActive
	}

	m.state = StateInitializing

	if stored := m.store.Load(ctx); stored != nil && stored.WorkoutID == workoutID {
		if m.guard.TryPrompt() {
			m.pending = stored
			m.state = StatePendingResumeDecision
			log.Debugf("session: workout %d has stored progress, awaiting resume decision", workoutID)
			return m.state, nil
		}
		log.Debugf("session: workout %d resumed silently, prompt already consumed", workoutID)
		m.adoptLocked(ctx, stored)
		return m.state, nil
	}

	m.startFreshLocked(ctx, workoutID)
	return m.state, nil
}

// Resume confirms the pending decision and picks the stored session
// back up, including the in-flight exercise when there is one.
func (m *Manager) Resume(ctx context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StatePendingResumeDecision {
		return m.state, ErrNoPendingDecision
	}
	stored := m.pending
	m.pending = nil
	m.adoptLocked(ctx, stored)
	return m.state, nil
}

// StartFresh rejects the pending decision: the stored progress is
// discarded and a clean session for the same workout begins.
func (m *Manager) StartFresh(ctx context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StatePendingResumeDecision {
		return m.state, ErrNoPendingDecision
	}
	workoutID := m.pending.WorkoutID
	m.pending = nil
	m.store.Clear(ctx)
	m.startFreshLocked(ctx, workoutID)
	return m.state, nil
}

func (m *Manager) startFreshLocked(ctx context.Context, workoutID int64) {
	m.progress = NewWorkoutProgress(workoutID, m.now())
	m.seq = nil
	m.state = StateActive
	m.store.Save(ctx, m.progress)
	m.metrics.GaugeSessionActive.Set(1)
	m.companion.NotifyWorkoutStarted(m.snapshotLocked(ctx))
	log.Tracef("session: fresh session for workout %d", workoutID)
}

func (m *Manager) adoptLocked(ctx context.Context, stored *WorkoutProgress) {
	m.progress = stored
	m.seq = nil
	if stored.CurrentExercise != nil {
		we, err := m.catalog.GetWorkoutExercise(ctx, stored.CurrentExercise.WorkoutExerciseID)
		if err != nil {
			// the in-flight record survives, re-entering rebuilds it
			log.Errorf(
				"session: resume workout exercise %d: %s",
				stored.CurrentExercise.WorkoutExerciseID, err,
			)
		} else {
			m.seq = NewSequencer(*we, stored.CurrentExercise, nil)
		}
	}
	m.state = StateActive
	m.metrics.GaugeSessionActive.Set(1)
	m.companion.NotifyWorkoutStarted(m.snapshotLocked(ctx))
	log.Tracef("session: resumed workout %d", stored.WorkoutID)
}

// EnterExercise makes the given workout exercise the current one.
// Entering an already completed exercise reopens it over its recorded
// values; the earlier completed entry is replaced in place when it is
// completed again.
func (m *Manager) EnterExercise(ctx context.Context, workoutExerciseID int64) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "session.manager.enterExercise")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive {
		return ErrNoActiveSession
	}

	we, err := m.catalog.GetWorkoutExercise(ctx, workoutExerciseID)
	if err != nil {
		return fmt.Errorf("get workout exercise %d: %w", workoutExerciseID, err)
	}
	if we.WorkoutID != m.progress.WorkoutID {
		return fmt.Errorf(
			"%w: workout exercise %d belongs to workout %d, session is for workout %d",
			ErrExerciseNotInWorkout, workoutExerciseID, we.WorkoutID, m.progress.WorkoutID,
		)
	}

	var completed *CompletedWorkoutExercise
	if record, ok := m.progress.CompletedByID(workoutExerciseID); ok {
		completed = &record
	}
	m.seq = NewSequencer(*we, m.progress.CurrentExercise, completed)
	m.syncLocked(ctx)
	return nil
}

// CompleteSet confirms the current set with its recorded values.
func (m *Manager) CompleteSet(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completeSetLocked(ctx)
}

func (m *Manager) completeSetLocked(ctx context.Context) error {
	if m.state != StateActive {
		return ErrNoActiveSession
	}
	if m.seq == nil {
		return ErrNoActiveExercise
	}
	if err := m.seq.CompleteSet(); err != nil {
		return err
	}

	m.metrics.CounterSetsCompleted.Inc()
	if remaining := m.seq.RestRemaining(m.now()); remaining > 0 {
		m.rest.ScheduleRestOver(remaining)
	} else {
		m.rest.Cancel()
	}
	m.syncLocked(ctx)
	return nil
}

// EditSet overwrites a set's weight and reps, done or not.
func (m *Manager) EditSet(ctx context.Context, num int, weight float64, reps int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive {
		return ErrNoActiveSession
	}
	if m.seq == nil {
		return ErrNoActiveExercise
	}
	if err := m.seq.EditSet(num, weight, reps); err != nil {
		return err
	}
	m.syncLocked(ctx)
	return nil
}

// SkipSet zeroes a set out; it still counts towards completion.
func (m *Manager) SkipSet(ctx context.Context, num int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive {
		return ErrNoActiveSession
	}
	if m.seq == nil {
		return ErrNoActiveExercise
	}
	if err := m.seq.SkipSet(num); err != nil {
		return err
	}
	m.syncLocked(ctx)
	return nil
}

// CompleteExercise confirms the finished exercise into the completed
// list and leaves the session with no current exercise.
func (m *Manager) CompleteExercise(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive {
		return ErrNoActiveSession
	}
	if m.seq == nil {
		return ErrNoActiveExercise
	}

	result, err := m.seq.Result()
	if err != nil {
		return err
	}
	m.progress.UpsertCompleted(result)
	m.progress.CurrentExercise = nil
	m.seq = nil
	m.rest.Cancel()
	m.metrics.CounterExercisesCompleted.Inc()
	m.store.Save(ctx, m.progress)
	return nil
}

// Save flushes every completed exercise to the remote log store, all
// or nothing. Only success finishes the session: the local record is
// cleared, the resume prompt is re-armed and the companion is told the
// workout ended. On failure the session stays active with nothing lost.
func (m *Manager) Save(ctx context.Context) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "session.manager.save")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive {
		return ErrNoActiveSession
	}
	if len(m.progress.CompletedExercises) == 0 {
		return ErrNothingToSave
	}

	m.state = StateSaving
	logs := m.progress.FlattenLogs()
	if err := m.catalog.AddExerciseLogs(ctx, logs); err != nil {
		m.state = StateActive
		m.metrics.CounterWorkoutSaveErrors.Inc()
		return fmt.Errorf("save %d exercise logs: %w", len(logs), err)
	}

	log.Debugf(
		"session: workout %d saved, %d exercise logs",
		m.progress.WorkoutID, len(logs),
	)
	m.metrics.CounterWorkoutsSaved.Inc()
	m.store.Clear(ctx)
	m.guard.Reset()
	m.finishLocked(StateSaved)
	return nil
}

// Discard drops the session and its stored record without saving
// anything. The resume prompt allowance stays consumed.
func (m *Manager) Discard(ctx context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateSaving:
		return m.state, ErrSaveInProgress
	case StateActive, StatePendingResumeDecision:
	default:
		return m.state, ErrNoActiveSession
	}

	m.store.Clear(ctx)
	m.pending = nil
	m.finishLocked(StateDiscarded)
	return m.state, nil
}

func (m *Manager) finishLocked(end State) {
	m.progress = nil
	m.seq = nil
	m.state = end
	m.rest.Cancel()
	m.metrics.GaugeSessionActive.Set(0)
	m.companion.NotifyWorkoutEnded()
}

// OnCompanionSetCompleted folds a remote set completion into the
// session: the reported values land on the current set, then the set
// completes through the same path a local completion takes. With no
// exercise in progress the event is logged and dropped.
func (m *Manager) OnCompanionSetCompleted(ctx context.Context, ev companion.SetCompletedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive || m.seq == nil || m.seq.IsComplete() {
		log.Warnf("session: drop companion set completion, no set in progress")
		return
	}
	if err := m.seq.EditSet(m.seq.CurrentSet(), ev.Weight, ev.RepsCompleted); err != nil {
		log.Errorf("session: apply companion set values: %s", err)
		return
	}
	if err := m.completeSetLocked(ctx); err != nil {
		log.Errorf("session: complete set from companion: %s", err)
	}
}

// syncLocked is the tail of every in-exercise mutation: snapshot the
// sequencer into the record, persist it, mirror it to the companion.
func (m *Manager) syncLocked(ctx context.Context) {
	current := m.seq.Progress()
	m.progress.CurrentExercise = &current
	m.store.Save(ctx, m.progress)
	m.companion.PushState(m.snapshotLocked(ctx))
}

func (m *Manager) snapshotLocked(ctx context.Context) companion.WorkoutState {
	if m.seq == nil {
		return companion.WorkoutState{}
	}

	we := m.seq.WorkoutExercise()
	state := companion.WorkoutState{
		CurrentSet:      m.seq.CurrentSet(),
		TotalSets:       m.seq.TotalSets(),
		RestTimeSeconds: we.RestTimeSeconds,
	}
	progress := m.seq.Progress()
	if progress.CurrentSet >= 1 && progress.CurrentSet <= len(progress.Sets) {
		set := progress.Sets[progress.CurrentSet-1]
		state.Weight = set.Weight
		state.TargetReps = set.RepsCompleted
	}
	if progress.TimerStartedAt != nil {
		startedAt := *progress.TimerStartedAt
		state.TimerStartedAt = &startedAt
	}
	if exercise, ok := m.exerciseLocked(ctx, we.ExerciseID); ok {
		state.ExerciseName = exercise.Name
		state.ExerciseType = exercise.Type
	}
	return state
}

// exerciseLocked resolves an exercise by id, loading and caching the
// catalog list on first use. Lookup failures degrade to a nameless
// snapshot.
func (m *Manager) exerciseLocked(ctx context.Context, exerciseID int64) (catalog.Exercise, bool) {
	if m.exerciseNames == nil {
		exercises, err := m.catalog.ListExercises(ctx)
		if err != nil {
			log.Errorf("session: list exercises for snapshots: %s", err)
			return catalog.Exercise{}, false
		}
		m.exerciseNames = make(map[int64]catalog.Exercise, len(exercises))
		for _, exercise := range exercises {
			m.exerciseNames[exercise.ID] = exercise
		}
	}
	exercise, ok := m.exerciseNames[exerciseID]
	return exercise, ok
}

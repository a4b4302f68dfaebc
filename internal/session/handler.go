package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/wtracker/wtracker/internal/catalog"
	"github.com/wtracker/wtracker/internal/middleware"
	"github.com/wtracker/wtracker/pkg"
)

type Handler struct {
	manager *Manager
}

func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

// SetupRoutes mounts the session surface under /session. Starting a
// session is rate limited, a client stuck in a retry loop must not
// hammer the progress store.
func (h *Handler) SetupRoutes(
	r *mux.Router,
	rateLimiter middleware.RequestRateLimiter,
	startAllowedPerMin int,
) {
	sessionRouter := r.PathPrefix("/session").Subrouter()
	sessionRouter.HandleFunc("", h.HandleGetState).Methods("GET", "OPTIONS").Name("session-state")
	sessionRouter.HandleFunc("/resume", h.HandleResume).Methods("POST", "OPTIONS").Name("session-resume")
	sessionRouter.HandleFunc("/fresh", h.HandleStartFresh).Methods("POST", "OPTIONS").Name("session-fresh")
	sessionRouter.HandleFunc("/exercise/{id}/enter", h.HandleEnterExercise).Methods("POST", "OPTIONS").Name("enter-exercise")
	sessionRouter.HandleFunc("/exercise/complete", h.HandleCompleteExercise).Methods("POST", "OPTIONS").Name("complete-exercise")
	sessionRouter.HandleFunc("/set/complete", h.HandleCompleteSet).Methods("POST", "OPTIONS").Name("complete-set")
	sessionRouter.HandleFunc("/set", h.HandleEditSet).Methods("PUT", "OPTIONS").Name("edit-set")
	sessionRouter.HandleFunc("/set/{num}/skip", h.HandleSkipSet).Methods("POST", "OPTIONS").Name("skip-set")
	sessionRouter.HandleFunc("/save", h.HandleSave).Methods("POST", "OPTIONS").Name("save-workout")
	sessionRouter.HandleFunc("/discard", h.HandleDiscard).Methods("POST", "OPTIONS").Name("discard-workout")

	startRouter := r.PathPrefix("/session/workout").Subrouter()
	startRouter.HandleFunc("/{id}/start", h.HandleStart).Methods("POST", "OPTIONS").Name("start-session")
	startRouter.Use(middleware.RateLimit(rateLimiter, "session-start", startAllowedPerMin))
}

// StateResponse is the session surface every mutating endpoint echoes
// back, so clients never need a follow-up read to render.
type StateResponse struct {
	State                State            `json:"state"`
	Progress             *WorkoutProgress `json:"progress,omitempty"`
	RestSecondsRemaining int              `json:"restSecondsRemaining"`
}

// EditSetRequest carries values as strings, the shape number inputs
// arrive in from client forms. A field that is absent or fails to
// parse falls back to the set's current value.
type EditSetRequest struct {
	Num    int    `json:"num"`
	Weight string `json:"weight"`
	Reps   string `json:"reps"`
}

func (h *Handler) stateResponse() StateResponse {
	return StateResponse{
		State:                h.manager.State(),
		Progress:             h.manager.Progress(),
		RestSecondsRemaining: int(h.manager.RestRemaining().Seconds()),
	}
}

func (h *Handler) writeState(w http.ResponseWriter) {
	respJson, err := json.Marshal(h.stateResponse())
	if err != nil {
		log.Errorf("session handler: marshal state response: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteJSONResponseOK(w, respJson)
}

// writeErr maps session errors to status codes: precondition failures
// are conflicts, bad input is a bad request, an unknown workout
// exercise is not found.
func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSessionActive),
		errors.Is(err, ErrSaveInProgress),
		errors.Is(err, ErrNoActiveSession),
		errors.Is(err, ErrNoActiveExercise),
		errors.Is(err, ErrNoPendingDecision),
		errors.Is(err, ErrNothingToSave):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrSetOutOfRange),
		errors.Is(err, ErrExerciseNotInWorkout):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, catalog.ErrWorkoutExerciseNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		log.Errorf("session handler: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) HandleGetState(w http.ResponseWriter, _ *http.Request) {
	h.writeState(w)
}

func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	workoutID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "parse workout id", http.StatusBadRequest)
		return
	}
	if _, err := h.manager.StartSession(r.Context(), workoutID); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeState(w)
}

func (h *Handler) HandleResume(w http.ResponseWriter, r *http.Request) {
	if _, err := h.manager.Resume(r.Context()); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeState(w)
}

func (h *Handler) HandleStartFresh(w http.ResponseWriter, r *http.Request) {
	if _, err := h.manager.StartFresh(r.Context()); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeState(w)
}

func (h *Handler) HandleEnterExercise(w http.ResponseWriter, r *http.Request) {
	workoutExerciseID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "parse workout exercise id", http.StatusBadRequest)
		return
	}
	if err := h.manager.EnterExercise(r.Context(), workoutExerciseID); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeState(w)
}

func (h *Handler) HandleCompleteSet(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.CompleteSet(r.Context()); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeState(w)
}

func (h *Handler) HandleEditSet(w http.ResponseWriter, r *http.Request) {
	var req EditSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("decode edit set request: %s", err), http.StatusBadRequest)
		return
	}

	weight, reps, err := h.resolveEdit(req)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	if err := h.manager.EditSet(r.Context(), req.Num, weight, reps); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeState(w)
}

// resolveEdit parses the string fields, defaulting each one that is
// missing or malformed to the set's current value. A bad weight never
// blocks a good reps edit, and vice versa.
func (h *Handler) resolveEdit(req EditSetRequest) (weight float64, reps int, err error) {
	progress := h.manager.Progress()
	if progress == nil || progress.CurrentExercise == nil {
		return 0, 0, ErrNoActiveExercise
	}
	sets := progress.CurrentExercise.Sets
	if req.Num < 1 || req.Num > len(sets) {
		return 0, 0, fmt.Errorf("%w: %d of %d", ErrSetOutOfRange, req.Num, len(sets))
	}
	current := sets[req.Num-1]

	weight = current.Weight
	if parsed, parseErr := strconv.ParseFloat(req.Weight, 64); parseErr == nil {
		weight = parsed
	} else if req.Weight != "" {
		log.Debugf("session handler: keep weight of set %d, bad input %q", req.Num, req.Weight)
	}

	reps = current.RepsCompleted
	if parsed, parseErr := strconv.Atoi(req.Reps); parseErr == nil {
		reps = parsed
	} else if req.Reps != "" {
		log.Debugf("session handler: keep reps of set %d, bad input %q", req.Num, req.Reps)
	}

	return weight, reps, nil
}

func (h *Handler) HandleSkipSet(w http.ResponseWriter, r *http.Request) {
	num, err := strconv.Atoi(mux.Vars(r)["num"])
	if err != nil {
		http.Error(w, "parse set number", http.StatusBadRequest)
		return
	}
	if err := h.manager.SkipSet(r.Context(), num); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeState(w)
}

func (h *Handler) HandleCompleteExercise(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.CompleteExercise(r.Context()); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeState(w)
}

func (h *Handler) HandleSave(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Save(r.Context()); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeState(w)
}

func (h *Handler) HandleDiscard(w http.ResponseWriter, r *http.Request) {
	if _, err := h.manager.Discard(r.Context()); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeState(w)
}

package companion

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/wtracker/wtracker/internal/telemetry/metrics"
)

// Transport moves payloads to and from the paired companion device.
// SendTransient is fire-and-forget delivery to a reachable peer and
// fails when there is none; UpdateContext overwrites the durable
// latest-value slot the peer reads on (re)connect.
type Transport interface {
	IsReachable() bool
	SendTransient(payload []byte) error
	UpdateContext(payload []byte) error
}

// Channel is the phone side of the companion link. Outbound traffic is
// deduplicated by state fingerprint and every send also refreshes the
// durable context, so a companion that was out of reach converges as
// soon as it returns. Delivery is best effort throughout: a failed
// send is logged and counted, never surfaced to the workout flow.
type Channel struct {
	mu        sync.Mutex
	transport Transport
	metrics   *metrics.Manager

	lastFingerprint string

	onSetCompleted func(SetCompletedEvent)
	onReachability func(reachable bool)

	now func() time.Time
}

func NewChannel(transport Transport, metrics *metrics.Manager) *Channel {
	return &Channel{
		transport: transport,
		metrics:   metrics,
		now:       time.Now,
	}
}

// OnSetCompleted registers the consumer of remote set completions.
// Events arriving before registration are dropped.
func (c *Channel) OnSetCompleted(fn func(SetCompletedEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSetCompleted = fn
}

func (c *Channel) OnReachabilityChanged(fn func(reachable bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReachability = fn
}

// NotifyWorkoutStarted announces a new session. It always transmits,
// regardless of fingerprints from any previous session.
func (c *Channel) NotifyWorkoutStarted(state WorkoutState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastFingerprint = state.fingerprint()
	c.send(MessageTypeWorkoutStarted, &state)
	c.updateContext(DurableContext{
		WorkoutActive: true,
		State:         &state,
		Timestamp:     c.now().UnixMilli(),
	})
}

// NotifyWorkoutEnded tells the companion to leave the workout screen
// and resets change detection so the next session's first state always
// goes out.
func (c *Channel) NotifyWorkoutEnded() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastFingerprint = ""
	c.send(MessageTypeWorkoutEnded, nil)
	c.updateContext(DurableContext{
		WorkoutActive: false,
		Timestamp:     c.now().UnixMilli(),
	})
}

// PushState mirrors the current exercise state. A push is suppressed
// only when nothing changed AND no rest timer is running; a running
// timer forces the send so the companion countdown restarts from the
// fresh start moment even if the visible values are identical.
func (c *Channel) PushState(state WorkoutState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fingerprint := state.fingerprint()
	if fingerprint == c.lastFingerprint && state.TimerStartedAt == nil {
		c.metrics.CounterCompanionDeduped.Inc()
		return
	}
	c.lastFingerprint = fingerprint

	c.send("", &state)
	c.updateContext(DurableContext{
		WorkoutActive: true,
		State:         &state,
		Timestamp:     c.now().UnixMilli(),
	})
}

func (c *Channel) send(msgType MessageType, state *WorkoutState) {
	payload, err := encodeOutbound(msgType, state)
	if err != nil {
		log.Errorf("companion channel: %s", err)
		return
	}
	if err := c.transport.SendTransient(payload); err != nil {
		c.metrics.CounterCompanionDropped.Inc()
		log.Debugf("companion channel: transient send dropped: %s", err)
		return
	}
	c.metrics.CounterCompanionSent.Inc()
}

func (c *Channel) updateContext(dc DurableContext) {
	payload, err := encodeContext(dc)
	if err != nil {
		log.Errorf("companion channel: %s", err)
		return
	}
	if err := c.transport.UpdateContext(payload); err != nil {
		log.Errorf("companion channel: update context: %s", err)
	}
}

// HandleInbound is the transport callback for raw companion payloads.
// Unparseable or unexpected messages are logged and dropped, they
// never disturb the session.
func (c *Channel) HandleInbound(raw []byte) {
	msg, err := ParseInbound(raw)
	if err != nil {
		log.Warnf("companion channel: drop inbound: %s", err)
		return
	}

	c.mu.Lock()
	onSetCompleted := c.onSetCompleted
	c.mu.Unlock()

	switch ev := msg.(type) {
	case SetCompletedEvent:
		if onSetCompleted == nil {
			log.Warnf("companion channel: drop set completed event, no consumer")
			return
		}
		onSetCompleted(ev)
	default:
		log.Warnf("companion channel: drop inbound message %T", msg)
	}
}

// HandleReachabilityChanged is the transport callback for peer
// reachability transitions.
func (c *Channel) HandleReachabilityChanged(reachable bool) {
	c.mu.Lock()
	onReachability := c.onReachability
	c.mu.Unlock()

	log.Debugf("companion channel: peer reachable: %t", reachable)
	if onReachability != nil {
		onReachability(reachable)
	}
}

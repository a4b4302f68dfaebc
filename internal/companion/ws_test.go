package companion_test

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/wtracker/wtracker/internal/companion"
)

// TestMain will run goleak after all tests have been run in the package
// to detect any goroutine leaks
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingHandler struct {
	mu           sync.Mutex
	inbound      [][]byte
	reachability []bool
}

func (h *recordingHandler) HandleInbound(raw []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.inbound = append(h.inbound, append([]byte(nil), raw...))
}

func (h *recordingHandler) HandleReachabilityChanged(reachable bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reachability = append(h.reachability, reachable)
}

func (h *recordingHandler) inboundCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.inbound)
}

func (h *recordingHandler) lastReachability() (bool, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.reachability) == 0 {
		return false, false
	}
	return h.reachability[len(h.reachability)-1], true
}

func TestWSTransport_ConnectReplayAndInbound(t *testing.T) {
	transport := companion.NewWSTransport()
	handler := &recordingHandler{}
	transport.SetHandler(handler)

	require.False(t, transport.IsReachable())
	assert.ErrorIs(t, transport.SendTransient([]byte(`{}`)), companion.ErrPeerUnreachable)

	contextPayload := []byte(`{"type":"context","context":{"workoutActive":true,"timestamp":1720000000000}}`)
	require.NoError(t, transport.UpdateContext(contextPayload))

	r := mux.NewRouter()
	r.HandleFunc("/companion/ws", transport.HandleConnect)
	server := httptest.NewServer(r)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/companion/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		defer func() {
			require.NoError(t, resp.Body.Close())
		}()
	}

	// the stored context arrives first, before any live traffic
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, replayed, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, string(contextPayload), string(replayed))

	require.Eventually(t, transport.IsReachable, 2*time.Second, 10*time.Millisecond)
	reachable, ok := handler.lastReachability()
	require.True(t, ok)
	assert.True(t, reachable)

	// live transient delivery
	statePayload := []byte(`{"exerciseName":"Bench Press","currentSet":2,"totalSets":4}`)
	require.NoError(t, transport.SendTransient(statePayload))
	_, received, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, string(statePayload), string(received))

	// inbound traffic reaches the handler
	setCompleted := []byte(`{"type":"setCompleted","weight":82.5,"repsCompleted":7}`)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, setCompleted))
	require.Eventually(t, func() bool {
		return handler.inboundCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	// peer gone: transport notices and transient sends fail again
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return !transport.IsReachable()
	}, 2*time.Second, 10*time.Millisecond)
	reachable, ok = handler.lastReachability()
	require.True(t, ok)
	assert.False(t, reachable)
	assert.ErrorIs(t, transport.SendTransient([]byte(`{}`)), companion.ErrPeerUnreachable)
}

// A peer reconnecting mid-workout races the context replay against the
// live pushes the session keeps producing. gorilla/websocket allows a
// single writer per connection, so the replay must finish before the
// connection is visible to SendTransient and UpdateContext.
func TestWSTransport_ReconnectDuringLivePushes(t *testing.T) {
	transport := companion.NewWSTransport()
	handler := &recordingHandler{}
	transport.SetHandler(handler)
	require.NoError(t, transport.UpdateContext([]byte(`{"type":"context","context":{"workoutActive":true}}`)))

	r := mux.NewRouter()
	r.HandleFunc("/companion/ws", transport.HandleConnect)
	server := httptest.NewServer(r)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/companion/ws"

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			_ = transport.SendTransient([]byte(`{"currentSet":2,"totalSets":4}`))
			_ = transport.UpdateContext([]byte(`{"type":"context","context":{"workoutActive":true}}`))
		}
	}()

	for i := 0; i < 50; i++ {
		conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		if resp != nil && resp.Body != nil {
			require.NoError(t, resp.Body.Close())
		}

		// the replayed context is a whole frame, never interleaved
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, replayed, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"context","context":{"workoutActive":true}}`, string(replayed))

		require.NoError(t, conn.Close())
	}

	close(stop)
	wg.Wait()

	require.Eventually(t, func() bool {
		return !transport.IsReachable()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWSTransport_NewPeerReplacesOld(t *testing.T) {
	transport := companion.NewWSTransport()
	handler := &recordingHandler{}
	transport.SetHandler(handler)

	r := mux.NewRouter()
	r.HandleFunc("/companion/ws", transport.HandleConnect)
	server := httptest.NewServer(r)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/companion/ws"

	first, resp1, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp1 != nil && resp1.Body != nil {
		defer func() {
			require.NoError(t, resp1.Body.Close())
		}()
	}
	require.Eventually(t, transport.IsReachable, 2*time.Second, 10*time.Millisecond)

	second, resp2, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp2 != nil && resp2.Body != nil {
		defer func() {
			require.NoError(t, resp2.Body.Close())
		}()
	}

	// the replaced connection is closed by the transport
	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			break
		}
	}

	assert.True(t, transport.IsReachable(), "the new peer carries on")
	require.NoError(t, transport.SendTransient([]byte(`{"currentSet":1}`)))
	require.NoError(t, second.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, received, err := second.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"currentSet":1}`, string(received))

	require.NoError(t, second.Close())
	require.Eventually(t, func() bool {
		return !transport.IsReachable()
	}, 2*time.Second, 10*time.Millisecond)
}

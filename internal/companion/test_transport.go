package companion

import "sync"

// TestTransport records traffic instead of delivering it. Used in
// tests and as a stand-in when no companion transport is configured.
type TestTransport struct {
	mu        sync.Mutex
	reachable bool
	sent      [][]byte
	contexts  [][]byte
	failSends bool
}

func NewTestTransport(reachable bool) *TestTransport {
	return &TestTransport{reachable: reachable}
}

func (t *TestTransport) SetReachable(reachable bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reachable = reachable
}

func (t *TestTransport) FailSends(fail bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failSends = fail
}

func (t *TestTransport) IsReachable() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reachable
}

func (t *TestTransport) SendTransient(payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.reachable || t.failSends {
		return ErrPeerUnreachable
	}
	t.sent = append(t.sent, append([]byte(nil), payload...))
	return nil
}

func (t *TestTransport) UpdateContext(payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.contexts = append(t.contexts, append([]byte(nil), payload...))
	return nil
}

func (t *TestTransport) Sent() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([][]byte(nil), t.sent...)
}

func (t *TestTransport) Contexts() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([][]byte(nil), t.contexts...)
}

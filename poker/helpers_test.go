package poker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type delivery struct {
	room string
	conn string
	msg  any
}

type recordingTransport struct {
	mu     sync.Mutex
	rooms  map[string][]string
	closed []string
	log    []delivery
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{rooms: make(map[string][]string)}
}

func (r *recordingTransport) Subscribe(room, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[room] = append(r.rooms[room], connID)
}

func (r *recordingTransport) Send(connID string, msg any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, delivery{conn: connID, msg: msg})
}

func (r *recordingTransport) Publish(room string, msg any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, delivery{room: room, msg: msg})
}

func (r *recordingTransport) Close(room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, room)
	r.closed = append(r.closed, room)
}

// mark returns a position to pass to since.
func (r *recordingTransport) mark() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.log)
}

func (r *recordingTransport) since(pos int) []delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]delivery(nil), r.log[pos:]...)
}

func (r *recordingTransport) roomMessages(room string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []any
	for _, d := range r.log {
		if d.room == room {
			out = append(out, d.msg)
		}
	}
	return out
}

func (r *recordingTransport) privateMessages(conn string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []any
	for _, d := range r.log {
		if d.conn == conn {
			out = append(out, d.msg)
		}
	}
	return out
}

// lastOf returns the newest message of type T in deliveries.
func lastOf[T any](t *testing.T, deliveries []delivery) T {
	t.Helper()

	for i := len(deliveries) - 1; i >= 0; i-- {
		if msg, ok := deliveries[i].msg.(T); ok {
			return msg
		}
	}

	var zero T
	require.Failf(t, "message not found", "no %T delivered", zero)
	return zero
}

type room struct {
	t           *testing.T
	svc         *Service
	transport   *recordingTransport
	key         string
	facilitator *Member
	clock       time.Time
}

// newRoom creates a session with a joined facilitator and the named
// participants, who get connection ids p1, p2, ...
func newRoom(t *testing.T, names ...string) (*room, []*Member) {
	t.Helper()

	transport := newRecordingTransport()
	svc := NewService(NewRegistry(), transport, Options{})

	r := &room{
		t:         t,
		svc:       svc,
		transport: transport,
		clock:     time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC),
	}
	svc.now = func() time.Time { return r.clock }

	key, err := svc.CreateSession("Fran")
	require.NoError(t, err)
	r.key = key

	r.facilitator, err = svc.Join("fac", key, "Fran", true)
	require.NoError(t, err)

	members := make([]*Member, 0, len(names))
	for i, name := range names {
		m, err := svc.Join(connName(i), key, name, false)
		require.NoError(t, err)
		members = append(members, m)
	}

	return r, members
}

func connName(i int) string {
	return "p" + string(rune('1'+i))
}

func (r *room) state() State {
	r.t.Helper()

	session, ok := r.svc.Registry().Get(r.key)
	require.True(r.t, ok, "session %s missing", r.key)

	return session.Snapshot()
}
